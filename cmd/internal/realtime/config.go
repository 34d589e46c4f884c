package realtime

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// wsDefaultAllowedOrigins keeps dev secure by default: only localhost.
const wsDefaultAllowedOrigins = "http://localhost,http://127.0.0.1"

// Config controls the realtime feed.
type Config struct {
	PollInterval time.Duration

	OriginRequired bool
	AllowedOrigins []string

	SendQueueSize int
	WriteTimeout  time.Duration

	HeartbeatEvery   time.Duration
	HeartbeatTimeout time.Duration

	SendRate  float64
	SendBurst int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:     pollInterval,
		OriginRequired:   true,
		AllowedOrigins:   splitCSV(wsDefaultAllowedOrigins),
		SendQueueSize:    wsDefaultSendQueueSize,
		WriteTimeout:     wsDefaultWriteTimeout,
		HeartbeatEvery:   heartbeatInterval,
		HeartbeatTimeout: heartbeatTimeout,
		SendRate:         sendRatePerSec,
		SendBurst:        sendBurst,
	}
}

// LoadConfigFromEnv reads STUDYROOMS_POLL_INTERVAL, STUDYROOMS_WS_* and falls
// back to defaults for anything unset or invalid.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	cfg := Config{
		PollInterval:     envDurationWS("STUDYROOMS_POLL_INTERVAL", def.PollInterval),
		OriginRequired:   envBoolWS("STUDYROOMS_WS_ORIGIN_REQUIRED", def.OriginRequired),
		AllowedOrigins:   splitCSV(envStringWS("STUDYROOMS_WS_ALLOWED_ORIGINS", wsDefaultAllowedOrigins)),
		SendQueueSize:    envIntWS("STUDYROOMS_WS_SEND_QUEUE", def.SendQueueSize),
		WriteTimeout:     envDurationWS("STUDYROOMS_WS_WRITE_TIMEOUT", def.WriteTimeout),
		HeartbeatEvery:   envDurationWS("STUDYROOMS_WS_HEARTBEAT_INTERVAL", def.HeartbeatEvery),
		HeartbeatTimeout: envDurationWS("STUDYROOMS_WS_HEARTBEAT_TIMEOUT", def.HeartbeatTimeout),
		SendRate:         envFloatWS("STUDYROOMS_WS_SEND_RATE", def.SendRate),
		SendBurst:        envIntWS("STUDYROOMS_WS_SEND_BURST", def.SendBurst),
	}
	if cfg.SendQueueSize < wsMinSendQueueSize {
		cfg.SendQueueSize = wsMinSendQueueSize
	}
	return cfg
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.SendQueueSize < wsMinSendQueueSize {
		c.SendQueueSize = wsMinSendQueueSize
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.HeartbeatEvery <= 0 {
		c.HeartbeatEvery = def.HeartbeatEvery
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = def.HeartbeatTimeout
	}
	if c.SendRate <= 0 {
		c.SendRate = def.SendRate
	}
	if c.SendBurst <= 0 {
		c.SendBurst = def.SendBurst
	}
	return c
}

// ---- env helpers ----

func envStringWS(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBoolWS(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envIntWS(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envFloatWS(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}

func envDurationWS(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
