package rooms

import (
	"os"
	"strconv"
	"strings"
)

// Config bounds message payloads.
type Config struct {
	// MaxTextChars limits text messages, counted in runes.
	MaxTextChars int
	// MaxImageBytes limits the encoded image payload of image messages.
	MaxImageBytes int
}

// DefaultConfig returns 4000 characters of text and 5 MiB of image.
func DefaultConfig() Config {
	return Config{MaxTextChars: 4000, MaxImageBytes: 5 << 20}
}

// LoadConfigFromEnv reads STUDYROOMS_MAX_MESSAGE_CHARS and STUDYROOMS_MAX_IMAGE_BYTES.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	return Config{
		MaxTextChars:  envInt("STUDYROOMS_MAX_MESSAGE_CHARS", def.MaxTextChars),
		MaxImageBytes: envInt("STUDYROOMS_MAX_IMAGE_BYTES", def.MaxImageBytes),
	}
}

// maxBodyBytes is the request limit for message posts: the image cap plus
// room for the JSON envelope.
func (c Config) maxBodyBytes() int64 {
	n := int64(c.MaxImageBytes)
	if t := int64(c.MaxTextChars) * 4; t > n {
		n = t
	}
	return n + 64<<10
}

func envInt(key string, def int) int {
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
