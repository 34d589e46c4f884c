package app

import "time"

// Config contains the server runtime configuration loaded from environment variables.
// Feature packages (session, auth api, backend, rooms, realtime) load their own.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string // "json" or "pretty"
	LogColor  bool

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int

	// DatabaseURL enables the Postgres revocation store. Empty keeps revocations in memory.
	DatabaseURL    string
	DBMaxConns     int32
	DBMinConns     int32
	DBSchema       string
	DBEnsureSchema bool

	// If true, /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// PruneInterval is how often expired revocations are dropped.
	PruneInterval time.Duration

	// CORS for a front end served from another origin. Empty disables the middleware.
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	// Security policy: refuse to start with cookies that would travel over plain HTTP.
	RequireSecureCookies bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("STUDYROOMS_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("STUDYROOMS_LOG_LEVEL", "info"),
		LogFormat: EnvString("STUDYROOMS_LOG_FORMAT", "json"),
		LogColor:  EnvBool("STUDYROOMS_LOG_COLOR", true) && EnvString("NO_COLOR", "") == "",

		ReadHeaderTimeout: EnvDuration("STUDYROOMS_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("STUDYROOMS_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("STUDYROOMS_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("STUDYROOMS_HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   EnvDuration("STUDYROOMS_SHUTDOWN_TIMEOUT", 10*time.Second),

		MaxHeaderBytes: EnvInt("STUDYROOMS_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL:    EnvString("STUDYROOMS_DATABASE_URL", ""),
		DBMaxConns:     EnvInt32("STUDYROOMS_DB_MAX_CONNS", 10),
		DBMinConns:     EnvInt32("STUDYROOMS_DB_MIN_CONNS", 0),
		DBSchema:       EnvString("STUDYROOMS_DB_SCHEMA", "studyrooms"),
		DBEnsureSchema: EnvBool("STUDYROOMS_DB_ENSURE_SCHEMA", true),

		ReadinessRequireDB: EnvBool("STUDYROOMS_READINESS_REQUIRE_DB", false),

		PruneInterval: EnvDuration("STUDYROOMS_REVOCATION_PRUNE_INTERVAL", 10*time.Minute),

		CORSAllowedOrigins:   EnvStringList("STUDYROOMS_CORS_ALLOWED_ORIGINS", nil),
		CORSAllowCredentials: EnvBool("STUDYROOMS_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("STUDYROOMS_CORS_MAX_AGE", 600),

		RequireSecureCookies: EnvBool("STUDYROOMS_REQUIRE_SECURE_COOKIES", false),
	}
}
