package app

import (
	"context"
	"os/signal"
	"syscall"
)

// Run is the CLI entrypoint used by cmd/studyrooms.
// It returns an error instead of calling os.Exit to keep defers effective.
func Run() error {
	// Logging settings may themselves come from .env, so load it with a
	// provisional logger first.
	boot := NewLogger(EnvString("STUDYROOMS_LOG_LEVEL", "info"), EnvString("STUDYROOMS_LOG_FORMAT", "json"), false)
	if err := LoadDotEnv(EnvString("STUDYROOMS_ENV_FILE", ".env"), boot); err != nil {
		return err
	}

	cfg := LoadConfig()
	log := NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogColor)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}

	return a.Run(ctx)
}
