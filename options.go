package detour

import "log/slog"

// config holds patcher configuration
type config struct {
	logger *slog.Logger
}

// Option configures a Patcher
type Option func(*config)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithDefaultLogger uses slog.Default()
func WithDefaultLogger() Option {
	return func(cfg *config) {
		cfg.logger = slog.Default()
	}
}
