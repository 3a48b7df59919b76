package bootstrap

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"panel-agent/internal/config"
)

// newLogger writes to stderr so the console prompt and command output on
// stdout stay readable.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config

	if cfg.AppConfig.Debug {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zapConfig.Sampling = nil
	}

	zapConfig.DisableStacktrace = true
	zapConfig.OutputPaths = []string{"stderr"}

	if cfg.AppConfig.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.AppConfig.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("LOG_LEVEL: %w", err)
		}
		zapConfig.Level = zap.NewAtomicLevelAt(level)
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	return logger.With(zap.String("service", serviceName)), nil
}
