// Package logger provides structured logging capabilities.
//
// The logger package sets up and configures the application's logging
// system using zap, providing structured, high-performance logging
// throughout the application.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/isdmx/coderun/config"
)

// Field keys shared by every component that logs about a request
const (
	FieldRequestID = "request_id"
	FieldLanguage  = "language"
	FieldStatus    = "status"
)

// NewFromConfig creates the root application logger from the configuration
func NewFromConfig(cfg *config.Config) (*zap.Logger, error) {
	log, err := New(cfg.Logging.Mode, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	return log.Named("coderun").With(zap.String("backend", cfg.Engine.Backend)), nil
}

// New creates a new logger instance based on mode and level
func New(mode, level string) (*zap.Logger, error) {
	cfg, err := baseConfig(mode)
	if err != nil {
		return nil, err
	}

	logLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid logging level: %s, must be one of 'debug', 'info', 'warn', 'error', 'dpanic', 'panic', 'fatal'", level)
	}
	cfg.Level = zap.NewAtomicLevelAt(logLevel)

	// Every execution outcome is logged; sampling would drop bursts of them.
	cfg.Sampling = nil

	// stdout belongs to the MCP stdio transport.
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	return cfg.Build()
}

func baseConfig(mode string) (zap.Config, error) {
	switch mode {
	case "development":
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg, nil
	case "production":
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.EncodeDuration = zapcore.MillisDurationEncoder
		return cfg, nil
	default:
		return zap.Config{}, fmt.Errorf("invalid logging mode: %s, must be 'production' or 'development'", mode)
	}
}

// ForRequest returns a child logger that tags every entry with the request
// ID and language
func ForRequest(log *zap.Logger, requestID, language string) *zap.Logger {
	return log.With(zap.String(FieldRequestID, requestID), zap.String(FieldLanguage, language))
}
