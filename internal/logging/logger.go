package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Logger is the global logger instance
	Logger = &SafeLogger{logger: zap.NewNop()}
)

// SafeLogger wraps a zap logger and tolerates being used before InitLogger runs
type SafeLogger struct {
	logger *zap.Logger
}

// NewSafeLogger wraps an existing zap logger
func NewSafeLogger(logger *zap.Logger) *SafeLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SafeLogger{logger: logger}
}

// InitLogger initializes the global logger
func InitLogger() error {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	// Set log level from environment
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(logLevel)); err == nil {
			config.Level = zap.NewAtomicLevelAt(level)
		}
	}

	zapLogger, err := config.Build(
		zap.AddCallerSkip(1),
		zap.Fields(
			zap.String("service", "registration-api"),
			zap.String("version", "v1"),
		),
	)
	if err != nil {
		return err
	}

	Logger = &SafeLogger{logger: zapLogger}
	zap.ReplaceGlobals(zapLogger)

	return nil
}

func (l *SafeLogger) base() *zap.Logger {
	if l == nil || l.logger == nil {
		return zap.NewNop()
	}
	return l.logger
}

// Debug logs a message at debug level
func (l *SafeLogger) Debug(msg string, fields ...zap.Field) {
	l.base().Debug(msg, fields...)
}

// Info logs a message at info level
func (l *SafeLogger) Info(msg string, fields ...zap.Field) {
	l.base().Info(msg, fields...)
}

// Warn logs a message at warn level
func (l *SafeLogger) Warn(msg string, fields ...zap.Field) {
	l.base().Warn(msg, fields...)
}

// Error logs a message at error level
func (l *SafeLogger) Error(msg string, fields ...zap.Field) {
	l.base().Error(msg, fields...)
}

// Fatal logs a message and exits the process
func (l *SafeLogger) Fatal(msg string, fields ...zap.Field) {
	l.base().Fatal(msg, fields...)
}

// With returns a child logger carrying the given fields
func (l *SafeLogger) With(fields ...zap.Field) *SafeLogger {
	if l == nil || l.logger == nil {
		return l
	}
	return &SafeLogger{logger: l.logger.With(fields...)}
}

// Named returns a child logger with the given name segment
func (l *SafeLogger) Named(name string) *SafeLogger {
	return &SafeLogger{logger: l.base().Named(name)}
}

// Sync flushes any buffered log entries
func (l *SafeLogger) Sync() error {
	return l.base().Sync()
}

// Unwrap exposes the underlying zap logger
func (l *SafeLogger) Unwrap() *zap.Logger {
	return l.base()
}
