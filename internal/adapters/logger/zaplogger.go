package logger

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"cryptoRsiBot/internal/ports"
)

// ZapLogger implements the ports.Logger interface on top of zap.
type ZapLogger struct {
	log *zap.Logger
}

// Config holds configuration for the zap logger adapter.
type Config struct {
	Level string // DEBUG, INFO, WARN, ERROR (case-insensitive)
	File  string // Optional log file path; logs go to stderr only when empty
}

// New creates a zap-backed logger. When cfg.File is set, output is written
// both to stderr and to a size-rotated file.
func New(cfg Config) *ZapLogger {
	level := parseLevel(cfg.Level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		level,
	)

	core := consoleCore
	if cfg.File != "" {
		fileSink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			fileSink,
			level,
		)
		core = zapcore.NewTee(consoleCore, fileCore)
	}

	return &ZapLogger{log: zap.New(core)}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Sync flushes buffered log entries. Call on shutdown.
func (l *ZapLogger) Sync() error {
	return l.log.Sync()
}

// Debug logs a debug message.
func (l *ZapLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log.Debug(msg, zapFields(fields)...)
}

// Info logs an informational message.
func (l *ZapLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log.Info(msg, zapFields(fields)...)
}

// Warn logs a warning message.
func (l *ZapLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log.Warn(msg, zapFields(fields)...)
}

// Error logs an error message along with the error itself.
func (l *ZapLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	zfs := zapFields(fields)
	if err != nil {
		zfs = append(zfs, zap.Error(err))
	}
	l.log.Error(msg, zfs...)
}

// zapFields flattens the variadic field maps into zap fields.
func zapFields(fieldMaps []map[string]interface{}) []zap.Field {
	total := 0
	for _, m := range fieldMaps {
		total += len(m)
	}
	if total == 0 {
		return nil
	}
	zfs := make([]zap.Field, 0, total)
	for _, m := range fieldMaps {
		for k, v := range m {
			zfs = append(zfs, zap.Any(k, v))
		}
	}
	return zfs
}

// Compile-time check that ZapLogger satisfies ports.Logger.
var _ ports.Logger = (*ZapLogger)(nil)
