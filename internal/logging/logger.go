// Package logging is the process-wide structured logger, built on zap.
// Diagnostics go to stderr or a file so they never interleave with the
// terminal output written to stdout.
package logging

import (
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// Config holds logging configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
	Output string // stderr (default), stdout, or a file path
}

func init() {
	// Before Init only warnings and errors are shown.
	logger = zap.New(zapcore.NewCore(
		newEncoder("text"),
		zapcore.Lock(os.Stderr),
		zapcore.WarnLevel,
	))
}

// Init replaces the global logger according to cfg.
func Init(cfg *Config) error {
	sink, err := openSink(cfg.Output)
	if err != nil {
		return err
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), sink, parseLevel(cfg.Level))
	logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	// go-fuse reports mount problems through the standard logger.
	log.SetFlags(0)
	log.SetOutput(stdLogWriter{})
	return nil
}

func openSink(output string) (zapcore.WriteSyncer, error) {
	switch strings.ToLower(output) {
	case "", "stderr":
		return zapcore.Lock(os.Stderr), nil
	case "stdout":
		return zapcore.Lock(os.Stdout), nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log output: %w", err)
	}
	return zapcore.AddSync(f), nil
}

// stdLogWriter forwards standard library log lines at warn level.
type stdLogWriter struct{}

func (stdLogWriter) Write(p []byte) (int, error) {
	logger.WithOptions(zap.AddCallerSkip(-1)).Warn(strings.TrimSuffix(string(p), "\n"), zap.String("source", "stdlib"))
	return len(p), nil
}

// parseLevel maps a configured level name to a zap level, defaulting to
// info for unknown names.
func parseLevel(level string) zapcore.Level {
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "warning" {
		name = "warn"
	}
	l, err := zapcore.ParseLevel(name)
	if err != nil || name == "" {
		return zapcore.InfoLevel
	}
	return l
}

func newEncoder(format string) zapcore.Encoder {
	if strings.ToLower(format) == "json" {
		ec := zap.NewProductionEncoderConfig()
		ec.TimeKey = "timestamp"
		ec.MessageKey = "message"
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(ec)
	}
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
	return zapcore.NewConsoleEncoder(ec)
}

// Sync flushes buffered entries. Call it before exiting.
func Sync() error {
	return logger.Sync()
}

// Debug logs msg at debug level.
func Debug(msg string, fields ...zap.Field) { logger.Debug(msg, fields...) }

// Info logs msg at info level.
func Info(msg string, fields ...zap.Field) { logger.Info(msg, fields...) }

// Warn logs msg at warn level.
func Warn(msg string, fields ...zap.Field) { logger.Warn(msg, fields...) }

// Error logs msg at error level.
func Error(msg string, fields ...zap.Field) { logger.Error(msg, fields...) }

// String creates a string field.
func String(key, value string) zap.Field { return zap.String(key, value) }

// Int creates an int field.
func Int(key string, value int) zap.Field { return zap.Int(key, value) }

// Bool creates a bool field.
func Bool(key string, value bool) zap.Field { return zap.Bool(key, value) }

// Err creates an error field with key "error".
func Err(err error) zap.Field { return zap.Error(err) }
