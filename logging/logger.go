package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalLogger *zap.Logger
	globalMu     sync.RWMutex
)

func init() {
	globalLogger = zap.NewNop()
}

// FileConfig configures the optional rotating log file.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a logger writing console-encoded entries to stderr and, when
// file.Path is set, JSON entries to a rotating file.
func New(level string, file FileConfig) (*zap.Logger, error) {
	lvl := zap.NewAtomicLevelAt(ParseLevel(level))

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCfg := encCfg
	consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), lvl),
	}
	if file.Path != "" {
		w := &lumberjack.Logger{
			Filename:   file.Path,
			MaxSize:    file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAge:     file.MaxAgeDays,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(w), lvl))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// Global returns the global logger.
func Global() *zap.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// SetGlobal sets the global logger.
func SetGlobal(l *zap.Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// helper skips the wrapper frame so callers are reported correctly.
func helper() *zap.Logger {
	return Global().WithOptions(zap.AddCallerSkip(1))
}

// Info logs at info level using the global logger.
func Info(msg string, fields ...zap.Field) {
	helper().Info(msg, fields...)
}

// Warn logs at warn level using the global logger.
func Warn(msg string, fields ...zap.Field) {
	helper().Warn(msg, fields...)
}

// Error logs at error level using the global logger.
func Error(msg string, fields ...zap.Field) {
	helper().Error(msg, fields...)
}

// Debug logs at debug level using the global logger.
func Debug(msg string, fields ...zap.Field) {
	helper().Debug(msg, fields...)
}

// With creates a child logger with additional fields.
func With(fields ...zap.Field) *zap.Logger {
	return Global().With(fields...)
}

// Sync flushes any buffered log entries.
func Sync() {
	_ = Global().Sync()
}
