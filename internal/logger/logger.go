// ABOUTME: Process-wide structured logger built on zap with file rotation
// ABOUTME: Package-level helpers keep call sites short across the visualizer and gateway
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu           sync.RWMutex
	globalLogger = zap.NewNop()
)

// Level names accepted in configuration
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config controls where log lines go
type Config struct {
	Level      Level
	OutputPath string // rotated JSON file, empty disables
	Console    bool   // also write to stdout (off while the TUI owns the terminal)
	MaxSize    int    // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init replaces the global logger. Safe to call more than once.
func Init(cfg Config) error {
	level := cfg.Level.zapLevel()

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var cores []zapcore.Core
	if cfg.Console {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.AddSync(os.Stdout),
			level,
		))
	}

	if cfg.OutputPath != "" {
		if dir := filepath.Dir(cfg.OutputPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		writer := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.OutputPath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), writer, level))
	}

	l := zap.NewNop()
	if len(cores) > 0 {
		l = zap.New(zapcore.NewTee(cores...),
			zap.AddCaller(),
			zap.AddCallerSkip(1),
			zap.AddStacktrace(zapcore.ErrorLevel),
		)
	}

	mu.Lock()
	globalLogger = l
	mu.Unlock()
	return nil
}

// L returns the current logger for callers that want zap directly
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// Sync flushes buffered entries
func Sync() {
	_ = L().Sync()
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }

func Info(msg string, fields ...zap.Field) { L().Info(msg, fields...) }

func Warn(msg string, fields ...zap.Field) { L().Warn(msg, fields...) }

func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

// Fatal logs and exits the process
func Fatal(msg string, fields ...zap.Field) { L().Fatal(msg, fields...) }

func String(key string, val string) zap.Field { return zap.String(key, val) }

func Int(key string, val int) zap.Field { return zap.Int(key, val) }

func Int64(key string, val int64) zap.Field { return zap.Int64(key, val) }

func Float64(key string, val float64) zap.Field { return zap.Float64(key, val) }

func Bool(key string, val bool) zap.Field { return zap.Bool(key, val) }

// ErrorField attaches err under the "error" key
func ErrorField(err error) zap.Field { return zap.Error(err) }

func Any(key string, val interface{}) zap.Field { return zap.Any(key, val) }

func Duration(key string, val time.Duration) zap.Field { return zap.Duration(key, val) }
