// Package logger wraps a process-wide zap logger with printf-style helpers.
package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level       string // debug, info, warn, error
	File        string // empty disables file output
	MaxFileSize int    // megabytes
	Console     bool
}

var (
	mu     sync.RWMutex
	sugar  = zap.NewNop().Sugar()
	closer func() error
)

// Init replaces the global logger. It is safe to call more than once.
func Init(cfg Config) {
	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var cores []zapcore.Core
	if cfg.Console || cfg.File == "" {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), level))
	}

	var rotator *lumberjack.Logger
	if cfg.File != "" {
		maxSize := cfg.MaxFileSize
		if maxSize <= 0 {
			maxSize = 100
		}
		rotator = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    maxSize,
			MaxBackups: 5,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), level))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))

	mu.Lock()
	sugar = l.Sugar()
	if rotator != nil {
		closer = rotator.Close
	} else {
		closer = nil
	}
	mu.Unlock()
}

// Sync flushes buffered entries and closes the log file, if any.
func Sync() {
	mu.RLock()
	s, c := sugar, closer
	mu.RUnlock()
	_ = s.Sync()
	if c != nil {
		_ = c()
	}
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Debug(format string, args ...interface{}) { get().Debugf(format, args...) }
func Info(format string, args ...interface{})  { get().Infof(format, args...) }
func Warn(format string, args ...interface{})  { get().Warnf(format, args...) }
func Error(format string, args ...interface{}) { get().Errorf(format, args...) }
func Fatal(format string, args ...interface{}) { get().Fatalf(format, args...) }

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
