package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides a unified logging interface for the conversational RAG server.
// Package-level helpers delegate to a process-wide zap logger.

var (
	mu    sync.RWMutex
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base  = zap.NewNop()
	sugar = base.Sugar()
)

// Init builds the process logger. format is "json" or "console".
func Init(lvl, format string) error {
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(format, "console") {
		cfg = zap.NewDevelopmentConfig()
	}
	if err := level.UnmarshalText([]byte(strings.ToLower(lvl))); err != nil {
		level.SetLevel(zapcore.InfoLevel)
	}
	cfg.Level = level
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	Replace(l)
	return nil
}

// Replace swaps the process logger, e.g. with zaptest or zap.NewNop in tests.
func Replace(l *zap.Logger) {
	mu.Lock()
	base = l
	sugar = l.Sugar()
	mu.Unlock()
}

// UseNop silences logging.
func UseNop() { Replace(zap.NewNop()) }

// L returns the structured logger for components that take one injected.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func s() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// SetLevel sets the minimum log level
func SetLevel(l zapcore.Level) { level.SetLevel(l) }

// With returns a logger carrying key/value context.
func With(kv ...interface{}) *zap.SugaredLogger { return s().With(kv...) }

func Debugf(format string, args ...interface{}) { s().Debugf(format, args...) }

func Infof(format string, args ...interface{}) { s().Infof(format, args...) }

func Warnf(format string, args ...interface{}) { s().Warnf(format, args...) }

func Errorf(format string, args ...interface{}) { s().Errorf(format, args...) }

// Sync flushes buffered entries.
func Sync() { _ = L().Sync() }
