// Package xlog provides colxfer's structured logger: a thin level-scoped
// wrapper over go.uber.org/zap, promoted here from an indirect dependency
// (pulled in transitively via pingcap/log, itself pulled in by
// pingcap/tidb/pkg/parser) to a directly exercised one. The context-scoped
// method shape (Debug/Info/Warn/Error, each taking a context.Context
// first) follows the level-scoped wrapper pattern in
// xaas-cloud-genai-toolbox's internal/log.StdLogger, adapted from
// log/slog onto zap.
package xlog

import (
	"context"

	"go.uber.org/zap"
)

// Logger is colxfer's structured logger, one per Dispatcher run.
type Logger struct {
	z *zap.SugaredLogger
}

// New builds a production Logger from zap's production config (JSON
// encoding, epoch-seconds timestamps), level configurable by levelName ("debug", "info", "warn", "error").
func New(levelName string) (*Logger, error) {
	level, err := zap.ParseAtomicLevel(levelName)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{z: z.Sugar()}, nil
}

// NewNop returns a Logger that discards everything, for tests and
// library callers that don't want colxfer's own logging.
func NewNop() *Logger {
	return &Logger{z: zap.NewNop().Sugar()}
}

// Sync flushes any buffered log entries; call before process exit.
func (l *Logger) Sync() error { return l.z.Sync() }

// Debug, Info, Warn and Error log msg with structured key/value pairs.
// The ctx parameter is accepted for call-site symmetry with code that
// threads a context through every log call (e.g. to attach a request or
// partition ID via With in a future revision); it is not read here.
func (l *Logger) Debug(_ context.Context, msg string, kv ...any) { l.z.Debugw(msg, kv...) }
func (l *Logger) Info(_ context.Context, msg string, kv ...any)  { l.z.Infow(msg, kv...) }
func (l *Logger) Warn(_ context.Context, msg string, kv ...any)  { l.z.Warnw(msg, kv...) }
func (l *Logger) Error(_ context.Context, msg string, kv ...any) { l.z.Errorw(msg, kv...) }

// With returns a Logger that always attaches kv to subsequent log calls,
// e.g. l.With("partition", i) before a partition's worker loop starts.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{z: l.z.With(kv...)}
}
