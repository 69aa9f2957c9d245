package log

import "go.uber.org/zap"

// Log is the logging surface the store packages depend on. It is a thin facade
// over zap so call sites stay mockable without dragging the zap API everywhere.
type Log interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	With(fields ...Field) Log
}

type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Field is a structured log field.
type Field = zap.Field

// Field constructors, re-exported so callers only import this package.
var (
	String   = zap.String
	Strings  = zap.Strings
	Int      = zap.Int
	Uint64   = zap.Uint64
	Bool     = zap.Bool
	Err      = zap.Error
	Duration = zap.Duration
	Any      = zap.Any
)
