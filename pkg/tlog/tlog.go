// Package tlog is the engine's structured logging wrapper around
// zerolog, adapted from the teacher's pkg/logger call-site shape
// (Debug/Info/Error, here extended with Warn) but backed by a real
// structured-logging library instead of the standard log package.
package tlog

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is the call-site surface every engine package logs through.
// Session Coordinator failure semantics (spec §4.5, §7) call Warn for
// degraded-but-recoverable conditions (TransientExternal, StorageUnavailable)
// and Error for ones surfaced to the user.
type Logger interface {
	Debug(format string, v ...interface{})
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// zlog adapts zerolog.Logger to the Logger interface.
type zlog struct {
	l zerolog.Logger
}

// New builds a Logger writing to stderr, honoring LOG_LEVEL
// (debug|info|warn|error, default info) the same way the teacher's
// logger.Init did.
func New() Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn", "warning":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(level).
		With().Timestamp().Logger()
	return &zlog{l: l}
}

func (z *zlog) Debug(format string, v ...interface{}) { z.l.Debug().Msgf(format, v...) }
func (z *zlog) Info(format string, v ...interface{})  { z.l.Info().Msgf(format, v...) }
func (z *zlog) Warn(format string, v ...interface{})  { z.l.Warn().Msgf(format, v...) }
func (z *zlog) Error(format string, v ...interface{}) { z.l.Error().Msgf(format, v...) }

type nop struct{}

func (nop) Debug(string, ...interface{}) {}
func (nop) Info(string, ...interface{})  {}
func (nop) Warn(string, ...interface{})  {}
func (nop) Error(string, ...interface{}) {}

// Nop returns a Logger that discards everything, for tests and callers
// that haven't wired a real sink.
func Nop() Logger { return nop{} }
