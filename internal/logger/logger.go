// Package logger provides a thin wrapper around zerolog.Logger used
// throughout the TimeEgg backend. The Logger type embeds zerolog.Logger so
// all standard zerolog methods (Debug, Info, Warn, Error, Fatal, etc.) are
// available directly on *Logger.
package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger is a thin wrapper around zerolog.Logger.
type Logger struct {
	zerolog.Logger
}

// New constructs a JSON logger writing to stdout, tagged with the given
// component label (e.g. "server", "capsule-service").
func New(component string) *Logger {
	level := zerolog.InfoLevel
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && os.Getenv("LOG_LEVEL") != "" {
		level = lvl
	}

	l := zerolog.New(os.Stdout).
		Level(level).
		With().
		Str("component", component).
		Timestamp().
		Logger()

	return &Logger{l}
}

// Nop returns a logger that discards everything. Used in tests.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}
