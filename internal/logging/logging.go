// Package logging builds the prefixed loggers used across hubmirror.
//
// CLI commands log to stderr. Daemon mode can additionally write to a
// rotating log file so long-running syncs don't grow logs without bound.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a stderr logger with the given component prefix,
// e.g. New("[sync] ").
func New(prefix string) *log.Logger {
	return log.New(os.Stderr, prefix, log.LstdFlags)
}

// NewRotating returns a logger with the given prefix that writes to both
// stderr and a size-rotated file at path. An empty path behaves like New.
func NewRotating(path, prefix string) *log.Logger {
	if path == "" {
		return New(prefix)
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}

	return log.New(io.MultiWriter(os.Stderr, rotator), prefix, log.LstdFlags)
}
