// Package log provides a global logger with configurable logging level. Records are written through
// log/slog: a colourised tint handler for terminals, or JSON for collectors.

package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

type Level int

const (
	LevelNone    Level = iota // Disables logging.
	LevelError                // Logs anomalies that are not expected to occur during normal use.
	LevelWarning              // Logs anomalies that are expected to occur occasionally during normal use.
	LevelInfo                 // Logs major events.
	LevelDebug                // Logs detailed IO
)

// Format selects the record encoding.
type Format int

const (
	FormatText Format = iota // Human readable, coloured when the output is a terminal.
	FormatJSON               // One JSON object per line.
)

// levelOff is above every slog level, so nothing passes.
const levelOff = slog.Level(1 << 10)

var slogLevels = map[Level]slog.Level{
	LevelNone:    levelOff,
	LevelError:   slog.LevelError,
	LevelWarning: slog.LevelWarn,
	LevelInfo:    slog.LevelInfo,
	LevelDebug:   slog.LevelDebug,
}

var (
	logMutex    sync.Mutex
	globalLevel = new(slog.LevelVar)
	logger      = newLogger(os.Stderr, FormatText)
)

func init() {
	globalLevel.Set(levelOff)
}

func newLogger(w io.Writer, format Format) *slog.Logger {
	if format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: globalLevel}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      globalLevel,
		TimeFormat: time.RFC3339,
	}))
}

// SetLevel changes the global log level. The default is LevelNone.
func SetLevel(level Level) {
	l, ok := slogLevels[level]
	if !ok {
		l = slog.LevelDebug
	}
	globalLevel.Set(l)
}

// SetOutput redirects log records to w using the given format.
func SetOutput(w io.Writer, format Format) {
	logMutex.Lock()
	defer logMutex.Unlock()
	logger = newLogger(w, format)
}

// Logger returns the underlying structured logger, for callers that want attributes rather than
// printf-style messages.
func Logger() *slog.Logger {
	logMutex.Lock()
	defer logMutex.Unlock()
	return logger
}

func log(level slog.Level, format string, a ...interface{}) {
	l := Logger()
	ctx := context.Background()
	if !l.Enabled(ctx, level) {
		return
	}
	l.Log(ctx, level, fmt.Sprintf(format, a...))
}

func Debug(format string, a ...interface{}) {
	log(slog.LevelDebug, format, a...)
}
func Info(format string, a ...interface{}) {
	log(slog.LevelInfo, format, a...)
}
func Warning(format string, a ...interface{}) {
	log(slog.LevelWarn, format, a...)
}
func Error(format string, a ...interface{}) {
	log(slog.LevelError, format, a...)
}
