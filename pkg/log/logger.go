package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	Logger zerolog.Logger
	level  = zerolog.InfoLevel
)

func init() {
	// Colored console output by default
	SetOutput(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}

// SetOutput rebuilds the logger on top of w, keeping the current level.
// Passing a plain writer (not a ConsoleWriter) yields JSON lines.
func SetOutput(w io.Writer) {
	Logger = zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()

	// Set global logger
	log.Logger = Logger
}

// Info logs an info message.
func Info() *zerolog.Event {
	return Logger.Info()
}

// Error logs an error message.
func Error() *zerolog.Event {
	return Logger.Error()
}

// Warn logs a warning message.
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Debug logs a debug message.
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Fatal logs a fatal message and exits.
func Fatal() *zerolog.Event {
	return Logger.Fatal()
}

// SetDebugMode switches the logger to debug level.
func SetDebugMode() {
	SetLevel(zerolog.DebugLevel)
}

// SetLevel changes the minimum level of the logger.
func SetLevel(l zerolog.Level) {
	level = l
	Logger = Logger.Level(l)
	log.Logger = Logger
}
