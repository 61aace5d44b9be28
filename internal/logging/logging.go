package logging

import (
	"os"
	"strings"

	"github.com/phuslu/log"
)

// Setup configures the process-wide logger. Output is colored console text on a
// terminal and JSON lines otherwise.
func Setup(level string) *log.Logger {
	log.DefaultLogger = *New(level, log.IsTerminal(os.Stderr.Fd()))
	return &log.DefaultLogger
}

// New builds a logger at the given level without touching the default logger
func New(level string, console bool) *log.Logger {
	logger := &log.Logger{
		Level:      ParseLevel(level),
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Writer:     &log.IOWriter{Writer: os.Stderr},
	}
	if console {
		logger.Writer = &log.ConsoleWriter{ColorOutput: true, EndWithMessage: true}
	}
	return logger
}

// ParseLevel maps a level name to a log level, defaulting to info
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return log.TraceLevel
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
