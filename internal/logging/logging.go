// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EnvLevel is the environment variable that overrides the configured level.
const EnvLevel = "LOG_LEVEL"

// Init sends logs to stderr through a console writer. LOG_LEVEL wins over
// fallback; an empty or unknown level means info.
func Init(fallback string) {
	InitWriter(os.Stderr, fallback)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, fallback string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, NoColor: w != os.Stderr})
	level := os.Getenv(EnvLevel)
	if level == "" {
		level = fallback
	}
	zerolog.SetGlobalLevel(ParseLevel(level))
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
