// Package zerolog adapts github.com/rs/zerolog to the logger.Logger
// interface used across the application.
package zerolog

import (
	"os"
	"strings"

	"github.com/google/goterm/term"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New creates a configured zerolog-backed logger. The console writer is
// used unless jsonFormat is set.
func New(level, dateTimeLayout string, colored, jsonFormat bool) (*Adapter, error) {
	logMode, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	zerolog.SetGlobalLevel(logMode)

	if jsonFormat {
		logger := log.Output(os.Stdout).With().Timestamp().Logger()
		return NewAdapter(&logger), nil
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		NoColor:    !colored,
		TimeFormat: dateTimeLayout,
	}
	output.FormatLevel = formatLevel

	logger := log.Output(output).With().Timestamp().Logger()
	return NewAdapter(&logger), nil
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() *Adapter {
	logger := zerolog.Nop()
	return NewAdapter(&logger)
}

func formatLevel(i interface{}) string {
	levelStr, ok := i.(string)
	if !ok {
		return "[UNK]"
	}

	switch levelStr {
	case zerolog.LevelTraceValue, zerolog.LevelDebugValue:
		return term.Cyanf("[DBG]")
	case zerolog.LevelInfoValue:
		return term.Greenf("[INF]")
	case zerolog.LevelWarnValue:
		return term.Yellowf("[WAR]")
	case zerolog.LevelErrorValue, zerolog.LevelFatalValue, zerolog.LevelPanicValue:
		return term.Redf("[ERR]")
	default:
		return term.Whitef("[" + strings.ToUpper(levelStr) + "]")
	}
}
