package log

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/anthonyhuangg/QuantFlow/internal/config"
)

type Logger = zerolog.Logger

// NewLogger builds the process logger from config: unix-ms timestamps,
// console writer when pretty logging is on, and a level that falls
// back to info when unparsable. Components derive their own loggers
// via With().Str("component", ...).
func NewLogger(cfg config.Config) Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	var l zerolog.Logger
	if cfg.Logging.Pretty {
		l = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		l = log.Logger
	}
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return l.With().Str("service", "quantflow").Logger()
}
