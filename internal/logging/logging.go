package logging

import (
	"os"

	"matcher/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New configures the global zerolog logger from cfg and returns it.
func New(cfg config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil || cfg.Logging.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return log.Logger
}
