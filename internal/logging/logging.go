// Package logging wires up the process-wide zerolog.Logger from the
// config.Info block (spec.md §6.1 ambient stack): a console-pretty logger
// whose level and on/off state come straight from the config file, rather
// than flags or environment variables.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/renmatsu/ferry/internal/config"
	"github.com/rs/zerolog"
)

// New builds a logger from info. When info.Enable is false it returns a
// no-op logger (zerolog.Nop()) so call sites never need their own
// enabled/disabled branch.
func New(info config.Info) zerolog.Logger {
	if !info.Enable {
		return zerolog.Nop()
	}

	level, err := zerolog.ParseLevel(info.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var w io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
