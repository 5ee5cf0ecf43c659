// Package logging configures the global zerolog logger for the command line
// tool. Diagnostic logs go to stderr or a rotated file; user-facing output
// never goes through here.
package logging

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects level, format and destination.
type Config struct {
	Level      string
	Format     string
	File       string
	WithCaller bool
}

// Writer builds the log destination for cfg. stderr is used for console
// output; colors are dropped when it is not a terminal.
func Writer(cfg Config, stderr *os.File) io.Writer {
	var w io.Writer
	if cfg.Format == "json" {
		w = stderr
	} else {
		w = zerolog.ConsoleWriter{Out: stderr, NoColor: !isatty.IsTerminal(stderr.Fd())}
	}
	if cfg.File != "" {
		w = io.MultiWriter(w, zerolog.ConsoleWriter{
			NoColor: true,
			Out: &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
			},
		})
	}
	return w
}

// ParseLevel maps a level name to a zerolog level. The empty string means
// warn: the debugger's own output is the console, not the log.
func ParseLevel(level string) (zerolog.Level, error) {
	if level == "" {
		return zerolog.WarnLevel, nil
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.NoLevel, errors.Wrapf(err, "invalid log level %q", level)
	}
	return l, nil
}

// Init installs the global logger.
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	logger := zerolog.New(Writer(cfg, os.Stderr)).With().Timestamp().Logger()
	if cfg.WithCaller {
		logger = logger.With().Caller().Logger()
	}
	log.Logger = logger
	zerolog.SetGlobalLevel(level)
	return nil
}
