/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

const logDate string = `2006-01-02T15:04:05.000-07:00`

// newLogger writes to stdout, at info level when verbose and warn level otherwise.
func newLogger(cfg *Config) zerolog.Logger {
	return newLoggerTo(cfg, os.Stdout)
}

func newLoggerTo(cfg *Config, w io.Writer) zerolog.Logger {
	level := zerolog.WarnLevel
	if cfg.verbose {
		level = zerolog.InfoLevel
	}

	out := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: logDate,
		NoColor:    true,
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// humanReadableSize formats a byte count with SI units for log lines.
func humanReadableSize(bytes int64) string {
	const unit int64 = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB",
		float64(bytes)/float64(div),
		"kMGTPE"[exp])
}
