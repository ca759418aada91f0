/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures zerolog for the process. Logs go to stderr so stdout
// carries only the per-minute console lines.
func Setup(environment, level string) zerolog.Logger {
	return SetupWithWriter(environment, level, os.Stderr)
}

// SetupWithWriter configures zerolog on out. Development gets a console
// writer and debug level; everything else gets JSON at info. A non-empty
// level overrides either default. Capture writers always receive JSON.
func SetupWithWriter(environment, level string, out io.Writer, capture ...io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro

	lvl := zerolog.InfoLevel
	writer := out
	if strings.EqualFold(environment, "development") {
		lvl = zerolog.DebugLevel
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}
	if level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil {
			lvl = parsed
		}
	}

	if len(capture) > 0 {
		writer = zerolog.MultiLevelWriter(append([]io.Writer{writer}, capture...)...)
	}

	logger := zerolog.New(writer).With().Timestamp().Logger().Level(lvl)
	log.Logger = logger
	return logger
}
