// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// newLogger returns the process logger. Console output is meant for a terminal, otherwise
// one JSON object per line is written for the journal.
func newLogger(conf LoggingConfig, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	if conf.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	level, err := zerolog.ParseLevel(conf.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("app", "thermomqtt").Logger()
}

// pahoLogger feeds the MQTT client's internal logging into zerolog at a fixed level.
type pahoLogger struct {
	log   zerolog.Logger
	level zerolog.Level
}

func (l pahoLogger) Println(v ...interface{}) {
	l.log.WithLevel(l.level).Str("module", "paho").Msg(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l pahoLogger) Printf(format string, v ...interface{}) {
	l.log.WithLevel(l.level).Str("module", "paho").Msgf(format, v...)
}
