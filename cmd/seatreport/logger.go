// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/m-mizutani/clog"
	"golang.org/x/term"

	"github.com/bureau-foundation/seatreport/lib/config"
)

// newLogger builds the process logger from the log configuration.
// auto picks a colored console handler when writer is a terminal and
// JSON otherwise, so redirected runs stay machine-parseable. With a
// log file, records fan out to both. The returned function closes the
// file.
func newLogger(logConfig config.LogConfig, level slog.Level, writer io.Writer) (*slog.Logger, func(), error) {
	handler := consoleHandler(logConfig.Format, level, writer)

	if logConfig.File == "" {
		return slog.New(handler), func() {}, nil
	}

	file, err := os.OpenFile(logConfig.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file %s: %w", logConfig.File, err)
	}
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(fanoutHandler{handler, fileHandler}), func() { file.Close() }, nil
}

func consoleHandler(format string, level slog.Level, writer io.Writer) slog.Handler {
	options := &slog.HandlerOptions{Level: level}
	switch format {
	case config.LogFormatText:
		return slog.NewTextHandler(writer, options)
	case config.LogFormatJSON:
		return slog.NewJSONHandler(writer, options)
	case config.LogFormatConsole:
		return newClogHandler(level, writer)
	default:
		if isTerminal(writer) {
			return newClogHandler(level, writer)
		}
		return slog.NewJSONHandler(writer, options)
	}
}

func newClogHandler(level slog.Level, writer io.Writer) slog.Handler {
	return clog.New(
		clog.WithWriter(writer),
		clog.WithLevel(level),
		clog.WithTimeFmt("15:04:05"),
		clog.WithSource(false),
	)
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// fanoutHandler is a slog.Handler that sends each record to multiple
// underlying handlers. A record is enabled if any sub-handler is
// enabled for that level.
type fanoutHandler []slog.Handler

func (handlers fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (handlers fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (handlers fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithAttrs(attrs)
	}
	return derived
}

func (handlers fanoutHandler) WithGroup(name string) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithGroup(name)
	}
	return derived
}
