// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// NewSlogLogger returns an slog.Logger that writes through the global
// zerolog logger. Its one consumer is sutureslog, which only speaks slog:
//
//	handler := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
func NewSlogLogger() *slog.Logger {
	return slog.New(&zerologHandler{logger: Logger()})
}

// zerologHandler adapts slog records onto zerolog events. Group names are
// flattened into a dotted key prefix.
type zerologHandler struct {
	logger zerolog.Logger
	attrs  []slog.Attr
	prefix string
}

func (h *zerologHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.GetLevel() <= levelFromSlog(level)
}

//nolint:gocritic // slog.Record arrives by value per the Handler contract
func (h *zerologHandler) Handle(_ context.Context, record slog.Record) error {
	event := h.logger.WithLevel(levelFromSlog(record.Level))
	for _, attr := range h.attrs {
		event = h.appendAttr(event, attr, h.prefix)
	}
	record.Attrs(func(attr slog.Attr) bool {
		event = h.appendAttr(event, attr, h.prefix)
		return true
	})
	event.Msg(record.Message)
	return nil
}

func (h *zerologHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &zerologHandler{logger: h.logger, attrs: merged, prefix: h.prefix}
}

func (h *zerologHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &zerologHandler{logger: h.logger, attrs: h.attrs, prefix: h.prefix + name + "."}
}

func (h *zerologHandler) appendAttr(event *zerolog.Event, attr slog.Attr, prefix string) *zerolog.Event {
	if attr.Value.Kind() == slog.KindGroup {
		for _, member := range attr.Value.Group() {
			event = h.appendAttr(event, member, prefix+attr.Key+".")
		}
		return event
	}

	key := prefix + attr.Key
	switch attr.Value.Kind() {
	case slog.KindString:
		return event.Str(key, attr.Value.String())
	case slog.KindInt64:
		return event.Int64(key, attr.Value.Int64())
	case slog.KindBool:
		return event.Bool(key, attr.Value.Bool())
	case slog.KindDuration:
		return event.Dur(key, attr.Value.Duration())
	case slog.KindTime:
		return event.Time(key, attr.Value.Time())
	default:
		return event.Interface(key, attr.Value.Any())
	}
}

func levelFromSlog(level slog.Level) zerolog.Level {
	switch {
	case level < slog.LevelInfo:
		return zerolog.DebugLevel
	case level < slog.LevelWarn:
		return zerolog.InfoLevel
	case level < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
