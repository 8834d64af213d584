package embeddedmqtt

import (
	"context"
	"log/slog"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newSlogLogger bridges mochi's slog output into zap.
func newSlogLogger(logger *zap.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return slog.New(&zapSlogHandler{logger: logger})
}

type zapSlogHandler struct {
	logger *zap.Logger
	attrs  []slog.Attr
	group  string
}

func (h *zapSlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.Core().Enabled(zapLevel(level))
}

func (h *zapSlogHandler) Handle(_ context.Context, record slog.Record) error {
	fields := make([]zap.Field, 0, len(h.attrs)+record.NumAttrs())
	for _, attr := range h.attrs {
		fields = append(fields, h.field(attr))
	}
	closed := false
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == "error" && isConnectionClose(attr.Value) {
			closed = true
		}
		fields = append(fields, h.field(attr))
		return true
	})
	if closed {
		h.logger.Debug("embedded mqtt connection closed", fields...)
		return nil
	}
	if ce := h.logger.Check(zapLevel(record.Level), record.Message); ce != nil {
		ce.Write(fields...)
	}
	return nil
}

func (h *zapSlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next = append(next, h.attrs...)
	next = append(next, attrs...)
	return &zapSlogHandler{logger: h.logger, attrs: next, group: h.group}
}

func (h *zapSlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &zapSlogHandler{logger: h.logger, attrs: h.attrs, group: group}
}

func (h *zapSlogHandler) field(attr slog.Attr) zap.Field {
	key := attr.Key
	if h.group != "" {
		key = h.group + "." + key
	}
	switch attr.Value.Kind() {
	case slog.KindString:
		return zap.String(key, attr.Value.String())
	case slog.KindInt64:
		return zap.Int64(key, attr.Value.Int64())
	case slog.KindUint64:
		return zap.Uint64(key, attr.Value.Uint64())
	case slog.KindFloat64:
		return zap.Float64(key, attr.Value.Float64())
	case slog.KindBool:
		return zap.Bool(key, attr.Value.Bool())
	case slog.KindDuration:
		return zap.Duration(key, attr.Value.Duration())
	default:
		return zap.Any(key, attr.Value.Any())
	}
}

func zapLevel(level slog.Level) zapcore.Level {
	switch {
	case level >= slog.LevelError:
		return zapcore.ErrorLevel
	case level >= slog.LevelWarn:
		return zapcore.WarnLevel
	case level >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// isConnectionClose matches the EOF errors mochi logs for every client
// that disconnects.
func isConnectionClose(v slog.Value) bool {
	var msg string
	switch v.Kind() {
	case slog.KindString:
		msg = v.String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			msg = err.Error()
		}
	}
	return msg == "EOF" || strings.Contains(msg, "read connection: EOF")
}
