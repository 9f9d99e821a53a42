// Package slog adapts log/slog to journeycas.Logger.
package slog

import (
	"context"
	"io"
	stdslog "log/slog"
	"strings"

	"github.com/unkn0wn-root/journeycas"
)

var _ journeycas.Logger = Logger{}

type Logger struct{ L *stdslog.Logger }

// NewJSON returns a Logger writing JSON records to w at level.
func NewJSON(w io.Writer, level string) Logger {
	h := stdslog.NewJSONHandler(w, &stdslog.HandlerOptions{Level: parseLevel(level)})
	return Logger{L: stdslog.New(h)}
}

func (s Logger) Debug(msg string, f journeycas.Fields) { s.log(stdslog.LevelDebug, msg, f) }
func (s Logger) Info(msg string, f journeycas.Fields)  { s.log(stdslog.LevelInfo, msg, f) }
func (s Logger) Warn(msg string, f journeycas.Fields)  { s.log(stdslog.LevelWarn, msg, f) }
func (s Logger) Error(msg string, f journeycas.Fields) { s.log(stdslog.LevelError, msg, f) }

func (s Logger) log(lvl stdslog.Level, msg string, f journeycas.Fields) {
	ctx := context.Background()
	if !s.L.Enabled(ctx, lvl) {
		return
	}
	s.L.LogAttrs(ctx, lvl, msg, attrs(f)...)
}

func attrs(f journeycas.Fields) []stdslog.Attr {
	if len(f) == 0 {
		return nil
	}
	out := make([]stdslog.Attr, 0, len(f))
	for k, v := range f {
		out = append(out, stdslog.Any(k, v))
	}
	return out
}

func parseLevel(s string) stdslog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return stdslog.LevelDebug
	case "warn", "warning":
		return stdslog.LevelWarn
	case "error":
		return stdslog.LevelError
	default:
		return stdslog.LevelInfo
	}
}
