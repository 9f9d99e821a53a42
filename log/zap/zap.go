// Package zap adapts go.uber.org/zap to journeycas.Logger.
package zap

import (
	"sort"

	"github.com/unkn0wn-root/journeycas"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct{ L *zap.Logger }

var _ journeycas.Logger = Logger{}

// NewProduction builds a JSON logger at level ("debug", "info", "warn",
// "error"; anything else is info) with ISO8601 timestamps under "timestamp".
func NewProduction(level string) (Logger, error) {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig = enc
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))

	l, err := cfg.Build()
	if err != nil {
		return Logger{}, err
	}
	return Logger{L: l}, nil
}

func (z Logger) Debug(msg string, f journeycas.Fields) { z.log(zapcore.DebugLevel, msg, f) }
func (z Logger) Info(msg string, f journeycas.Fields)  { z.log(zapcore.InfoLevel, msg, f) }
func (z Logger) Warn(msg string, f journeycas.Fields)  { z.log(zapcore.WarnLevel, msg, f) }
func (z Logger) Error(msg string, f journeycas.Fields) { z.log(zapcore.ErrorLevel, msg, f) }

// Sync flushes buffered entries.
func (z Logger) Sync() error { return z.L.Sync() }

func (z Logger) log(lvl zapcore.Level, msg string, f journeycas.Fields) {
	// skip building fields for disabled levels; Debug runs on the retry path
	if ce := z.L.Check(lvl, msg); ce != nil {
		ce.Write(fields(f)...)
	}
}

// fields sorts by key so a line reads the same every time.
func fields(f journeycas.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	ks := make([]string, 0, len(f))
	for k := range f {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	out := make([]zap.Field, 0, len(f))
	for _, k := range ks {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}

func parseLevel(s string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
