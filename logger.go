package journeycas

// Fields is a minimal structured field map for logs.
type Fields map[string]any

// Logger is the leveled logger the engine and service write to. Adapters
// for zap, logrus and slog live under log/. A nil Logger in Options
// disables logging.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}

// With returns a Logger that adds base to every entry. Keys passed at the
// call site win over base.
func With(l Logger, base Fields) Logger {
	if l == nil {
		return NopLogger{}
	}
	if len(base) == 0 {
		return l
	}
	if _, nop := l.(NopLogger); nop {
		return l
	}
	return fieldLogger{l: l, base: base}
}

type fieldLogger struct {
	l    Logger
	base Fields
}

func (f fieldLogger) merge(x Fields) Fields {
	out := make(Fields, len(f.base)+len(x))
	for k, v := range f.base {
		out[k] = v
	}
	for k, v := range x {
		out[k] = v
	}
	return out
}

func (f fieldLogger) Debug(msg string, x Fields) { f.l.Debug(msg, f.merge(x)) }
func (f fieldLogger) Info(msg string, x Fields)  { f.l.Info(msg, f.merge(x)) }
func (f fieldLogger) Warn(msg string, x Fields)  { f.l.Warn(msg, f.merge(x)) }
func (f fieldLogger) Error(msg string, x Fields) { f.l.Error(msg, f.merge(x)) }
