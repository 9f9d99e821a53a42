package journeycas

import "time"

const (
	defaultNamespace   = "journey"
	defaultMaxAttempts = 50
	defaultBaseBackoff = time.Millisecond
	defaultMaxBackoff  = 25 * time.Millisecond
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
