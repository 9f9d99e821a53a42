// Package loghooks writes engine events through a journeycas.Logger.
package loghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"

	"github.com/unkn0wn-root/journeycas"
)

type Options struct {
	// Sampling to avoid floods under contention; 0/1 = log all.
	ConflictEvery uint64
	CommitEvery   uint64
	// Optional key redactor. nil keeps keys as they are; use HashKey to
	// hide journey IDs.
	Redact func(string) string
}

type Hooks struct {
	l    journeycas.Logger
	opts Options

	conflictCtr atomic.Uint64
	commitCtr   atomic.Uint64
}

var _ journeycas.Hooks = (*Hooks)(nil)

func New(l journeycas.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

// HashKey is a redactor: first 8 bytes of SHA-256, hex.
func HashKey(k string) string {
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func (h *Hooks) key(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return k
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n <= 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) CASConflict(key string, attempt int) {
	if h.l == nil || !sample(h.opts.ConflictEvery, &h.conflictCtr) {
		return
	}
	h.l.Debug("journeycas.cas_conflict", journeycas.Fields{
		"key":     h.key(key),
		"attempt": attempt,
	})
}

func (h *Hooks) RetryExhausted(key string, attempts int) {
	if h.l == nil {
		return
	}
	h.l.Warn("journeycas.retry_exhausted", journeycas.Fields{
		"key":      h.key(key),
		"attempts": attempts,
	})
}

func (h *Hooks) Committed(key string, version int64, attempts int) {
	if h.l == nil || !sample(h.opts.CommitEvery, &h.commitCtr) {
		return
	}
	h.l.Debug("journeycas.committed", journeycas.Fields{
		"key":      h.key(key),
		"version":  version,
		"attempts": attempts,
	})
}

func (h *Hooks) StoreError(op, key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("journeycas.store_error", journeycas.Fields{
		"op":  op,
		"key": h.key(key),
		"err": err,
	})
}

func (h *Hooks) DecodeError(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("journeycas.decode_error", journeycas.Fields{
		"key": h.key(key),
		"err": err,
	})
}
