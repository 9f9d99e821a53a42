package journeycas

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	c "github.com/unkn0wn-root/journeycas/codec"
	"github.com/unkn0wn-root/journeycas/internal/keys"
	"github.com/unkn0wn-root/journeycas/store"
)

// Policy bounds the CAS retry loop.
type Policy struct {
	MaxAttempts int           // total CAS attempts per update; 0 => 50
	BaseBackoff time.Duration // first backoff; 0 => 1ms
	MaxBackoff  time.Duration // backoff cap; 0 => 25ms
}

func (p Policy) withDefaults() Policy {
	p.MaxAttempts = coalesce(p.MaxAttempts, defaultMaxAttempts)
	p.BaseBackoff = coalesce(p.BaseBackoff, defaultBaseBackoff)
	p.MaxBackoff = coalesce(p.MaxBackoff, defaultMaxBackoff)
	if p.MaxBackoff < p.BaseBackoff {
		p.MaxBackoff = p.BaseBackoff
	}
	return p
}

// backoff is capped exponential with jitter in [d/2, d].
func (p Policy) backoff(attempt int) time.Duration {
	d := p.BaseBackoff
	for i := 1; i < attempt && d < p.MaxBackoff; i++ {
		d *= 2
	}
	if d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + rand.N(half+1)
}

// EngineOptions configure an Engine. Store and Codec are required.
type EngineOptions[V any] struct {
	Store      store.Store
	Codec      c.Codec[V]
	VersionKey func(dataKey string) string // nil => "<dataKey>:version"
	Policy     Policy
	Logger     Logger // nil => NopLogger
	Hooks      Hooks  // nil => NopHooks
}

// Engine turns read-modify-write on one document into a linearizable update
// using the store's CompareAndSwap. It keeps no state between calls and is
// safe for concurrent use.
type Engine[V any] struct {
	st         store.Store
	codec      c.Codec[V]
	versionKey func(string) string
	policy     Policy
	log        Logger
	hooks      Hooks
	sleep      func(context.Context, time.Duration) error
}

// versionStamper documents that carry their own version (Journey) get the
// version being committed written into them.
type versionStamper interface {
	stampVersion(int64)
}

func NewEngine[V any](opts EngineOptions[V]) (*Engine[V], error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("journeycas: store is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("journeycas: codec is required")
	}
	e := &Engine[V]{
		st:         opts.Store,
		codec:      opts.Codec,
		versionKey: opts.VersionKey,
		policy:     opts.Policy.withDefaults(),
		log:        coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:      coalesce[Hooks](opts.Hooks, NopHooks{}),
		sleep:      sleepCtx,
	}
	if e.versionKey == nil {
		e.versionKey = keys.Version
	}
	return e, nil
}

// Get reads and decodes the document at key. No version is involved.
func (e *Engine[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	raw, ok, err := e.st.Get(ctx, key)
	if err != nil {
		e.hooks.StoreError("get", key, err)
		return zero, false, err
	}
	if !ok {
		return zero, false, nil
	}
	v, err := e.decode(key, raw)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// Update applies mutate to the latest committed document at key and commits
// it with CompareAndSwap(version, version+1), reloading and reapplying after
// every lost race until Policy.MaxAttempts. It returns the committed version.
//
// mutate receives a freshly decoded copy each attempt, so it must derive its
// change from the document it is given and nothing captured from a previous
// attempt. Any error from mutate aborts the update without writing; wrap
// ErrNotFound when the entity it targets is missing.
//
// Results: nil, ErrNotFound, *ConflictError, ErrCorrupt, or a store error
// (ErrInvalid / ErrTransport). Only lost races are retried.
func (e *Engine[V]) Update(ctx context.Context, key string, mutate func(*V) error) (int64, error) {
	if err := store.CheckKey("key", key); err != nil {
		return 0, err
	}
	if mutate == nil {
		return 0, store.Invalid("mutate", "must not be nil")
	}
	vkey := e.versionKey(key)

	for attempt := 1; ; attempt++ {
		doc, ver, err := e.load(ctx, key, vkey)
		if err != nil {
			return 0, err
		}

		if err := mutate(&doc); err != nil {
			return 0, err
		}
		next := ver + 1
		if s, ok := any(&doc).(versionStamper); ok {
			s.stampVersion(next)
		}

		raw, err := e.codec.Encode(doc)
		if err != nil {
			return 0, fmt.Errorf("journeycas: encode %q: %w", key, err)
		}

		ok, err := e.st.CompareAndSwap(ctx, key, vkey, ver, raw, next)
		if err != nil {
			e.hooks.StoreError("cas", key, err)
			return 0, err
		}
		if ok {
			e.hooks.Committed(key, next, attempt)
			if attempt > 1 {
				e.log.Debug("update committed after retry", Fields{"key": key, "version": next, "attempts": attempt})
			}
			return next, nil
		}

		e.hooks.CASConflict(key, attempt)
		if attempt >= e.policy.MaxAttempts {
			e.hooks.RetryExhausted(key, attempt)
			e.log.Warn("update gave up (version conflict)", Fields{"key": key, "attempts": attempt, "lastSeen": ver})
			return 0, &ConflictError{Key: key, Attempts: attempt}
		}
		e.log.Debug("CAS lost race; reloading", Fields{"key": key, "attempt": attempt, "expected": ver})

		if err := e.sleep(ctx, e.policy.backoff(attempt)); err != nil {
			return 0, store.Transport("backoff", key, err)
		}
	}
}

// load reads the version before the document. The other order could pair an
// old document with a newer version, and the CAS would then commit a
// mutation computed from stale data.
func (e *Engine[V]) load(ctx context.Context, key, vkey string) (V, int64, error) {
	var zero V
	ver, err := e.st.GetVersion(ctx, vkey)
	if err != nil {
		e.hooks.StoreError("get_version", vkey, err)
		return zero, 0, err
	}
	raw, ok, err := e.st.Get(ctx, key)
	if err != nil {
		e.hooks.StoreError("get", key, err)
		return zero, 0, err
	}
	if !ok {
		return zero, 0, fmt.Errorf("document %q: %w", key, ErrNotFound)
	}
	doc, err := e.decode(key, raw)
	if err != nil {
		return zero, 0, err
	}
	return doc, ver, nil
}

func (e *Engine[V]) decode(key string, raw []byte) (V, error) {
	v, err := e.codec.Decode(raw)
	if err != nil {
		e.hooks.DecodeError(key, err)
		e.log.Error("document decode failed", Fields{"key": key, "err": err, "bytes": len(raw)})
		var zero V
		return zero, fmt.Errorf("%w %q: %v", ErrCorrupt, key, err)
	}
	return v, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
