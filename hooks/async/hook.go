// Package asynchook moves hook delivery off the update path.
//
// usage:
//
//	raw := loghooks.New(logger, loghooks.Options{ConflictEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	svc, _ := journeycas.New(journeycas.Options{
//	    Store: st,
//	    Hooks: hooks, // or raw if the sink is cheap enough
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/journeycas"
)

// Hooks queues each event for a worker pool. A full queue drops the event;
// Dropped reports how many.
type Hooks struct {
	inner   journeycas.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ journeycas.Hooks = (*Hooks)(nil)

func New(inner journeycas.Hooks, workers, qlen int) *Hooks {
	if inner == nil {
		inner = journeycas.NopHooks{}
	}
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are
// dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) CASConflict(k string, a int)    { h.try(func() { h.inner.CASConflict(k, a) }) }
func (h *Hooks) RetryExhausted(k string, a int) { h.try(func() { h.inner.RetryExhausted(k, a) }) }
func (h *Hooks) DecodeError(k string, err error) {
	h.try(func() { h.inner.DecodeError(k, err) })
}
func (h *Hooks) Committed(k string, v int64, a int) {
	h.try(func() { h.inner.Committed(k, v, a) })
}
func (h *Hooks) StoreError(op, k string, err error) {
	h.try(func() { h.inner.StoreError(op, k, err) })
}
