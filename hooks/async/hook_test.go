package asynchook

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/unkn0wn-root/journeycas"
)

type countHooks struct {
	journeycas.NopHooks
	commits atomic.Int64
}

func (c *countHooks) Committed(string, int64, int) { c.commits.Add(1) }

type blockHooks struct {
	journeycas.NopHooks
	release chan struct{}
	started sync.Once
	entered chan struct{}
}

func (b *blockHooks) Committed(string, int64, int) {
	b.started.Do(func() { close(b.entered) })
	<-b.release
}

func TestDeliversAllBeforeClose(t *testing.T) {
	inner := &countHooks{}
	h := New(inner, 2, 256)
	for i := 0; i < 100; i++ {
		h.Committed("k", int64(i+1), 1)
	}
	h.Close()
	if got := inner.commits.Load(); got != 100 {
		t.Fatalf("want 100 delivered, got %d", got)
	}
	if h.Dropped() != 0 {
		t.Fatalf("dropped: %d", h.Dropped())
	}
}

func TestDropsWhenFull(t *testing.T) {
	inner := &blockHooks{release: make(chan struct{}), entered: make(chan struct{})}
	h := New(inner, 1, 1)

	h.Committed("k", 1, 1)
	// the worker is now parked on event 1; event 2 fills the queue
	<-inner.entered
	h.Committed("k", 2, 1)
	h.Committed("k", 3, 1)

	if h.Dropped() != 1 {
		t.Fatalf("want 1 dropped, got %d", h.Dropped())
	}
	close(inner.release)
	h.Close()
}

func TestEventsAfterCloseAreDropped(t *testing.T) {
	h := New(nil, 1, 4)
	h.Close()
	h.CASConflict("k", 1)
	h.Close()
	if h.Dropped() != 1 {
		t.Fatalf("dropped: %d", h.Dropped())
	}
}
