package journeycas

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	c "github.com/unkn0wn-root/journeycas/codec"
	"github.com/unkn0wn-root/journeycas/store"
	"github.com/unkn0wn-root/journeycas/store/local"
)

type counter struct {
	ID string `json:"id"`
	A  int    `json:"a"`
	B  int    `json:"b"`
}

func newLocalStore(t *testing.T) *local.Store {
	t.Helper()
	s, err := local.New(local.Config{Shards: 16})
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

// spyStore counts calls and can force CAS outcomes or transport failures.
type spyStore struct {
	store.Store

	gets, versions, cas atomic.Int32
	casSucceeded        atomic.Int32

	alwaysLose bool  // every CAS reports a lost race
	casErr     error // every CAS fails with this
	getErr     error // every Get fails with this
	setErr     error // every Set fails with this
}

func (s *spyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.Store.Set(ctx, key, value, ttl)
}

func (s *spyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.gets.Add(1)
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	return s.Store.Get(ctx, key)
}

func (s *spyStore) GetVersion(ctx context.Context, key string) (int64, error) {
	s.versions.Add(1)
	return s.Store.GetVersion(ctx, key)
}

func (s *spyStore) CompareAndSwap(ctx context.Context, dk, vk string, exp int64, v []byte, next int64) (bool, error) {
	s.cas.Add(1)
	if s.casErr != nil {
		return false, s.casErr
	}
	if s.alwaysLose {
		return false, nil
	}
	ok, err := s.Store.CompareAndSwap(ctx, dk, vk, exp, v, next)
	if ok {
		s.casSucceeded.Add(1)
	}
	return ok, err
}

type recHooks struct {
	NopHooks
	mu        sync.Mutex
	conflicts int
	exhausted int
	committed []int64
	storeErrs []string
	decodes   int
}

func (h *recHooks) CASConflict(string, int) {
	h.mu.Lock()
	h.conflicts++
	h.mu.Unlock()
}
func (h *recHooks) RetryExhausted(string, int) {
	h.mu.Lock()
	h.exhausted++
	h.mu.Unlock()
}
func (h *recHooks) Committed(_ string, v int64, _ int) {
	h.mu.Lock()
	h.committed = append(h.committed, v)
	h.mu.Unlock()
}
func (h *recHooks) StoreError(op, _ string, _ error) {
	h.mu.Lock()
	h.storeErrs = append(h.storeErrs, op)
	h.mu.Unlock()
}
func (h *recHooks) DecodeError(string, error) {
	h.mu.Lock()
	h.decodes++
	h.mu.Unlock()
}

func newTestEngine(t *testing.T, st store.Store, hooks Hooks, p Policy) *Engine[counter] {
	t.Helper()
	e, err := NewEngine(EngineOptions[counter]{
		Store:  st,
		Codec:  c.JSON[counter]{},
		Policy: p,
		Hooks:  hooks,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return e
}

func seedCounter(t *testing.T, st store.Store, key string) {
	t.Helper()
	raw, _ := c.JSON[counter]{}.Encode(counter{ID: key})
	ctx := context.Background()
	if err := st.Set(ctx, key, raw, 0); err != nil {
		t.Fatal(err)
	}
	if err := st.Set(ctx, key+":version", []byte("0"), 0); err != nil {
		t.Fatal(err)
	}
}

func TestNewEngineRequiresStoreAndCodec(t *testing.T) {
	if _, err := NewEngine(EngineOptions[counter]{Codec: c.JSON[counter]{}}); err == nil {
		t.Fatalf("missing store must error")
	}
	if _, err := NewEngine(EngineOptions[counter]{Store: newLocalStore(t)}); err == nil {
		t.Fatalf("missing codec must error")
	}
}

func TestUpdateIncrementsVersionByOne(t *testing.T) {
	ctx := context.Background()
	st := newLocalStore(t)
	seedCounter(t, st, "doc")
	e := newTestEngine(t, st, nil, Policy{})

	for want := int64(1); want <= 5; want++ {
		v, err := e.Update(ctx, "doc", func(d *counter) error { d.A++; return nil })
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if v != want {
			t.Fatalf("version: got %d want %d", v, want)
		}
		if got, _ := st.GetVersion(ctx, "doc:version"); got != want {
			t.Fatalf("stored version: got %d want %d", got, want)
		}
	}
	d, ok, err := e.Get(ctx, "doc")
	if err != nil || !ok || d.A != 5 {
		t.Fatalf("Get: ok=%v err=%v doc=%+v", ok, err, d)
	}
}

func TestUpdateMissingDocumentIsNotFoundWithoutCAS(t *testing.T) {
	spy := &spyStore{Store: newLocalStore(t)}
	e := newTestEngine(t, spy, nil, Policy{})

	_, err := e.Update(context.Background(), "nope", func(d *counter) error { d.A++; return nil })
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if spy.cas.Load() != 0 || spy.gets.Load() != 1 {
		t.Fatalf("not-found must not retry or write: gets=%d cas=%d", spy.gets.Load(), spy.cas.Load())
	}
}

func TestUpdateMutateErrorAbortsWithoutWrite(t *testing.T) {
	ctx := context.Background()
	spy := &spyStore{Store: newLocalStore(t)}
	seedCounter(t, spy.Store, "doc")
	e := newTestEngine(t, spy, nil, Policy{})

	target := errors.New("segment missing")
	_, err := e.Update(ctx, "doc", func(d *counter) error {
		d.A = 99 // must not leak into the store
		return errors.Join(target, ErrNotFound)
	})
	if !errors.Is(err, ErrNotFound) || !errors.Is(err, target) {
		t.Fatalf("want mutate error, got %v", err)
	}
	if spy.cas.Load() != 0 {
		t.Fatalf("mutate error must not attempt CAS")
	}
	if v, _ := spy.GetVersion(ctx, "doc:version"); v != 0 {
		t.Fatalf("version moved: %d", v)
	}
}

func TestUpdateConflictAfterBudget(t *testing.T) {
	spy := &spyStore{Store: newLocalStore(t), alwaysLose: true}
	seedCounter(t, spy.Store, "doc")
	hooks := &recHooks{}
	e := newTestEngine(t, spy, hooks, Policy{MaxAttempts: 4})

	_, err := e.Update(context.Background(), "doc", func(d *counter) error { d.A++; return nil })
	if !errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
	var ce *ConflictError
	if !errors.As(err, &ce) || ce.Attempts != 4 || ce.Key != "doc" {
		t.Fatalf("want ConflictError{doc,4}, got %#v", err)
	}
	if spy.cas.Load() != 4 || spy.versions.Load() != 4 {
		t.Fatalf("each attempt reloads then CASes once: versions=%d cas=%d", spy.versions.Load(), spy.cas.Load())
	}
	if hooks.conflicts != 4 || hooks.exhausted != 1 {
		t.Fatalf("hooks: conflicts=%d exhausted=%d", hooks.conflicts, hooks.exhausted)
	}
}

func TestUpdateTransportErrorIsNotRetried(t *testing.T) {
	boom := store.Transport("cas", "doc", context.DeadlineExceeded)
	spy := &spyStore{Store: newLocalStore(t), casErr: boom}
	seedCounter(t, spy.Store, "doc")
	hooks := &recHooks{}
	e := newTestEngine(t, spy, hooks, Policy{})

	_, err := e.Update(context.Background(), "doc", func(d *counter) error { d.A++; return nil })
	if !errors.Is(err, ErrTransport) || errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrTransport, got %v", err)
	}
	if spy.cas.Load() != 1 {
		t.Fatalf("transport error must not be retried, cas=%d", spy.cas.Load())
	}
	if len(hooks.storeErrs) != 1 || hooks.storeErrs[0] != "cas" {
		t.Fatalf("StoreError hook: %v", hooks.storeErrs)
	}
}

func TestUpdateCorruptDocument(t *testing.T) {
	ctx := context.Background()
	spy := &spyStore{Store: newLocalStore(t)}
	_ = spy.Store.Set(ctx, "doc", []byte("{not json"), 0)
	hooks := &recHooks{}
	e := newTestEngine(t, spy, hooks, Policy{})

	_, err := e.Update(ctx, "doc", func(d *counter) error { return nil })
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("want ErrCorrupt, got %v", err)
	}
	if spy.cas.Load() != 0 || hooks.decodes != 1 {
		t.Fatalf("corrupt doc: cas=%d decodes=%d", spy.cas.Load(), hooks.decodes)
	}
	if _, _, err := e.Get(ctx, "doc"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("Get on corrupt doc: %v", err)
	}
}

func TestUpdateBackoffHonoursContext(t *testing.T) {
	spy := &spyStore{Store: newLocalStore(t), alwaysLose: true}
	seedCounter(t, spy.Store, "doc")
	e := newTestEngine(t, spy, nil, Policy{MaxAttempts: 100})
	e.sleep = sleepCtx

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	_, err := e.Update(ctx, "doc", func(d *counter) error {
		if calls.Add(1) == 2 {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) || !errors.Is(err, ErrTransport) {
		t.Fatalf("want transport-wrapped context.Canceled, got %v", err)
	}
}

func TestUpdateRejectsBadInput(t *testing.T) {
	e := newTestEngine(t, newLocalStore(t), nil, Policy{})
	if _, err := e.Update(context.Background(), " ", func(*counter) error { return nil }); !errors.Is(err, ErrInvalid) {
		t.Fatalf("blank key: %v", err)
	}
	if _, err := e.Update(context.Background(), "doc", nil); !errors.Is(err, ErrInvalid) {
		t.Fatalf("nil mutate: %v", err)
	}
}

// Disjoint fields updated concurrently must all survive.
func TestUpdateConcurrentDisjointFieldsConverge(t *testing.T) {
	ctx := context.Background()
	st := newLocalStore(t)
	seedCounter(t, st, "doc")
	hooks := &recHooks{}
	e := newTestEngine(t, st, hooks, Policy{MaxAttempts: 200})
	e.sleep = sleepCtx

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, 2*n)
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := e.Update(ctx, "doc", func(d *counter) error { d.A++; return nil })
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := e.Update(ctx, "doc", func(d *counter) error { d.B++; return nil })
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	d, _, _ := e.Get(ctx, "doc")
	if d.A != n || d.B != n {
		t.Fatalf("lost updates: A=%d B=%d want %d each", d.A, d.B, n)
	}
	if v, _ := st.GetVersion(ctx, "doc:version"); v != 2*n {
		t.Fatalf("version: got %d want %d", v, 2*n)
	}

	// every committed version 1..2n appears exactly once
	seen := make(map[int64]bool)
	for _, v := range hooks.committed {
		if seen[v] {
			t.Fatalf("version %d committed twice", v)
		}
		seen[v] = true
	}
	if len(seen) != 2*n {
		t.Fatalf("committed %d distinct versions, want %d", len(seen), 2*n)
	}
}

func TestPolicyBackoffBounds(t *testing.T) {
	p := Policy{BaseBackoff: 2 * time.Millisecond, MaxBackoff: 10 * time.Millisecond}.withDefaults()
	for attempt := 1; attempt <= 10; attempt++ {
		d := p.backoff(attempt)
		if d < time.Millisecond || d > 10*time.Millisecond {
			t.Fatalf("attempt %d: backoff %v out of bounds", attempt, d)
		}
	}
	if p.MaxAttempts != defaultMaxAttempts {
		t.Fatalf("default MaxAttempts: %d", p.MaxAttempts)
	}
}
