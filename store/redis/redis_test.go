package redis

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/journeycas/store"
)

func newTestStore(t *testing.T) (*Redis, *goredis.Client) {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	s, err := New(Config{Client: client})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, client
}

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNilClient) {
		t.Fatalf("want ErrNilClient, got %v", err)
	}
}

func TestGetSetDelExists(t *testing.T) {
	s, client := newTestStore(t)
	ctx := context.Background()
	k := "journeycas:test:kv"
	client.Del(ctx, k)

	if _, ok, err := s.Get(ctx, k); err != nil || ok {
		t.Fatalf("miss expected, ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, k, []byte{}, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	b, ok, err := s.Get(ctx, k)
	if err != nil || !ok || b == nil || len(b) != 0 {
		t.Fatalf("empty value must be a hit, ok=%v err=%v b=%v", ok, err, b)
	}
	if ok, _ := s.Exists(ctx, k); !ok {
		t.Fatalf("Exists should be true")
	}
	if ok, _ := s.Del(ctx, k); !ok {
		t.Fatalf("Del should report presence")
	}
	if ok, _ := s.Del(ctx, k); ok {
		t.Fatalf("second Del should report absence")
	}
}

func TestSetTTL(t *testing.T) {
	s, client := newTestStore(t)
	ctx := context.Background()
	k := "journeycas:test:ttl"
	client.Del(ctx, k)

	if err := s.Set(ctx, k, []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ttl := client.TTL(ctx, k).Val()
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}
}

func TestGetVersion(t *testing.T) {
	s, client := newTestStore(t)
	ctx := context.Background()
	vk := "journeycas:test:{JRN-001}:version"
	client.Del(ctx, vk)

	if v, err := s.GetVersion(ctx, vk); err != nil || v != 0 {
		t.Fatalf("missing version: v=%d err=%v", v, err)
	}
	client.Set(ctx, vk, "42", 0)
	if v, _ := s.GetVersion(ctx, vk); v != 42 {
		t.Fatalf("want 42, got %d", v)
	}
	client.Set(ctx, vk, "not-a-number", 0)
	if v, _ := s.GetVersion(ctx, vk); v != 0 {
		t.Fatalf("garbage must read as 0, got %d", v)
	}
}

func TestCompareAndSwap(t *testing.T) {
	s, client := newTestStore(t)
	ctx := context.Background()
	dk, vk := "journeycas:test:{cas}", "journeycas:test:{cas}:version"
	client.Del(ctx, dk, vk)

	// missing version matches 0
	ok, err := s.CompareAndSwap(ctx, dk, vk, 0, []byte("v1"), 1)
	if err != nil || !ok {
		t.Fatalf("first CAS: ok=%v err=%v", ok, err)
	}

	// stale expected: no writes
	ok, err = s.CompareAndSwap(ctx, dk, vk, 0, []byte("stale"), 1)
	if err != nil || ok {
		t.Fatalf("stale CAS must fail cleanly: ok=%v err=%v", ok, err)
	}
	if got := client.Get(ctx, dk).Val(); got != "v1" {
		t.Fatalf("data mutated by stale CAS: %q", got)
	}
	if got := client.Get(ctx, vk).Val(); got != "1" {
		t.Fatalf("version mutated by stale CAS: %q", got)
	}

	// contract violation is rejected before I/O
	if _, err := s.CompareAndSwap(ctx, dk, vk, 1, []byte("x"), 3); !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("want ErrInvalid, got %v", err)
	}
}

func TestCompareAndSwapConcurrentSingleWinner(t *testing.T) {
	s, client := newTestStore(t)
	ctx := context.Background()
	dk, vk := "journeycas:test:{race}", "journeycas:test:{race}:version"
	client.Del(ctx, dk, vk)
	client.Set(ctx, vk, "0", 0)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.CompareAndSwap(ctx, dk, vk, 0, []byte("w"), 1)
			if err != nil {
				t.Errorf("CAS: %v", err)
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("want exactly one winner, got %d", wins.Load())
	}
}

func TestTimeoutIsTransportError(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.Get(ctx, "journeycas:test:cancelled")
	if !errors.Is(err, store.ErrTransport) {
		t.Fatalf("want ErrTransport, got %v", err)
	}
}
