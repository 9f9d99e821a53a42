// Package local is an in-process store.Store on top of BigCache.
// CompareAndSwap is atomic within one process only; use store/redis when
// several replicas share journeys.
package local

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/journeycas/internal/wire"
	"github.com/unkn0wn-root/journeycas/store"
)

// entries must outlive any dev session; expiry is per entry (see wire)
const defaultLifeWindow = 100 * 365 * 24 * time.Hour

var ErrClosed = errors.New("local store: closed")

type Store struct {
	// mu makes CompareAndSwap's compare + two writes one step. Readers take
	// the read side so they never observe a document without its version.
	mu     sync.RWMutex
	c      *bc.BigCache
	now    func() time.Time
	closed bool
}

var _ store.Store = (*Store)(nil)

type Config struct {
	Shards             int // power of two; 0 => bigcache default
	MaxEntriesInWindow int // sizing hint for preallocation; 0 => 10k
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited. Full caches evict oldest entries.
	Verbose            bool
}

func New(cfg Config) (*Store, error) {
	conf := bc.DefaultConfig(defaultLifeWindow)
	conf.CleanWindow = 0 // expiry is checked on read
	conf.Verbose = cfg.Verbose
	if cfg.Shards > 0 {
		conf.Shards = cfg.Shards
	}
	conf.MaxEntriesInWindow = 10_000
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	return &Store{c: c, now: time.Now}, nil
}

// get reads a live payload. Callers hold mu.
func (s *Store) get(key string) ([]byte, bool, error) {
	if s.closed {
		return nil, false, store.Transport("get", key, ErrClosed)
	}
	raw, err := s.c.Get(key)
	if err == bc.ErrEntryNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, store.Transport("get", key, err)
	}
	exp, payload, err := wire.DecodeEntry(raw)
	if err != nil {
		return nil, false, fmt.Errorf("%w: local store %q: %w", store.ErrCorrupt, key, err)
	}
	if wire.Expired(exp, s.now()) {
		return nil, false, nil // lazily dropped on the next write/delete
	}
	return payload, true, nil
}

// set writes key. Callers hold mu for writing.
func (s *Store) set(key string, value []byte, ttl time.Duration) error {
	if s.closed {
		return store.Transport("set", key, ErrClosed)
	}
	var exp time.Time
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	return store.Transport("set", key, s.c.Set(key, wire.EncodeEntry(exp, value)))
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := store.CheckKey("key", key); err != nil {
		return nil, false, err
	}
	if err := ctx.Err(); err != nil {
		return nil, false, store.Transport("get", key, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(key)
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := store.CheckKey("key", key); err != nil {
		return err
	}
	if value == nil {
		return store.Invalid("value", "must not be nil")
	}
	if err := ctx.Err(); err != nil {
		return store.Transport("set", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set(key, value, ttl)
}

func (s *Store) Del(ctx context.Context, key string) (bool, error) {
	if err := store.CheckKey("key", key); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, store.Transport("del", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, live, err := s.get(key)
	if err != nil {
		return false, err
	}
	if err := s.c.Delete(key); err != nil && err != bc.ErrEntryNotFound {
		return false, store.Transport("del", key, err)
	}
	return live, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *Store) GetVersion(ctx context.Context, versionKey string) (int64, error) {
	if err := store.CheckKey("versionKey", versionKey); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, store.Transport("get_version", versionKey, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok, err := s.get(versionKey)
	if err != nil || !ok {
		return 0, err
	}
	return store.ParseVersion(string(b)), nil
}

func (s *Store) CompareAndSwap(ctx context.Context, dataKey, versionKey string, expected int64, value []byte, newVersion int64) (bool, error) {
	if err := store.CheckCAS(dataKey, versionKey, expected, value, newVersion); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, store.Transport("cas", dataKey, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok, err := s.get(versionKey)
	if err != nil {
		return false, err
	}
	if ok && string(cur) != store.FormatVersion(expected) {
		return false, nil
	}
	if !ok && expected != 0 {
		return false, nil
	}

	// bigcache only rejects oversized entries, which the document can be and
	// the counter cannot; undo the counter if the document does not fit.
	if err := s.set(versionKey, []byte(store.FormatVersion(newVersion)), 0); err != nil {
		return false, err
	}
	if err := s.set(dataKey, value, 0); err != nil {
		if ok {
			_ = s.set(versionKey, cur, 0)
		} else {
			_ = s.c.Delete(versionKey)
		}
		return false, err
	}
	return true, nil
}

func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.c.Close()
}
