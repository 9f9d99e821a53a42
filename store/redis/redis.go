package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/journeycas/store"
)

var ErrNilClient = errors.New("redis store: nil client")

// errVersionMoved aborts a WATCH transaction whose guard no longer matches.
var errVersionMoved = errors.New("redis store: version moved")

const defaultOpTimeout = 2 * time.Second

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
	opTimeout   time.Duration
}

var _ store.Store = (*Redis)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool          // set true only if this store exclusively owns the client
	OpTimeout   time.Duration // per-operation deadline; 0 => 2s
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	t := cfg.OpTimeout
	if t <= 0 {
		t = defaultOpTimeout
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient, opTimeout: t}, nil
}

func (s *Redis) op(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := store.CheckKey("key", key); err != nil {
		return nil, false, err
	}
	ctx, cancel := s.op(ctx)
	defer cancel()

	b, err := s.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, store.Transport("get", key, err)
	}
	if b == nil {
		b = []byte{}
	}
	return b, true, nil
}

func (s *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := store.CheckKey("key", key); err != nil {
		return err
	}
	if value == nil {
		return store.Invalid("value", "must not be nil")
	}
	if ttl <= 0 {
		ttl = 0 // no expiry
	}
	ctx, cancel := s.op(ctx)
	defer cancel()

	return store.Transport("set", key, s.rdb.Set(ctx, key, value, ttl).Err())
}

func (s *Redis) Del(ctx context.Context, key string) (bool, error) {
	if err := store.CheckKey("key", key); err != nil {
		return false, err
	}
	ctx, cancel := s.op(ctx)
	defer cancel()

	n, err := s.rdb.Del(ctx, key).Result()
	if err != nil {
		return false, store.Transport("del", key, err)
	}
	return n > 0, nil
}

func (s *Redis) Exists(ctx context.Context, key string) (bool, error) {
	if err := store.CheckKey("key", key); err != nil {
		return false, err
	}
	ctx, cancel := s.op(ctx)
	defer cancel()

	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, store.Transport("exists", key, err)
	}
	return n > 0, nil
}

// GetVersion returns the current version; missing or garbage reads as 0.
func (s *Redis) GetVersion(ctx context.Context, versionKey string) (int64, error) {
	if err := store.CheckKey("versionKey", versionKey); err != nil {
		return 0, err
	}
	ctx, cancel := s.op(ctx)
	defer cancel()

	res, err := s.rdb.Get(ctx, versionKey).Result()
	if err == goredis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, store.Transport("get_version", versionKey, err)
	}
	return store.ParseVersion(res), nil
}

// CompareAndSwap runs WATCH versionKey, checks the guard, then MULTI/EXEC
// both SETs. EXEC aborts if anyone touched versionKey after WATCH, which
// go-redis reports as TxFailedErr. In cluster mode both keys must share a
// hash slot (the journey key scheme uses a hash tag for this).
func (s *Redis) CompareAndSwap(ctx context.Context, dataKey, versionKey string, expected int64, value []byte, newVersion int64) (bool, error) {
	if err := store.CheckCAS(dataKey, versionKey, expected, value, newVersion); err != nil {
		return false, err
	}
	ctx, cancel := s.op(ctx)
	defer cancel()

	want := store.FormatVersion(expected)
	err := s.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		cur, err := tx.Get(ctx, versionKey).Result()
		switch {
		case err == goredis.Nil:
			if expected != 0 {
				return errVersionMoved
			}
		case err != nil:
			return err
		case cur != want:
			return errVersionMoved
		}

		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Set(ctx, dataKey, value, 0)
			p.Set(ctx, versionKey, store.FormatVersion(newVersion), 0)
			return nil
		})
		return err
	}, versionKey)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errVersionMoved), errors.Is(err, goredis.TxFailedErr):
		return false, nil
	default:
		return false, store.Transport("cas", dataKey, err)
	}
}

// Close releases the underlying redis client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (s *Redis) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
