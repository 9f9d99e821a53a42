package journeycas

import (
	"context"
	"time"

	"github.com/unkn0wn-root/journeycas/store"
)

// KV is the plain key/value surface: one call per store primitive, no
// versions, no retries. Keep journey documents out of it; a Set on a journey
// key bypasses CAS.
type KV struct {
	st store.Store
}

func NewKV(st store.Store) *KV { return &KV{st: st} }

// Get returns (value, true, nil) on hit and ("", false, nil) on miss.
func (k *KV) Get(ctx context.Context, key string) (string, bool, error) {
	b, ok, err := k.st.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	return string(b), true, nil
}

// Set overwrites key. ttl <= 0 keeps it until deleted.
func (k *KV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return k.st.Set(ctx, key, []byte(value), ttl)
}

// Delete reports whether key was present.
func (k *KV) Delete(ctx context.Context, key string) (bool, error) {
	return k.st.Del(ctx, key)
}

func (k *KV) Exists(ctx context.Context, key string) (bool, error) {
	return k.st.Exists(ctx, key)
}
