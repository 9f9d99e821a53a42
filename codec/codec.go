// Package codec turns documents into the bytes kept by a store.Store.
package codec

import (
	"fmt"
	"strings"
)

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// ByName picks a codec from configuration: "json" (default), "msgpack" or
// "cbor". All replicas sharing a store must agree on it.
func ByName[V any](name string) (Codec[V], error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON[V]{}, nil
	case "msgpack":
		return Msgpack[V]{}, nil
	case "cbor":
		return NewCBOR[V](true)
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}
