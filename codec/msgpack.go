package codec

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack serializes documents with vmihailenco/msgpack. Field names come
// from `msgpack:"..."` tags. Map keys are sorted and integers packed to
// their smallest form, so equal documents encode to equal bytes.
type Msgpack[V any] struct{}

func (Msgpack[V]) Encode(v V) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	if err := msgpack.NewDecoder(bytes.NewReader(b)).Decode(&v); err != nil {
		var zero V
		return zero, err
	}
	return v, nil
}
