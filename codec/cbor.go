package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// CBOR serializes documents with fxamacker/cbor. Build it with NewCBOR; the
// zero value has no modes and panics.
//
// Deterministic mode (RFC 8949 core deterministic) sorts map keys, so a
// journey whose metadata did not change re-encodes to the same bytes on any
// replica. Times are RFC3339Nano strings. Decoding rejects duplicate map
// keys: a document carrying two "status" fields is corrupt, not ambiguous.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

func NewCBOR[V any](deterministic bool) (CBOR[V], error) {
	eo := cbor.PreferredUnsortedEncOptions()
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano

	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	dm, err := cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels: 16,
	}.DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

// MustCBOR panics where NewCBOR would fail. For tests and package vars.
func MustCBOR[V any](deterministic bool) CBOR[V] {
	c, err := NewCBOR[V](deterministic)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CBOR[V]) Encode(v V) ([]byte, error) { return c.enc.Marshal(v) }

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	if err := c.dec.Unmarshal(b, &v); err != nil {
		var zero V
		return zero, err
	}
	return v, nil
}
