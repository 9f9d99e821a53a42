// Package wire frames entries kept by the in-process store.
// The backing cache only has a global life window, so each entry carries its
// own absolute expiry.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	version byte = 1
	hdrLen       = 4 + 1 + 8 + 4
)

var (
	ErrCorrupt = errors.New("journeycas: corrupt entry")
	magic4     = [...]byte{'J', 'C', 'A', 'S'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry: magic(4) | ver(1) | expiresAt(i64 be, unix nanos, 0 = never) | vlen(u32 be) | payload(vlen)
func EncodeEntry(expiresAt time.Time, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var u8 [8]byte
	var u4 [4]byte

	var exp int64
	if !expiresAt.IsZero() {
		exp = expiresAt.UnixNano()
	}
	binary.BigEndian.PutUint64(u8[:], uint64(exp))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// DecodeEntry returns the expiry (zero when none) and the payload. The payload
// aliases b.
func DecodeEntry(b []byte) (expiresAt time.Time, payload []byte, err error) {
	if len(b) < hdrLen || !hasMagic(b) || b[4] != version {
		return time.Time{}, nil, ErrCorrupt
	}

	off := 5
	exp := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen > len(b)-off { // overflow-safe bound check
		return time.Time{}, nil, ErrCorrupt
	}

	if exp != 0 {
		expiresAt = time.Unix(0, exp)
	}
	return expiresAt, b[off : off+vlen], nil
}

// Expired reports whether an entry with the given expiry is dead at now.
func Expired(expiresAt, now time.Time) bool {
	return !expiresAt.IsZero() && !now.Before(expiresAt)
}
