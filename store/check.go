package store

import (
	"strconv"
	"strings"
)

// CheckKey rejects blank keys.
func CheckKey(field, key string) error {
	if strings.TrimSpace(key) == "" {
		return Invalid(field, "must not be blank")
	}
	return nil
}

// CheckCAS validates CompareAndSwap arguments. Implementations call it before
// touching the backend so contract violations never look like conflicts.
func CheckCAS(dataKey, versionKey string, expected int64, value []byte, newVersion int64) error {
	if err := CheckKey("dataKey", dataKey); err != nil {
		return err
	}
	if err := CheckKey("versionKey", versionKey); err != nil {
		return err
	}
	if dataKey == versionKey {
		return Invalid("versionKey", "must differ from dataKey")
	}
	if value == nil {
		return Invalid("value", "must not be nil")
	}
	if expected < 0 {
		return Invalid("expectedVersion", "must be >= 0")
	}
	if newVersion != expected+1 {
		return Invalid("newVersion", "must be expectedVersion + 1")
	}
	return nil
}

// ParseVersion reads a stored counter. Anything that is not a non-negative
// decimal integer is "no version yet".
func ParseVersion(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// FormatVersion is the canonical string form compared by CompareAndSwap.
func FormatVersion(v int64) string { return strconv.FormatInt(v, 10) }
