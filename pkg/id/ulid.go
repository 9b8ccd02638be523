// Package id provides sortable ID generation utilities.
package id

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// Crockford's Base32 alphabet (excludes I, L, O, U to avoid confusion).
const crockfordBase32 = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// ULIDLength is the length of a canonical ULID string.
const ULIDLength = 26

// NewULID generates a ULID (Universally Unique Lexicographically Sortable Identifier).
// Returns a 26-character string: 10 chars timestamp (48-bit ms) + 16 chars random (80-bit).
// Identities, files and storage keys use ULIDs so listings sort by creation time.
func NewULID() string {
	return newULIDAt(time.Now())
}

func newULIDAt(t time.Time) string {
	ms := uint64(t.UnixMilli())

	var entropy [10]byte
	if _, err := rand.Read(entropy[:]); err != nil {
		// Degraded but functional: time-based entropy.
		binary.BigEndian.PutUint64(entropy[:8], uint64(time.Now().UnixNano()))
	}

	var out [ULIDLength]byte

	// 48-bit timestamp, most significant group first.
	for i := 9; i >= 0; i-- {
		out[i] = crockfordBase32[ms&0x1F]
		ms >>= 5
	}

	// 80 random bits packed into 16 symbols: two 40-bit halves of 8 symbols each.
	for half := range 2 {
		var v uint64
		for _, b := range entropy[half*5 : half*5+5] {
			v = v<<8 | uint64(b)
		}
		base := 10 + half*8
		for i := 7; i >= 0; i-- {
			out[base+i] = crockfordBase32[v&0x1F]
			v >>= 5
		}
	}

	return string(out[:])
}

// IsULID reports whether s is a canonical upper-case ULID.
// The first symbol is limited to 0-7 because a ULID timestamp is 48 bits.
func IsULID(s string) bool {
	if len(s) != ULIDLength {
		return false
	}
	if s[0] > '7' {
		return false
	}
	for i := range len(s) {
		if decodeSymbol(s[i]) < 0 {
			return false
		}
	}
	return true
}

// Time extracts the millisecond timestamp encoded in a ULID.
// Returns false if s is not a valid ULID.
func Time(s string) (time.Time, bool) {
	if !IsULID(s) {
		return time.Time{}, false
	}
	var ms uint64
	for i := range 10 {
		ms = ms<<5 | uint64(decodeSymbol(s[i]))
	}
	return time.UnixMilli(int64(ms)), true
}

func decodeSymbol(c byte) int {
	for i := range len(crockfordBase32) {
		if crockfordBase32[i] == c {
			return i
		}
	}
	return -1
}
