package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

const (
	separator   = "|"
	secretBytes = 32
)

// digestKey separates token digests from any other keyed BLAKE3 use.
// ASCII name, zero-padded to 32 bytes. Changing it invalidates every token.
var digestKey = [32]byte{
	'f', 'i', 'l', 'e', 'v', 'a', 'u', 'l', 't', '.', 't', 'o', 'k', 'e', 'n', '.',
	'd', 'i', 'g', 'e', 's', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

func digest(secret string) []byte {
	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		panic("token: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write([]byte(secret))
	return hasher.Sum(nil)
}

func newSecret() (string, error) {
	var buf [secretBytes]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("token: read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}

// ParseBearer splits a bearer into token id and secret.
// Both parts must be non-empty printable ASCII without spaces, and the
// secret must not contain another separator.
func ParseBearer(bearer string) (tokenID, secret string, err error) {
	for i := range len(bearer) {
		if c := bearer[i]; c <= ' ' || c > '~' {
			return "", "", ErrMalformedToken
		}
	}

	tokenID, secret, ok := strings.Cut(bearer, separator)
	if !ok || tokenID == "" || secret == "" || strings.Contains(secret, separator) {
		return "", "", ErrMalformedToken
	}
	return tokenID, secret, nil
}

// FormatBearer joins a token id and secret.
func FormatBearer(tokenID, secret string) string {
	return tokenID + separator + secret
}
