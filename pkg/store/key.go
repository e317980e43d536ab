package store

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// KeyPrefix is prepended to every archive key.
const KeyPrefix = "wanikani:archive"

// fingerprintLen is the number of hex characters kept from the token hash.
const fingerprintLen = 16

// Key identifies a stored archive.
type Key struct {
	// Revision is the manifest revision the archive was built with.
	Revision string

	// Fingerprint identifies the account (see FingerprintToken).
	Fingerprint string
}

// String generates the Redis key.
// Format: wanikani:archive:<revision>:<fingerprint>
//
// Example:
//
//	wanikani:archive:wanikani1:9f86d081884c7d65
func (k Key) String() string {
	parts := []string{KeyPrefix}

	if r := strings.TrimSpace(k.Revision); r != "" {
		parts = append(parts, r)
	} else {
		parts = append(parts, "-")
	}

	if f := strings.TrimSpace(k.Fingerprint); f != "" {
		parts = append(parts, f)
	} else {
		parts = append(parts, "anonymous")
	}

	return strings.Join(parts, ":")
}

// FingerprintToken returns a short SHA-256 prefix of an API token. An
// empty token yields an empty fingerprint.
func FingerprintToken(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}
