package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// hashLen is the number of hex characters kept from the digest
const hashLen = 16

// HashRecipient returns a stable one-way hash of a recipient address.
// Addresses are trimmed and lowercased first so "A@x.se" and "a@x.se " collide.
func HashRecipient(address string) string {
	normalized := strings.ToLower(strings.TrimSpace(address))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:hashLen]
}

// Recipient returns a context func adding the hashed address under "recipient"
func Recipient(address string) func(e *zerolog.Event) {
	hash := HashRecipient(address)
	return func(e *zerolog.Event) {
		e.Str("recipient", hash)
	}
}

// Redact replaces every occurrence of address in s with its hash.
// Transport error strings sometimes echo the address back, not always in the stored case.
func Redact(s, address string) string {
	address = strings.TrimSpace(address)
	if address == "" || s == "" {
		return s
	}
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(address))
	return re.ReplaceAllLiteralString(s, HashRecipient(address))
}
