package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainState prefixes state digests. The version suffix allows the
// algorithm to change without colliding with older digests.
const DomainState = "components/state/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte keeps domain and data from running into each other.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest returns the hex SHA-256 of v's canonical JSON under domain.
// Equal values give equal digests regardless of key order.
func Digest(domain string, v IRValue) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// StateDigest identifies one revision of an instance's state.
func StateDigest(state IRObject) (string, error) {
	if state == nil {
		state = IRObject{}
	}
	return Digest(DomainState, state)
}

// ShortDigest trims a digest for display.
func ShortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
