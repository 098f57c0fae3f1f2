package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows a later
// algorithm change without colliding with stored values.
const (
	DomainItemFields = "vaultrev/item-fields/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ItemFingerprint hashes an item's field values. Two replicas whose items
// carry the same fingerprint need no sync for that item.
func ItemFingerprint(fields map[string]string) (string, error) {
	canonical, err := MarshalCanonical(fields)
	if err != nil {
		return "", fmt.Errorf("ItemFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainItemFields, canonical), nil
}
