// Package identity implements the de-identification transform applied at
// question ingestion. A raw external user handle is mapped to a stable
// pseudonym with a keyed hash; the raw handle must never be persisted or
// logged past this boundary.
package identity

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// PseudonymLength is the hex length of a full pseudonym (256-bit digest).
const PseudonymLength = 64

// ShortLength is the hex length of the short display form.
const ShortLength = 16

// ErrMissingSalt is returned when the transform is constructed without a
// salt. The transform fails closed: no unsalted fallback exists.
var ErrMissingSalt = errors.New("pseudonym salt is not configured")

// Pseudonymizer derives deterministic, non-reversible pseudonyms from raw
// external user handles.
type Pseudonymizer struct {
	key []byte
}

// NewPseudonymizer creates a transform keyed with salt. An empty salt is a
// configuration error, not a soft default.
func NewPseudonymizer(salt string) (*Pseudonymizer, error) {
	if salt == "" {
		return nil, ErrMissingSalt
	}

	key := []byte(salt)
	// BLAKE2b accepts keys up to 64 bytes; longer salts are digested first.
	if len(key) > 64 {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}

	return &Pseudonymizer{key: key}, nil
}

// Pseudonymize maps a raw external handle to a 64-character hex pseudonym.
// The same handle and salt always yield the same pseudonym, enabling
// per-user aggregation without retaining the handle.
func (p *Pseudonymizer) Pseudonymize(rawID string) (string, error) {
	if rawID == "" {
		return "", fmt.Errorf("raw external id is empty")
	}

	h, err := blake2b.New256(p.key)
	if err != nil {
		return "", fmt.Errorf("initializing keyed digest: %w", err)
	}
	h.Write([]byte(rawID))
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// Short returns the 16-character display form of a full pseudonym.
func Short(pseudonym string) string {
	if len(pseudonym) < ShortLength {
		return pseudonym
	}
	return pseudonym[:ShortLength]
}

// Valid reports whether s looks like a pseudonym produced by this package:
// full or short length, hex characters only.
func Valid(s string) bool {
	if len(s) != PseudonymLength && len(s) != ShortLength {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}

// MaskExternalID masks a raw external handle for the rare places (error
// messages at the ingestion boundary) where part of it may be echoed back
// to the submitter. Everything past the first four characters is dropped.
func MaskExternalID(rawID string) string {
	const visible = 4
	if len(rawID) <= visible {
		return rawID
	}
	return rawID[:visible] + "***"
}
