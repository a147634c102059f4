package quota

import (
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint is the duplicate-suppression key of a review: the BLAKE2b-256
// digest of its exact body text. Two bodies share a fingerprint only when
// they are byte-for-byte identical (case and whitespace included).
type Fingerprint [blake2b.Size256]byte

// ErrInvalidFingerprint is returned when a stored fingerprint cannot be decoded.
var ErrInvalidFingerprint = errors.New("invalid fingerprint")

// FingerprintOf returns the fingerprint of body.
func FingerprintOf(body string) Fingerprint {
	return blake2b.Sum256([]byte(body))
}

// String returns the hex encoding used for persistence.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// ParseFingerprint decodes the hex form produced by String.
func ParseFingerprint(s string) (Fingerprint, error) {
	var f Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil {
		return f, fmt.Errorf("%w: %v", ErrInvalidFingerprint, err)
	}
	if len(b) != len(f) {
		return f, fmt.Errorf("%w: length %d", ErrInvalidFingerprint, len(b))
	}
	copy(f[:], b)
	return f, nil
}
