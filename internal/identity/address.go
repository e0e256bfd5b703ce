// Package identity validates participant identifiers. Participant ids
// are base58-encoded ed25519 public keys, so a well-formed id decodes
// to 32 bytes that land on the curve.
package identity

import (
	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ValidParticipantID reports whether id is a base58-encoded 32-byte
// ed25519 public key.
func ValidParticipantID(id string) bool {
	decoded, err := base58.Decode(id)
	if err != nil {
		return false
	}
	if len(decoded) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(decoded)
	return err == nil
}
