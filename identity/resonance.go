package identity

import "crypto/sha256"

// ResonanceKeySize is the length in bytes of a derived resonance key.
const ResonanceKeySize = sha256.Size

// DeriveResonanceKey returns SHA-256 of the UTF-8 intent string. It is pure
// and total: equal intents always produce bitwise-equal keys, on any peer.
func DeriveResonanceKey(intent string) [ResonanceKeySize]byte {
	return sha256.Sum256([]byte(intent))
}
