package identity

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeyPair is an ephemeral X25519 key-agreement identity, paired with an
// Ed25519 signing identity exposed through Sign and Verify; no message path
// in this module signs or verifies with it. The contract required by the overlay is narrow: two
// peers performing ECDH with their private key and the other's public key
// must land on the same 256-bit shared secret, which then keys a
// 96-bit-nonce/128-bit-tag AEAD.
type KeyPair struct {
	x25519Priv *ecdh.PrivateKey
	x25519Pub  *ecdh.PublicKey
	edPub      ed25519.PublicKey
	edPriv     ed25519.PrivateKey
	id         string
}

// GenerateKeyPair draws a fresh X25519 + Ed25519 key pair from the OS RNG.
func GenerateKeyPair() (*KeyPair, error) {
	xPriv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key pair: ecdh: %w", err)
	}
	edPub, edPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key pair: ed25519: %w", err)
	}

	pubBytes := xPriv.PublicKey().Bytes()
	hash := sha256.Sum256(pubBytes)

	return &KeyPair{
		x25519Priv: xPriv,
		x25519Pub:  xPriv.PublicKey(),
		edPub:      edPub,
		edPriv:     edPriv,
		id:         hex.EncodeToString(hash[:8]),
	}, nil
}

// ID returns a short identifier for this key pair, derived from the public
// key hash (distinct from the node id, which is a per-session random value).
func (kp *KeyPair) ID() string { return kp.id }

// PublicBytes returns the raw 32-byte X25519 public key, as exchanged
// out-of-band when peers are introduced to each other.
func (kp *KeyPair) PublicBytes() []byte { return kp.x25519Pub.Bytes() }

// SigningPublicKey returns the Ed25519 public key that checks signatures
// made by Sign.
func (kp *KeyPair) SigningPublicKey() ed25519.PublicKey { return kp.edPub }

// Sign signs message with the Ed25519 signing key.
func (kp *KeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.edPriv, message)
}

// Verify checks an Ed25519 signature against a peer's signing public key.
func Verify(pub ed25519.PublicKey, message, signature []byte) bool {
	return ed25519.Verify(pub, message, signature)
}

// DeriveSharedSecret performs X25519 ECDH against a peer's raw public key
// bytes and returns SHA-256 of the raw ECDH output. Hashing the raw output
// (rather than using it directly to key the AEAD) avoids leaking
// structure from a low-order point straight into the cipher key, and gives
// every call site a fixed 32-byte key regardless of curve. The result
// depends only on (our private key, peer public key bytes): no mutable
// session state feeds the derivation, so an out-of-order delivery between
// two peers still decrypts correctly.
func (kp *KeyPair) DeriveSharedSecret(peerPublicKey []byte) ([]byte, error) {
	peerPub, err := ecdh.X25519().NewPublicKey(peerPublicKey)
	if err != nil {
		return nil, fmt.Errorf("derive shared secret: parse peer public key: %w", err)
	}
	raw, err := kp.x25519Priv.ECDH(peerPub)
	if err != nil {
		return nil, fmt.Errorf("derive shared secret: ecdh: %w", err)
	}
	sum := sha256.Sum256(raw)
	return sum[:], nil
}

// Seal encrypts plaintext under the shared secret with a fresh random
// 96-bit nonce, returning nonce||ciphertext||tag so the nonce travels
// with the envelope instead of needing separate tracking per peer.
func Seal(sharedSecret, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(sharedSecret)
	if err != nil {
		return nil, fmt.Errorf("seal: new aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("seal: read nonce: %w", err)
	}
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, sealed...), nil
}

// Open reverses Seal, rejecting payloads whose authentication tag fails to
// verify.
func Open(sharedSecret, envelope []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(sharedSecret)
	if err != nil {
		return nil, fmt.Errorf("open: new aead: %w", err)
	}
	if len(envelope) < aead.NonceSize() {
		return nil, fmt.Errorf("open: envelope shorter than nonce")
	}
	nonce, ciphertext := envelope[:aead.NonceSize()], envelope[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open: %w", ErrDecryptionFailed)
	}
	return plaintext, nil
}

// ErrDecryptionFailed is returned by Open when an authentication tag fails
// to verify.
var ErrDecryptionFailed = errors.New("decryption failed")
