package connmgr

import (
	"fmt"

	"github.com/whispurrnet/overlay/identity"
	"github.com/whispurrnet/overlay/protocol"
)

// sharedSecretFor returns the cached Diffie-Hellman secret for a peer,
// deriving and caching it on first use. The secret depends only on the
// peer's public key, never on mutable connection state, so messages that
// arrive out of order still decrypt.
func (m *Manager) sharedSecretFor(peer *Peer) ([]byte, error) {
	if peer.sharedSecret != nil {
		return peer.sharedSecret, nil
	}
	secret, err := m.keys.DeriveSharedSecret(peer.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("derive shared secret for %s: %w", peer.NodeID, err)
	}
	peer.sharedSecret = secret
	return secret, nil
}

// encryptPayload replaces msg.Payload with nonce||ciphertext||tag for
// delivery to peer. Wire-level base64 rendering comes for free from
// encoding/json's default []byte marshaling in protocol.Serialize — no
// separate encoding step is needed here.
func (m *Manager) encryptPayload(peer *Peer, msg *protocol.Message) error {
	secret, err := m.sharedSecretFor(peer)
	if err != nil {
		return err
	}
	sealed, err := identity.Seal(secret, msg.Payload)
	if err != nil {
		return fmt.Errorf("seal payload for %s: %w", peer.NodeID, err)
	}
	msg.Payload = sealed
	return nil
}

// decryptPayload reverses encryptPayload in place, rejecting messages
// whose authentication tag fails.
func (m *Manager) decryptPayload(peer *Peer, msg *protocol.Message) error {
	secret, err := m.sharedSecretFor(peer)
	if err != nil {
		return err
	}
	plaintext, err := identity.Open(secret, msg.Payload)
	if err != nil {
		return fmt.Errorf("open payload from %s: %w", peer.NodeID, err)
	}
	msg.Payload = plaintext
	return nil
}
