package protocol

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/whispurrnet/overlay/identity"
)

// Options customizes the fields Construct leaves to the caller's discretion.
// Zero values fall back to Construct's own defaults (current timestamp,
// DefaultTTLMS, a fresh random nonce, and so on).
type Options struct {
	Intent     string
	WhisperTag string
	TargetID   string
	TTL        int64
	MaxHops    int
	Strength   float64
	Fields     map[string]any
}

// nowMS is overridden in tests that need to pin message timestamps.
var nowMS = func() int64 { return time.Now().UnixMilli() }

// newNonce returns a fresh 128-bit nonce rendered as lowercase hex, used to
// deduplicate gossip at the orchestrator layer (sender, nonce) pairs.
func newNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Construct builds a Message of the given kind, populating the shared
// header (timestamp, version, ttl, nonce, resonance key, whisper tag) and
// the kind-specific arms. The resonance key is derived from opts.Intent
// when set, or else the literal string "default".
func Construct(kind Kind, sender string, payload []byte, opts Options) (*Message, error) {
	nonce, err := newNonce()
	if err != nil {
		return nil, err
	}

	intent := opts.Intent
	if intent == "" {
		intent = "default"
	}
	resonanceKey := ResonanceKey(identity.DeriveResonanceKey(intent))

	whisperTag := opts.WhisperTag
	if whisperTag == "" {
		tag, err := identity.GenerateWhisperTag(intent, nil)
		if err != nil {
			return nil, fmt.Errorf("construct message: %w", err)
		}
		whisperTag = tag
	}

	ttl := opts.TTL
	if ttl == 0 {
		ttl = DefaultTTLMS
	}

	m := &Message{
		Kind:         kind,
		Sender:       sender,
		ResonanceKey: resonanceKey,
		WhisperTag:   whisperTag,
		Payload:      payload,
		Timestamp:    nowMS(),
		Version:      ProtocolVersion,
		TTL:          ttl,
		Nonce:        nonce,
	}

	switch kind {
	case KindWhisper:
		m.TargetID = opts.TargetID
	case KindBroadcast:
		maxHops := opts.MaxHops
		if maxHops == 0 {
			maxHops = 10
		}
		zero := 0
		m.MaxHops = &maxHops
		m.CurrentHops = &zero
		m.SeenBy = []string{sender}
	case KindResonance:
		m.Intent = intent
		strength := opts.Strength
		m.Strength = &strength
	case KindHello, KindFileSync, KindMiningSignal, KindDreamspace:
		m.Fields = opts.Fields
	}

	return m, nil
}
