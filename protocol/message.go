// Package protocol defines the on-wire message record shared by whisper,
// broadcast, and resonance traffic, plus the extension-defined kinds
// (FileSync, MiningSignal, Dreamspace). It covers construction, structural
// validation, serialization, and the small set of pure predicates (TTL
// expiry, resonance matching) the rest of the overlay depends on.
package protocol

import "encoding/json"

// Kind is the tagged-union discriminant of a Message. Unknown kinds on the
// wire are a validation error.
type Kind string

const (
	KindWhisper      Kind = "whisper"
	KindBroadcast    Kind = "broadcast"
	KindResonance    Kind = "resonance"
	KindPing         Kind = "ping"
	KindPong         Kind = "pong"
	KindHello        Kind = "hello"
	KindGoodbye      Kind = "goodbye"
	KindError        Kind = "error"
	KindFileSync     Kind = "file_sync"
	KindMiningSignal Kind = "mining_signal"
	KindDreamspace   Kind = "dreamspace"
)

// knownKinds is the membership set checked during validation.
var knownKinds = map[Kind]bool{
	KindWhisper: true, KindBroadcast: true, KindResonance: true,
	KindPing: true, KindPong: true, KindHello: true, KindGoodbye: true,
	KindError: true, KindFileSync: true, KindMiningSignal: true, KindDreamspace: true,
}

// ProtocolVersion is the semver string carried in every record. A mismatch
// with a peer's version is a validation warning, never an error.
const ProtocolVersion = "1.0.0"

// DefaultTTLMS is the time-to-live applied when Options.TTL is unset.
const DefaultTTLMS int64 = 300_000

// ResonanceKeySize is the length in bytes of a ResonanceKey.
const ResonanceKeySize = 32

// ResonanceKey is SHA-256 of an intent string. It marshals to a JSON array
// of unsigned bytes (not base64) so the envelope survives text transport
// the same way across every implementation reading this wire format.
type ResonanceKey [ResonanceKeySize]byte

// MarshalJSON renders the key as an array of small integers.
func (k ResonanceKey) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(k))
	for i, b := range k {
		ints[i] = int(b)
	}
	return json.Marshal(ints)
}

// UnmarshalJSON parses an array of small integers back into a ResonanceKey.
func (k *ResonanceKey) UnmarshalJSON(data []byte) error {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return err
	}
	var out ResonanceKey
	for i, v := range ints {
		if i >= len(out) {
			break
		}
		out[i] = byte(v)
	}
	*k = out
	return nil
}

// Message is the wire record for every message kind in the overlay. Rather
// than a deep class hierarchy, kind-specific data lives as optional fields
// alongside a shared header, validated exhaustively per kind in Validate.
type Message struct {
	Kind         Kind         `json:"kind"`
	Sender       string       `json:"sender"`
	ResonanceKey ResonanceKey `json:"resonance_key"`
	WhisperTag   string       `json:"whisper_tag"`
	Payload      []byte       `json:"payload"`
	Timestamp    int64        `json:"timestamp"`
	Version      string       `json:"version"`
	TTL          int64        `json:"ttl"`
	Nonce        string       `json:"nonce"`

	// Whisper
	TargetID string `json:"target_id,omitempty"`

	// Broadcast
	MaxHops     *int     `json:"max_hops,omitempty"`
	CurrentHops *int     `json:"current_hops,omitempty"`
	SeenBy      []string `json:"seen_by,omitempty"`

	// Resonance
	Intent   string   `json:"intent,omitempty"`
	Strength *float64 `json:"strength,omitempty"`

	// FileSync / MiningSignal / Dreamspace — extension-defined structured
	// fields, carried through validation and (de)serialization unchanged.
	// The core never interprets these; only registered extensions do.
	// Hello also uses Fields: it carries the dialer's "public_key", which
	// the connection manager reads during the handshake.
	Fields map[string]any `json:"fields,omitempty"`
}

// IsExpired reports whether the message's TTL has elapsed as of nowMS.
func (m *Message) IsExpired(nowMS int64) bool {
	return nowMS-m.Timestamp > m.TTL
}

// MatchesResonance reports whether m is a Resonance record for the given
// intent whose strength is at least minStrength.
func (m *Message) MatchesResonance(intent string, minStrength float64) bool {
	if m.Kind != KindResonance || m.Intent != intent {
		return false
	}
	if m.Strength == nil {
		return false
	}
	return *m.Strength >= minStrength
}
