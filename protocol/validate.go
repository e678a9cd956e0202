package protocol

import "fmt"

// ValidationResult reports the outcome of structural validation. Warnings
// never block processing; Errors do. Validate never inspects the payload's
// plaintext — that stays opaque until the connection manager decrypts it.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

func (r *ValidationResult) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Valid = false
}

func (r *ValidationResult) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate checks a Message's structural well-formedness: required
// fields, known kind, non-negative timestamp and ttl, TTL expiry, and
// per-kind field presence. A version mismatch is a warning, not an error,
// so older and newer peers can still interoperate.
func Validate(m *Message, nowMSArg int64) ValidationResult {
	result := ValidationResult{Valid: true}

	if m.Sender == "" {
		result.addError("sender is required")
	}
	if !knownKinds[m.Kind] {
		result.addError("unknown kind %q", m.Kind)
	}
	if m.Timestamp < 0 {
		result.addError("timestamp must be non-negative")
	}
	if m.TTL < 0 {
		result.addError("ttl must be non-negative")
	}
	if m.Nonce == "" {
		result.addError("nonce is required")
	}
	if m.WhisperTag == "" {
		result.addError("whisper_tag is required")
	}

	if m.Version != "" && m.Version != ProtocolVersion {
		result.addWarning("version %q does not match local version %q", m.Version, ProtocolVersion)
	}

	if result.Valid && m.IsExpired(nowMSArg) {
		result.addError("message expired: ttl %dms elapsed since %d", m.TTL, m.Timestamp)
	}

	switch m.Kind {
	case KindWhisper:
		if m.TargetID == "" {
			result.addError("whisper requires target_id")
		}
	case KindBroadcast:
		if m.MaxHops == nil || *m.MaxHops < 0 {
			result.addError("broadcast requires non-negative max_hops")
		}
		if m.CurrentHops == nil || *m.CurrentHops < 0 {
			result.addError("broadcast requires non-negative current_hops")
		}
		if m.MaxHops != nil && m.CurrentHops != nil && *m.CurrentHops > *m.MaxHops {
			result.addError("current_hops %d exceeds max_hops %d", *m.CurrentHops, *m.MaxHops)
		}
		if m.SeenBy == nil {
			result.addError("broadcast requires seen_by")
		}
	case KindResonance:
		if m.Intent == "" {
			result.addError("resonance requires intent")
		}
		if m.Strength == nil {
			result.addError("resonance requires strength")
		} else if *m.Strength < 0 || *m.Strength > 1 {
			result.addError("strength %f out of range [0,1]", *m.Strength)
		}
	}

	return result
}
