package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// WhisperTagSize is the length in bytes of a rendered whisper tag's raw form.
const WhisperTagSize = 8

// GenerateWhisperTag returns the first 8 bytes of SHA-256 over UTF-8(topic),
// optionally concatenated with a canonical JSON encoding of metadata,
// rendered as 16 lowercase hex digits.
func GenerateWhisperTag(topic string, metadata map[string]any) (string, error) {
	h := sha256.New()
	h.Write([]byte(topic))
	if metadata != nil {
		encoded, err := json.Marshal(metadata)
		if err != nil {
			return "", fmt.Errorf("generate whisper tag: encode metadata: %w", err)
		}
		h.Write(encoded)
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:WhisperTagSize]), nil
}
