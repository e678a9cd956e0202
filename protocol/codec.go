package protocol

import (
	"encoding/json"
	"fmt"
)

// Serialize renders a Message to its canonical JSON wire form. Payload
// marshals as base64 (encoding/json's default []byte behavior); ResonanceKey
// marshals as an array of bytes via its own MarshalJSON.
func Serialize(m *Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("serialize message: %w", err)
	}
	return data, nil
}

// Deserialize parses a wire-format Message. It does not validate the
// result; call Validate separately.
func Deserialize(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("deserialize message: %w", err)
	}
	return &m, nil
}
