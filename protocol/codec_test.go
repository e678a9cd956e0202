package protocol

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeDeserialize_RoundTrip(t *testing.T) {
	original, err := Construct(KindWhisper, "node-a", []byte("payload bytes"), Options{TargetID: "node-b"})
	require.NoError(t, err)

	data, err := Serialize(original)
	require.NoError(t, err)

	restored, err := Deserialize(data)
	require.NoError(t, err)

	assert.Equal(t, original, restored)
}

func TestSerialize_PayloadIsBase64(t *testing.T) {
	m, err := Construct(KindWhisper, "node-a", []byte("payload bytes"), Options{TargetID: "node-b"})
	require.NoError(t, err)

	data, err := Serialize(m)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	encoded, ok := raw["payload"].(string)
	require.True(t, ok, "payload must serialize as a string")

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Equal(t, m.Payload, decoded)
}

func TestSerialize_ResonanceKeyIsByteArrayNotBase64(t *testing.T) {
	m, err := Construct(KindResonance, "node-a", nil, Options{Intent: "file:sync", Strength: 0.9})
	require.NoError(t, err)

	data, err := Serialize(m)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	arr, ok := raw["resonance_key"].([]any)
	require.True(t, ok, "resonance_key must serialize as a JSON array")
	assert.Len(t, arr, ResonanceKeySize)
}
