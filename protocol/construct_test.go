package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstruct_Whisper(t *testing.T) {
	m, err := Construct(KindWhisper, "node-a", []byte("hi"), Options{TargetID: "node-b"})
	require.NoError(t, err)

	assert.Equal(t, "node-b", m.TargetID)
	assert.Equal(t, ProtocolVersion, m.Version)
	assert.Equal(t, DefaultTTLMS, m.TTL)
	assert.NotEmpty(t, m.Nonce)
	assert.NotEmpty(t, m.WhisperTag)
}

func TestConstruct_Broadcast_DefaultsHopsAndSeenBy(t *testing.T) {
	m, err := Construct(KindBroadcast, "node-a", nil, Options{})
	require.NoError(t, err)

	require.NotNil(t, m.MaxHops)
	require.NotNil(t, m.CurrentHops)
	assert.Equal(t, 10, *m.MaxHops)
	assert.Equal(t, 0, *m.CurrentHops)
	assert.Equal(t, []string{"node-a"}, m.SeenBy)
}

func TestConstruct_Resonance_CarriesIntentAndStrength(t *testing.T) {
	m, err := Construct(KindResonance, "node-a", nil, Options{Intent: "file:sync", Strength: 0.75})
	require.NoError(t, err)

	assert.Equal(t, "file:sync", m.Intent)
	require.NotNil(t, m.Strength)
	assert.Equal(t, 0.75, *m.Strength)
}

func TestConstruct_SameIntent_ProducesSameResonanceKey(t *testing.T) {
	a, err := Construct(KindResonance, "node-a", nil, Options{Intent: "mining:coord"})
	require.NoError(t, err)
	b, err := Construct(KindResonance, "node-b", nil, Options{Intent: "mining:coord"})
	require.NoError(t, err)

	assert.Equal(t, a.ResonanceKey, b.ResonanceKey)
}

func TestConstruct_DistinctNonces(t *testing.T) {
	a, err := Construct(KindPing, "node-a", nil, Options{})
	require.NoError(t, err)
	b, err := Construct(KindPing, "node-a", nil, Options{})
	require.NoError(t, err)

	assert.NotEqual(t, a.Nonce, b.Nonce)
}
