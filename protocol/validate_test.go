package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_AcceptsWellFormedWhisper(t *testing.T) {
	m, err := Construct(KindWhisper, "node-a", []byte("hi"), Options{TargetID: "node-b"})
	require.NoError(t, err)

	result := Validate(m, m.Timestamp)
	assert.True(t, result.Valid, result.Errors)
	assert.Empty(t, result.Errors)
}

func TestValidate_RejectsUnknownKind(t *testing.T) {
	m, err := Construct(KindPing, "node-a", nil, Options{})
	require.NoError(t, err)
	m.Kind = Kind("not-a-kind")

	result := Validate(m, m.Timestamp)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestValidate_WhisperWithoutTargetIsError(t *testing.T) {
	m, err := Construct(KindWhisper, "node-a", nil, Options{})
	require.NoError(t, err)
	m.TargetID = ""

	result := Validate(m, m.Timestamp)
	assert.False(t, result.Valid)
}

func TestValidate_ExpiredMessageIsError(t *testing.T) {
	m, err := Construct(KindPing, "node-a", nil, Options{TTL: 1000})
	require.NoError(t, err)

	result := Validate(m, m.Timestamp+2000)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors[len(result.Errors)-1], "expired")
}

func TestValidate_VersionMismatchIsWarningNotError(t *testing.T) {
	m, err := Construct(KindPing, "node-a", nil, Options{})
	require.NoError(t, err)
	m.Version = "0.9.0"

	result := Validate(m, m.Timestamp)
	assert.True(t, result.Valid)
	assert.NotEmpty(t, result.Warnings)
}

func TestValidate_BroadcastHopsMustNotExceedMax(t *testing.T) {
	m, err := Construct(KindBroadcast, "node-a", nil, Options{})
	require.NoError(t, err)
	hops := *m.MaxHops + 1
	m.CurrentHops = &hops

	result := Validate(m, m.Timestamp)
	assert.False(t, result.Valid)
}

func TestValidate_ResonanceStrengthOutOfRangeIsError(t *testing.T) {
	m, err := Construct(KindResonance, "node-a", nil, Options{Intent: "x", Strength: 1.5})
	require.NoError(t, err)

	result := Validate(m, m.Timestamp)
	assert.False(t, result.Valid)
}
