package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsExpired(t *testing.T) {
	m, err := Construct(KindPing, "node-a", nil, Options{TTL: 1000})
	require.NoError(t, err)

	assert.False(t, m.IsExpired(m.Timestamp+500))
	assert.True(t, m.IsExpired(m.Timestamp+1500))
}

func TestMatchesResonance(t *testing.T) {
	m, err := Construct(KindResonance, "node-a", nil, Options{Intent: "file:sync", Strength: 0.6})
	require.NoError(t, err)

	assert.True(t, m.MatchesResonance("file:sync", 0.5))
	assert.False(t, m.MatchesResonance("file:sync", 0.7))
	assert.False(t, m.MatchesResonance("mining:coord", 0.5))
}

func TestMatchesResonance_NonResonanceKindNeverMatches(t *testing.T) {
	m, err := Construct(KindBroadcast, "node-a", nil, Options{})
	require.NoError(t, err)

	assert.False(t, m.MatchesResonance("default", 0.0))
}
