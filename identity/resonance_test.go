package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveResonanceKey_Deterministic(t *testing.T) {
	a := DeriveResonanceKey("file:sync")
	b := DeriveResonanceKey("file:sync")
	assert.Equal(t, a, b)
	assert.Len(t, a, ResonanceKeySize)
}

func TestDeriveResonanceKey_DifferentIntents(t *testing.T) {
	a := DeriveResonanceKey("file:sync")
	b := DeriveResonanceKey("mining:coord")
	assert.NotEqual(t, a, b)
}

func TestGenerateWhisperTag_DeterministicAndSized(t *testing.T) {
	tag, err := GenerateWhisperTag("topic", nil)
	assert := assert.New(t)
	assert.NoError(err)
	assert.Len(tag, WhisperTagSize*2)

	again, err := GenerateWhisperTag("topic", nil)
	assert.NoError(err)
	assert.Equal(tag, again)

	withMeta, err := GenerateWhisperTag("topic", map[string]any{"k": "v"})
	assert.NoError(err)
	assert.NotEqual(tag, withMeta)
}
