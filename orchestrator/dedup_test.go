package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedupTable_SeenBeforeDetectsDuplicate(t *testing.T) {
	d := newDedupTable()

	assert.False(t, d.seenBefore("node-a", "nonce-1"))
	assert.True(t, d.seenBefore("node-a", "nonce-1"))
}

func TestDedupTable_DistinguishesBySenderAndNonce(t *testing.T) {
	d := newDedupTable()

	assert.False(t, d.seenBefore("node-a", "nonce-1"))
	assert.False(t, d.seenBefore("node-b", "nonce-1"))
	assert.False(t, d.seenBefore("node-a", "nonce-2"))
}

func TestDedupTable_SweepDropsOldEntries(t *testing.T) {
	d := newDedupTable()
	d.seenBefore("node-a", "nonce-1")
	d.firstSeen[dedupKey{"node-a", "nonce-1"}] = time.Now().Add(-time.Hour)

	d.sweep(time.Minute)
	assert.Equal(t, 0, d.size())
}
