package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whispurrnet/overlay/config"
	"github.com/whispurrnet/overlay/connmgr"
	"github.com/whispurrnet/overlay/identity"
	"github.com/whispurrnet/overlay/orchestrator"
)

func newTestOrchestrator(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	keys, err := identity.GenerateKeyPair()
	require.NoError(t, err)

	mgr := connmgr.NewManager("a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1:1", keys, config.Default().Connection, 0)
	t.Cleanup(mgr.Shutdown)

	gossipCfg := config.Default().Gossip
	o := orchestrator.NewOrchestrator("a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1:1", mgr, gossipCfg, nil)
	o.Start()
	t.Cleanup(o.Shutdown)
	return o
}

func TestPeersCheck_DegradedWithNoPeers(t *testing.T) {
	o := newTestOrchestrator(t)
	status, details, err := PeersCheck(o)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusDegraded, status)
	assert.Equal(t, 0, details["connected_peers"])
}

func TestGossipQueueCheck_HealthyWhenEmpty(t *testing.T) {
	o := newTestOrchestrator(t)
	status, _, err := GossipQueueCheck(o)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, status)
}

func TestUptimeCheck_AlwaysHealthy(t *testing.T) {
	o := newTestOrchestrator(t)
	time.Sleep(5 * time.Millisecond)
	status, details, err := UptimeCheck(o)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, status)
	assert.Greater(t, details["uptime_ms"], int64(0))
}

func TestRegisterDefaults_RegistersAllThree(t *testing.T) {
	o := newTestOrchestrator(t)
	c := NewChecker(time.Second)
	RegisterDefaults(c, o)

	results := c.RunAll(context.Background())
	assert.Len(t, results, 3)
	assert.Contains(t, results, "peers")
	assert.Contains(t, results, "gossip_queue")
	assert.Contains(t, results, "uptime")
}
