package transport

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelay_ConnectAckThenMessageRoundTrip(t *testing.T) {
	server := NewRelayServer()
	httpServer := httptest.NewServer(server.Handler())
	defer httpServer.Close()

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	a, err := DialRelay(ctx, wsURL, "peer-a", "peer-b")
	require.NoError(t, err)
	defer a.Close()

	b, err := DialRelay(ctx, wsURL, "peer-b", "peer-a")
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, VariantRelay, a.Variant())

	require.NoError(t, a.Send(ctx, []byte("ping")))
	frame, err := b.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("ping"), frame)
}

func TestDialRelay_FailsAgainstNonRelayServer(t *testing.T) {
	httpServer := httptest.NewServer(nil)
	defer httpServer.Close()
	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := DialRelay(ctx, wsURL, "peer-a", "peer-b")
	assert.Error(t, err)
}
