package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/stun/v2"
)

// directQueueDepth bounds the in-flight frame buffer of a direct channel's
// receive side, giving it the same ordered-reliable-datagram guarantee a
// NAT-traversed peer-to-peer socket would, without requiring an actual
// traversed socket for every pair of local peers.
const directQueueDepth = 64

// directRegistry is the process-wide switchboard standing in for "the
// platform's peer-to-peer facility configured by the caller". Two local
// peers that dial each other's node id rendezvous here; this is the
// in-process analogue of an ICE-negotiated direct socket.
type directRegistry struct {
	mu        sync.Mutex
	listeners map[string]*directChannel
	acceptors map[string]*DirectAcceptor
}

var registry = &directRegistry{
	listeners: make(map[string]*directChannel),
	acceptors: make(map[string]*DirectAcceptor),
}

// directChannel is the direct transport variant: an ordered, reliable,
// in-process byte channel between two local peer identities.
type directChannel struct {
	localID, remoteID string
	peer              *directChannel
	inbox             chan []byte
	closeOnce         sync.Once
	closed            chan struct{}
}

func newDirectChannel(localID, remoteID string) *directChannel {
	return &directChannel{
		localID:  localID,
		remoteID: remoteID,
		inbox:    make(chan []byte, directQueueDepth),
		closed:   make(chan struct{}),
	}
}

func (c *directChannel) Variant() Variant { return VariantDirect }

func (c *directChannel) Send(ctx context.Context, frame []byte) error {
	if c.peer == nil {
		return ErrClosed
	}
	select {
	case <-c.closed:
		return ErrClosed
	case <-c.peer.closed:
		return ErrClosed
	default:
	}
	select {
	case c.peer.inbox <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return ErrClosed
	}
}

func (c *directChannel) Recv(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-c.inbox:
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, ErrClosed
	}
}

func (c *directChannel) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	registry.mu.Lock()
	if registry.listeners[c.localID] == c {
		delete(registry.listeners, c.localID)
	}
	registry.mu.Unlock()
	return nil
}

// DialDirect opens a direct channel to remoteID. It first runs a STUN
// binding probe against the configured server list to confirm the local
// process can discover its own reflexive address — the ICE/STUN step the
// spec asks the direct transport to perform before attempting the socket —
// then rendezvous with the remote peer's listener. It returns
// ErrUnavailable if the remote peer has no listener registered, letting
// the connection manager fall back to a relay.
func DialDirect(ctx context.Context, localID, remoteID string, stunServers []string) (Channel, error) {
	if err := probeSTUN(ctx, stunServers); err != nil {
		return nil, fmt.Errorf("direct transport: stun probe failed: %w", err)
	}

	registry.mu.Lock()
	if acceptor, ok := registry.acceptors[remoteID]; ok {
		local := newDirectChannel(localID, remoteID)
		remote := newDirectChannel(remoteID, localID)
		local.peer = remote
		remote.peer = local
		registry.mu.Unlock()

		select {
		case acceptor.incoming <- remote:
		default:
			return nil, fmt.Errorf("direct transport: %s's accept backlog is full", remoteID)
		}
		return local, nil
	}

	remote, ok := registry.listeners[remoteID]
	if !ok {
		registry.mu.Unlock()
		return nil, ErrUnavailable
	}
	local := newDirectChannel(localID, remoteID)
	local.peer = remote
	registry.listeners[localID] = local
	registry.mu.Unlock()

	remote.peer = local
	return local, nil
}

// DirectAcceptor lets a listener accept an unbounded sequence of inbound
// direct connections, unlike ListenDirect's single reusable channel slot
// (suited to the pairwise tests that always have exactly one dialer).
// Each accepted connection is a freshly wired directChannel pair, so
// multiple dialers can connect to the same localID concurrently without
// one overwriting another's channel.
type DirectAcceptor struct {
	localID  string
	incoming chan *directChannel
}

// ListenDirectAccept registers localID as reachable for direct dials and
// returns an acceptor that yields one Channel per inbound dial.
func ListenDirectAccept(localID string) *DirectAcceptor {
	a := &DirectAcceptor{localID: localID, incoming: make(chan *directChannel, 16)}
	registry.mu.Lock()
	registry.acceptors[localID] = a
	registry.mu.Unlock()
	return a
}

// Accept blocks until a peer dials localID, or ctx is done.
func (a *DirectAcceptor) Accept(ctx context.Context) (Channel, error) {
	select {
	case ch := <-a.incoming:
		return ch, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting new dials for localID. Channels already handed out
// by Accept are unaffected.
func (a *DirectAcceptor) Close() error {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if registry.acceptors[a.localID] == a {
		delete(registry.acceptors, a.localID)
	}
	return nil
}

// ListenDirect registers localID as reachable for direct dials and returns
// the channel that will be wired up once a peer dials in. Callers use
// Send/Recv directly: Recv blocks until a frame arrives, and Send returns
// ErrClosed until a remote peer has connected.
func ListenDirect(localID string) *directChannel {
	c := newDirectChannel(localID, "")
	registry.mu.Lock()
	registry.listeners[localID] = c
	registry.mu.Unlock()
	return c
}

// probeSTUN performs a single STUN binding request against the first
// reachable server in stunServers, confirming outbound UDP connectivity
// and a reflexive address exist before a direct socket is attempted. An
// empty server list skips the probe (useful for tests and fully local
// overlays with no NAT to traverse).
func probeSTUN(ctx context.Context, stunServers []string) error {
	if len(stunServers) == 0 {
		return nil
	}

	var lastErr error
	for _, addr := range stunServers {
		if err := stunBindingRequest(ctx, addr); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("no stun server reachable: %w", lastErr)
}

func stunBindingRequest(ctx context.Context, addr string) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(5 * time.Second)
	}

	conn, err := net.Dial("udp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}

	client, err := stun.NewClient(conn)
	if err != nil {
		return fmt.Errorf("stun client: %w", err)
	}
	defer client.Close()

	message := stun.MustBuild(stun.TransactionID, stun.BindingRequest)

	result := make(chan error, 1)
	err = client.Start(message, func(res stun.Event) {
		if res.Error != nil {
			result <- res.Error
			return
		}
		var xorAddr stun.XORMappedAddress
		result <- xorAddr.GetFrom(res.Message)
	})
	if err != nil {
		return fmt.Errorf("stun start: %w", err)
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
