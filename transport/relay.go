package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// relayEnvelope is the wire frame a relay server routes between two peers.
// "connect" registers the sender's node id with the relay; "connected" is
// the server's ack that registration succeeded (the connection manager
// waits for this before transitioning the peer to Relaying); "message"
// carries an opaque, already-encrypted protocol record.
type relayEnvelope struct {
	Type      string `json:"type"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	PublicKey []byte `json:"publicKey,omitempty"`
	Payload   []byte `json:"payload,omitempty"`
}

const (
	relayTypeConnect   = "connect"
	relayTypeConnected = "connected"
	relayTypeMessage   = "message"
)

// relayChannel implements Channel over a gorilla/websocket connection to a
// relay endpoint, framing every Send/Recv as a relayEnvelope addressed to a
// specific peer id.
type relayChannel struct {
	localID, remoteID string
	conn              *websocket.Conn
	writeMu           sync.Mutex

	inbox     chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

func (c *relayChannel) Variant() Variant { return VariantRelay }

func (c *relayChannel) Send(ctx context.Context, frame []byte) error {
	env := relayEnvelope{Type: relayTypeMessage, From: c.localID, To: c.remoteID, Payload: frame}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(30 * time.Second)
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("relay: set write deadline: %w", err)
	}
	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("relay: write: %w", err)
	}
	return nil
}

func (c *relayChannel) Recv(ctx context.Context) ([]byte, error) {
	select {
	case frame, ok := <-c.inbox:
		if !ok {
			return nil, ErrClosed
		}
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, ErrClosed
	}
}

func (c *relayChannel) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = c.conn.Close()
	})
	return nil
}

// readLoop drains incoming frames addressed to localID and feeds inbox.
// It exits (and closes inbox) on any read error, including the relay's own
// close frame.
func (c *relayChannel) readLoop() {
	defer close(c.inbox)
	for {
		var env relayEnvelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}
		if env.Type != relayTypeMessage {
			continue
		}
		select {
		case c.inbox <- env.Payload:
		case <-c.closed:
			return
		}
	}
}

// DialRelay connects to a relay server at url, registers localID, and
// waits for the server's "connected" ack before returning — resolving the
// spec's requirement that a relayed connection only counts as open once
// the relay has acknowledged registration, not merely once the socket is
// up.
func DialRelay(ctx context.Context, url, localID, remoteID string) (Channel, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("relay transport: dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("relay transport: dial failed: %w", err)
	}

	if err := conn.WriteJSON(relayEnvelope{Type: relayTypeConnect, From: localID, To: remoteID}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("relay transport: register: %w", err)
	}

	var ack relayEnvelope
	if err := conn.ReadJSON(&ack); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("relay transport: awaiting connected ack: %w", err)
	}
	if ack.Type != relayTypeConnected {
		_ = conn.Close()
		return nil, fmt.Errorf("relay transport: unexpected ack type %q", ack.Type)
	}

	c := &relayChannel{
		localID:  localID,
		remoteID: remoteID,
		conn:     conn,
		inbox:    make(chan []byte, directQueueDepth),
		closed:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// RelayServer is a minimal routing relay: it registers connecting clients
// by node id and forwards "message" envelopes between the from/to pair,
// standing in for a rendezvous point neither peer can reach directly.
type RelayServer struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*websocket.Conn
}

// NewRelayServer constructs a RelayServer ready to be mounted as an
// http.Handler.
func NewRelayServer() *RelayServer {
	return &RelayServer{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[string]*websocket.Conn),
	}
}

// Handler returns the HTTP handler that upgrades and services relay
// connections.
func (s *RelayServer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, fmt.Sprintf("relay upgrade failed: %v", err), http.StatusBadRequest)
			return
		}
		defer conn.Close()
		s.serve(conn)
	})
}

func (s *RelayServer) serve(conn *websocket.Conn) {
	var nodeID string
	defer func() {
		if nodeID != "" {
			s.mu.Lock()
			delete(s.clients, nodeID)
			s.mu.Unlock()
		}
	}()

	for {
		var env relayEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}

		switch env.Type {
		case relayTypeConnect:
			nodeID = env.From
			s.mu.Lock()
			s.clients[nodeID] = conn
			s.mu.Unlock()
			if err := conn.WriteJSON(relayEnvelope{Type: relayTypeConnected}); err != nil {
				return
			}
		case relayTypeMessage:
			s.mu.RLock()
			target, ok := s.clients[env.To]
			s.mu.RUnlock()
			if !ok {
				continue
			}
			_ = target.WriteJSON(env)
		}
	}
}
