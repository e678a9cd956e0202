// Package orchestrator is the gossip/resonance core: it consumes the
// connection manager's message stream, deduplicates, propagates broadcast
// traffic, matches resonance intents, and dispatches to registered
// extensions. It owns the dedup record, the gossip queue, and the
// extension registry exclusively.
package orchestrator

import (
	"fmt"
	"sync"

	"github.com/whispurrnet/overlay/connmgr"
	"github.com/whispurrnet/overlay/internal/logger"
	"github.com/whispurrnet/overlay/protocol"
)

// Extension is a pluggable handler for one or more message kinds.
// Initialize runs once, from RegisterExtension, whether registration happens
// before or after Start. HandleMessage errors are caught and logged by
// the dispatcher; they never kill the pipeline.
type Extension interface {
	ID() string
	Version() string
	SupportedKinds() []protocol.Kind
	Initialize(o *Orchestrator) error
	HandleMessage(msg *protocol.Message, peer *connmgr.Peer) error
	Cleanup() error
}

// extensionRegistry maps message kind to an ordered list of handlers.
// Re-registering an existing id is a caller error.
type extensionRegistry struct {
	mu     sync.RWMutex
	byID   map[string]Extension
	byKind map[protocol.Kind][]Extension
}

func newExtensionRegistry() *extensionRegistry {
	return &extensionRegistry{
		byID:   make(map[string]Extension),
		byKind: make(map[protocol.Kind][]Extension),
	}
}

func (r *extensionRegistry) register(ext Extension) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[ext.ID()]; exists {
		return fmt.Errorf("extension %q already registered", ext.ID())
	}
	r.byID[ext.ID()] = ext
	for _, kind := range ext.SupportedKinds() {
		r.byKind[kind] = append(r.byKind[kind], ext)
	}
	return nil
}

func (r *extensionRegistry) unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ext, exists := r.byID[id]
	if !exists {
		return fmt.Errorf("extension %q not registered", id)
	}
	delete(r.byID, id)
	for _, kind := range ext.SupportedKinds() {
		handlers := r.byKind[kind]
		for i, h := range handlers {
			if h.ID() == id {
				r.byKind[kind] = append(handlers[:i], handlers[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (r *extensionRegistry) handlersFor(kind protocol.Kind) []Extension {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Extension, len(r.byKind[kind]))
	copy(out, r.byKind[kind])
	return out
}

func (r *extensionRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *extensionRegistry) all() []Extension {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Extension, 0, len(r.byID))
	for _, ext := range r.byID {
		out = append(out, ext)
	}
	return out
}

// dispatch invokes every handler registered for kind, catching and logging
// errors so a misbehaving extension never kills the pipeline.
func (r *extensionRegistry) dispatch(msg *protocol.Message, peer *connmgr.Peer) {
	for _, ext := range r.handlersFor(msg.Kind) {
		if err := safeHandle(ext, msg, peer); err != nil {
			logger.Warn("orchestrator: extension handler failed",
				logger.String("extension", ext.ID()),
				logger.String("kind", string(msg.Kind)),
				logger.Error(err))
		}
	}
}

// safeHandle recovers from a panicking extension in addition to catching
// returned errors, since a third-party handler is untrusted code running
// inside the pipeline's goroutine.
func safeHandle(ext Extension, msg *protocol.Message, peer *connmgr.Peer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in extension %q: %v", ext.ID(), r)
		}
	}()
	return ext.HandleMessage(msg, peer)
}
