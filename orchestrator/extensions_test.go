package orchestrator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whispurrnet/overlay/connmgr"
	"github.com/whispurrnet/overlay/protocol"
)

type fakeExtension struct {
	id        string
	kinds     []protocol.Kind
	handled   []*protocol.Message
	handleErr error
	cleanedUp bool
	panics    bool
}

func (f *fakeExtension) ID() string                      { return f.id }
func (f *fakeExtension) Version() string                 { return "1.0.0" }
func (f *fakeExtension) SupportedKinds() []protocol.Kind  { return f.kinds }
func (f *fakeExtension) Initialize(o *Orchestrator) error { return nil }
func (f *fakeExtension) Cleanup() error                   { f.cleanedUp = true; return nil }
func (f *fakeExtension) HandleMessage(msg *protocol.Message, peer *connmgr.Peer) error {
	if f.panics {
		panic("boom")
	}
	f.handled = append(f.handled, msg)
	return f.handleErr
}

func TestExtensionRegistry_RegisterAndDispatch(t *testing.T) {
	r := newExtensionRegistry()
	ext := &fakeExtension{id: "file-sync", kinds: []protocol.Kind{protocol.KindFileSync}}

	require.NoError(t, r.register(ext))
	assert.Equal(t, 1, r.count())

	msg := &protocol.Message{Kind: protocol.KindFileSync, Sender: "node-a"}
	r.dispatch(msg, nil)
	assert.Len(t, ext.handled, 1)
}

func TestExtensionRegistry_RejectsDuplicateID(t *testing.T) {
	r := newExtensionRegistry()
	ext := &fakeExtension{id: "dup", kinds: []protocol.Kind{protocol.KindDreamspace}}
	require.NoError(t, r.register(ext))

	err := r.register(&fakeExtension{id: "dup"})
	assert.Error(t, err)
}

func TestExtensionRegistry_UnregisterRemovesFromKindIndex(t *testing.T) {
	r := newExtensionRegistry()
	ext := &fakeExtension{id: "mining", kinds: []protocol.Kind{protocol.KindMiningSignal}}
	require.NoError(t, r.register(ext))

	require.NoError(t, r.unregister("mining"))
	assert.Empty(t, r.handlersFor(protocol.KindMiningSignal))
}

func TestExtensionRegistry_DispatchSurvivesHandlerError(t *testing.T) {
	r := newExtensionRegistry()
	ext := &fakeExtension{id: "broken", kinds: []protocol.Kind{protocol.KindDreamspace}, handleErr: errors.New("boom")}
	require.NoError(t, r.register(ext))

	assert.NotPanics(t, func() {
		r.dispatch(&protocol.Message{Kind: protocol.KindDreamspace}, nil)
	})
}

func TestExtensionRegistry_DispatchSurvivesHandlerPanic(t *testing.T) {
	r := newExtensionRegistry()
	ext := &fakeExtension{id: "panicky", kinds: []protocol.Kind{protocol.KindDreamspace}, panics: true}
	require.NoError(t, r.register(ext))

	assert.NotPanics(t, func() {
		r.dispatch(&protocol.Message{Kind: protocol.KindDreamspace}, nil)
	})
}
