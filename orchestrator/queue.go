package orchestrator

import (
	"sync"

	"github.com/whispurrnet/overlay/internal/logger"
	"github.com/whispurrnet/overlay/protocol"
)

// gossipQueue is a bounded FIFO of broadcast records awaiting propagation.
// Pushing past capacity drops the oldest entry rather than blocking or
// rejecting the new one, and logs the drop so sustained overload is
// visible without stalling the caller.
type gossipQueue struct {
	mu       sync.Mutex
	items    []*protocol.Message
	capacity int
}

func newGossipQueue(capacity int) *gossipQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &gossipQueue{capacity: capacity}
}

func (q *gossipQueue) push(msg *protocol.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		dropped := q.items[0]
		q.items = q.items[1:]
		logger.Warn("orchestrator: gossip queue full, dropping oldest",
			logger.String("dropped_sender", dropped.Sender),
			logger.String("dropped_nonce", dropped.Nonce))
	}
	q.items = append(q.items, msg)
}

// drain removes up to max messages from the front of the queue, in FIFO
// order, for the next propagation tick.
func (q *gossipQueue) drain(max int) []*protocol.Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	if max > len(q.items) {
		max = len(q.items)
	}
	out := make([]*protocol.Message, max)
	copy(out, q.items[:max])
	q.items = q.items[max:]
	return out
}

func (q *gossipQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// depthAndCapacity reports current occupancy against capacity for health
// reporting.
func (q *gossipQueue) depthAndCapacity() (int, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), q.capacity
}
