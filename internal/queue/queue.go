package queue

import (
	"sort"
	"sync"

	"github.com/hyperware-ai/chat/internal/chat"
)

// Queue holds per-counterparty lists of messages awaiting delivery. It is
// the one piece of state shared between request handlers and the
// background sweep, so every access is a short, I/O-free critical
// section.
type Queue struct {
	mu      sync.Mutex
	pending map[string][]chat.Message
	metrics *Metrics
}

// New builds an empty delivery queue.
func New(metrics *Metrics) *Queue {
	return &Queue{
		pending: make(map[string][]chat.Message),
		metrics: metrics,
	}
}

// Enqueue appends a message to the counterparty's pending list. No dedup:
// a message is only re-queued when a fresh send attempt independently
// fails.
func (q *Queue) Enqueue(counterparty string, msg chat.Message) {
	q.mu.Lock()
	q.pending[counterparty] = append(q.pending[counterparty], msg)
	depth := q.depthLocked()
	q.mu.Unlock()

	q.metrics.recordEnqueue()
	q.metrics.setDepth(depth)
}

// Head peeks the oldest pending message for a counterparty without
// removing it. Removal happens only on confirmed delivery, so a stuck
// head blocks later messages to the same counterparty.
func (q *Queue) Head(counterparty string) (chat.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	list := q.pending[counterparty]
	if len(list) == 0 {
		return chat.Message{}, false
	}
	return list[0], true
}

// Remove deletes the given message from a counterparty's list and prunes
// the entry when it empties. Returns whether the message was present.
func (q *Queue) Remove(counterparty, messageID string) bool {
	q.mu.Lock()
	removed := false
	list := q.pending[counterparty]
	for i := range list {
		if list[i].ID == messageID {
			q.pending[counterparty] = append(list[:i], list[i+1:]...)
			removed = true
			break
		}
	}
	if len(q.pending[counterparty]) == 0 {
		delete(q.pending, counterparty)
	}
	depth := q.depthLocked()
	q.mu.Unlock()

	if removed {
		q.metrics.recordDelivered()
	}
	q.metrics.setDepth(depth)
	return removed
}

// Counterparties lists peers with pending messages, sorted for stable
// sweep order.
func (q *Queue) Counterparties() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]string, 0, len(q.pending))
	for peer := range q.pending {
		out = append(out, peer)
	}
	sort.Strings(out)
	return out
}

// PendingFor reports how many messages await a counterparty.
func (q *Queue) PendingFor(counterparty string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[counterparty])
}

// Depth reports the total number of queued messages.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depthLocked()
}

func (q *Queue) depthLocked() int {
	total := 0
	for _, list := range q.pending {
		total += len(list)
	}
	return total
}
