package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/hyperware-ai/chat/internal/chat"
)

func testMessage(id string) chat.Message {
	return chat.Message{
		ID:        id,
		Sender:    "alice.os",
		Content:   "hello",
		Timestamp: time.Now().Unix(),
		Status:    chat.StatusFailed,
	}
}

func TestQueueHeadOrder(t *testing.T) {
	q := New(nil)
	q.Enqueue("bob.os", testMessage("1:1"))
	q.Enqueue("bob.os", testMessage("2:2"))

	head, ok := q.Head("bob.os")
	if !ok {
		t.Fatalf("expected pending head")
	}
	if head.ID != "1:1" {
		t.Fatalf("head = %q, want oldest message first", head.ID)
	}

	// Peeking does not remove.
	if got := q.PendingFor("bob.os"); got != 2 {
		t.Fatalf("PendingFor = %d, want 2", got)
	}
}

func TestQueueRemovePrunes(t *testing.T) {
	q := New(nil)
	q.Enqueue("bob.os", testMessage("1:1"))

	if !q.Remove("bob.os", "1:1") {
		t.Fatalf("expected removal of queued message")
	}
	if q.Remove("bob.os", "1:1") {
		t.Fatalf("second removal should report absent")
	}
	if got := len(q.Counterparties()); got != 0 {
		t.Fatalf("counterparty list not pruned, len = %d", got)
	}
}

func TestQueueCounterpartiesSorted(t *testing.T) {
	q := New(nil)
	q.Enqueue("zoe.os", testMessage("1:1"))
	q.Enqueue("bob.os", testMessage("2:2"))

	peers := q.Counterparties()
	if len(peers) != 2 || peers[0] != "bob.os" || peers[1] != "zoe.os" {
		t.Fatalf("Counterparties = %v, want sorted [bob.os zoe.os]", peers)
	}
}

type scriptedDelivery struct {
	failIDs map[string]bool
	sent    []string
}

func (d *scriptedDelivery) Deliver(_ context.Context, _ string, msg chat.Message) error {
	if d.failIDs[msg.ID] {
		return errors.New("peer unreachable")
	}
	d.sent = append(d.sent, msg.ID)
	return nil
}

func TestSweepHeadOfLineBlocking(t *testing.T) {
	q := New(nil)
	q.Enqueue("bob.os", testMessage("1:1"))
	q.Enqueue("bob.os", testMessage("2:2"))

	delivery := &scriptedDelivery{failIDs: map[string]bool{"1:1": true}}
	s := NewSweeper(SweeperConfig{
		Log:             zaptest.NewLogger(t),
		Queue:           q,
		Delivery:        delivery,
		AttemptsPerPeer: 5,
	})

	s.Sweep(context.Background())

	// The stuck head blocks everything behind it.
	if len(delivery.sent) != 0 {
		t.Fatalf("delivered %v despite failing head", delivery.sent)
	}
	if got := q.PendingFor("bob.os"); got != 2 {
		t.Fatalf("PendingFor = %d, want 2", got)
	}
}

func TestSweepDeliversInOrder(t *testing.T) {
	q := New(nil)
	q.Enqueue("bob.os", testMessage("1:1"))
	q.Enqueue("bob.os", testMessage("2:2"))

	delivery := &scriptedDelivery{}
	var delivered []string
	s := NewSweeper(SweeperConfig{
		Log:             zaptest.NewLogger(t),
		Queue:           q,
		Delivery:        delivery,
		AttemptsPerPeer: 5,
		OnDelivered: func(_ string, msg chat.Message) {
			delivered = append(delivered, msg.ID)
		},
	})

	s.Sweep(context.Background())

	if len(delivered) != 2 || delivered[0] != "1:1" || delivered[1] != "2:2" {
		t.Fatalf("delivered = %v, want [1:1 2:2]", delivered)
	}
	if got := q.Depth(); got != 0 {
		t.Fatalf("Depth = %d, want 0", got)
	}
}

func TestSweepAttemptCap(t *testing.T) {
	q := New(nil)
	q.Enqueue("bob.os", testMessage("1:1"))
	q.Enqueue("bob.os", testMessage("2:2"))

	delivery := &scriptedDelivery{}
	s := NewSweeper(SweeperConfig{
		Log:             zaptest.NewLogger(t),
		Queue:           q,
		Delivery:        delivery,
		AttemptsPerPeer: 1,
	})

	s.Sweep(context.Background())

	if len(delivery.sent) != 1 {
		t.Fatalf("sent = %v, want exactly one attempt per pass", delivery.sent)
	}
	if got := q.PendingFor("bob.os"); got != 1 {
		t.Fatalf("PendingFor = %d, want 1", got)
	}
}

func TestFlushPeerDrainsBacklog(t *testing.T) {
	q := New(nil)
	q.Enqueue("bob.os", testMessage("1:1"))
	q.Enqueue("bob.os", testMessage("2:2"))
	q.Enqueue("bob.os", testMessage("3:3"))
	q.Enqueue("carol.os", testMessage("4:4"))

	delivery := &scriptedDelivery{}
	s := NewSweeper(SweeperConfig{
		Log:             zaptest.NewLogger(t),
		Queue:           q,
		Delivery:        delivery,
		AttemptsPerPeer: 1,
	})

	s.FlushPeer(context.Background(), "bob.os")

	if got := q.PendingFor("bob.os"); got != 0 {
		t.Fatalf("PendingFor(bob) = %d, want full drain", got)
	}
	// Flushing one peer leaves others untouched.
	if got := q.PendingFor("carol.os"); got != 1 {
		t.Fatalf("PendingFor(carol) = %d, want 1", got)
	}
}
