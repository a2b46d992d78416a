package chat

import (
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func testMessage(id, sender string, ts int64) Message {
	return Message{
		ID:          id,
		Sender:      sender,
		Content:     "hello",
		Timestamp:   ts,
		Status:      StatusSending,
		Reactions:   []Reaction{},
		MessageType: TypeText,
	}
}

func TestStoreEnsureIsIdempotent(t *testing.T) {
	store := NewStore(zaptest.NewLogger(t))
	now := time.Now()
	id := NormalizeChatID("alice.os", "bob.os")

	_, created := store.Ensure(id, "bob.os", now)
	if !created {
		t.Fatalf("expected first ensure to create the chat")
	}
	_, created = store.Ensure(id, "bob.os", now)
	if created {
		t.Fatalf("expected second ensure to be a no-op")
	}
	if store.Len() != 1 {
		t.Fatalf("expected exactly one chat, got %d", store.Len())
	}
}

func TestStoreAppendAndStatus(t *testing.T) {
	store := NewStore(zaptest.NewLogger(t))
	now := time.Now()
	id := NormalizeChatID("alice.os", "bob.os")
	store.Ensure(id, "bob.os", now)

	msg := testMessage("1:42", "alice.os", now.Unix())
	if err := store.AppendMessage(id, msg); err != nil {
		t.Fatalf("append message: %v", err)
	}

	chatID, effective, err := store.SetStatus("1:42", StatusSent)
	if err != nil || chatID != id || effective != StatusSent {
		t.Fatalf("SetStatus = (%s, %s, %v)", chatID, effective, err)
	}

	// A late Failed after Delivered must not regress.
	if _, effective, _ = store.SetStatus("1:42", StatusDelivered); effective != StatusDelivered {
		t.Fatalf("expected Delivered, got %s", effective)
	}
	if _, effective, _ = store.SetStatus("1:42", StatusFailed); effective != StatusDelivered {
		t.Fatalf("terminal status regressed to %s", effective)
	}
}

func TestStoreAdvanceOutgoingChecksSender(t *testing.T) {
	store := NewStore(zaptest.NewLogger(t))
	now := time.Now()
	id := NormalizeChatID("alice.os", "bob.os")
	store.Ensure(id, "bob.os", now)
	store.AppendMessage(id, testMessage("1:7", "alice.os", now.Unix()))

	if _, _, err := store.AdvanceOutgoing("1:7", "bob.os", StatusDelivered); err != ErrMessageNotFound {
		t.Fatalf("expected not-found for foreign sender, got %v", err)
	}
	if msg, _, ok := store.FindMessage("1:7"); !ok || msg.Status != StatusSending {
		t.Fatalf("state mutated by rejected ack: %+v", msg)
	}

	if _, effective, err := store.AdvanceOutgoing("1:7", "alice.os", StatusDelivered); err != nil || effective != StatusDelivered {
		t.Fatalf("own ack failed: %s, %v", effective, err)
	}
}

func TestStoreReactionUniqueness(t *testing.T) {
	store := NewStore(zaptest.NewLogger(t))
	now := time.Now()
	id := NormalizeChatID("alice.os", "bob.os")
	store.Ensure(id, "bob.os", now)
	store.AppendMessage(id, testMessage("1:1", "alice.os", now.Unix()))

	r := Reaction{Emoji: "👍", User: "bob.os", Timestamp: now.Unix()}
	if _, added, err := store.AddReaction("1:1", r); err != nil || !added {
		t.Fatalf("first reaction rejected: added=%v err=%v", added, err)
	}
	if _, added, err := store.AddReaction("1:1", r); err != nil || added {
		t.Fatalf("duplicate reaction accepted: added=%v err=%v", added, err)
	}

	msg, _, _ := store.FindMessage("1:1")
	if len(msg.Reactions) != 1 {
		t.Fatalf("expected exactly one reaction, got %d", len(msg.Reactions))
	}

	if _, err := store.RemoveReaction("1:1", "bob.os", "👍"); err != nil {
		t.Fatalf("remove reaction: %v", err)
	}
	msg, _, _ = store.FindMessage("1:1")
	if len(msg.Reactions) != 0 {
		t.Fatalf("expected no reactions after removal, got %d", len(msg.Reactions))
	}
}

func TestStoreUnreadAndMarkRead(t *testing.T) {
	store := NewStore(zaptest.NewLogger(t))
	now := time.Now()
	id := NormalizeChatID("alice.os", "bob.os")
	store.Ensure(id, "bob.os", now)

	store.IncrementUnread(id)
	store.IncrementUnread(id)
	c, _ := store.Get(id)
	if c.UnreadCount != 2 {
		t.Fatalf("expected unread 2, got %d", c.UnreadCount)
	}
	if err := store.MarkRead(id); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	c, _ = store.Get(id)
	if c.UnreadCount != 0 {
		t.Fatalf("expected unread reset, got %d", c.UnreadCount)
	}
}

func TestStoreSnapshotOrdersByActivity(t *testing.T) {
	store := NewStore(zaptest.NewLogger(t))
	now := time.Now()
	a := NormalizeChatID("alice.os", "bob.os")
	b := NormalizeChatID("alice.os", "carol.os")
	store.Ensure(a, "bob.os", now)
	store.Ensure(b, "carol.os", now)

	store.AppendMessage(a, testMessage("1:1", "alice.os", now.Unix()+10))
	store.AppendMessage(b, testMessage("1:2", "alice.os", now.Unix()+1))

	chats := store.Snapshot()
	if len(chats) != 2 || chats[0].ID != a {
		t.Fatalf("expected %s first, got %+v", a, chats)
	}
}

func TestStoreSnapshotReturnsClones(t *testing.T) {
	store := NewStore(zaptest.NewLogger(t))
	now := time.Now()
	id := NormalizeChatID("alice.os", "bob.os")
	store.Ensure(id, "bob.os", now)
	store.AppendMessage(id, testMessage("1:1", "alice.os", now.Unix()))

	snap := store.Snapshot()
	snap[0].Messages[0].Content = "mutated"

	c, _ := store.Get(id)
	if c.Messages[0].Content != "hello" {
		t.Fatalf("store state leaked through snapshot")
	}
}

func TestStoreSearch(t *testing.T) {
	store := NewStore(zaptest.NewLogger(t))
	now := time.Now()
	id := NormalizeChatID("alice.os", "bob.os")
	store.Ensure(id, "bob.os", now)
	msg := testMessage("1:1", "alice.os", now.Unix())
	msg.Content = "the Quick brown fox"
	store.AppendMessage(id, msg)

	if got := store.Search("quick"); len(got) != 1 {
		t.Fatalf("expected content match, got %d chats", len(got))
	}
	if got := store.Search("BOB"); len(got) != 1 {
		t.Fatalf("expected counterparty match, got %d chats", len(got))
	}
	if got := store.Search("nothing-here"); len(got) != 0 {
		t.Fatalf("expected no match, got %d chats", len(got))
	}
}

func TestStoreSeedWelcomeOnlyWhenEmpty(t *testing.T) {
	store := NewStore(zaptest.NewLogger(t))
	store.SeedWelcome(time.Now())
	if _, ok := store.Get(WelcomeChatID); !ok {
		t.Fatalf("expected welcome chat to be seeded")
	}
	store.SeedWelcome(time.Now())
	if store.Len() != 1 {
		t.Fatalf("welcome chat duplicated")
	}

	populated := NewStore(zaptest.NewLogger(t))
	populated.Ensure("alice.os:bob.os", "bob.os", time.Now())
	populated.SeedWelcome(time.Now())
	if _, ok := populated.Get(WelcomeChatID); ok {
		t.Fatalf("welcome chat seeded into non-empty store")
	}
}
