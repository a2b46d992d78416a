package session

import (
	"encoding/json"
	"testing"

	"github.com/hyperware-ai/chat/internal/chat"
)

func TestClientMessageUnitVariant(t *testing.T) {
	var msg ClientMessage
	if err := json.Unmarshal([]byte(`"Heartbeat"`), &msg); err != nil {
		t.Fatalf("unmarshal bare heartbeat: %v", err)
	}
	if !msg.Heartbeat {
		t.Fatalf("Heartbeat not set")
	}

	out, err := json.Marshal(ClientMessage{Heartbeat: true})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `"Heartbeat"` {
		t.Fatalf("encoded = %s, want bare string", out)
	}
}

func TestClientMessageTaggedVariants(t *testing.T) {
	raw := `{"SendMessage":{"chat_id":"alice.os:bob.os","content":"hi","reply_to":null}}`
	var msg ClientMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.SendMessage == nil || msg.SendMessage.ChatID != "alice.os:bob.os" {
		t.Fatalf("decoded = %+v", msg)
	}
	if msg.SendMessage.ReplyTo != nil {
		t.Fatalf("reply_to = %v, want nil", msg.SendMessage.ReplyTo)
	}

	raw = `{"AuthWithKey":{"chat_key":"abc123"}}`
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("unmarshal auth: %v", err)
	}
	if msg.AuthWithKey == nil || msg.AuthWithKey.ChatKey != "abc123" {
		t.Fatalf("decoded = %+v", msg)
	}
	if msg.SendMessage != nil {
		t.Fatalf("previous variant not cleared")
	}
}

func TestClientMessageRejectsUnknownVariant(t *testing.T) {
	var msg ClientMessage
	if err := json.Unmarshal([]byte(`{"Telepathy":{}}`), &msg); err == nil {
		t.Fatalf("expected rejection of unknown variant")
	}
	if err := json.Unmarshal([]byte(`"Hibernate"`), &msg); err == nil {
		t.Fatalf("expected rejection of unknown unit variant")
	}
}

func TestServerMessageEncoding(t *testing.T) {
	out, err := json.Marshal(ServerMessage{Heartbeat: true})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `"Heartbeat"` {
		t.Fatalf("heartbeat = %s", out)
	}

	out, err = json.Marshal(ServerMessage{MessageAck: &MessageAckPayload{MessageID: "1:1"}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"MessageAck":{"message_id":"1:1"}}` {
		t.Fatalf("ack = %s", out)
	}

	msg := chat.Message{ID: "1:1", Sender: "bob.os", Content: "hi", Timestamp: 1,
		Status: chat.StatusSent, Reactions: []chat.Reaction{}, MessageType: chat.TypeText}
	out, err = json.Marshal(ServerMessage{NewMessage: &msg})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var round ServerMessage
	if err := json.Unmarshal(out, &round); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if round.NewMessage == nil || round.NewMessage.ID != "1:1" {
		t.Fatalf("round-trip = %+v", round)
	}
}
