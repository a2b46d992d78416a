package peer

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperware-ai/chat/internal/chat"
)

func TestRequestTaggedEncoding(t *testing.T) {
	node := "alice.os"
	ack := "1700000000:42"

	cases := []struct {
		name string
		req  Request
		want string
	}{
		{
			name: "chat creation carries bare node name",
			req:  Request{ChatCreation: &node},
			want: `{"ReceiveChatCreation":"alice.os"}`,
		},
		{
			name: "ack carries bare message id",
			req:  Request{Ack: &ack},
			want: `{"MessageAck":"1700000000:42"}`,
		},
		{
			name: "deletion payload uses snake_case fields",
			req:  Request{Deletion: &DeletionOp{ChatID: "alice.os:bob.os", MessageID: "1:1"}},
			want: `{"ReceiveDeletion":{"chat_id":"alice.os:bob.os","message_id":"1:1"}}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := json.Marshal(tc.req)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(got) != tc.want {
				t.Fatalf("encoded = %s, want %s", got, tc.want)
			}

			var round Request
			if err := json.Unmarshal(got, &round); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if round.Op() != tc.req.Op() {
				t.Fatalf("round-trip op = %q, want %q", round.Op(), tc.req.Op())
			}
		})
	}
}

func TestRequestMessagePayloadCamelCase(t *testing.T) {
	msg := chat.Message{
		ID:          "1700000000:7",
		Sender:      "alice.os",
		Content:     "hi",
		Timestamp:   1700000000,
		Status:      chat.StatusSent,
		MessageType: chat.TypeText,
	}

	raw, err := json.Marshal(Request{Message: &msg})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, field := range []string{`"messageType"`, `"timestamp"`} {
		if !strings.Contains(string(raw), field) {
			t.Fatalf("encoded message missing %s: %s", field, raw)
		}
	}
}

func TestRequestRejectsUnknownOp(t *testing.T) {
	var req Request
	err := json.Unmarshal([]byte(`{"SelfDestruct":true}`), &req)
	if err == nil || !strings.Contains(err.Error(), "unrecognized operation") {
		t.Fatalf("err = %v, want unrecognized operation", err)
	}
}

func TestRequestRejectsMultipleOps(t *testing.T) {
	var req Request
	err := json.Unmarshal([]byte(`{"MessageAck":"1:1","ReceiveChatCreation":"x"}`), &req)
	if err == nil {
		t.Fatalf("expected rejection of multi-key envelope")
	}
}

func TestResponseEncoding(t *testing.T) {
	ok, err := json.Marshal(OkResponse())
	if err != nil {
		t.Fatalf("marshal ok: %v", err)
	}
	if string(ok) != `{"Ok":null}` {
		t.Fatalf("ok body = %s", ok)
	}

	fail, err := json.Marshal(ErrResponse("chat not found"))
	if err != nil {
		t.Fatalf("marshal err: %v", err)
	}
	if string(fail) != `{"Err":"chat not found"}` {
		t.Fatalf("err body = %s", fail)
	}

	var decoded Response
	if err := json.Unmarshal(fail, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Err == nil || *decoded.Err != "chat not found" {
		t.Fatalf("decoded err = %v", decoded.Err)
	}
}
