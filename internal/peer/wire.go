package peer

import (
	"encoding/json"
	"fmt"

	"github.com/hyperware-ai/chat/internal/chat"
)

// The peer wire is a closed, externally tagged union: every request body
// is a single-key JSON object whose key names the operation. Unit-like
// payloads (a node name, a message id) are encoded as bare strings, the
// rest as objects.

// ReactionOp propagates a reaction change to the counterparty's copy of
// a message.
type ReactionOp struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
	User      string `json:"user"`
	Remove    bool   `json:"remove,omitempty"`
}

// DeletionOp propagates a message removal.
type DeletionOp struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
}

// Request is one peer operation. Exactly one field is set.
type Request struct {
	ChatCreation *string       `json:"-"`
	Message      *chat.Message `json:"-"`
	Ack          *string       `json:"-"`
	Reaction     *ReactionOp   `json:"-"`
	Deletion     *DeletionOp   `json:"-"`
}

// Op names the set operation, or "" when none is set.
func (r Request) Op() string {
	switch {
	case r.ChatCreation != nil:
		return "ReceiveChatCreation"
	case r.Message != nil:
		return "ReceiveMessage"
	case r.Ack != nil:
		return "MessageAck"
	case r.Reaction != nil:
		return "ReceiveReaction"
	case r.Deletion != nil:
		return "ReceiveDeletion"
	}
	return ""
}

func (r Request) MarshalJSON() ([]byte, error) {
	switch {
	case r.ChatCreation != nil:
		return json.Marshal(map[string]string{"ReceiveChatCreation": *r.ChatCreation})
	case r.Message != nil:
		return json.Marshal(map[string]*chat.Message{"ReceiveMessage": r.Message})
	case r.Ack != nil:
		return json.Marshal(map[string]string{"MessageAck": *r.Ack})
	case r.Reaction != nil:
		return json.Marshal(map[string]*ReactionOp{"ReceiveReaction": r.Reaction})
	case r.Deletion != nil:
		return json.Marshal(map[string]*DeletionOp{"ReceiveDeletion": r.Deletion})
	}
	return nil, fmt.Errorf("peer: request has no operation set")
}

func (r *Request) UnmarshalJSON(data []byte) error {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("peer: decode request envelope: %w", err)
	}
	if len(envelope) != 1 {
		return fmt.Errorf("peer: request must carry exactly one operation, got %d", len(envelope))
	}

	*r = Request{}
	for op, payload := range envelope {
		switch op {
		case "ReceiveChatCreation":
			var node string
			if err := json.Unmarshal(payload, &node); err != nil {
				return fmt.Errorf("peer: decode ReceiveChatCreation: %w", err)
			}
			r.ChatCreation = &node
		case "ReceiveMessage":
			var msg chat.Message
			if err := json.Unmarshal(payload, &msg); err != nil {
				return fmt.Errorf("peer: decode ReceiveMessage: %w", err)
			}
			r.Message = &msg
		case "MessageAck":
			var id string
			if err := json.Unmarshal(payload, &id); err != nil {
				return fmt.Errorf("peer: decode MessageAck: %w", err)
			}
			r.Ack = &id
		case "ReceiveReaction":
			var reaction ReactionOp
			if err := json.Unmarshal(payload, &reaction); err != nil {
				return fmt.Errorf("peer: decode ReceiveReaction: %w", err)
			}
			r.Reaction = &reaction
		case "ReceiveDeletion":
			var deletion DeletionOp
			if err := json.Unmarshal(payload, &deletion); err != nil {
				return fmt.Errorf("peer: decode ReceiveDeletion: %w", err)
			}
			r.Deletion = &deletion
		default:
			return fmt.Errorf("peer: unrecognized operation %q", op)
		}
	}
	return nil
}

// Response mirrors a Result on the wire: {"Ok":null} or {"Err":"reason"}.
type Response struct {
	Err *string `json:"Err,omitempty"`
	ok  bool
}

// OkResponse is the success body for every peer operation.
func OkResponse() Response {
	return Response{ok: true}
}

// ErrResponse wraps a failure reason.
func ErrResponse(reason string) Response {
	return Response{Err: &reason}
}

func (r Response) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(map[string]string{"Err": *r.Err})
	}
	return []byte(`{"Ok":null}`), nil
}

func (r *Response) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Ok  json.RawMessage `json:"Ok"`
		Err *string         `json:"Err"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("peer: decode response: %w", err)
	}
	r.Err = envelope.Err
	r.ok = envelope.Err == nil
	return nil
}
