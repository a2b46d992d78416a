package session

import (
	"encoding/json"
	"fmt"

	"github.com/hyperware-ai/chat/internal/chat"
)

// Both WebSocket directions use externally tagged unions. Variants with
// fields encode as single-key objects, unit variants as bare strings
// ("Heartbeat").

// SendMessagePayload asks the node to send a message in one of its chats.
type SendMessagePayload struct {
	ChatID  string  `json:"chat_id"`
	Content string  `json:"content"`
	ReplyTo *string `json:"reply_to"`
}

// AckPayload confirms client-side receipt of a message.
type AckPayload struct {
	MessageID string `json:"message_id"`
}

// MarkReadPayload clears a chat's unread counter.
type MarkReadPayload struct {
	ChatID string `json:"chat_id"`
}

// UpdateStatusPayload reports the client's presence ("active"/"inactive").
type UpdateStatusPayload struct {
	Status string `json:"status"`
}

// AuthWithKeyPayload authenticates a browser guest with a capability key.
type AuthWithKeyPayload struct {
	ChatKey string `json:"chat_key"`
}

// BrowserMessagePayload carries a guest's outgoing message text.
type BrowserMessagePayload struct {
	Content string `json:"content"`
}

// ClientMessage is one inbound WebSocket frame. Exactly one field is set.
type ClientMessage struct {
	SendMessage    *SendMessagePayload
	Ack            *AckPayload
	MarkRead       *MarkReadPayload
	UpdateStatus   *UpdateStatusPayload
	AuthWithKey    *AuthWithKeyPayload
	BrowserMessage *BrowserMessagePayload
	Heartbeat      bool
}

func (m ClientMessage) MarshalJSON() ([]byte, error) {
	switch {
	case m.SendMessage != nil:
		return json.Marshal(map[string]*SendMessagePayload{"SendMessage": m.SendMessage})
	case m.Ack != nil:
		return json.Marshal(map[string]*AckPayload{"Ack": m.Ack})
	case m.MarkRead != nil:
		return json.Marshal(map[string]*MarkReadPayload{"MarkRead": m.MarkRead})
	case m.UpdateStatus != nil:
		return json.Marshal(map[string]*UpdateStatusPayload{"UpdateStatus": m.UpdateStatus})
	case m.AuthWithKey != nil:
		return json.Marshal(map[string]*AuthWithKeyPayload{"AuthWithKey": m.AuthWithKey})
	case m.BrowserMessage != nil:
		return json.Marshal(map[string]*BrowserMessagePayload{"BrowserMessage": m.BrowserMessage})
	case m.Heartbeat:
		return json.Marshal("Heartbeat")
	}
	return nil, fmt.Errorf("session: client message has no variant set")
}

func (m *ClientMessage) UnmarshalJSON(data []byte) error {
	*m = ClientMessage{}

	var unit string
	if err := json.Unmarshal(data, &unit); err == nil {
		if unit == "Heartbeat" {
			m.Heartbeat = true
			return nil
		}
		return fmt.Errorf("session: unknown client message %q", unit)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("session: decode client message: %w", err)
	}
	if len(envelope) != 1 {
		return fmt.Errorf("session: client message must carry exactly one variant, got %d", len(envelope))
	}

	for variant, payload := range envelope {
		var err error
		switch variant {
		case "SendMessage":
			m.SendMessage = &SendMessagePayload{}
			err = json.Unmarshal(payload, m.SendMessage)
		case "Ack":
			m.Ack = &AckPayload{}
			err = json.Unmarshal(payload, m.Ack)
		case "MarkRead":
			m.MarkRead = &MarkReadPayload{}
			err = json.Unmarshal(payload, m.MarkRead)
		case "UpdateStatus":
			m.UpdateStatus = &UpdateStatusPayload{}
			err = json.Unmarshal(payload, m.UpdateStatus)
		case "AuthWithKey":
			m.AuthWithKey = &AuthWithKeyPayload{}
			err = json.Unmarshal(payload, m.AuthWithKey)
		case "BrowserMessage":
			m.BrowserMessage = &BrowserMessagePayload{}
			err = json.Unmarshal(payload, m.BrowserMessage)
		default:
			return fmt.Errorf("session: unknown client message variant %q", variant)
		}
		if err != nil {
			return fmt.Errorf("session: decode %s: %w", variant, err)
		}
	}
	return nil
}

// MessageAckPayload confirms the node processed a client SendMessage, or
// reports remote delivery of one of the node's own messages.
type MessageAckPayload struct {
	MessageID string `json:"message_id"`
}

// StatusUpdatePayload announces a node's presence change.
type StatusUpdatePayload struct {
	Node   string `json:"node"`
	Status string `json:"status"`
}

// ProfileUpdatePayload announces a profile change.
type ProfileUpdatePayload struct {
	Node    string       `json:"node"`
	Profile chat.Profile `json:"profile"`
}

// AuthSuccessPayload completes a guest authentication.
type AuthSuccessPayload struct {
	ChatID  string         `json:"chat_id"`
	History []chat.Message `json:"history"`
}

// AuthFailedPayload rejects a guest authentication attempt.
type AuthFailedPayload struct {
	Reason string `json:"reason"`
}

// ErrorPayload reports a malformed or unprocessable client frame.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ServerMessage is one outbound WebSocket frame. Exactly one field is set.
type ServerMessage struct {
	NewMessage    *chat.Message
	MessageAck    *MessageAckPayload
	StatusUpdate  *StatusUpdatePayload
	ChatUpdate    *chat.Chat
	ProfileUpdate *ProfileUpdatePayload
	AuthSuccess   *AuthSuccessPayload
	AuthFailed    *AuthFailedPayload
	Heartbeat     bool
	Error         *ErrorPayload
}

func (m ServerMessage) MarshalJSON() ([]byte, error) {
	switch {
	case m.NewMessage != nil:
		return json.Marshal(map[string]*chat.Message{"NewMessage": m.NewMessage})
	case m.MessageAck != nil:
		return json.Marshal(map[string]*MessageAckPayload{"MessageAck": m.MessageAck})
	case m.StatusUpdate != nil:
		return json.Marshal(map[string]*StatusUpdatePayload{"StatusUpdate": m.StatusUpdate})
	case m.ChatUpdate != nil:
		return json.Marshal(map[string]*chat.Chat{"ChatUpdate": m.ChatUpdate})
	case m.ProfileUpdate != nil:
		return json.Marshal(map[string]*ProfileUpdatePayload{"ProfileUpdate": m.ProfileUpdate})
	case m.AuthSuccess != nil:
		return json.Marshal(map[string]*AuthSuccessPayload{"AuthSuccess": m.AuthSuccess})
	case m.AuthFailed != nil:
		return json.Marshal(map[string]*AuthFailedPayload{"AuthFailed": m.AuthFailed})
	case m.Heartbeat:
		return json.Marshal("Heartbeat")
	case m.Error != nil:
		return json.Marshal(map[string]*ErrorPayload{"Error": m.Error})
	}
	return nil, fmt.Errorf("session: server message has no variant set")
}

func (m *ServerMessage) UnmarshalJSON(data []byte) error {
	*m = ServerMessage{}

	var unit string
	if err := json.Unmarshal(data, &unit); err == nil {
		if unit == "Heartbeat" {
			m.Heartbeat = true
			return nil
		}
		return fmt.Errorf("session: unknown server message %q", unit)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("session: decode server message: %w", err)
	}
	if len(envelope) != 1 {
		return fmt.Errorf("session: server message must carry exactly one variant, got %d", len(envelope))
	}

	for variant, payload := range envelope {
		var err error
		switch variant {
		case "NewMessage":
			m.NewMessage = &chat.Message{}
			err = json.Unmarshal(payload, m.NewMessage)
		case "MessageAck":
			m.MessageAck = &MessageAckPayload{}
			err = json.Unmarshal(payload, m.MessageAck)
		case "StatusUpdate":
			m.StatusUpdate = &StatusUpdatePayload{}
			err = json.Unmarshal(payload, m.StatusUpdate)
		case "ChatUpdate":
			m.ChatUpdate = &chat.Chat{}
			err = json.Unmarshal(payload, m.ChatUpdate)
		case "ProfileUpdate":
			m.ProfileUpdate = &ProfileUpdatePayload{}
			err = json.Unmarshal(payload, m.ProfileUpdate)
		case "AuthSuccess":
			m.AuthSuccess = &AuthSuccessPayload{}
			err = json.Unmarshal(payload, m.AuthSuccess)
		case "AuthFailed":
			m.AuthFailed = &AuthFailedPayload{}
			err = json.Unmarshal(payload, m.AuthFailed)
		case "Error":
			m.Error = &ErrorPayload{}
			err = json.Unmarshal(payload, m.Error)
		default:
			return fmt.Errorf("session: unknown server message variant %q", variant)
		}
		if err != nil {
			return fmt.Errorf("session: decode %s: %w", variant, err)
		}
	}
	return nil
}
