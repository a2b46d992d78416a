package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperware-ai/chat/internal/chat"
)

// Kind is the classification of a connected session. Connections start
// Unclassified; the first inbound frame decides which side of the
// protocol they speak.
type Kind int

const (
	Unclassified Kind = iota
	NodeSession
	GuestSession
)

func (k Kind) String() string {
	switch k {
	case NodeSession:
		return "node"
	case GuestSession:
		return "guest"
	}
	return "unclassified"
}

// Backend is the service surface the hub drives on behalf of connected
// clients.
type Backend interface {
	NodeID() string
	ChatsSnapshot() []chat.Chat
	ChatHistory(chatID string) []chat.Message
	ClientSend(ctx context.Context, chatID, content string, replyTo *string) (chat.Message, error)
	ConfirmDelivered(messageID string)
	MarkRead(chatID string) error
	ResolveKey(token string) (chat.Key, error)
	GuestSend(ctx context.Context, key chat.Key, content string) (chat.Message, error)
}

// Session is one WebSocket connection's state.
type Session struct {
	ID string

	mu       sync.Mutex
	kind     Kind
	boundKey chat.Key
	active   bool
	closed   bool

	send chan []byte
}

// Kind returns the session's current classification.
func (s *Session) Kind() Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind
}

// Active reports whether the client considers itself in the foreground.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// BoundChatID returns the guest session's chat, or "" for other kinds.
func (s *Session) BoundChatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kind != GuestSession {
		return ""
	}
	return s.boundKey.ChatID
}

// Hub owns all WebSocket sessions and routes frames in both directions.
type Hub struct {
	log     *zap.Logger
	backend Backend
	metrics *Metrics

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewHub builds a hub bound to the given backend.
func NewHub(log *zap.Logger, backend Backend, metrics *Metrics) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:      log,
		backend:  backend,
		metrics:  metrics,
		sessions: make(map[string]*Session),
	}
}

// Register creates a session for a freshly upgraded connection.
func (h *Hub) Register() *Session {
	s := &Session{
		ID:   uuid.NewString(),
		send: make(chan []byte, sendBufferSize),
	}

	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()

	h.metrics.sessionDelta(Unclassified.String(), 1)
	h.log.Info("session connected", zap.String("session_id", s.ID))
	return s
}

// Drop removes a session after its connection closed. Node sessions
// broadcast an offline status; guest sessions release their key binding.
func (h *Hub) Drop(s *Session) {
	h.mu.Lock()
	_, present := h.sessions[s.ID]
	delete(h.sessions, s.ID)
	h.mu.Unlock()
	if !present {
		return
	}

	// Mark closed under the session lock so a concurrent push either
	// sees the flag or finishes its send before the channel closes.
	s.mu.Lock()
	kind := s.kind
	s.closed = true
	s.mu.Unlock()
	close(s.send)

	h.metrics.sessionDelta(kind.String(), -1)
	h.log.Info("session closed",
		zap.String("session_id", s.ID),
		zap.String("kind", kind.String()))

	if kind == NodeSession {
		h.BroadcastStatus(h.backend.NodeID(), "offline")
	}
}

// HandleFrame processes one inbound text frame.
func (h *Hub) HandleFrame(ctx context.Context, s *Session, data []byte) {
	var msg ClientMessage
	if err := msg.UnmarshalJSON(data); err != nil {
		h.log.Debug("malformed session frame",
			zap.String("session_id", s.ID),
			zap.Error(err))
		h.push(s, ServerMessage{Error: &ErrorPayload{Message: "Invalid message format: " + err.Error()}})
		return
	}

	if msg.AuthWithKey != nil {
		h.handleGuestAuth(s, msg.AuthWithKey.ChatKey)
		return
	}

	switch s.Kind() {
	case Unclassified:
		h.classifyNode(s)
		h.handleNodeFrame(ctx, s, msg)
	case NodeSession:
		h.handleNodeFrame(ctx, s, msg)
	case GuestSession:
		h.handleGuestFrame(ctx, s, msg)
	}
}

// classifyNode promotes a session to NodeSession and replays the chat
// list, one ChatUpdate per chat.
func (h *Hub) classifyNode(s *Session) {
	s.mu.Lock()
	s.kind = NodeSession
	s.active = true
	s.mu.Unlock()

	h.metrics.sessionDelta(Unclassified.String(), -1)
	h.metrics.sessionDelta(NodeSession.String(), 1)
	h.log.Info("session classified", zap.String("session_id", s.ID), zap.String("kind", "node"))

	for _, c := range h.backend.ChatsSnapshot() {
		update := c
		h.push(s, ServerMessage{ChatUpdate: &update})
	}
}

func (h *Hub) handleNodeFrame(ctx context.Context, s *Session, msg ClientMessage) {
	switch {
	case msg.SendMessage != nil:
		sent, err := h.backend.ClientSend(ctx, msg.SendMessage.ChatID, msg.SendMessage.Content, msg.SendMessage.ReplyTo)
		if err != nil {
			h.push(s, ServerMessage{Error: &ErrorPayload{Message: err.Error()}})
			return
		}
		h.push(s, ServerMessage{MessageAck: &MessageAckPayload{MessageID: sent.ID}})
	case msg.Ack != nil:
		h.backend.ConfirmDelivered(msg.Ack.MessageID)
	case msg.MarkRead != nil:
		if err := h.backend.MarkRead(msg.MarkRead.ChatID); err != nil {
			h.push(s, ServerMessage{Error: &ErrorPayload{Message: err.Error()}})
		}
	case msg.UpdateStatus != nil:
		s.mu.Lock()
		s.active = msg.UpdateStatus.Status == "active"
		s.mu.Unlock()
		h.BroadcastStatus(h.backend.NodeID(), msg.UpdateStatus.Status)
	case msg.Heartbeat:
		h.push(s, ServerMessage{Heartbeat: true})
	case msg.BrowserMessage != nil:
		h.push(s, ServerMessage{Error: &ErrorPayload{Message: "browser messages require key authentication"}})
	}
}

func (h *Hub) handleGuestFrame(ctx context.Context, s *Session, msg ClientMessage) {
	switch {
	case msg.BrowserMessage != nil:
		s.mu.Lock()
		key := s.boundKey
		s.mu.Unlock()
		if _, err := h.backend.GuestSend(ctx, key, msg.BrowserMessage.Content); err != nil {
			h.push(s, ServerMessage{Error: &ErrorPayload{Message: err.Error()}})
		}
	case msg.Heartbeat:
		h.push(s, ServerMessage{Heartbeat: true})
	default:
		// Node-side ops from a guest are silently ignored.
		h.log.Debug("guest frame ignored", zap.String("session_id", s.ID))
	}
}

// handleGuestAuth validates a capability key. The connection stays open
// on failure so the guest can retry with another key.
func (h *Hub) handleGuestAuth(s *Session, token string) {
	if s.Kind() == NodeSession {
		h.push(s, ServerMessage{Error: &ErrorPayload{Message: "already authenticated as node"}})
		return
	}

	key, err := h.backend.ResolveKey(token)
	if err != nil {
		h.metrics.recordAuthFailure()
		reason := "Invalid chat key"
		if errors.Is(err, chat.ErrKeyRevoked) {
			reason = "Chat key has been revoked"
		}
		h.log.Info("guest auth rejected",
			zap.String("session_id", s.ID),
			zap.String("reason", reason))
		h.push(s, ServerMessage{AuthFailed: &AuthFailedPayload{Reason: reason}})
		return
	}

	s.mu.Lock()
	prev := s.kind
	s.kind = GuestSession
	s.boundKey = key
	s.active = true
	s.mu.Unlock()

	if prev != GuestSession {
		h.metrics.sessionDelta(prev.String(), -1)
		h.metrics.sessionDelta(GuestSession.String(), 1)
	}
	h.log.Info("session classified",
		zap.String("session_id", s.ID),
		zap.String("kind", "guest"),
		zap.String("chat_id", key.ChatID))

	h.push(s, ServerMessage{AuthSuccess: &AuthSuccessPayload{
		ChatID:  key.ChatID,
		History: h.backend.ChatHistory(key.ChatID),
	}})
}

// BroadcastNewMessage fans a message out to every node session and to
// guests bound to its chat.
func (h *Hub) BroadcastNewMessage(chatID string, msg chat.Message) {
	h.broadcast(chatID, ServerMessage{NewMessage: &msg})
}

// BroadcastChatUpdate fans a fresh chat snapshot out.
func (h *Hub) BroadcastChatUpdate(c chat.Chat) {
	h.broadcast(c.ID, ServerMessage{ChatUpdate: &c})
}

// BroadcastAck tells node sessions a message reached its counterparty.
func (h *Hub) BroadcastAck(messageID string) {
	h.broadcast("", ServerMessage{MessageAck: &MessageAckPayload{MessageID: messageID}})
}

// BroadcastStatus announces a presence change to node sessions.
func (h *Hub) BroadcastStatus(node, status string) {
	h.broadcast("", ServerMessage{StatusUpdate: &StatusUpdatePayload{Node: node, Status: status}})
}

// BroadcastProfile announces a profile change to node sessions.
func (h *Hub) BroadcastProfile(node string, profile chat.Profile) {
	h.broadcast("", ServerMessage{ProfileUpdate: &ProfileUpdatePayload{Node: node, Profile: profile}})
}

// AnyActive reports whether any session currently has the app in the
// foreground. Push notifications are suppressed while one does.
func (h *Hub) AnyActive() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.sessions {
		if s.Kind() != Unclassified && s.Active() {
			return true
		}
	}
	return false
}

// broadcast pushes a frame to every node session, plus guest sessions
// bound to chatID when one is given.
func (h *Hub) broadcast(chatID string, msg ServerMessage) {
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		switch s.Kind() {
		case NodeSession:
			targets = append(targets, s)
		case GuestSession:
			if chatID != "" && s.BoundChatID() == chatID {
				targets = append(targets, s)
			}
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		h.push(s, msg)
	}
}

// push encodes and queues a frame without blocking. Slow consumers lose
// frames rather than stalling the caller.
func (h *Hub) push(s *Session, msg ServerMessage) {
	data, err := msg.MarshalJSON()
	if err != nil {
		h.log.Error("encode server frame", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		h.metrics.recordDrop()
		return
	}

	select {
	case s.send <- data:
		h.metrics.recordFanout()
	default:
		h.metrics.recordDrop()
		h.log.Warn("session buffer full, frame dropped", zap.String("session_id", s.ID))
	}
}
