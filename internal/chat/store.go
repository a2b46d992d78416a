package chat

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
)

// WelcomeChatID is the locally seeded system chat shown on first run.
const WelcomeChatID = "system:welcome"

// Store is the canonical in-memory source of truth for chats and their
// message history. All reads return clones; callers never share slices
// with the store.
type Store struct {
	log   *zap.Logger
	mu    sync.RWMutex
	chats map[string]*Chat
}

// NewStore builds an empty chat store.
func NewStore(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		log:   log,
		chats: make(map[string]*Chat),
	}
}

// SeedWelcome inserts the welcome chat when the store is empty.
func (s *Store) SeedWelcome(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.chats) > 0 {
		return
	}
	ts := now.Unix()
	s.chats[WelcomeChatID] = &Chat{
		ID:           WelcomeChatID,
		Counterparty: "System",
		Messages: []Message{{
			ID:          NewMessageID(now),
			Sender:      "System",
			Content:     "Welcome to Chat! You can create new chats by clicking the + button.",
			Timestamp:   ts,
			Status:      StatusDelivered,
			Reactions:   []Reaction{},
			MessageType: TypeText,
		}},
		LastActivity: ts,
	}
}

// Ensure returns the chat with the given id, creating it if absent.
// The returned flag reports whether a new record was created. Creation
// is idempotent by construction: both peers derive the same id.
func (s *Store) Ensure(chatID, counterparty string, now time.Time) (Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.chats[chatID]; ok {
		return cloneChat(existing), false
	}
	c := &Chat{
		ID:           chatID,
		Counterparty: counterparty,
		Messages:     []Message{},
		LastActivity: now.Unix(),
		Notify:       true,
	}
	s.chats[chatID] = c
	return cloneChat(c), true
}

// Get fetches a chat by id.
func (s *Store) Get(chatID string) (Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[chatID]
	if !ok {
		return Chat{}, false
	}
	return cloneChat(c), true
}

// Snapshot returns all chats ordered by most recent activity first.
func (s *Store) Snapshot() []Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Chat, 0, len(s.chats))
	for _, c := range s.chats {
		out = append(out, cloneChat(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity > out[j].LastActivity })
	return out
}

// Delete removes a chat locally. Deletion is never propagated to the
// counterparty.
func (s *Store) Delete(chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[chatID]; !ok {
		return ErrChatNotFound
	}
	delete(s.chats, chatID)
	return nil
}

// AppendMessage appends to a chat's history and bumps lastActivity.
// Callers must not resend already-delivered ids; the store does not
// dedup on insert.
func (s *Store) AppendMessage(chatID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok {
		return ErrChatNotFound
	}
	if msg.Reactions == nil {
		msg.Reactions = []Reaction{}
	}
	c.Messages = append(c.Messages, msg)
	if msg.Timestamp > c.LastActivity {
		c.LastActivity = msg.Timestamp
	}
	return nil
}

// IncrementUnread bumps the unread counter after an inbound receipt.
func (s *Store) IncrementUnread(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.chats[chatID]; ok {
		c.UnreadCount++
	}
}

// MarkRead resets the unread counter to zero.
func (s *Store) MarkRead(chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok {
		return ErrChatNotFound
	}
	c.UnreadCount = 0
	return nil
}

// SetStatus applies a status transition to the message with the given id,
// wherever it lives. The effective status is computed by Transition, so
// terminal states never regress; illegal requests are logged and retained.
// Returns the owning chat id and the effective status.
func (s *Store) SetStatus(messageID string, requested Status) (string, Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.chats {
		for i := range c.Messages {
			if c.Messages[i].ID != messageID {
				continue
			}
			effective := Transition(c.Messages[i].Status, requested)
			if effective != requested {
				s.log.Warn("illegal status transition ignored",
					zap.String("message_id", messageID),
					zap.String("current", string(c.Messages[i].Status)),
					zap.String("requested", string(requested)))
			}
			c.Messages[i].Status = effective
			return id, effective, nil
		}
	}
	return "", "", ErrMessageNotFound
}

// AdvanceOutgoing applies a status transition only when the message was
// sent by the given sender. Peer acks go through here so a node cannot
// ack someone else's message.
func (s *Store) AdvanceOutgoing(messageID, sender string, requested Status) (string, Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.chats {
		for i := range c.Messages {
			if c.Messages[i].ID != messageID || c.Messages[i].Sender != sender {
				continue
			}
			effective := Transition(c.Messages[i].Status, requested)
			if effective != requested {
				s.log.Warn("illegal status transition ignored",
					zap.String("message_id", messageID),
					zap.String("current", string(c.Messages[i].Status)),
					zap.String("requested", string(requested)))
			}
			c.Messages[i].Status = effective
			return id, effective, nil
		}
	}
	return "", "", ErrMessageNotFound
}

// FindMessage locates a message by id across all chats.
func (s *Store) FindMessage(messageID string) (Message, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, c := range s.chats {
		for i := range c.Messages {
			if c.Messages[i].ID == messageID {
				return cloneMessage(&c.Messages[i]), id, true
			}
		}
	}
	return Message{}, "", false
}

// AddReaction records a reaction, enforcing at most one per (user, emoji)
// pair. Returns the owning chat id and whether the reaction was new.
func (s *Store) AddReaction(messageID string, reaction Reaction) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.chats {
		for i := range c.Messages {
			if c.Messages[i].ID != messageID {
				continue
			}
			if c.Messages[i].HasReaction(reaction.User, reaction.Emoji) {
				return id, false, nil
			}
			c.Messages[i].Reactions = append(c.Messages[i].Reactions, reaction)
			return id, true, nil
		}
	}
	return "", false, ErrMessageNotFound
}

// RemoveReaction deletes a (user, emoji) reaction when present.
func (s *Store) RemoveReaction(messageID, user, emoji string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.chats {
		for i := range c.Messages {
			if c.Messages[i].ID != messageID {
				continue
			}
			for j, r := range c.Messages[i].Reactions {
				if r.User == user && r.Emoji == emoji {
					c.Messages[i].Reactions = append(c.Messages[i].Reactions[:j], c.Messages[i].Reactions[j+1:]...)
					return id, nil
				}
			}
			return id, ErrMessageNotFound
		}
	}
	return "", ErrMessageNotFound
}

// RemoveMessage deletes a message by id from whichever chat holds it.
func (s *Store) RemoveMessage(messageID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.chats {
		for i := range c.Messages {
			if c.Messages[i].ID == messageID {
				c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
				return id, nil
			}
		}
	}
	return "", ErrMessageNotFound
}

// RemoveMessageInChat deletes a message scoped to a specific chat.
// Absence is not an error for peer-initiated deletions, so the caller
// decides how to treat ErrMessageNotFound.
func (s *Store) RemoveMessageInChat(chatID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok {
		return ErrChatNotFound
	}
	for i := range c.Messages {
		if c.Messages[i].ID == messageID {
			c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
			return nil
		}
	}
	return ErrMessageNotFound
}

// EditContent rewrites a message body. Edits are local-only and never
// synchronized with the counterparty.
func (s *Store) EditContent(messageID, newContent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.chats {
		for i := range c.Messages {
			if c.Messages[i].ID == messageID {
				c.Messages[i].Content = newContent
				return nil
			}
		}
	}
	return ErrMessageNotFound
}

// SetFileURL swaps a message's file location, typically replacing an
// in-flight data URL with a persisted blob path.
func (s *Store) SetFileURL(chatID, messageID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok {
		return ErrChatNotFound
	}
	for i := range c.Messages {
		if c.Messages[i].ID == messageID && c.Messages[i].FileInfo != nil {
			c.Messages[i].FileInfo.URL = url
			return nil
		}
	}
	return ErrMessageNotFound
}

// Search returns chats whose counterparty or message content matches the
// query, case-insensitively.
func (s *Store) Search(query string) []Chat {
	q := strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Chat
	for _, c := range s.chats {
		if strings.Contains(strings.ToLower(c.Counterparty), q) {
			out = append(out, cloneChat(c))
			continue
		}
		for i := range c.Messages {
			if strings.Contains(strings.ToLower(c.Messages[i].Content), q) {
				out = append(out, cloneChat(c))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity > out[j].LastActivity })
	return out
}

// Len reports the number of chats.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chats)
}

func cloneChat(in *Chat) Chat {
	cp := *in
	cp.Messages = make([]Message, len(in.Messages))
	for i := range in.Messages {
		cp.Messages[i] = cloneMessage(&in.Messages[i])
	}
	return cp
}

func cloneMessage(in *Message) Message {
	cp := *in
	cp.Reactions = append([]Reaction(nil), in.Reactions...)
	if cp.Reactions == nil {
		cp.Reactions = []Reaction{}
	}
	if in.FileInfo != nil {
		fi := *in.FileInfo
		cp.FileInfo = &fi
	}
	return cp
}
