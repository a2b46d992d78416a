package node

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperware-ai/chat/internal/chat"
)

// The methods below are the session hub's view of the service, plus the
// key, settings, and profile operations the local API exposes.

// ChatsSnapshot lists all chats for session replay.
func (s *Service) ChatsSnapshot() []chat.Chat {
	return s.store.Snapshot()
}

// ChatHistory returns one chat's messages, oldest first.
func (s *Service) ChatHistory(chatID string) []chat.Message {
	c, ok := s.store.Get(chatID)
	if !ok {
		return []chat.Message{}
	}
	return c.Messages
}

// ClientSend is the WebSocket path into the send pipeline.
func (s *Service) ClientSend(ctx context.Context, chatID, content string, replyTo *string) (chat.Message, error) {
	return s.SendMessage(ctx, chatID, content, replyTo)
}

// ConfirmDelivered marks a message Delivered after a client-side ack.
func (s *Service) ConfirmDelivered(messageID string) {
	if chatID, _, err := s.store.SetStatus(messageID, chat.StatusDelivered); err == nil {
		s.broadcastChat(chatID)
	}
}

// ResolveKey looks up a guest capability key.
func (s *Service) ResolveKey(token string) (chat.Key, error) {
	if s.keys == nil {
		return chat.Key{}, chat.ErrKeyNotFound
	}
	s.mu.RLock()
	allowed := s.settings.AllowBrowserChats
	s.mu.RUnlock()
	if !allowed {
		return chat.Key{}, chat.ErrKeyNotFound
	}
	return s.keys.Resolve(token)
}

// GuestSend appends a browser guest's message to its bound chat. Guests
// have no wire hop, so the message is Sent immediately.
func (s *Service) GuestSend(ctx context.Context, key chat.Key, content string) (chat.Message, error) {
	if strings.TrimSpace(content) == "" {
		return chat.Message{}, fmt.Errorf("node: empty message")
	}

	now := time.Now()
	s.store.Ensure(key.ChatID, key.UserName, now)

	msg := chat.Message{
		ID:          chat.NewMessageID(now),
		Sender:      key.UserName,
		Content:     content,
		Timestamp:   now.Unix(),
		Status:      chat.StatusSent,
		Reactions:   []chat.Reaction{},
		MessageType: chat.TypeText,
	}
	if err := s.store.AppendMessage(key.ChatID, msg); err != nil {
		return chat.Message{}, err
	}
	s.store.IncrementUnread(key.ChatID)

	s.fanout.BroadcastNewMessage(key.ChatID, msg)
	s.broadcastChat(key.ChatID)
	s.maybeNotify(key.ChatID, msg)
	return msg, nil
}

// CreateChatLink mints a capability key and returns the public join URL.
func (s *Service) CreateChatLink(ctx context.Context) (string, chat.Key, error) {
	if s.keys == nil {
		return "", chat.Key{}, fmt.Errorf("node: key registry not configured")
	}
	s.mu.RLock()
	allowed := s.settings.AllowBrowserChats
	s.mu.RUnlock()
	if !allowed {
		return "", chat.Key{}, fmt.Errorf("node: browser chats are disabled")
	}

	key, err := s.keys.Issue(ctx, time.Now())
	if err != nil {
		return "", chat.Key{}, err
	}

	c, created := s.store.Ensure(key.ChatID, key.UserName, time.Now())
	if created {
		s.fanout.BroadcastChatUpdate(c)
	}

	link := fmt.Sprintf("http://%s/public/join-%s", s.nodeID, key.Key)
	return link, key, nil
}

// ChatKeys lists the active (non-revoked) capability keys.
func (s *Service) ChatKeys() []chat.Key {
	if s.keys == nil {
		return []chat.Key{}
	}
	return s.keys.Active()
}

// RevokeChatKey permanently disables a capability key. Existing history
// stays; new guest authentications fail.
func (s *Service) RevokeChatKey(ctx context.Context, token string) error {
	if s.keys == nil {
		return chat.ErrKeyNotFound
	}
	return s.keys.Revoke(ctx, token)
}

// Settings returns the node's current preferences.
func (s *Service) Settings() chat.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings replaces the node's preferences wholesale.
func (s *Service) UpdateSettings(settings chat.Settings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
}

// Profile returns the local display identity.
func (s *Service) Profile() chat.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// UpdateProfile replaces the profile and announces the change.
func (s *Service) UpdateProfile(profile chat.Profile) {
	s.mu.Lock()
	s.profile = profile
	s.mu.Unlock()
	s.fanout.BroadcastProfile(s.nodeID, profile)
}

// UploadProfilePicture stores an image as the profile picture data URL
// and returns it.
func (s *Service) UploadProfilePicture(mimeType, imageB64 string) (string, error) {
	if !strings.HasPrefix(mimeType, "image/") {
		return "", fmt.Errorf("node: invalid image type %q", mimeType)
	}

	dataURL := "data:" + mimeType + ";base64," + imageB64
	s.mu.Lock()
	s.profile.ProfilePic = dataURL
	profile := s.profile
	s.mu.Unlock()

	s.fanout.BroadcastProfile(s.nodeID, profile)
	return dataURL, nil
}
