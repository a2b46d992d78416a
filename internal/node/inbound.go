package node

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperware-ai/chat/internal/blob"
	"github.com/hyperware-ai/chat/internal/chat"
	"github.com/hyperware-ai/chat/internal/notify"
	"github.com/hyperware-ai/chat/internal/peer"
)

// HandleChatCreation registers a chat announced by a counterparty. Both
// peers derive the same chat id, so a crossed announce is idempotent.
// An announce also signals the peer is reachable, which drains anything
// queued for it.
func (s *Service) HandleChatCreation(ctx context.Context, counterparty string) error {
	if counterparty == "" {
		return chat.ErrChatNotFound
	}

	chatID := chat.NormalizeChatID(s.nodeID, counterparty)
	c, created := s.store.Ensure(chatID, counterparty, time.Now())
	if created {
		s.log.Info("chat announced by peer",
			zap.String("chat_id", chatID),
			zap.String("counterparty", counterparty))
		s.fanout.BroadcastChatUpdate(c)
	}

	s.mu.RLock()
	flusher := s.flusher
	s.mu.RUnlock()
	if flusher != nil {
		go flusher.FlushPeer(context.Background(), counterparty)
	}
	return nil
}

// HandleMessage stores an inbound message, swaps any inline file payload
// into the blob store, fans the message out, and acks the sender.
func (s *Service) HandleMessage(ctx context.Context, msg chat.Message) error {
	if msg.ID == "" || msg.Sender == "" {
		return chat.ErrMessageNotFound
	}

	chatID := chat.NormalizeChatID(s.nodeID, msg.Sender)
	c, created := s.store.Ensure(chatID, msg.Sender, time.Now())

	// The receiver's copy is Delivered the moment it lands.
	msg.Status = chat.StatusDelivered
	s.persistAttachment(chatID, &msg)

	if err := s.store.AppendMessage(chatID, msg); err != nil {
		return err
	}
	s.store.IncrementUnread(chatID)

	// New chats replay their snapshot before the message so clients
	// never see a message for a chat they don't know.
	if created {
		if fresh, ok := s.store.Get(chatID); ok {
			s.fanout.BroadcastChatUpdate(fresh)
		} else {
			s.fanout.BroadcastChatUpdate(c)
		}
	}
	s.fanout.BroadcastNewMessage(chatID, msg)
	s.broadcastChat(chatID)

	s.maybeNotify(chatID, msg)

	sender, messageID := msg.Sender, msg.ID
	go func() {
		if err := s.peers.SendAck(context.Background(), sender, messageID); err != nil {
			s.log.Debug("ack delivery failed",
				zap.String("message_id", messageID),
				zap.String("counterparty", sender),
				zap.Error(err))
		}
	}()
	return nil
}

// HandleAck marks one of this node's own messages Delivered. Acks for
// unknown or foreign messages are dropped without an error so a replayed
// ack never fails the wire call.
func (s *Service) HandleAck(ctx context.Context, messageID string) error {
	_, _, err := s.store.AdvanceOutgoing(messageID, s.nodeID, chat.StatusDelivered)
	if err != nil {
		s.log.Debug("ack for unknown message dropped", zap.String("message_id", messageID))
		return nil
	}
	s.fanout.BroadcastAck(messageID)
	return nil
}

// HandleReaction applies a counterparty's reaction change. The message
// may not exist on this peer yet, so a miss is dropped without an error
// rather than failing the wire call.
func (s *Service) HandleReaction(ctx context.Context, op peer.ReactionOp) error {
	var chatID string
	var err error
	if op.Remove {
		chatID, err = s.store.RemoveReaction(op.MessageID, op.User, op.Emoji)
	} else {
		chatID, _, err = s.store.AddReaction(op.MessageID, chat.Reaction{
			Emoji:     op.Emoji,
			User:      op.User,
			Timestamp: time.Now().Unix(),
		})
	}
	if err != nil {
		s.log.Debug("reaction for unknown message dropped",
			zap.String("message_id", op.MessageID))
		return nil
	}
	s.broadcastChat(chatID)
	return nil
}

// HandleDeletion removes the local copy of a message the counterparty
// deleted. A message or chat already gone is fine.
func (s *Service) HandleDeletion(ctx context.Context, op peer.DeletionOp) error {
	if err := s.store.RemoveMessageInChat(op.ChatID, op.MessageID); err != nil {
		s.log.Debug("deletion for unknown chat dropped",
			zap.String("chat_id", op.ChatID),
			zap.String("message_id", op.MessageID))
		return nil
	}
	s.broadcastChat(op.ChatID)
	return nil
}

// persistAttachment moves an inline base64 payload into the blob store
// and points the message at the stored location.
func (s *Service) persistAttachment(chatID string, msg *chat.Message) {
	if s.blobs == nil || msg.FileInfo == nil {
		return
	}
	data, ok := decodeDataURL(msg.FileInfo.URL)
	if !ok {
		return
	}

	path := blob.FilePath(chatID, msg.ID, msg.FileInfo.Filename)
	if err := s.blobs.Put(path, data); err != nil {
		s.log.Warn("attachment persistence failed",
			zap.String("message_id", msg.ID),
			zap.Error(err))
		return
	}
	msg.FileInfo.URL = path
	msg.FileInfo.Size = uint64(len(data))
}

// decodeDataURL extracts the payload of a base64 data URL.
func decodeDataURL(url string) ([]byte, bool) {
	if !strings.HasPrefix(url, "data:") {
		return nil, false
	}
	_, payload, found := strings.Cut(url, ";base64,")
	if !found {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, false
	}
	return data, true
}

// maybeNotify dispatches a push notification unless a session is in the
// foreground or the chat has notifications off.
func (s *Service) maybeNotify(chatID string, msg chat.Message) {
	c, ok := s.store.Get(chatID)
	if !ok || !c.Notify {
		return
	}
	s.mu.RLock()
	enabled := s.settings.NotifyChats
	s.mu.RUnlock()
	if !enabled || s.fanout.AnyActive() {
		return
	}

	err := s.notifier.Dispatch(context.Background(), notify.Notification{
		ChatID: chatID,
		Title:  msg.Sender,
		Body:   msg.Content,
	})
	if err != nil {
		s.log.Warn("push dispatch failed", zap.String("chat_id", chatID), zap.Error(err))
		if notify.IsEndpointGone(err) && s.onEndpointGone != nil {
			s.onEndpointGone()
		}
	}
}
