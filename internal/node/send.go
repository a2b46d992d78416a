package node

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperware-ai/chat/internal/chat"
)

// SendMessage runs the outbound text pipeline: append as Sending, try
// the counterparty once, settle on Sent or Failed, and queue failures
// for the sweeper.
func (s *Service) SendMessage(ctx context.Context, chatID, content string, replyTo *string) (chat.Message, error) {
	now := time.Now()
	msg := chat.Message{
		ID:          chat.NewMessageID(now),
		Sender:      s.nodeID,
		Content:     content,
		Timestamp:   now.Unix(),
		Status:      chat.StatusSending,
		Reactions:   []chat.Reaction{},
		MessageType: chat.TypeText,
	}
	if replyTo != nil {
		msg.ReplyTo = *replyTo
	}
	return s.deliver(ctx, chatID, msg)
}

// ForwardMessage copies an existing message into another chat with a
// "Forwarded: " prefix and sends it through the normal pipeline.
func (s *Service) ForwardMessage(ctx context.Context, messageID, toChatID string) (chat.Message, error) {
	original, _, found := s.store.FindMessage(messageID)
	if !found {
		return chat.Message{}, chat.ErrMessageNotFound
	}

	now := time.Now()
	msg := chat.Message{
		ID:          chat.NewMessageID(now),
		Sender:      s.nodeID,
		Content:     "Forwarded: " + original.Content,
		Timestamp:   now.Unix(),
		Status:      chat.StatusSending,
		Reactions:   []chat.Reaction{},
		MessageType: original.MessageType,
		FileInfo:    original.FileInfo,
	}
	return s.deliver(ctx, toChatID, msg)
}

// UploadFile sends a file attachment. The payload travels inline as a
// data URL; the receiving node moves it into its blob store.
func (s *Service) UploadFile(ctx context.Context, chatID, filename, mimeType, dataB64 string, replyTo *string) (chat.Message, error) {
	if filename == "" || dataB64 == "" {
		return chat.Message{}, fmt.Errorf("node: filename and data are required")
	}

	messageType := chat.TypeFile
	if strings.HasPrefix(mimeType, "image/") {
		messageType = chat.TypeImage
	}

	now := time.Now()
	msg := chat.Message{
		ID:        chat.NewMessageID(now),
		Sender:    s.nodeID,
		Content:   filename,
		Timestamp: now.Unix(),
		Status:    chat.StatusSending,
		Reactions: []chat.Reaction{},
		MessageType: messageType,
		FileInfo: &chat.FileInfo{
			Filename: filename,
			MimeType: mimeType,
			Size:     uint64(len(dataB64)),
			URL:      "data:" + mimeType + ";base64," + dataB64,
		},
	}
	if replyTo != nil {
		msg.ReplyTo = *replyTo
	}
	return s.deliver(ctx, chatID, msg)
}

// SendVoiceNote sends a recorded voice clip as an audio/webm attachment.
func (s *Service) SendVoiceNote(ctx context.Context, chatID, audioB64 string, durationSecs uint64, replyTo *string) (chat.Message, error) {
	if audioB64 == "" {
		return chat.Message{}, fmt.Errorf("node: audio data is required")
	}

	now := time.Now()
	id := chat.NewMessageID(now)
	msg := chat.Message{
		ID:        id,
		Sender:    s.nodeID,
		Content:   fmt.Sprintf("Voice note (%ds)", durationSecs),
		Timestamp: now.Unix(),
		Status:    chat.StatusSending,
		Reactions: []chat.Reaction{},
		MessageType: chat.TypeVoiceNote,
		FileInfo: &chat.FileInfo{
			Filename: fmt.Sprintf("voice_note_%s.webm", id),
			MimeType: "audio/webm",
			Size:     uint64(len(audioB64)),
			URL:      "data:audio/webm;base64," + audioB64,
		},
	}
	if replyTo != nil {
		msg.ReplyTo = *replyTo
	}
	return s.deliver(ctx, chatID, msg)
}

// deliver appends an outgoing message and settles its status. A chat id
// without a local record is created on the fly so a send never dangles.
func (s *Service) deliver(ctx context.Context, chatID string, msg chat.Message) (chat.Message, error) {
	c, ok := s.store.Get(chatID)
	if !ok {
		counterparty := chat.CounterpartyOf(chatID, s.nodeID)
		if counterparty == "" {
			return chat.Message{}, chat.ErrChatNotFound
		}
		c, _ = s.store.Ensure(chatID, counterparty, time.Now())
	}

	if err := s.store.AppendMessage(chatID, msg); err != nil {
		return chat.Message{}, err
	}

	switch {
	case chat.IsBrowserChat(chatID) || chatID == chat.WelcomeChatID:
		// No wire hop; the message is as sent as it will ever be.
		_, effective, _ := s.store.SetStatus(msg.ID, chat.StatusSent)
		msg.Status = effective
	default:
		if err := s.peers.SendMessage(ctx, c.Counterparty, msg); err != nil {
			s.log.Info("send failed, queued for redelivery",
				zap.String("message_id", msg.ID),
				zap.String("counterparty", c.Counterparty),
				zap.Error(err))
			_, effective, _ := s.store.SetStatus(msg.ID, chat.StatusFailed)
			msg.Status = effective
			s.queue.Enqueue(c.Counterparty, msg)
		} else {
			_, effective, _ := s.store.SetStatus(msg.ID, chat.StatusSent)
			msg.Status = effective
			s.fanout.BroadcastAck(msg.ID)
		}
	}

	s.fanout.BroadcastNewMessage(chatID, msg)
	s.broadcastChat(chatID)
	return msg, nil
}
