package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperware-ai/chat/internal/blob"
	"github.com/hyperware-ai/chat/internal/chat"
	"github.com/hyperware-ai/chat/internal/notify"
	"github.com/hyperware-ai/chat/internal/peer"
	"github.com/hyperware-ai/chat/internal/queue"
)

// Fanout pushes events to connected WebSocket sessions. The session hub
// implements it; tests substitute a recorder.
type Fanout interface {
	BroadcastNewMessage(chatID string, msg chat.Message)
	BroadcastChatUpdate(c chat.Chat)
	BroadcastAck(messageID string)
	BroadcastStatus(node, status string)
	BroadcastProfile(node string, profile chat.Profile)
	AnyActive() bool
}

// Flusher drains queued messages for one counterparty. The delivery
// sweeper implements it.
type Flusher interface {
	FlushPeer(ctx context.Context, counterparty string)
}

// Wire posts peer operations to counterparty nodes.
type Wire interface {
	AnnounceChat(ctx context.Context, counterparty, self string) error
	SendMessage(ctx context.Context, counterparty string, msg chat.Message) error
	SendAck(ctx context.Context, counterparty, messageID string) error
	SendReaction(ctx context.Context, counterparty string, op peer.ReactionOp) error
	SendDeletion(ctx context.Context, counterparty string, op peer.DeletionOp) error
}

// Config carries the service's dependencies.
type Config struct {
	Log    *zap.Logger
	NodeID string

	Store *chat.Store
	Keys  *chat.KeyRegistry
	Queue *queue.Queue
	Peers Wire
	Blobs *blob.Store

	Fanout   Fanout
	Notifier notify.Dispatcher

	// OnEndpointGone runs when a push dispatch reports the remote
	// endpoint no longer exists.
	OnEndpointGone func()
}

// Service is the node's core: it owns every local operation and every
// inbound peer operation, and wires the store, queue, wire client, blob
// store, and session fan-out together.
type Service struct {
	log      *zap.Logger
	nodeID   string
	store    *chat.Store
	keys     *chat.KeyRegistry
	queue    *queue.Queue
	peers    Wire
	blobs    *blob.Store
	fanout   Fanout
	notifier notify.Dispatcher

	onEndpointGone func()

	mu       sync.RWMutex
	profile  chat.Profile
	settings chat.Settings
	flusher  Flusher
}

// New builds the service core.
func New(cfg Config) (*Service, error) {
	if cfg.NodeID == "" {
		return nil, fmt.Errorf("node: node id is required")
	}
	if cfg.Store == nil || cfg.Queue == nil || cfg.Peers == nil {
		return nil, fmt.Errorf("node: store, queue, and peer wire are required")
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Fanout == nil {
		cfg.Fanout = nopFanout{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.NewLogDispatcher(cfg.Log)
	}

	return &Service{
		log:            cfg.Log,
		nodeID:         cfg.NodeID,
		store:          cfg.Store,
		keys:           cfg.Keys,
		queue:          cfg.Queue,
		peers:          cfg.Peers,
		blobs:          cfg.Blobs,
		fanout:         cfg.Fanout,
		notifier:       cfg.Notifier,
		onEndpointGone: cfg.OnEndpointGone,
		profile:        chat.Profile{Name: cfg.NodeID},
		settings:       chat.DefaultSettings(),
	}, nil
}

// AttachFanout hands the service its session fan-out. The hub is built
// after the service, so this runs during wiring, before any traffic.
func (s *Service) AttachFanout(f Fanout) {
	if f == nil {
		return
	}
	s.fanout = f
}

// AttachFlusher hands the service its queue flusher. The sweeper is
// built after the service, so this runs during wiring.
func (s *Service) AttachFlusher(f Flusher) {
	s.mu.Lock()
	s.flusher = f
	s.mu.Unlock()
}

// NodeID returns the local node identity.
func (s *Service) NodeID() string {
	return s.nodeID
}

// CreateChat opens a 1:1 chat with another node and announces it. The
// announce is best-effort; the chat exists locally regardless.
func (s *Service) CreateChat(ctx context.Context, counterparty string) (chat.Chat, error) {
	if counterparty == "" || counterparty == s.nodeID {
		return chat.Chat{}, fmt.Errorf("node: invalid counterparty %q", counterparty)
	}

	chatID := chat.NormalizeChatID(s.nodeID, counterparty)
	c, created := s.store.Ensure(chatID, counterparty, time.Now())
	if created {
		s.fanout.BroadcastChatUpdate(c)
	}

	go func() {
		if err := s.peers.AnnounceChat(context.Background(), counterparty, s.nodeID); err != nil {
			s.log.Debug("chat announce failed",
				zap.String("counterparty", counterparty),
				zap.Error(err))
		}
	}()

	return c, nil
}

// Chats lists all chats, most recently active first.
func (s *Service) Chats() []chat.Chat {
	return s.store.Snapshot()
}

// Chat fetches one chat by id.
func (s *Service) Chat(chatID string) (chat.Chat, error) {
	c, ok := s.store.Get(chatID)
	if !ok {
		return chat.Chat{}, chat.ErrChatNotFound
	}
	return c, nil
}

// DeleteChat removes a chat locally. The counterparty keeps its copy.
func (s *Service) DeleteChat(chatID string) error {
	return s.store.Delete(chatID)
}

// SearchChats matches the query against counterparty names and message
// bodies.
func (s *Service) SearchChats(query string) []chat.Chat {
	return s.store.Search(query)
}

// MarkRead clears a chat's unread counter.
func (s *Service) MarkRead(chatID string) error {
	if err := s.store.MarkRead(chatID); err != nil {
		return err
	}
	if c, ok := s.store.Get(chatID); ok {
		s.fanout.BroadcastChatUpdate(c)
	}
	return nil
}

// EditMessage rewrites a message body. Edits never propagate to the
// counterparty; the remote copy keeps the original text.
func (s *Service) EditMessage(messageID, newContent string) error {
	return s.store.EditContent(messageID, newContent)
}

// DeleteMessage removes a message locally and, when both sides are
// requested, asks the counterparty to drop its copy too.
func (s *Service) DeleteMessage(ctx context.Context, messageID string, bothSides bool) error {
	_, chatID, found := s.store.FindMessage(messageID)
	if !found {
		return chat.ErrMessageNotFound
	}
	if _, err := s.store.RemoveMessage(messageID); err != nil {
		return err
	}

	c, ok := s.store.Get(chatID)
	if ok {
		s.fanout.BroadcastChatUpdate(c)
	}

	if bothSides && ok && !chat.IsBrowserChat(chatID) && chatID != chat.WelcomeChatID {
		counterparty := c.Counterparty
		go func() {
			op := peer.DeletionOp{ChatID: chatID, MessageID: messageID}
			if err := s.peers.SendDeletion(context.Background(), counterparty, op); err != nil {
				s.log.Debug("deletion propagation failed",
					zap.String("message_id", messageID),
					zap.Error(err))
			}
		}()
	}
	return nil
}

// AddReaction records the local user's reaction and propagates it to the
// counterparty on node chats.
func (s *Service) AddReaction(ctx context.Context, messageID, emoji string) error {
	reaction := chat.Reaction{
		Emoji:     emoji,
		User:      s.nodeID,
		Timestamp: time.Now().Unix(),
	}
	chatID, added, err := s.store.AddReaction(messageID, reaction)
	if err != nil {
		return err
	}
	if !added {
		return nil
	}

	s.broadcastChat(chatID)
	s.propagateReaction(chatID, peer.ReactionOp{MessageID: messageID, Emoji: emoji, User: s.nodeID})
	return nil
}

// RemoveReaction deletes the local user's reaction and propagates the
// removal on node chats.
func (s *Service) RemoveReaction(ctx context.Context, messageID, emoji string) error {
	chatID, err := s.store.RemoveReaction(messageID, s.nodeID, emoji)
	if err != nil {
		return err
	}

	s.broadcastChat(chatID)
	s.propagateReaction(chatID, peer.ReactionOp{MessageID: messageID, Emoji: emoji, User: s.nodeID, Remove: true})
	return nil
}

func (s *Service) propagateReaction(chatID string, op peer.ReactionOp) {
	if chat.IsBrowserChat(chatID) || chatID == chat.WelcomeChatID {
		return
	}
	c, ok := s.store.Get(chatID)
	if !ok {
		return
	}
	go func() {
		if err := s.peers.SendReaction(context.Background(), c.Counterparty, op); err != nil {
			s.log.Debug("reaction propagation failed",
				zap.String("message_id", op.MessageID),
				zap.Error(err))
		}
	}()
}

func (s *Service) broadcastChat(chatID string) {
	if c, ok := s.store.Get(chatID); ok {
		s.fanout.BroadcastChatUpdate(c)
	}
}

// QueuedDelivered advances a message once the sweeper pushed it through.
// The counterparty acks separately, so the message lands on Sent here
// and Delivered when the ack arrives.
func (s *Service) QueuedDelivered(counterparty string, msg chat.Message) {
	if _, _, err := s.store.SetStatus(msg.ID, chat.StatusSent); err != nil {
		return
	}
	s.fanout.BroadcastAck(msg.ID)
	chatID := chat.NormalizeChatID(s.nodeID, counterparty)
	s.broadcastChat(chatID)
}

// nopFanout keeps a hub-less service (tests, tooling) callable.
type nopFanout struct{}

func (nopFanout) BroadcastNewMessage(string, chat.Message) {}
func (nopFanout) BroadcastChatUpdate(chat.Chat)            {}
func (nopFanout) BroadcastAck(string)                      {}
func (nopFanout) BroadcastStatus(string, string)           {}
func (nopFanout) BroadcastProfile(string, chat.Profile)    {}
func (nopFanout) AnyActive() bool                          { return false }
