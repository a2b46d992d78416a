package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hyperware-ai/chat/internal/chat"
)

// WirePath is the peer operation endpoint on every node.
const WirePath = "/peer/v0"

// EndpointResolver maps a node identity to the base URL its peer
// endpoint is reachable at.
type EndpointResolver func(nodeID string) string

// ClientConfig carries the outbound wire client's dependencies.
type ClientConfig struct {
	Log      *zap.Logger
	Resolver EndpointResolver
	Metrics  *Metrics

	// SendTimeout bounds message and announce deliveries.
	SendTimeout time.Duration
	// AckTimeout bounds acknowledgement posts; acks are cheap to lose
	// so they get less patience.
	AckTimeout time.Duration

	HTTPClient *http.Client
}

// Client posts peer operations to counterparty nodes.
type Client struct {
	log         *zap.Logger
	resolver    EndpointResolver
	metrics     *Metrics
	sendTimeout time.Duration
	ackTimeout  time.Duration
	http        *http.Client
}

// NewClient builds an outbound wire client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("peer: endpoint resolver is required")
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = 2 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{
		log:         cfg.Log,
		resolver:    cfg.Resolver,
		metrics:     cfg.Metrics,
		sendTimeout: cfg.SendTimeout,
		ackTimeout:  cfg.AckTimeout,
		http:        cfg.HTTPClient,
	}, nil
}

// AnnounceChat tells the counterparty that a chat with this node now
// exists. The payload is our own identity.
func (c *Client) AnnounceChat(ctx context.Context, counterparty, self string) error {
	return c.post(ctx, counterparty, Request{ChatCreation: &self}, c.sendTimeout)
}

// SendMessage delivers one chat message to the counterparty.
func (c *Client) SendMessage(ctx context.Context, counterparty string, msg chat.Message) error {
	return c.post(ctx, counterparty, Request{Message: &msg}, c.sendTimeout)
}

// SendAck confirms delivery of a message back to its sender.
func (c *Client) SendAck(ctx context.Context, counterparty, messageID string) error {
	return c.post(ctx, counterparty, Request{Ack: &messageID}, c.ackTimeout)
}

// SendReaction propagates a reaction add or remove.
func (c *Client) SendReaction(ctx context.Context, counterparty string, op ReactionOp) error {
	return c.post(ctx, counterparty, Request{Reaction: &op}, c.sendTimeout)
}

// SendDeletion propagates a message removal.
func (c *Client) SendDeletion(ctx context.Context, counterparty string, op DeletionOp) error {
	return c.post(ctx, counterparty, Request{Deletion: &op}, c.sendTimeout)
}

// Deliver satisfies the sweeper's delivery contract.
func (c *Client) Deliver(ctx context.Context, counterparty string, msg chat.Message) error {
	return c.SendMessage(ctx, counterparty, msg)
}

func (c *Client) post(ctx context.Context, counterparty string, op Request, timeout time.Duration) error {
	start := time.Now()
	err := c.doPost(ctx, counterparty, op, timeout)
	c.metrics.observe(op.Op(), "outbound", start, err)
	if err != nil {
		c.log.Debug("peer operation failed",
			zap.String("op", op.Op()),
			zap.String("counterparty", counterparty),
			zap.Error(err))
	}
	return err
}

func (c *Client) doPost(ctx context.Context, counterparty string, op Request, timeout time.Duration) error {
	body, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("encode %s: %w", op.Op(), err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := c.resolver(counterparty) + WirePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request for %s: %w", counterparty, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s to %s: %w", op.Op(), counterparty, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s to %s: status %d: %s", op.Op(), counterparty, resp.StatusCode, bytes.TrimSpace(raw))
	}

	var wire Response
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		// An unreadable success body still counts as delivered.
		return nil
	}
	if wire.Err != nil {
		return fmt.Errorf("%s rejected by %s: %s", op.Op(), counterparty, *wire.Err)
	}
	return nil
}
