package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperware-ai/chat/internal/chat"
)

// Delivery attempts to hand a queued message to its counterparty.
type Delivery interface {
	Deliver(ctx context.Context, counterparty string, msg chat.Message) error
}

// SweeperConfig carries the sweeper's dependencies.
type SweeperConfig struct {
	Log      *zap.Logger
	Queue    *Queue
	Delivery Delivery
	Metrics  *Metrics

	// Interval between sweep passes.
	Interval time.Duration
	// AttemptsPerPeer caps how many head messages are tried per
	// counterparty in one pass. Delivery stays in order: the pass
	// moves past a head only once it has been delivered.
	AttemptsPerPeer int

	// OnDelivered is invoked after a queued message is confirmed
	// delivered and removed. Optional.
	OnDelivered func(counterparty string, msg chat.Message)
}

// Sweeper periodically walks the delivery queue and retries the head
// message of every counterparty's list.
type Sweeper struct {
	cfg SweeperConfig

	startOnce sync.Once
	done      chan struct{}
}

// NewSweeper builds a sweeper; Start launches its loop.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.AttemptsPerPeer <= 0 {
		cfg.AttemptsPerPeer = 1
	}
	return &Sweeper{cfg: cfg, done: make(chan struct{})}
}

// Start launches the sweep loop. Subsequent calls are no-ops.
func (s *Sweeper) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.loop(ctx)
	})
}

// Done is closed once the sweep loop has exited.
func (s *Sweeper) Done() <-chan struct{} {
	return s.done
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over all counterparties with pending messages.
func (s *Sweeper) Sweep(ctx context.Context) {
	for _, counterparty := range s.cfg.Queue.Counterparties() {
		s.drainPeer(ctx, counterparty, s.cfg.AttemptsPerPeer)
		if ctx.Err() != nil {
			return
		}
	}
	s.cfg.Metrics.recordSweep()
}

// FlushPeer retries every pending message for one counterparty, stopping
// at the first failure. Called when the peer signals it is reachable
// again.
func (s *Sweeper) FlushPeer(ctx context.Context, counterparty string) {
	s.drainPeer(ctx, counterparty, s.cfg.Queue.PendingFor(counterparty))
}

func (s *Sweeper) drainPeer(ctx context.Context, counterparty string, attempts int) {
	for i := 0; i < attempts; i++ {
		msg, ok := s.cfg.Queue.Head(counterparty)
		if !ok {
			return
		}
		if err := s.cfg.Delivery.Deliver(ctx, counterparty, msg); err != nil {
			s.cfg.Metrics.recordSweepFailure()
			s.cfg.Log.Debug("redelivery attempt failed",
				zap.String("counterparty", counterparty),
				zap.String("message_id", msg.ID),
				zap.Error(err))
			return
		}
		s.cfg.Queue.Remove(counterparty, msg.ID)
		s.cfg.Log.Info("queued message delivered",
			zap.String("counterparty", counterparty),
			zap.String("message_id", msg.ID))
		if s.cfg.OnDelivered != nil {
			s.cfg.OnDelivered(counterparty, msg)
		}
	}
}
