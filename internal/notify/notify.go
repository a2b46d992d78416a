package notify

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Notification is one push payload for a remote device.
type Notification struct {
	ChatID string
	Title  string
	Body   string
}

// Dispatcher delivers push notifications. Implementations talk to a real
// push service; the default only logs.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// IsEndpointGone reports whether a dispatch error indicates the push
// endpoint no longer exists and should be dropped from settings.
func IsEndpointGone(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "endpoint gone") || strings.Contains(msg, "410")
}

// LogDispatcher records notifications without delivering them anywhere.
type LogDispatcher struct {
	log *zap.Logger
}

// NewLogDispatcher builds the default dispatcher.
func NewLogDispatcher(log *zap.Logger) *LogDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Dispatch(_ context.Context, n Notification) error {
	d.log.Info("push notification",
		zap.String("chat_id", n.ChatID),
		zap.String("title", n.Title),
		zap.String("body", n.Body))
	return nil
}
