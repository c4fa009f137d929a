package notification

import (
	"context"
	"log/slog"
	"sync"
)

const (
	// KindWagerCreated is sent once the creator's stake is in the vault.
	KindWagerCreated = "wager.created"
	// KindWagerJoined is sent when a counterparty matches the stake.
	KindWagerJoined = "wager.joined"
	// KindWagerSettled is sent after the arbiter's decision is paid out.
	KindWagerSettled = "wager.settled"
	// KindWagerRefunded is sent after stakes are returned past the deadline.
	KindWagerRefunded = "wager.refunded"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	WagerID     uint64
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", message.Kind,
		"destination", message.Destination,
		"wager_id", message.WagerID,
		"body", message.Body,
	)
	return nil
}

// Recorder keeps every message in memory. Used in tests.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Send appends the message.
func (r *Recorder) Send(_ context.Context, message Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Kinds lists the kinds of the recorded messages in order.
func (r *Recorder) Kinds() []string {
	msgs := r.Messages()
	kinds := make([]string, 0, len(msgs))
	for _, m := range msgs {
		kinds = append(kinds, m.Kind)
	}
	return kinds
}
