// Package notify defines outbound notifications. Delivery transports live
// outside this module; LogNotifier records what would be sent.
package notify

import (
	"context"
	"sync"

	"github.com/andresuchdata/autoreorder/pkg/logger"
	"github.com/rs/zerolog"
)

type Kind string

const (
	KindShortage Kind = "shortage"
	KindOrder    Kind = "order"
)

// Message is one outbound notification.
type Message struct {
	Kind        Kind   `json:"kind"`
	Channel     string `json:"channel"`
	MaterialID  string `json:"material_id"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Notifier delivers messages. Callers treat failures as non-fatal.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier writes each message to the structured log.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: logger.Component("notify")}
}

func (n *LogNotifier) Notify(_ context.Context, msg Message) error {
	n.logger.Info().
		Str("kind", string(msg.Kind)).
		Str("channel", msg.Channel).
		Str("material_id", msg.MaterialID).
		Str("fingerprint", msg.Fingerprint).
		Str("subject", msg.Subject).
		Msg(msg.Body)
	return nil
}

// Recorder keeps messages in memory; the CLI uses it for dry runs.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Notify(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Multi fans a message out to every notifier and returns the first error.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}
