// Package events publishes domain events after mutations commit.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"channelfeed/backend/pkg/logger"
)

// Event is the payload published for one committed mutation
type Event struct {
	Subject string            `json:"-"`
	ID      string            `json:"id"`
	ActorID string            `json:"actor_id,omitempty"`
	Refs    map[string]string `json:"refs,omitempty"`
	Deleted map[string]int64  `json:"deleted,omitempty"`
	At      time.Time         `json:"at"`
}

// Publisher delivers events. Delivery is best effort: callers log failures
// and never undo a committed mutation because of them.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// ============================================================================
// NATS
// ============================================================================

type NatsPublisher struct {
	nc     *nats.Conn
	logger *zap.Logger
}

// Connect dials the NATS server at url.
func Connect(url string, log *zap.Logger) (*NatsPublisher, error) {
	if log == nil {
		log = logger.Get()
	}
	nc, err := nats.Connect(url,
		nats.Name("channelfeed"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return NewNatsPublisher(nc, log), nil
}

func NewNatsPublisher(nc *nats.Conn, log *zap.Logger) *NatsPublisher {
	if log == nil {
		log = logger.Get()
	}
	return &NatsPublisher{nc: nc, logger: log}
}

func (p *NatsPublisher) Publish(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &nats.Msg{
		Subject: evt.Subject,
		Data:    data,
		Header:  nats.Header{},
	}
	if evt.ActorID != "" {
		msg.Header.Set("Actor", evt.ActorID)
	}

	p.logger.Debug("Publishing event", zap.String("subject", evt.Subject), zap.String("id", evt.ID))
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", evt.Subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NatsPublisher) Close() error {
	err := p.nc.Drain()
	if err != nil {
		p.nc.Close()
	}
	return err
}

// ============================================================================
// In-process
// ============================================================================

// Nop discards every event
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
	// Err, when set, is returned from every Publish after recording.
	Err error
}

func (r *Recorder) Publish(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return r.Err
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Subjects returns the recorded subjects in publish order.
func (r *Recorder) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Subject
	}
	return out
}
