package services

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	EventMatchStarted   = "match_started"
	EventRoundStarted   = "round_started"
	EventMoveSubmitted  = "move_submitted"
	EventRoundResolved  = "round_resolved"
	EventMatchConcluded = "match_concluded"
	EventMatchAbandoned = "match_abandoned"
)

// Event is a match notification fanned out to other services.
// Submitted actions are never part of the payload before the round resolves.
type Event struct {
	Type   string      `json:"type"`
	RoomID string      `json:"room_id"`
	Round  int         `json:"round,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	At     time.Time   `json:"at"`
}

// EventPublisher delivers match events. Delivery is best effort.
type EventPublisher interface {
	Publish(ev Event) error
}

// NatsPublisher publishes on <prefix>.<room_id>.<type>.
type NatsPublisher struct {
	nc     *nats.Conn
	prefix string
}

func NewNatsPublisher(url, prefix string) (*NatsPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("duel-game-system"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("⚠️ [Events] NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Printf("✅ [Events] NATS reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	if prefix == "" {
		prefix = "duel"
	}
	return &NatsPublisher{nc: nc, prefix: prefix}, nil
}

func (p *NatsPublisher) Subject(ev Event) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, ev.RoomID, ev.Type)
}

func (p *NatsPublisher) Publish(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	return p.nc.Publish(p.Subject(ev), payload)
}

// Close flushes pending messages and closes the connection.
func (p *NatsPublisher) Close() error {
	return p.nc.Drain()
}

// NoopPublisher drops every event. Used when NATS_URL is not configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(Event) error { return nil }

func publishAll(p EventPublisher, events ...Event) {
	if p == nil {
		return
	}
	for _, ev := range events {
		if ev.At.IsZero() {
			ev.At = time.Now().UTC()
		}
		if err := p.Publish(ev); err != nil {
			log.Printf("⚠️ [Events] failed to publish %s for room %s: %v", ev.Type, ev.RoomID, err)
		}
	}
}
