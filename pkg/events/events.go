package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/trailhead/tours-api/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// NoopBus satisfies EventBus when no broker is reachable. Publishes are
// dropped after a debug log so local development does not require NATS.
type NoopBus struct{}

func NewNoopBus() *NoopBus { return &NoopBus{} }

func (NoopBus) Publish(ctx context.Context, subject string, data interface{}) error {
	logger.DebugContext(ctx, "Event dropped (no broker)", "subject", subject)
	return nil
}

func (NoopBus) Subscribe(string, func(msg *Message)) error { return nil }
func (NoopBus) Close() error                               { return nil }

// Event subjects
const (
	UserRegistered           = "user.registered"
	ReviewCreated            = "review.created"
	ReviewUpdated            = "review.updated"
	ReviewDeleted            = "review.deleted"
	BookingCreated           = "booking.created"
	PaymentCheckoutCompleted = "payment.checkout.completed"
)

// Event payloads
type UserRegisteredEvent struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type ReviewEvent struct {
	ReviewID string  `json:"review_id"`
	TourID   string  `json:"tour_id"`
	UserID   string  `json:"user_id"`
	Rating   float64 `json:"rating"`
}

type BookingCreatedEvent struct {
	BookingID string    `json:"booking_id"`
	TourID    string    `json:"tour_id"`
	UserID    string    `json:"user_id"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

type PaymentCheckoutCompletedEvent struct {
	SessionID     string  `json:"session_id"`
	TourID        string  `json:"tour_id"`
	CustomerEmail string  `json:"customer_email"`
	Amount        float64 `json:"amount"`
}
