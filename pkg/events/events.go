package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/diagnosis/reservou/pkg/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
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
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name("reservou-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
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

	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())
	if requestID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		msg.Header.Set("X-Request-ID", requestID)
	}

	logger.DebugContext(ctx, "publishing event", "subject", subject)

	return n.conn.PublishMsg(msg)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(toMessage(msg))
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(toMessage(msg))
	})
	return err
}

func toMessage(msg *nats.Msg) *Message {
	id := ""
	if msg.Header != nil {
		id = msg.Header.Get(nats.MsgIdHdr)
	}
	if id == "" {
		id = fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return &Message{
		Subject:   msg.Subject,
		Data:      msg.Data,
		Timestamp: time.Now(),
		ID:        id,
	}
}

func (n *NATSEventBus) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}

// NoopBus drops every event. It stands in when NATS is not configured.
type NoopBus struct{}

func (NoopBus) Publish(ctx context.Context, subject string, _ interface{}) error {
	logger.DebugContext(ctx, "event dropped, no bus configured", "subject", subject)
	return nil
}

func (NoopBus) Subscribe(string, func(msg *Message)) error              { return nil }
func (NoopBus) QueueSubscribe(string, string, func(msg *Message)) error { return nil }
func (NoopBus) Close() error                                            { return nil }

// PublishAsync publishes without failing the caller; errors are logged.
func PublishAsync(ctx context.Context, p Publisher, subject string, data interface{}) {
	if err := p.Publish(ctx, subject, data); err != nil {
		logger.WarnContext(ctx, "failed to publish event", "subject", subject, "error", err)
	}
}

// Event subjects
const (
	UserCreated        = "user.created"
	HotelCreated       = "hotel.created"
	HotelUpdated       = "hotel.updated"
	MagicLinkRequested = "auth.magic_link.requested"
)

// Event payloads
type UserCreatedEvent struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}

type HotelCreatedEvent struct {
	HotelID   string    `json:"hotel_id"`
	OwnerID   string    `json:"owner_id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Plan      string    `json:"plan"`
	CreatedAt time.Time `json:"created_at"`
}

type HotelUpdatedEvent struct {
	HotelID   string    `json:"hotel_id"`
	Slug      string    `json:"slug"`
	Changes   []string  `json:"changes"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MagicLinkRequestedEvent struct {
	Email       string    `json:"email"`
	Purpose     string    `json:"purpose"`
	Reused      bool      `json:"reused"`
	RequestedAt time.Time `json:"requested_at"`
}
