package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of the AMQP channel surface the bridge uses.
// *amqp.Channel satisfies it.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// lifecycleEvent is the wire form of a diagnostic event.
type lifecycleEvent struct {
	Event       string    `json:"event"`
	MessageID   string    `json:"messageId"`
	Source      string    `json:"source"`
	MessageType string    `json:"messageType"`
	RecordedAt  time.Time `json:"recordedAt"`
}

// AMQPSink publishes message lifecycle events to an AMQP exchange. It
// implements diagnostics.Sink. Publishing is best effort: a failed publish
// is logged and dropped, never surfaced to the message path.
type AMQPSink struct {
	channel        Channel
	conn           *amqp.Connection
	exchange       string
	routingKey     string
	publishTimeout time.Duration
	logger         *slog.Logger
}

// SinkOption configures the AMQPSink.
type SinkOption func(*AMQPSink)

// WithExchange sets the target exchange.
func WithExchange(exchange string) SinkOption {
	return func(s *AMQPSink) {
		s.exchange = exchange
	}
}

// WithRoutingKey sets the routing key for published events.
func WithRoutingKey(key string) SinkOption {
	return func(s *AMQPSink) {
		s.routingKey = key
	}
}

// WithPublishTimeout bounds each publish.
func WithPublishTimeout(timeout time.Duration) SinkOption {
	return func(s *AMQPSink) {
		if timeout > 0 {
			s.publishTimeout = timeout
		}
	}
}

// WithSinkLogger sets the logger.
func WithSinkLogger(logger *slog.Logger) SinkOption {
	return func(s *AMQPSink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewAMQPSink creates a sink publishing on an existing channel.
func NewAMQPSink(channel Channel, options ...SinkOption) (*AMQPSink, error) {
	if channel == nil {
		return nil, fmt.Errorf("channel cannot be nil")
	}

	s := &AMQPSink{
		channel:        channel,
		exchange:       "halbus.diagnostics",
		routingKey:     "message.lifecycle",
		publishTimeout: 5 * time.Second,
		logger:         slog.Default(),
	}

	for _, opt := range options {
		opt(s)
	}

	return s, nil
}

// Connect dials the broker and creates a sink on a fresh channel. Close
// releases both the channel and the connection.
func Connect(url string, options ...SinkOption) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	s, err := NewAMQPSink(channel, options...)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}
	s.conn = conn
	return s, nil
}

// Record publishes one lifecycle event.
func (s *AMQPSink) Record(eventName, messageID, sourceName, messageType string) {
	body, err := json.Marshal(lifecycleEvent{
		Event:       eventName,
		MessageID:   messageID,
		Source:      sourceName,
		MessageType: messageType,
		RecordedAt:  time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("failed to encode lifecycle event", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
	defer cancel()

	err = s.channel.PublishWithContext(ctx, s.exchange, s.routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        body,
	})
	if err != nil {
		s.logger.Error("failed to publish lifecycle event",
			"exchange", s.exchange,
			"routingKey", s.routingKey,
			"error", err,
		)
	}
}

// Close releases the channel and, if the sink dialed its own connection,
// the connection as well.
func (s *AMQPSink) Close() error {
	err := s.channel.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
