package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/glimte/detour-go/internal/reliability"
	"github.com/glimte/detour-go/patching"
)

// DefaultExchange is the topic exchange lifecycle events are published to
const DefaultExchange = "detour.lifecycle"

// EventPublisher publishes patch lifecycle events; it implements
// patching.EventSink
type EventPublisher struct {
	source   ChannelSource
	conn     *ConnectionManager
	exchange string
	logger   *slog.Logger
	policy   reliability.RetryPolicy
	connOpts []ConnectionOption

	mu     sync.Mutex
	ch     Channel
	closed bool
}

var _ patching.EventSink = (*EventPublisher)(nil)

// PublisherOption configures an EventPublisher
type PublisherOption func(*EventPublisher)

// WithExchange sets the exchange name
func WithExchange(name string) PublisherOption {
	return func(p *EventPublisher) {
		if name != "" {
			p.exchange = name
		}
	}
}

// WithLogger sets the logger, which Dial also hands to the connection
func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *EventPublisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRetryPolicy sets how failed publishes are retried
func WithRetryPolicy(policy reliability.RetryPolicy) PublisherOption {
	return func(p *EventPublisher) {
		if policy != nil {
			p.policy = policy
		}
	}
}

// WithConnectionOptions passes options to the connection created by Dial
func WithConnectionOptions(opts ...ConnectionOption) PublisherOption {
	return func(p *EventPublisher) {
		p.connOpts = append(p.connOpts, opts...)
	}
}

// NewEventPublisher creates a publisher that opens channels from source
func NewEventPublisher(source ChannelSource, opts ...PublisherOption) *EventPublisher {
	p := &EventPublisher{
		source:   source,
		exchange: DefaultExchange,
		logger:   slog.Default(),
		policy:   reliability.NewExponentialBackoff(100*time.Millisecond, 2*time.Second, 2, 3),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Dial connects to url and returns a publisher owning that connection
func Dial(ctx context.Context, url string, opts ...PublisherOption) (*EventPublisher, error) {
	p := NewEventPublisher(nil, opts...)

	connOpts := append([]ConnectionOption{WithConnectionLogger(p.logger)}, p.connOpts...)
	cm := NewConnectionManager(url, connOpts...)
	if err := cm.Connect(ctx); err != nil {
		return nil, err
	}

	p.source = cm
	p.conn = cm
	return p, nil
}

// Publish implements patching.EventSink. The routing key is the event type.
func (p *EventPublisher) Publish(ctx context.Context, event patching.LifecycleEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode lifecycle event: %w", err)
	}

	key := string(event.Type)
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.Timestamp,
		Type:         key,
		Body:         body,
	}

	err = reliability.Retry(ctx, p.policy, func() error {
		ch, err := p.channel(ctx)
		if err != nil {
			return err
		}
		if err := ch.PublishWithContext(ctx, p.exchange, key, false, false, msg); err != nil {
			p.discard(ch)
			return err
		}
		return nil
	})
	if err != nil {
		return &PublishError{
			Exchange:   p.exchange,
			RoutingKey: key,
			Err:        err,
			Timestamp:  time.Now(),
		}
	}

	p.logger.Debug("lifecycle event published",
		"exchange", p.exchange,
		"type", key,
		"method", event.Method,
	)
	return nil
}

// Close closes the channel, and the connection when Dial created it
func (p *EventPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	ch := p.ch
	p.ch = nil
	p.mu.Unlock()

	var errs []error
	if ch != nil {
		if err := ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// channel returns the cached channel, opening one and declaring the exchange
// when there is none
func (p *EventPublisher) channel(ctx context.Context) (Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, reliability.Permanent(ErrPublisherClosed)
	}
	if p.ch != nil {
		return p.ch, nil
	}
	if p.source == nil {
		return nil, reliability.Permanent(ErrConnectionNotReady)
	}

	ch, err := p.source.Channel(ctx)
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", p.exchange, err)
	}

	p.ch = ch
	return ch, nil
}

// discard drops a channel that failed to publish so the next attempt reopens
func (p *EventPublisher) discard(ch Channel) {
	p.mu.Lock()
	if p.ch == ch {
		p.ch = nil
	}
	p.mu.Unlock()

	if err := ch.Close(); err != nil {
		p.logger.Debug("failed to close channel", "error", err)
	}
}
