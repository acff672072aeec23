package rabbitmq

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/glimte/detour-go/internal/reliability"
)

// Channel is the part of an AMQP channel the publisher uses; *amqp.Channel
// satisfies it
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// ChannelSource opens channels on demand
type ChannelSource interface {
	Channel(ctx context.Context) (Channel, error)
}

// connection is the part of *amqp.Connection the manager drives
type connection interface {
	Channel() (*amqp.Channel, error)
	IsClosed() bool
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

// ConnectionManager owns one RabbitMQ connection and re-dials it when the
// broker closes it
type ConnectionManager struct {
	url            string
	mu             sync.RWMutex
	conn           connection
	notifyClose    chan *amqp.Error
	reconnectDelay time.Duration
	maxRetries     int
	dialTimeout    time.Duration
	logger         *slog.Logger
	done           chan struct{}
	closeOnce      sync.Once
}

// ConnectionOption configures the ConnectionManager
type ConnectionOption func(*ConnectionManager)

// WithConnectionLogger sets the logger
func WithConnectionLogger(logger *slog.Logger) ConnectionOption {
	return func(cm *ConnectionManager) {
		if logger != nil {
			cm.logger = logger
		}
	}
}

// WithReconnectDelay sets the first reconnection delay; later attempts back off
// exponentially up to five minutes
func WithReconnectDelay(delay time.Duration) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.reconnectDelay = delay
	}
}

// WithMaxRetries bounds reconnection attempts. Negative means unbounded.
func WithMaxRetries(retries int) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.maxRetries = retries
	}
}

// WithDialTimeout bounds a single dial
func WithDialTimeout(timeout time.Duration) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.dialTimeout = timeout
	}
}

// NewConnectionManager creates a connection manager; call Connect to dial
func NewConnectionManager(url string, options ...ConnectionOption) *ConnectionManager {
	cm := &ConnectionManager{
		url:            url,
		reconnectDelay: 5 * time.Second,
		maxRetries:     -1,
		dialTimeout:    30 * time.Second,
		logger:         slog.Default(),
		done:           make(chan struct{}),
	}

	for _, opt := range options {
		opt(cm)
	}

	return cm
}

// Connect dials the broker and starts watching the connection
func (cm *ConnectionManager) Connect(ctx context.Context) error {
	if cm.IsConnected() {
		return nil
	}

	if err := cm.open(ctx); err != nil {
		return &ConnectionError{
			Op:        "connect",
			URL:       SanitizeURL(cm.url),
			Err:       err,
			Timestamp: time.Now(),
			Attempts:  1,
		}
	}

	cm.logger.Info("connected to RabbitMQ", "url", SanitizeURL(cm.url))
	go cm.watch()
	return nil
}

// Channel opens a channel on the current connection
func (cm *ConnectionManager) Channel(ctx context.Context) (Channel, error) {
	cm.mu.RLock()
	conn := cm.conn
	cm.mu.RUnlock()

	if conn == nil {
		return nil, ErrConnectionNotReady
	}
	if conn.IsClosed() {
		return nil, ErrConnectionClosed
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// IsConnected returns the connection status
func (cm *ConnectionManager) IsConnected() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conn != nil && !cm.conn.IsClosed()
}

// Close closes the connection and stops reconnecting
func (cm *ConnectionManager) Close() error {
	var err error
	cm.closeOnce.Do(func() {
		close(cm.done)

		cm.mu.Lock()
		conn := cm.conn
		cm.conn = nil
		cm.mu.Unlock()

		if conn != nil {
			err = conn.Close()
		}
	})
	return err
}

// open dials with a timeout and installs the new connection
func (cm *ConnectionManager) open(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, cm.dialTimeout)
	defer cancel()

	type dialed struct {
		conn *amqp.Connection
		err  error
	}
	result := make(chan dialed, 1)
	go func() {
		conn, err := amqp.Dial(cm.url)
		result <- dialed{conn, err}
	}()

	select {
	case d := <-result:
		if d.err != nil {
			return d.err
		}
		return cm.install(d.conn)
	case <-dialCtx.Done():
		// the dial goroutine may still succeed; close whatever it returns
		go func() {
			if d := <-result; d.conn != nil {
				d.conn.Close()
			}
		}()
		return ErrConnectionTimeout
	}
}

// install stores a freshly dialed connection unless the manager was closed
// meanwhile, in which case the connection is closed instead
func (cm *ConnectionManager) install(conn connection) error {
	cm.mu.Lock()
	select {
	case <-cm.done:
		cm.mu.Unlock()
		conn.Close()
		return reliability.Permanent(ErrConnectionClosed)
	default:
	}
	cm.conn = conn
	cm.notifyClose = conn.NotifyClose(make(chan *amqp.Error, 1))
	cm.mu.Unlock()
	return nil
}

// watch waits for the connection to drop and re-dials until Close
func (cm *ConnectionManager) watch() {
	for {
		cm.mu.RLock()
		notify := cm.notifyClose
		cm.mu.RUnlock()

		select {
		case err := <-notify:
			select {
			case <-cm.done:
				return
			default:
			}

			cm.logger.Error("connection lost", "error", err)
			cm.mu.Lock()
			cm.conn = nil
			cm.mu.Unlock()

			if !cm.reconnect() {
				return
			}
		case <-cm.done:
			return
		}
	}
}

func (cm *ConnectionManager) reconnect() bool {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-cm.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	start := time.Now()
	attempts := 0
	err := reliability.Retry(ctx, cm.retryPolicy(), func() error {
		attempts++
		cm.logger.Info("attempting to reconnect", "attempt", attempts, "maxRetries", cm.maxRetries)
		err := cm.open(ctx)
		if err != nil {
			cm.logger.Error("reconnection failed", "attempt", attempts, "error", err)
		}
		return err
	})
	if err != nil {
		cm.logger.Error("giving up reconnecting",
			"attempts", attempts,
			"duration", time.Since(start),
			"error", err,
		)
		return false
	}

	cm.logger.Info("reconnected to RabbitMQ",
		"attempts", attempts,
		"duration", time.Since(start),
	)
	return true
}

func (cm *ConnectionManager) retryPolicy() reliability.RetryPolicy {
	retries := cm.maxRetries
	if retries < 0 {
		retries = math.MaxInt
	}
	return reliability.NewExponentialBackoff(cm.reconnectDelay, 5*time.Minute, 2, retries)
}
