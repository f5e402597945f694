package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"eventboard/internal/log"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
	dialTimeout    = 2 * time.Second
)

var (
	ErrCircuitOpen  = errors.New("circuit breaker is open")
	ErrNotConnected = errors.New("not connected to AMQP broker")
)

type Client struct {
	url          string
	exchangeName string
	queueName    string
	logger       *log.Logger
	dialTimeout  time.Duration

	mu           sync.Mutex
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	reconnecting bool
	closed       bool
	done         chan struct{}

	state        int32
	failureCount int64
	lastFailure  time.Time
}

// NewClient dials url and declares the exchange, queue and binding.
func NewClient(url, exchangeName, queueName string, logger *log.Logger) (*Client, error) {
	c := newClient(url, exchangeName, queueName, logger)
	conn, ch, err := c.dial()
	if err != nil {
		return nil, err
	}
	c.conn, c.channel = conn, ch
	return c, nil
}

func newClient(url, exchangeName, queueName string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger.WithComponent(log.ComponentAMQP),
		dialTimeout:  dialTimeout,
		done:         make(chan struct{}),
	}
}

// dial opens a connection and channel and declares the topology. The TCP
// dial and the AMQP handshake share one deadline.
func (c *Client) dial() (*amqp091.Connection, *amqp091.Channel, error) {
	timeout := c.dialTimeout
	if timeout <= 0 {
		timeout = dialTimeout
	}
	conn, err := amqp091.DialConfig(c.url, amqp091.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp091.DefaultDial(timeout),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	if err := setup(channel, c.exchangeName, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	return conn, channel, nil
}

func setup(ch *amqp091.Channel, exchange, queue string) error {
	if err := ch.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// routing key is the queue name on a direct exchange
	if err := ch.QueueBind(queue, queue, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

func (c *Client) openLocked() bool {
	return c.channel != nil && !c.channel.IsClosed() && c.conn != nil && !c.conn.IsClosed()
}

// publishChannel never dials. When the channel is down it starts a background
// reconnect and fails fast.
func (c *Client) publishChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openLocked() {
		return c.channel, nil
	}
	c.closeLocked()
	if !c.reconnecting && !c.closed {
		c.reconnecting = true
		go c.reconnect()
	}
	return nil, ErrNotConnected
}

// reconnect dials with exponential backoff until it succeeds or the client
// is closed.
func (c *Client) reconnect() {
	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()
	for attempt := 0; ; attempt++ {
		conn, ch, err := c.dial()
		if err == nil {
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				ch.Close()
				conn.Close()
				return
			}
			c.conn, c.channel = conn, ch
			c.mu.Unlock()
			c.logger.Info("Reconnected to AMQP broker", "exchange", c.exchangeName, "queue", c.queueName)
			return
		}

		wait := exponentialBackoff(attempt)
		c.logger.Warn("AMQP reconnect failed", log.FieldError, err, "attempt", attempt+1, "backoff", wait.String())
		select {
		case <-c.done:
			return
		case <-time.After(wait):
		}
	}
}

// consumeChannel dials on the caller's goroutine when the channel is down.
func (c *Client) consumeChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	if c.openLocked() {
		ch := c.channel
		c.mu.Unlock()
		return ch, nil
	}
	c.closeLocked()
	c.mu.Unlock()

	conn, ch, err := c.dial()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		ch.Close()
		conn.Close()
		return nil, ErrNotConnected
	}
	if c.openLocked() {
		ch.Close()
		conn.Close()
		return c.channel, nil
	}
	c.conn, c.channel = conn, ch
	c.logger.Info("Connected to AMQP broker", "exchange", c.exchangeName, "queue", c.queueName)
	return ch, nil
}

// PublishPostsChanged publishes msg as a persistent JSON message.
func (c *Client) PublishPostsChanged(ctx context.Context, msg *PostsChangedMessage) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s: %w", msg.MessageID, ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch, err := c.publishChannel()
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish %s: %w", msg.MessageID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    msg.MessageID,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.mu.Lock()
			c.closeLocked()
			c.mu.Unlock()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	c.logger.DebugContext(ctx, "Published posts changed message",
		log.FieldMessageID, msg.MessageID,
		log.FieldAction, msg.Action,
		log.FieldVersion, msg.Version,
		"exchange", c.exchangeName,
		"queue", c.queueName)

	return nil
}

// ConsumePostsChanged delivers messages to handler until ctx ends, reconnecting
// with exponential backoff when the broker goes away. Malformed messages are
// dropped; handler errors requeue the message.
func (c *Client) ConsumePostsChanged(ctx context.Context, handler func(context.Context, *PostsChangedMessage) error) error {
	attempt := 0
	for {
		err := c.consumeOnce(ctx, handler)
		if ctx.Err() != nil {
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		}
		wait := exponentialBackoff(attempt)
		attempt++
		c.logger.WarnContext(ctx, "Consumer interrupted, retrying",
			log.FieldError, err, "attempt", attempt, "backoff", wait.String())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, handler func(context.Context, *PostsChangedMessage) error) error {
	ch, err := c.consumeChannel()
	if err != nil {
		return err
	}
	msgs, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming posts changed messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

func (c *Client) handleDelivery(ctx context.Context, d amqp091.Delivery, handler func(context.Context, *PostsChangedMessage) error) {
	msg, err := PostsChangedMessageFromJSON(d.Body)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to unmarshal message", log.FieldError, err)
		_ = d.Nack(false, false)
		return
	}

	if err := handler(ctx, msg); err != nil {
		c.logger.ErrorContext(ctx, "Failed to handle message",
			log.FieldError, err,
			log.FieldMessageID, msg.MessageID,
			log.FieldVersion, msg.Version)
		_ = d.Nack(false, true)
		return
	}

	_ = d.Ack(false)
	c.logger.DebugContext(ctx, "Processed posts changed message",
		log.FieldMessageID, msg.MessageID,
		log.FieldVersion, msg.Version)
}

func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateOpen:
		c.mu.Lock()
		last := c.lastFailure
		c.mu.Unlock()
		if time.Since(last) > openTimeout {
			atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if n := atomic.AddInt64(&c.failureCount, 1); n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// exponentialBackoff doubles from one second, capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection closed", "eof", "broken pipe", "closed network connection", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Close drops the connection and stops any background reconnect.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		if c.done != nil {
			close(c.done)
		}
	}
	c.closeLocked()
	return nil
}
