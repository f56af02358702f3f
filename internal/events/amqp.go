package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("events: publisher closed")

// AMQPConfig configures NewAMQPPublisher.
type AMQPConfig struct {
	URL      string
	Exchange string
	// DialAttempts and DialDelay control connection retries.
	DialAttempts uint
	DialDelay    time.Duration
}

// AMQPPublisher publishes events as persistent JSON messages on a durable
// topic exchange, routed by event type. It redials when the broker closes
// its channel or connection.
type AMQPPublisher struct {
	cfg  AMQPConfig
	log  *zap.SugaredLogger
	done chan struct{}

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// NewAMQPPublisher dials the broker, retrying on failure, and declares the
// exchange.
func NewAMQPPublisher(cfg AMQPConfig, log *zap.SugaredLogger) (*AMQPPublisher, error) {
	if cfg.DialAttempts == 0 {
		cfg.DialAttempts = 5
	}
	if cfg.DialDelay == 0 {
		cfg.DialDelay = 2 * time.Second
	}

	p := &AMQPPublisher{cfg: cfg, log: log, done: make(chan struct{})}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect dials, opens a channel, declares the exchange and starts watching
// the channel. The caller holds mu or owns p exclusively.
func (p *AMQPPublisher) connect() error {
	var conn *amqp.Connection
	err := retry.Do(
		func() error {
			var dialErr error
			conn, dialErr = amqp.Dial(p.cfg.URL)
			return dialErr
		},
		retry.Attempts(p.cfg.DialAttempts),
		retry.Delay(p.cfg.DialDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(error) bool { return !p.stopping() }),
		retry.OnRetry(func(n uint, err error) {
			p.log.Warnw("AMQP dial failed, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		p.cfg.Exchange, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}

	p.conn, p.channel = conn, channel
	go p.watch(channel, channel.NotifyClose(make(chan *amqp.Error, 1)))
	return nil
}

// watch redials once the broker closes channel, or the connection under it,
// with an error. A nil error means a client-side close and is ignored.
func (p *AMQPPublisher) watch(channel *amqp.Channel, closed <-chan *amqp.Error) {
	amqpErr := <-closed
	if amqpErr == nil || p.stopping() {
		return
	}
	p.log.Warnw("AMQP channel closed by broker, reconnecting", "code", amqpErr.Code, "reason", amqpErr.Reason)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.channel != channel {
		return
	}
	p.drop()
	if err := p.connect(); err != nil {
		p.log.Errorw("AMQP reconnect failed", "error", err)
	}
}

// drop discards the current connection. The caller holds mu.
func (p *AMQPPublisher) drop() {
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *AMQPPublisher) stopping() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Publish sends one event. Channels are not safe for concurrent publishing,
// so calls are serialised.
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPublisherClosed
	}
	if p.channel == nil || p.channel.IsClosed() {
		p.drop()
		if err := p.connect(); err != nil {
			return fmt.Errorf("reconnect AMQP: %w", err)
		}
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.cfg.Exchange,     // exchange
		string(event.Type), // routing key
		false,              // mandatory
		false,              // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID,
			Timestamp:    event.OccurredAt,
			Type:         string(event.Type),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	p.log.Debugw("Published event", "type", event.Type, "ledger_id", event.LedgerID, "entity_id", event.EntityID)
	return nil
}

// Close closes the channel and the connection and stops reconnecting.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.log.Warnw("Failed to close AMQP channel", "error", err)
		}
		p.channel = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}
