// internal/publisher/rabbitmq.go
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"mcp-health-profile/internal/models"
)

const (
	reconnectDelay = 5 * time.Second
	publishTimeout = 30 * time.Second
	mailboxSize    = 64
)

var (
	ErrMailboxFull = errors.New("publisher mailbox is full")
	ErrClosed      = errors.New("publisher is closed")
)

// SampleEvent is the message body published for every saved sample.
type SampleEvent struct {
	Event  string            `json:"event"`
	UUID   string            `json:"uuid"`
	Type   models.ObjectType `json:"type"`
	Value  float64           `json:"value"`
	Unit   string            `json:"unit"`
	Start  time.Time         `json:"start"`
	End    time.Time         `json:"end"`
	Source string            `json:"source"`
}

// NewSampleEvent describes a saved sample.
func NewSampleEvent(sample *models.Sample) SampleEvent {
	return SampleEvent{
		Event:  "sample.saved",
		UUID:   sample.UUID,
		Type:   sample.Type,
		Value:  sample.Quantity.Value,
		Unit:   sample.Quantity.Unit.Symbol,
		Start:  sample.Start,
		End:    sample.End,
		Source: sample.Source,
	}
}

// session is one live broker connection able to publish to the queue.
type session interface {
	Publish(ctx context.Context, body []byte) error
	Closed() <-chan *amqp.Error
	Close() error
}

type connectFunc func() (session, error)

type pushMessage struct {
	body []byte
}

// RabbitMQActor owns the broker connection from a single goroutine and
// publishes whatever arrives in its mailbox.
type RabbitMQActor struct {
	queueName string
	connect   connectFunc
	logger    *zap.Logger

	mailbox chan pushMessage
	wg      sync.WaitGroup

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool

	session   session
	lastDial  time.Time
	dialError error
}

func NewRabbitMQActor(addr, queueName string, logger *zap.Logger) *RabbitMQActor {
	connect := func() (session, error) { return dialSession(addr, queueName) }
	return newActor(queueName, connect, logger)
}

func newActor(queueName string, connect connectFunc, logger *zap.Logger) *RabbitMQActor {
	if logger == nil {
		logger = zap.NewNop()
	}
	actor := &RabbitMQActor{
		queueName: queueName,
		connect:   connect,
		logger:    logger.With(zap.String("queue", queueName)),
		mailbox:   make(chan pushMessage, mailboxSize),
	}
	actor.wg.Add(1)
	go actor.run()
	return actor
}

// SampleSaved queues an event for the sample. It never waits on the broker.
func (actor *RabbitMQActor) SampleSaved(ctx context.Context, sample *models.Sample) error {
	body, err := json.Marshal(NewSampleEvent(sample))
	if err != nil {
		return fmt.Errorf("failed to encode sample event: %w", err)
	}
	return actor.Push(ctx, body)
}

// Push queues raw bytes for publishing.
func (actor *RabbitMQActor) Push(ctx context.Context, body []byte) error {
	actor.mu.RLock()
	defer actor.mu.RUnlock()
	if actor.closed {
		return ErrClosed
	}

	select {
	case actor.mailbox <- pushMessage{body: body}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrMailboxFull
	}
}

// Close drains the mailbox, closes the connection and stops the actor.
func (actor *RabbitMQActor) Close() {
	actor.closeOnce.Do(func() {
		actor.mu.Lock()
		actor.closed = true
		close(actor.mailbox)
		actor.mu.Unlock()

		actor.wg.Wait()
		actor.logger.Info("publisher stopped")
	})
}

func (actor *RabbitMQActor) run() {
	defer actor.wg.Done()
	defer actor.dropSession()

	for msg := range actor.mailbox {
		actor.handlePush(msg.body)
	}
}

// handlePush publishes with one retry on a fresh connection.
func (actor *RabbitMQActor) handlePush(body []byte) {
	for attempt := 0; attempt < 2; attempt++ {
		sess, err := actor.ensureSession()
		if err != nil {
			actor.logger.Warn("not connected, dropping message", zap.Error(err))
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err = sess.Publish(ctx, body)
		cancel()
		if err == nil {
			actor.logger.Debug("message published", zap.Int("bytes", len(body)))
			return
		}

		actor.logger.Warn("publish failed", zap.Int("attempt", attempt+1), zap.Error(err))
		actor.dropSession()
	}
}

func (actor *RabbitMQActor) ensureSession() (session, error) {
	if actor.session != nil {
		select {
		case amqpErr := <-actor.session.Closed():
			actor.logger.Info("connection closed, reconnecting", zap.Any("reason", amqpErr))
			actor.dropSession()
		default:
			return actor.session, nil
		}
	}

	if actor.dialError != nil && time.Since(actor.lastDial) < reconnectDelay {
		return nil, actor.dialError
	}

	actor.lastDial = time.Now()
	sess, err := actor.connect()
	if err != nil {
		actor.dialError = err
		return nil, err
	}
	actor.dialError = nil
	actor.session = sess
	actor.logger.Info("connected to RabbitMQ")
	return sess, nil
}

func (actor *RabbitMQActor) dropSession() {
	if actor.session == nil {
		return
	}
	if err := actor.session.Close(); err != nil {
		actor.logger.Debug("error closing session", zap.Error(err))
	}
	actor.session = nil
}

// amqpSession publishes to a durable queue over a confirm-less channel.
type amqpSession struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
	closed    chan *amqp.Error
}

func dialSession(addr, queueName string) (session, error) {
	conn, err := amqp.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("dialing RabbitMQ failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	s := &amqpSession{
		conn:      conn,
		channel:   ch,
		queueName: queueName,
		closed:    make(chan *amqp.Error, 1),
	}
	conn.NotifyClose(s.closed)
	return s, nil
}

func (s *amqpSession) Publish(ctx context.Context, body []byte) error {
	return s.channel.PublishWithContext(
		ctx,
		"",          // exchange
		s.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

func (s *amqpSession) Closed() <-chan *amqp.Error {
	return s.closed
}

func (s *amqpSession) Close() error {
	if err := s.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		s.conn.Close()
		return err
	}
	if err := s.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return nil
}
