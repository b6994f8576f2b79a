package mq

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hostel-inventory/apiserver/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// attemptHeader carries the delivery count across republished retries.
const attemptHeader = "x-attempt"

// RabbitMQClient carries email jobs over queues on the default exchange.
// Every queue is declared with a "<name>.dead" companion that receives
// messages rejected by Settle.
type RabbitMQClient struct {
	conn            *amqp.Connection
	channel         *amqp.Channel
	queueDurable    bool
	queueAutoDelete bool
	maxAttempts     int

	mu       sync.Mutex
	declared map[string]struct{}
}

// NewRabbitMQClient dials the broker and puts the channel in confirm mode so
// Publish returns only after the broker has taken the message.
func NewRabbitMQClient(cfg config.RabbitMQConfig, maxAttempts int) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	closeAll := func() {
		_ = ch.Close()
		_ = conn.Close()
	}

	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			closeAll()
			return nil, err
		}
	}
	if err := ch.Confirm(false); err != nil {
		closeAll()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &RabbitMQClient{
		conn:            conn,
		channel:         ch,
		queueDurable:    cfg.QueueDurable,
		queueAutoDelete: cfg.QueueAutoDelete,
		maxAttempts:     maxAttempts,
		declared:        make(map[string]struct{}),
	}, nil
}

// Publish sends a first delivery attempt to the named queue.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}
	if err := r.declareQueue(channel); err != nil {
		return "", err
	}

	messageID := newMessageID()
	if err := r.send(ctx, channel, newPublishing(messageID, data, attrs, 1, r.queueDurable)); err != nil {
		return "", err
	}
	return messageID, nil
}

func (r *RabbitMQClient) send(ctx context.Context, queue string, msg amqp.Publishing) error {
	confirm, err := r.channel.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, msg)
	if err != nil {
		return err
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return fmt.Errorf("rabbitmq nacked message %s", msg.MessageId)
	}
	return nil
}

// Subscribe consumes the named queue. Failed messages are republished with an
// incremented attempt header until Settle dead-letters them.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}
	if err := r.declareQueue(channel); err != nil {
		return err
	}

	consumerTag := fmt.Sprintf("consumer-%s", newMessageID())
	deliveries, err := r.channel.Consume(channel, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.channel.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			r.settle(ctx, channel, delivery, handler)
		}
	}
}

func (r *RabbitMQClient) settle(ctx context.Context, queue string, delivery amqp.Delivery, handler Handler) {
	message := Message{
		ID:         delivery.MessageId,
		Data:       delivery.Body,
		Attributes: headersToAttributes(delivery.Headers),
		Attempt:    attemptFromHeaders(delivery.Headers),
	}
	err := handler(ctx, message)

	switch Settle(err, message.Attempt, r.maxAttempts) {
	case OutcomeAck:
		_ = delivery.Ack(false)
	case OutcomeRetry:
		retry := newPublishing(message.ID, message.Data, message.Attributes, message.Attempt+1, r.queueDurable)
		if perr := r.send(ctx, queue, retry); perr != nil {
			// Leave the original on the queue rather than lose it.
			_ = delivery.Nack(false, true)
			return
		}
		_ = delivery.Ack(false)
	case OutcomeDeadLetter:
		slog.WarnContext(ctx, "dead-lettering message",
			"queue", queue, "id", message.ID, "attempt", message.Attempt, "error", err)
		_ = delivery.Nack(false, false)
	}
}

// Close closes the underlying channel and connection.
func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// declareQueue declares name and its dead-letter queue once per client.
func (r *RabbitMQClient) declareQueue(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.declared[name]; ok {
		return nil
	}

	dead := DeadLetterChannel(name)
	if _, err := r.channel.QueueDeclare(dead, r.queueDurable, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", dead, err)
	}
	if _, err := r.channel.QueueDeclare(name, r.queueDurable, r.queueAutoDelete, false, false, queueArgs(name)); err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	r.declared[name] = struct{}{}
	return nil
}

// queueArgs routes rejected messages to the queue's dead-letter companion
// through the default exchange.
func queueArgs(name string) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": DeadLetterChannel(name),
	}
}

func newPublishing(messageID string, data []byte, attrs map[string]string, attempt int, persistent bool) amqp.Publishing {
	headers := amqp.Table{}
	for key, value := range attrs {
		headers[key] = value
	}
	headers[attemptHeader] = int32(attempt)

	msg := amqp.Publishing{
		ContentType: contentType(attrs),
		MessageId:   messageID,
		Timestamp:   time.Now().UTC(),
		Headers:     headers,
		Body:        data,
	}
	if persistent {
		msg.DeliveryMode = amqp.Persistent
	}
	return msg
}

func headersToAttributes(headers amqp.Table) map[string]string {
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		if key == attemptHeader {
			continue
		}
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

// attemptFromHeaders treats a missing or unreadable header as the first attempt.
func attemptFromHeaders(headers amqp.Table) int {
	var attempt int
	switch v := headers[attemptHeader].(type) {
	case int32:
		attempt = int(v)
	case int64:
		attempt = int(v)
	case int:
		attempt = v
	case string:
		attempt, _ = strconv.Atoi(v)
	}
	if attempt < 1 {
		return 1
	}
	return attempt
}

func newMessageID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(buf[:])
}

func contentType(attrs map[string]string) string {
	if value, ok := attrs["content-type"]; ok && value != "" {
		return value
	}
	return "application/json"
}
