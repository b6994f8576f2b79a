package mq

import (
	"context"
	"errors"
	"fmt"

	"github.com/hostel-inventory/apiserver/config"
)

// DefaultMaxAttempts bounds deliveries of a failing message when the
// configuration leaves it unset.
const DefaultMaxAttempts = 5

// Message is a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
	// Attempt is the 1-based delivery count of this message.
	Attempt int
}

// Handler processes a message. Returning an error requests redelivery
// unless the error is marked Permanent.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker operations the mail queue relies on.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
}

func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open connects to the broker named by cfg.Backend.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	switch cfg.Backend {
	case "rabbitmq", "":
		client, err := NewRabbitMQClient(cfg.RabbitMQ, cfg.MaxAttempts)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		return New(client), nil
	case "pubsub":
		client, err := NewPubSubClient(ctx, cfg.PubSub, cfg.MaxAttempts)
		if err != nil {
			return nil, fmt.Errorf("connect pubsub: %w", err)
		}
		return New(client), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe consumes messages from the named channel until ctx is done.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

func (m *MQ) Close() error {
	return m.backend.Close()
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as one redelivery cannot fix. The message is moved to
// the dead-letter channel on its first failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var perm *permanentError
	return errors.As(err, &perm)
}

// Outcome is what a backend does with a delivery once the handler returns.
type Outcome int

const (
	OutcomeAck Outcome = iota
	OutcomeRetry
	OutcomeDeadLetter
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAck:
		return "ack"
	case OutcomeRetry:
		return "retry"
	case OutcomeDeadLetter:
		return "dead-letter"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Settle decides the outcome of a delivery from the handler's error and the
// number of attempts made so far.
func Settle(err error, attempt, maxAttempts int) Outcome {
	if err == nil {
		return OutcomeAck
	}
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if IsPermanent(err) || attempt >= maxAttempts {
		return OutcomeDeadLetter
	}
	return OutcomeRetry
}

// DeadLetterChannel names the channel holding messages that exhausted their
// attempts or failed permanently.
func DeadLetterChannel(channel string) string {
	return channel + ".dead"
}
