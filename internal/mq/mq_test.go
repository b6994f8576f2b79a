package mq

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hostel-inventory/apiserver/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), config.MQConfig{Backend: "kafka"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestContentTypeDefaultsToJSON(t *testing.T) {
	if got := contentType(nil); got != "application/json" {
		t.Fatalf("expected application/json, got %q", got)
	}
	if got := contentType(map[string]string{"content-type": "text/plain"}); got != "text/plain" {
		t.Fatalf("expected override, got %q", got)
	}
}

func TestSettle(t *testing.T) {
	temporary := errors.New("421 try again later")
	cases := []struct {
		name        string
		err         error
		attempt     int
		maxAttempts int
		want        Outcome
	}{
		{"success", nil, 1, 3, OutcomeAck},
		{"temporary retried", temporary, 2, 3, OutcomeRetry},
		{"temporary exhausted", temporary, 3, 3, OutcomeDeadLetter},
		{"permanent first attempt", Permanent(temporary), 1, 3, OutcomeDeadLetter},
		{"permanent wrapped", fmt.Errorf("send: %w", Permanent(temporary)), 1, 3, OutcomeDeadLetter},
		{"default limit", temporary, DefaultMaxAttempts - 1, 0, OutcomeRetry},
		{"default limit reached", temporary, DefaultMaxAttempts, 0, OutcomeDeadLetter},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Settle(tc.err, tc.attempt, tc.maxAttempts); got != tc.want {
				t.Fatalf("Settle = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestPermanentNil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Fatal("expected nil")
	}
	if IsPermanent(errors.New("plain")) {
		t.Fatal("plain error reported as permanent")
	}
}

func TestNewPublishing(t *testing.T) {
	msg := newPublishing("id-1", []byte("{}"), map[string]string{"kind": "reset"}, 3, true)
	if msg.DeliveryMode != amqp.Persistent {
		t.Fatalf("expected persistent delivery, got %d", msg.DeliveryMode)
	}
	if got := attemptFromHeaders(msg.Headers); got != 3 {
		t.Fatalf("expected attempt 3, got %d", got)
	}
	attrs := headersToAttributes(msg.Headers)
	if _, ok := attrs[attemptHeader]; ok || attrs["kind"] != "reset" {
		t.Fatalf("unexpected attributes %v", attrs)
	}

	if transient := newPublishing("id-2", nil, nil, 1, false); transient.DeliveryMode == amqp.Persistent {
		t.Fatal("expected transient delivery when the queue is not durable")
	}
}

func TestAttemptFromHeaders(t *testing.T) {
	cases := []struct {
		headers amqp.Table
		want    int
	}{
		{nil, 1},
		{amqp.Table{attemptHeader: int32(4)}, 4},
		{amqp.Table{attemptHeader: int64(2)}, 2},
		{amqp.Table{attemptHeader: "5"}, 5},
		{amqp.Table{attemptHeader: "junk"}, 1},
		{amqp.Table{attemptHeader: int32(0)}, 1},
	}
	for _, tc := range cases {
		if got := attemptFromHeaders(tc.headers); got != tc.want {
			t.Fatalf("attemptFromHeaders(%v) = %d, want %d", tc.headers, got, tc.want)
		}
	}
}

func TestQueueArgsRouteToDeadQueue(t *testing.T) {
	args := queueArgs("hostel.email")
	if args["x-dead-letter-exchange"] != "" || args["x-dead-letter-routing-key"] != "hostel.email.dead" {
		t.Fatalf("unexpected queue args %v", args)
	}
}
