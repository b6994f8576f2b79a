package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hostel-inventory/apiserver/internal/mq"
)

// QueueSender hands messages to a broker; a Worker performs the delivery.
type QueueSender struct {
	queue   *mq.MQ
	channel string
}

func NewQueueSender(queue *mq.MQ, channel string) *QueueSender {
	return &QueueSender{queue: queue, channel: channel}
}

func (q *QueueSender) Send(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := q.queue.Publish(ctx, q.channel, data, map[string]string{"type": "email"}); err != nil {
		return fmt.Errorf("publish email: %w", err)
	}
	return nil
}

// Worker consumes queued messages and relays them to a Sender. Rejected
// messages are dead-lettered at once; other failures are redelivered until the
// broker's attempt limit.
type Worker struct {
	queue   *mq.MQ
	channel string
	sender  Sender
}

func NewWorker(queue *mq.MQ, channel string, sender Sender) *Worker {
	return &Worker{queue: queue, channel: channel, sender: sender}
}

// Run blocks until ctx is cancelled or the subscription fails.
func (w *Worker) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "mail worker started", "channel", w.channel)
	return w.queue.Subscribe(ctx, w.channel, w.handle)
}

func (w *Worker) handle(ctx context.Context, m mq.Message) error {
	var msg Message
	if err := json.Unmarshal(m.Data, &msg); err != nil {
		// Redelivery cannot fix a malformed payload.
		slog.ErrorContext(ctx, "dropping malformed email job", "id", m.ID, "error", err)
		return nil
	}
	if err := w.sender.Send(ctx, msg); err != nil {
		if Rejected(err) {
			slog.ErrorContext(ctx, "email rejected", "id", m.ID, "to", msg.To, "attempt", m.Attempt, "error", err)
			return mq.Permanent(err)
		}
		slog.WarnContext(ctx, "email delivery failed", "id", m.ID, "to", msg.To, "attempt", m.Attempt, "error", err)
		return err
	}
	return nil
}
