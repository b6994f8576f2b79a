package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/hostel-inventory/apiserver/config"
	"google.golang.org/api/option"
)

// Limits enforced by the Pub/Sub service on subscription settings.
const (
	pubsubMinAckDeadline      = 10 * time.Second
	pubsubMaxAckDeadline      = 600 * time.Second
	pubsubMaxBackoff          = 600 * time.Second
	pubsubMinDeliveryAttempts = 5
	pubsubMaxDeliveryAttempts = 100
)

// PubSubClient carries email jobs over Google Cloud Pub/Sub. Each channel
// gets a topic plus a "<channel>.dead" topic, and subscriptions are created
// with a retry backoff and a dead-letter policy.
type PubSubClient struct {
	client             *pubsub.Client
	subscriptionSuffix string
	ackDeadline        time.Duration
	minBackoff         time.Duration
	maxBackoff         time.Duration
	maxAttempts        int

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewPubSubClient constructs a Pub/Sub client from config.
func NewPubSubClient(ctx context.Context, cfg config.PubSubConfig, maxAttempts int) (*PubSubClient, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}
	return newPubSubClient(client, cfg, maxAttempts), nil
}

func newPubSubClient(client *pubsub.Client, cfg config.PubSubConfig, maxAttempts int) *PubSubClient {
	suffix := cfg.SubscriptionSuffix
	if suffix == "" {
		suffix = "-sub"
	}
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &PubSubClient{
		client:             client,
		subscriptionSuffix: suffix,
		ackDeadline:        clampDuration(cfg.AckDeadline, pubsubMinAckDeadline, pubsubMaxAckDeadline),
		minBackoff:         clampDuration(cfg.RetryMinBackoff, 0, pubsubMaxBackoff),
		maxBackoff:         clampDuration(cfg.RetryMaxBackoff, 0, pubsubMaxBackoff),
		maxAttempts:        maxAttempts,
		topics:             make(map[string]*pubsub.Topic),
	}
}

func (p *PubSubClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("pubsub channel is required")
	}

	topic, err := p.ensureTopic(ctx, channel)
	if err != nil {
		return "", err
	}
	result := topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	return result.Get(ctx)
}

// Subscribe receives from the channel's subscription. Retries are nacked and
// redelivered by the service with backoff; dead letters are forwarded to the
// dead topic and acked.
func (p *PubSubClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("pubsub channel is required")
	}

	topic, err := p.ensureTopic(ctx, channel)
	if err != nil {
		return err
	}
	deadTopic, err := p.ensureTopic(ctx, DeadLetterChannel(channel))
	if err != nil {
		return err
	}
	// Without a subscription the dead topic would discard what it receives.
	if _, err := p.ensureSubscription(ctx, p.subscriptionName(deadTopic.ID()), pubsub.SubscriptionConfig{Topic: deadTopic}); err != nil {
		return err
	}
	sub, err := p.ensureSubscription(ctx, p.subscriptionName(channel), p.subscriptionConfig(topic, deadTopic))
	if err != nil {
		return err
	}

	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		message := Message{
			ID:         msg.ID,
			Data:       msg.Data,
			Attributes: msg.Attributes,
			Attempt:    1,
		}
		if msg.DeliveryAttempt != nil && *msg.DeliveryAttempt > 0 {
			message.Attempt = *msg.DeliveryAttempt
		}
		err := handler(ctx, message)

		switch Settle(err, message.Attempt, p.maxAttempts) {
		case OutcomeAck:
			msg.Ack()
		case OutcomeRetry:
			msg.Nack()
		case OutcomeDeadLetter:
			slog.WarnContext(ctx, "dead-lettering message",
				"channel", channel, "id", message.ID, "attempt", message.Attempt, "error", err)
			if _, ferr := deadTopic.Publish(ctx, &pubsub.Message{Data: msg.Data, Attributes: msg.Attributes}).Get(ctx); ferr != nil {
				msg.Nack()
				return
			}
			msg.Ack()
		}
	})
}

// Close flushes cached topics and closes the underlying Pub/Sub client.
func (p *PubSubClient) Close() error {
	p.mu.Lock()
	for _, topic := range p.topics {
		topic.Stop()
	}
	p.topics = make(map[string]*pubsub.Topic)
	p.mu.Unlock()
	return p.client.Close()
}

func (p *PubSubClient) subscriptionConfig(topic, deadTopic *pubsub.Topic) pubsub.SubscriptionConfig {
	attempts := p.maxAttempts
	if attempts < pubsubMinDeliveryAttempts {
		attempts = pubsubMinDeliveryAttempts
	}
	if attempts > pubsubMaxDeliveryAttempts {
		attempts = pubsubMaxDeliveryAttempts
	}
	retry := &pubsub.RetryPolicy{}
	if p.minBackoff > 0 {
		retry.MinimumBackoff = p.minBackoff
	}
	if p.maxBackoff > 0 {
		retry.MaximumBackoff = p.maxBackoff
	}
	return pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: p.ackDeadline,
		RetryPolicy: retry,
		DeadLetterPolicy: &pubsub.DeadLetterPolicy{
			DeadLetterTopic:     deadTopic.String(),
			MaxDeliveryAttempts: attempts,
		},
	}
}

// ensureTopic returns a cached topic handle, creating the topic on first use.
func (p *PubSubClient) ensureTopic(ctx context.Context, name string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if topic, ok := p.topics[name]; ok {
		return topic, nil
	}

	topic := p.client.Topic(name)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check topic %s: %w", name, err)
	}
	if !exists {
		if topic, err = p.client.CreateTopic(ctx, name); err != nil {
			return nil, fmt.Errorf("create topic %s: %w", name, err)
		}
	}
	p.topics[name] = topic
	return topic, nil
}

func (p *PubSubClient) ensureSubscription(ctx context.Context, name string, cfg pubsub.SubscriptionConfig) (*pubsub.Subscription, error) {
	sub := p.client.Subscription(name)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return p.client.CreateSubscription(ctx, name, cfg)
	}
	return sub, nil
}

func (p *PubSubClient) subscriptionName(channel string) string {
	return channel + p.subscriptionSuffix
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
