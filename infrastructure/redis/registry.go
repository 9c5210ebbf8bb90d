package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
)

// TopicRegistry maps each topic to a Redis set of connection ids and carries
// publishes over pub/sub so they reach subscribers registered from any
// process. SMEMBERS is the atomic membership snapshot for that topic; no
// stronger cross-topic ordering exists.
type TopicRegistry struct {
	client *redis.Client
	log    *slog.Logger
}

func NewTopicRegistry(client *redis.Client, log *slog.Logger) *TopicRegistry {
	return &TopicRegistry{client: client, log: log}
}

func (r *TopicRegistry) Subscribe(ctx context.Context, topic domain.Topic, conn domain.ConnectionID) error {
	if err := r.client.SAdd(ctx, topicKey(topic), string(conn)).Err(); err != nil {
		return fmt.Errorf("%w: subscribe %s to %s: %v", errors.ErrRegistryUnavailable, conn, topic, err)
	}
	return nil
}

// Unsubscribe removes a connection from a topic. SREM of a non-member is a
// no-op, which is exactly the idempotence disconnect cleanup needs.
func (r *TopicRegistry) Unsubscribe(ctx context.Context, topic domain.Topic, conn domain.ConnectionID) error {
	if err := r.client.SRem(ctx, topicKey(topic), string(conn)).Err(); err != nil {
		return fmt.Errorf("%w: unsubscribe %s from %s: %v", errors.ErrRegistryUnavailable, conn, topic, err)
	}
	return nil
}

func (r *TopicRegistry) Members(ctx context.Context, topic domain.Topic) ([]domain.ConnectionID, error) {
	members, err := r.client.SMembers(ctx, topicKey(topic)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: members of %s: %v", errors.ErrRegistryUnavailable, topic, err)
	}
	conns := make([]domain.ConnectionID, 0, len(members))
	for _, m := range members {
		conns = append(conns, domain.ConnectionID(m))
	}
	return conns, nil
}

// Publish enqueues delivery to every current member of the topic, on every
// process. Delivery order follows publish call order within one process;
// nothing sequences publishes across processes.
func (r *TopicRegistry) Publish(ctx context.Context, topic domain.Topic, e event.Routed) error {
	e.Topic = topic
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal routed event: %w", err)
	}
	if err := r.client.Publish(ctx, fanoutChannel(topic), data).Err(); err != nil {
		return fmt.Errorf("%w: publish to %s: %v", errors.ErrRegistryUnavailable, topic, err)
	}
	return nil
}

// Listen consumes fan-out envelopes published from any process and hands
// them to fn. It blocks until ctx is cancelled or the subscription breaks.
// Every server process runs this exactly once, under supervision.
func (r *TopicRegistry) Listen(ctx context.Context, fn func(ctx context.Context, e event.Routed)) error {
	sub := r.client.PSubscribe(ctx, fanoutPattern)
	defer func() {
		if err := sub.Close(); err != nil {
			r.log.Warn("Failed to close fanout subscription", "error", err)
		}
	}()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("%w: fanout subscription closed", errors.ErrRegistryUnavailable)
			}
			var e event.Routed
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				r.log.Warn("Dropping malformed fanout envelope", "channel", msg.Channel, "error", err)
				continue
			}
			fn(ctx, e)
		}
	}
}

// Sweep removes topic members whose presence entry is gone. It reconciles
// the leftovers of crashed processes; live traffic self-heals through the
// publisher instead.
func (r *TopicRegistry) Sweep(ctx context.Context) (int, error) {
	var removed int
	iter := r.client.Scan(ctx, 0, topicKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		members, err := r.client.SMembers(ctx, key).Result()
		if err != nil {
			return removed, fmt.Errorf("%w: sweep %s: %v", errors.ErrRegistryUnavailable, key, err)
		}
		for _, m := range members {
			exists, err := r.client.Exists(ctx, connKey(domain.ConnectionID(m))).Result()
			if err != nil {
				return removed, fmt.Errorf("%w: sweep %s: %v", errors.ErrRegistryUnavailable, key, err)
			}
			if exists == 0 {
				if err := r.client.SRem(ctx, key, m).Err(); err != nil {
					r.log.Warn("Failed to sweep stale topic member", "topic", key, "conn", m, "error", err)
					continue
				}
				removed++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("%w: sweep scan: %v", errors.ErrRegistryUnavailable, err)
	}
	return removed, nil
}
