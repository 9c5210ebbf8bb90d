package workers

import (
	"context"
	"log/slog"
	"time"

	redisinfra "chat-relay/infrastructure/redis"
	"chat-relay/observability"
)

// PresenceSweeper periodically reconciles the shared store: presence set
// members and topic members whose connection entry expired (a crashed
// process never runs its disconnect cleanup) are removed. Live traffic
// self-heals through the publisher; the sweeper covers idle topics.
type PresenceSweeper struct {
	presence *redisinfra.PresenceStore
	registry *redisinfra.TopicRegistry
	interval time.Duration
	log      *slog.Logger
}

func NewPresenceSweeper(presence *redisinfra.PresenceStore, registry *redisinfra.TopicRegistry,
	interval time.Duration, log *slog.Logger) *PresenceSweeper {
	return &PresenceSweeper{presence: presence, registry: registry, interval: interval, log: log}
}

func (w *PresenceSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			presenceRemoved, err := w.presence.Sweep(ctx)
			if err != nil {
				w.log.Warn("Presence sweep failed", "error", err)
				continue
			}
			topicRemoved, err := w.registry.Sweep(ctx)
			if err != nil {
				w.log.Warn("Topic sweep failed", "error", err)
				continue
			}
			if presenceRemoved+topicRemoved > 0 {
				observability.PresenceSwept.Add(float64(presenceRemoved + topicRemoved))
				w.log.Info("Swept stale entries", "presence", presenceRemoved, "topics", topicRemoved)
			}
		}
	}
}
