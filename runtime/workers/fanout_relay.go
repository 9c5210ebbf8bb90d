package workers

import (
	"context"
	"log/slog"

	redisinfra "chat-relay/infrastructure/redis"
	"chat-relay/runtime"
)

// FanoutRelay bridges the shared pub/sub medium to this process's local
// connections. Every server process runs one: a publish issued anywhere
// reaches subscribers attached to any process through their local relay.
type FanoutRelay struct {
	registry  *redisinfra.TopicRegistry
	publisher *runtime.FanoutPublisher
	log       *slog.Logger
}

func NewFanoutRelay(registry *redisinfra.TopicRegistry, publisher *runtime.FanoutPublisher, log *slog.Logger) *FanoutRelay {
	return &FanoutRelay{registry: registry, publisher: publisher, log: log}
}

func (w *FanoutRelay) Run(ctx context.Context) error {
	w.log.Info("Fanout relay listening for published events")
	return w.registry.Listen(ctx, w.publisher.Deliver)
}
