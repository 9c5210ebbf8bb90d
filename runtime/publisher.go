// Package runtime hosts the fan-out engine: per-connection sessions, inbound
// event routing and topic fan-out. It orchestrates delivery without owning
// domain rules or storage.
package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/observability"
)

// LocalSinks maps connection ids to the sinks attached to this process.
// Topic membership lives in the shared registry and spans processes; this
// table is the local half that turns a connection id into a reachable sink.
type LocalSinks struct {
	mu    sync.RWMutex
	sinks map[domain.ConnectionID]contract.EventSink
}

func NewLocalSinks() *LocalSinks {
	return &LocalSinks{sinks: make(map[domain.ConnectionID]contract.EventSink)}
}

func (l *LocalSinks) Attach(conn domain.ConnectionID, sink contract.EventSink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks[conn] = sink
	observability.LiveConnections.Set(float64(len(l.sinks)))
}

func (l *LocalSinks) Detach(conn domain.ConnectionID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sinks, conn)
	observability.LiveConnections.Set(float64(len(l.sinks)))
}

func (l *LocalSinks) Get(conn domain.ConnectionID) (contract.EventSink, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sink, ok := l.sinks[conn]
	return sink, ok
}

func (l *LocalSinks) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sinks)
}

// FanoutPublisher resolves a routed event's topic to its current member
// connections and delivers to each one independently. A failed delivery
// never propagates: the member is treated as stale and evicted from both
// the topic registry and the presence store.
type FanoutPublisher struct {
	registry contract.ITopicRegistry
	presence contract.IPresenceStore
	sinks    *LocalSinks
	timeout  time.Duration
	log      *slog.Logger
}

func NewFanoutPublisher(registry contract.ITopicRegistry, presence contract.IPresenceStore,
	sinks *LocalSinks, timeout time.Duration, log *slog.Logger) *FanoutPublisher {
	return &FanoutPublisher{
		registry: registry,
		presence: presence,
		sinks:    sinks,
		timeout:  timeout,
		log:      log,
	}
}

// Deliver pushes one routed event to every member subscribed at call time.
// Members without a local sink belong to another process and are served by
// that process's own relay. No ordering is guaranteed between members.
func (p *FanoutPublisher) Deliver(ctx context.Context, e event.Routed) {
	members, err := p.registry.Members(ctx, e.Topic)
	if err != nil {
		p.log.Error("Fanout aborted, registry unreachable", "topic", e.Topic, "error", err)
		return
	}

	for _, conn := range members {
		sink, ok := p.sinks.Get(conn)
		if !ok {
			continue
		}

		deliverCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := sink.Consume(deliverCtx, e)
		cancel()
		if err != nil {
			observability.FanoutFailures.Inc()
			p.evict(ctx, e.Topic, conn, err)
			continue
		}
		observability.FanoutDeliveries.Inc()
	}
}

// evict self-heals a stale member: out of this topic, out of presence.
// Cleanup failures are logged, not retried; the sweeper catches leftovers.
func (p *FanoutPublisher) evict(ctx context.Context, topic domain.Topic, conn domain.ConnectionID, cause error) {
	p.log.Warn("Evicting stale connection", "conn", conn, "topic", topic, "cause", cause)
	observability.StaleEvictions.Inc()

	if err := p.registry.Unsubscribe(ctx, topic, conn); err != nil {
		p.log.Warn("Failed to unsubscribe stale connection", "conn", conn, "topic", topic, "error", err)
	}
	if err := p.presence.Unregister(ctx, conn); err != nil {
		p.log.Warn("Failed to unregister stale connection", "conn", conn, "error", err)
	}
}
