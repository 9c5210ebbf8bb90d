package sink

import (
	"context"
	"sync"

	"chat-relay/domain/event"
	"chat-relay/errors"
)

// ChannelSink buffers outbound events for one connection. The session's
// write loop drains Events; the fan-out publisher feeds it through Consume.
type ChannelSink struct {
	Events chan event.Routed

	closeOnce sync.Once
	done      chan struct{}
}

func NewChannelSink(bufferSize int) *ChannelSink {
	return &ChannelSink{
		Events: make(chan event.Routed, bufferSize),
		done:   make(chan struct{}),
	}
}

// Consume is called by the fan-out publisher.
// Redirects the event to the owning connection's write loop. A closed sink
// reports ErrStaleConnection so the publisher can self-heal the registries.
func (s *ChannelSink) Consume(ctx context.Context, e event.Routed) error {
	select {
	case <-s.done:
		return errors.ErrStaleConnection
	default:
	}
	select {
	case s.Events <- e:
		return nil
	case <-s.done:
		return errors.ErrStaleConnection
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close marks the sink unreachable. Idempotent.
func (s *ChannelSink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Done is closed once the sink has been closed.
func (s *ChannelSink) Done() <-chan struct{} {
	return s.done
}
