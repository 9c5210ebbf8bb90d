package sink

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-relay/domain/event"
	"chat-relay/errors"
)

func TestChannelSink_ConsumeAndDrain(t *testing.T) {
	req := require.New(t)
	s := NewChannelSink(2)

	e := event.Routed{Type: "chat.message.new", Payload: []byte(`{}`)}
	req.NoError(s.Consume(context.Background(), e))

	select {
	case got := <-s.Events:
		req.Equal(e.Type, got.Type)
	case <-time.After(time.Second):
		req.Fail("Buffered event should be drainable")
	}
}

func TestChannelSink_ClosedSinkReportsStale(t *testing.T) {
	req := require.New(t)
	s := NewChannelSink(1)
	s.Close()
	s.Close() // idempotent

	err := s.Consume(context.Background(), event.Routed{})
	req.ErrorIs(err, errors.ErrStaleConnection)
}

func TestChannelSink_FullBufferHonorsContext(t *testing.T) {
	req := require.New(t)
	s := NewChannelSink(1)
	req.NoError(s.Consume(context.Background(), event.Routed{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Consume(ctx, event.Routed{})
	req.ErrorIs(err, context.DeadlineExceeded)
}

func TestChannelSink_CloseUnblocksPendingConsume(t *testing.T) {
	req := require.New(t)
	s := NewChannelSink(1)
	req.NoError(s.Consume(context.Background(), event.Routed{}))

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Consume(context.Background(), event.Routed{})
	}()

	time.Sleep(10 * time.Millisecond)
	s.Close()

	select {
	case err := <-errChan:
		req.ErrorIs(err, errors.ErrStaleConnection)
	case <-time.After(time.Second):
		req.Fail("Close should unblock a waiting Consume")
	}
}
