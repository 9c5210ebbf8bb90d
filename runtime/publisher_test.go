package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-relay/domain"
	"chat-relay/domain/event"
	redisinfra "chat-relay/infrastructure/redis"
	"chat-relay/mocks"
	"chat-relay/sink"
)

func routedTo(topic domain.Topic) event.Routed {
	return event.Routed{Type: event.TypeMessageNew, Topic: topic, Payload: []byte(`{"n":1}`)}
}

func TestFanoutPublisher_DeliversToEveryLocalMember(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registryMock := mocks.NewMockITopicRegistry(ctrl)
	presenceMock := mocks.NewMockIPresenceStore(ctrl)
	sinks := NewLocalSinks()

	first := sink.NewChannelSink(4)
	second := sink.NewChannelSink(4)
	sinks.Attach("conn-1", first)
	sinks.Attach("conn-2", second)

	topic := domain.RoomTopic(7)
	registryMock.EXPECT().
		Members(gomock.Any(), topic).
		Return([]domain.ConnectionID{"conn-1", "conn-2"}, nil)

	publisher := NewFanoutPublisher(registryMock, presenceMock, sinks, time.Second, slog.Default())
	publisher.Deliver(context.Background(), routedTo(topic))

	req.Len(first.Events, 1)
	req.Len(second.Events, 1)
}

func TestFanoutPublisher_SkipsMembersOfOtherProcesses(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registryMock := mocks.NewMockITopicRegistry(ctrl)
	presenceMock := mocks.NewMockIPresenceStore(ctrl)
	sinks := NewLocalSinks()

	local := sink.NewChannelSink(4)
	sinks.Attach("conn-local", local)

	topic := domain.RoomTopic(7)
	registryMock.EXPECT().
		Members(gomock.Any(), topic).
		Return([]domain.ConnectionID{"conn-local", "conn-elsewhere"}, nil)

	publisher := NewFanoutPublisher(registryMock, presenceMock, sinks, time.Second, slog.Default())
	publisher.Deliver(context.Background(), routedTo(topic))

	// The remote member is another process's concern, not an eviction.
	req.Len(local.Events, 1)
}

func TestFanoutPublisher_DoesNotLeakAcrossTopics(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registryMock := mocks.NewMockITopicRegistry(ctrl)
	presenceMock := mocks.NewMockIPresenceStore(ctrl)
	sinks := NewLocalSinks()

	subscribed := sink.NewChannelSink(4)
	bystander := sink.NewChannelSink(4)
	sinks.Attach("conn-sub", subscribed)
	sinks.Attach("conn-other", bystander)

	topic := domain.RoomTopic(7)
	registryMock.EXPECT().
		Members(gomock.Any(), topic).
		Return([]domain.ConnectionID{"conn-sub"}, nil)

	publisher := NewFanoutPublisher(registryMock, presenceMock, sinks, time.Second, slog.Default())
	publisher.Deliver(context.Background(), routedTo(topic))

	req.Len(subscribed.Events, 1)
	req.Empty(bystander.Events)
}

func TestFanoutPublisher_EvictsStaleMemberAndKeepsDelivering(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registryMock := mocks.NewMockITopicRegistry(ctrl)
	presenceMock := mocks.NewMockIPresenceStore(ctrl)
	sinks := NewLocalSinks()

	stale := sink.NewChannelSink(4)
	stale.Close()
	healthy := sink.NewChannelSink(4)
	sinks.Attach("conn-stale", stale)
	sinks.Attach("conn-healthy", healthy)

	topic := domain.RoomTopic(7)
	registryMock.EXPECT().
		Members(gomock.Any(), topic).
		Return([]domain.ConnectionID{"conn-stale", "conn-healthy"}, nil)
	registryMock.EXPECT().
		Unsubscribe(gomock.Any(), topic, domain.ConnectionID("conn-stale")).
		Return(nil)
	presenceMock.EXPECT().
		Unregister(gomock.Any(), domain.ConnectionID("conn-stale")).
		Return(nil)

	publisher := NewFanoutPublisher(registryMock, presenceMock, sinks, time.Second, slog.Default())
	publisher.Deliver(context.Background(), routedTo(topic))

	req.Len(healthy.Events, 1)
}

// Against the shared store itself: once a stale member has been evicted,
// later publishes must not consider it anymore.
func TestFanoutPublisher_EvictionSticksInTheSharedStore(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	registry := redisinfra.NewTopicRegistry(client, slog.Default())
	presence := redisinfra.NewPresenceStore(client, time.Minute, slog.Default())

	topic := domain.RoomTopic(7)
	req.NoError(presence.Register(ctx, "bob", "conn-healthy"))
	req.NoError(presence.Register(ctx, "eve", "conn-stale"))
	req.NoError(registry.Subscribe(ctx, topic, "conn-healthy"))
	req.NoError(registry.Subscribe(ctx, topic, "conn-stale"))

	sinks := NewLocalSinks()
	healthy := sink.NewChannelSink(4)
	sinks.Attach("conn-healthy", healthy)
	stale := sink.NewChannelSink(4)
	stale.Close()
	sinks.Attach("conn-stale", stale)

	publisher := NewFanoutPublisher(registry, presence, sinks, time.Second, slog.Default())
	publisher.Deliver(ctx, routedTo(topic))

	members, err := registry.Members(ctx, topic)
	req.NoError(err)
	req.Equal([]domain.ConnectionID{"conn-healthy"}, members)

	conns, err := presence.ConnectionsOf(ctx, "eve")
	req.NoError(err)
	req.Empty(conns)

	publisher.Deliver(ctx, routedTo(topic))

	req.Len(healthy.Events, 2)
	req.Empty(stale.Events)
}

func TestLocalSinks_AttachDetach(t *testing.T) {
	req := require.New(t)
	sinks := NewLocalSinks()
	s := sink.NewChannelSink(1)

	sinks.Attach("conn-1", s)
	req.Equal(1, sinks.Len())

	got, ok := sinks.Get("conn-1")
	req.True(ok)
	req.Same(s, got)

	sinks.Detach("conn-1")
	sinks.Detach("conn-1") // idempotent
	req.Equal(0, sinks.Len())
	_, ok = sinks.Get("conn-1")
	req.False(ok)
}
