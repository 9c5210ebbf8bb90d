package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/sink"
)

// SessionState is the lifecycle position of one connection.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateAuthenticated
	StateSubscribed
	StateActive
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateSubscribed:
		return "subscribed"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const closeGrace = 5 * time.Second

// Session owns exactly one identity and one transport. All inbound events of
// the connection pass through it strictly one at a time; outbound delivery
// runs on its own loop so a slow write never blocks inbound processing.
// Different sessions are fully concurrent.
type Session struct {
	id    domain.ConnectionID
	state atomic.Int32

	mu       sync.Mutex // guards identity and topics
	identity domain.Identity
	topics   []domain.Topic

	transport contract.Transport
	presence  contract.IPresenceStore
	registry  contract.ITopicRegistry
	gateway   contract.IMessageGateway
	router    *Router
	sinks     *LocalSinks
	sink      *sink.ChannelSink

	closeOnce sync.Once
	log       *slog.Logger
}

func NewSession(transport contract.Transport, presence contract.IPresenceStore,
	registry contract.ITopicRegistry, gateway contract.IMessageGateway,
	router *Router, sinks *LocalSinks, bufferSize int, log *slog.Logger) *Session {
	id := domain.ConnectionID(uuid.NewString())
	return &Session{
		id:        id,
		transport: transport,
		presence:  presence,
		registry:  registry,
		gateway:   gateway,
		router:    router,
		sinks:     sinks,
		sink:      sink.NewChannelSink(bufferSize),
		log:       log.With("conn", string(id)),
	}
}

func (s *Session) ID() domain.ConnectionID { return s.id }

func (s *Session) Identity() domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) transition(from, to SessionState) error {
	if !s.state.CompareAndSwap(int32(from), int32(to)) {
		return fmt.Errorf("invalid session transition %s -> %s (currently %s)",
			from, to, s.State())
	}
	return nil
}

// Authenticate resolves the identity from the handshake token. On failure
// the session goes straight to Closed: no retry, nothing to clean up yet.
func (s *Session) Authenticate(ctx context.Context, token string, auth contract.IAuthenticator) error {
	identity, err := auth.Resolve(ctx, token)
	if err != nil {
		s.state.Store(int32(StateClosed))
		return err
	}
	if err := s.transition(StateConnecting, StateAuthenticated); err != nil {
		return err
	}
	s.mu.Lock()
	s.identity = identity
	s.log = s.log.With("identity", string(identity))
	s.mu.Unlock()
	return nil
}

// Subscribe registers the connection in the presence store and subscribes it
// to its personal topic, the system topic and every room topic of the
// identity's current memberships. A partial subscription is fatal: it is
// rolled back and the session closes, so a half-subscribed connection never
// silently misses messages.
func (s *Session) Subscribe(ctx context.Context) error {
	if err := s.transition(StateAuthenticated, StateSubscribed); err != nil {
		return err
	}
	identity := s.Identity()

	if err := s.presence.Register(ctx, identity, s.id); err != nil {
		s.state.Store(int32(StateClosed))
		return err
	}

	topics, err := s.desiredTopics(ctx)
	if err != nil {
		s.rollback(ctx, nil)
		return err
	}

	var subscribed []domain.Topic
	for _, topic := range topics {
		if err := s.registry.Subscribe(ctx, topic, s.id); err != nil {
			s.rollback(ctx, subscribed)
			return err
		}
		subscribed = append(subscribed, topic)
	}

	s.mu.Lock()
	s.topics = topics
	s.mu.Unlock()
	s.sinks.Attach(s.id, s.sink)
	s.log.Info("Session subscribed", "topics", len(topics))
	return nil
}

func (s *Session) desiredTopics(ctx context.Context) ([]domain.Topic, error) {
	identity := s.Identity()
	rooms, err := s.gateway.RoomsOf(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("resolve room memberships: %w", err)
	}
	topics := make([]domain.Topic, 0, len(rooms)+2)
	topics = append(topics, domain.PersonalTopic(identity), domain.SystemTopic)
	for _, room := range rooms {
		topics = append(topics, domain.RoomTopic(room))
	}
	return topics, nil
}

// rollback undoes a failed subscribe phase and closes the session.
func (s *Session) rollback(ctx context.Context, subscribed []domain.Topic) {
	for _, topic := range subscribed {
		if err := s.registry.Unsubscribe(ctx, topic, s.id); err != nil {
			s.log.Warn("Rollback unsubscribe failed", "topic", topic, "error", err)
		}
	}
	if err := s.presence.Unregister(ctx, s.id); err != nil {
		s.log.Warn("Rollback unregister failed", "error", err)
	}
	s.state.Store(int32(StateClosed))
}

// Run drives the two suspension loops of the connection: the read loop
// processes inbound events sequentially, the write loop drains the sink.
// Both stop together; Run returns once the session is fully closed.
func (s *Session) Run(ctx context.Context) error {
	if err := s.transition(StateSubscribed, StateActive); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.transport.OnHeartbeat(func() {
		if err := s.presence.Heartbeat(runCtx, s.id); err != nil {
			s.log.Debug("Heartbeat refresh failed", "error", err)
		}
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeLoop(runCtx)
		// A dead outbound path takes the whole session down.
		cancel()
		_ = s.transport.Close()
	}()

	err := s.readLoop(runCtx)

	// Disconnect: cancel any in-flight outbound delivery immediately. The
	// inbound event that was being processed has already completed.
	cancel()
	s.Close()
	wg.Wait()
	return err
}

// readLoop processes inbound events strictly one at a time. The next frame
// is not read until the previous event's domain operation and resulting
// publish both finished.
func (s *Session) readLoop(ctx context.Context) error {
	for {
		raw, err := s.transport.Read()
		if err != nil {
			s.log.Debug("Transport closed", "reason", err)
			return nil
		}

		publish, reply, err := s.router.Route(ctx, s, raw)
		if err != nil {
			s.log.Error("Fatal inbound event error", "error", err)
			return err
		}
		if reply != nil {
			// Private replies reuse the outbound path of this connection.
			if err := s.sink.Consume(ctx, *reply); err != nil {
				s.log.Debug("Dropping private reply", "error", err)
			}
		}
		if publish != nil {
			if err := s.registry.Publish(ctx, publish.Topic, *publish); err != nil {
				// Correctness over availability: better to drop the session
				// than to keep it running while missing messages.
				s.log.Error("Publish failed, closing session", "topic", publish.Topic, "error", err)
				return err
			}
		}
	}
}

func (s *Session) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.sink.Events:
			if err := s.transport.Write(ctx, e.Payload); err != nil {
				s.log.Debug("Outbound write failed", "error", err)
				return
			}
		}
	}
}

// Resubscribe realigns topic subscriptions with the identity's current room
// memberships. Joining a room mid-session does not resubscribe
// automatically; clients ask for it explicitly (chat.resubscribe) or
// reconnect.
func (s *Session) Resubscribe(ctx context.Context) error {
	desired, err := s.desiredTopics(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := make(map[domain.Topic]bool, len(s.topics))
	for _, topic := range s.topics {
		current[topic] = true
	}
	wanted := make(map[domain.Topic]bool, len(desired))
	for _, topic := range desired {
		wanted[topic] = true
	}

	for _, topic := range desired {
		if !current[topic] {
			if err := s.registry.Subscribe(ctx, topic, s.id); err != nil {
				return err
			}
		}
	}
	for _, topic := range s.topics {
		if !wanted[topic] {
			if err := s.registry.Unsubscribe(ctx, topic, s.id); err != nil {
				return err
			}
		}
	}

	s.topics = desired
	s.log.Info("Session resubscribed", "topics", len(desired))
	return nil
}

// Close tears the session down: detach locally, unsubscribe every topic and
// unregister presence, in either order, best effort. Failures are logged and
// not retried; the sweeper reconciles whatever is left. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))

		// Pick a fresh context: the run context is already cancelled when we
		// get here and cleanup still has to reach the shared store.
		ctx, cancel := context.WithTimeout(context.Background(), closeGrace)
		defer cancel()

		s.sink.Close()
		s.sinks.Detach(s.id)

		s.mu.Lock()
		topics := s.topics
		s.topics = nil
		s.mu.Unlock()

		for _, topic := range topics {
			if err := s.registry.Unsubscribe(ctx, topic, s.id); err != nil {
				s.log.Warn("Unsubscribe failed during close", "topic", topic, "error", err)
			}
		}
		if err := s.presence.Unregister(ctx, s.id); err != nil {
			s.log.Warn("Unregister failed during close", "error", err)
		}
		_ = s.transport.Close()

		s.state.Store(int32(StateClosed))
		s.log.Info("Session closed")
	})
}
