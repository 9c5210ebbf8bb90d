package services

import (
	"context"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/runtime"
)

type IChatService interface {
	HandleConnection(ctx context.Context, transport contract.Transport, token string) error
	PostMessage(ctx context.Context, cmd domain.CreateMessage) (domain.Message, error)
	GetMembers(ctx context.Context, room domain.RoomID) ([]domain.Member, error)
}

// ChatService is the entry facade of the engine. Transports hand it a live
// connection plus the handshake token; HTTP callers use it for the
// room-scoped operations that publish without owning a connection.
type ChatService struct {
	auth       contract.IAuthenticator
	presence   contract.IPresenceStore
	registry   contract.ITopicRegistry
	gateway    contract.IMessageGateway
	router     *runtime.Router
	sinks      *runtime.LocalSinks
	bufferSize int
	log        *slog.Logger
}

func NewChatService(auth contract.IAuthenticator, presence contract.IPresenceStore,
	registry contract.ITopicRegistry, gateway contract.IMessageGateway,
	router *runtime.Router, sinks *runtime.LocalSinks, bufferSize int,
	log *slog.Logger) *ChatService {
	return &ChatService{
		auth:       auth,
		presence:   presence,
		registry:   registry,
		gateway:    gateway,
		router:     router,
		sinks:      sinks,
		bufferSize: bufferSize,
		log:        log,
	}
}

// HandleConnection walks a fresh transport through the full session
// lifecycle and blocks until the connection is gone.
func (s *ChatService) HandleConnection(ctx context.Context, transport contract.Transport, token string) error {
	session := runtime.NewSession(transport, s.presence, s.registry, s.gateway,
		s.router, s.sinks, s.bufferSize, s.log)

	if err := session.Authenticate(ctx, token, s.auth); err != nil {
		_ = transport.Close()
		return err
	}
	if err := session.Subscribe(ctx); err != nil {
		_ = transport.Close()
		return err
	}
	defer session.Close()
	return session.Run(ctx)
}

// PostMessage stores a message on behalf of an HTTP caller and fans it out
// to the room topic as chat.post.message. The sender receives it over their
// own live connections like every other member.
func (s *ChatService) PostMessage(ctx context.Context, cmd domain.CreateMessage) (domain.Message, error) {
	msg, err := s.gateway.CreateMessage(ctx, cmd)
	if err != nil {
		return domain.Message{}, err
	}

	routed, err := event.NewMessageEvent(event.TypePostMessage, msg)
	if err != nil {
		return domain.Message{}, err
	}
	if err := s.registry.Publish(ctx, routed.Topic, routed); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

func (s *ChatService) GetMembers(ctx context.Context, room domain.RoomID) ([]domain.Member, error) {
	return s.gateway.GetMembers(ctx, room)
}
