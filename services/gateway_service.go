package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
)

// GatewayService is the persistence gateway of the engine: message writes,
// membership reads, and nothing else crosses this boundary. Online status is
// joined in from the presence store so members.list answers both questions
// at once.
type GatewayService struct {
	messages         repositories.IMessageRepository
	members          repositories.IMembershipRepository
	presence         contract.IPresenceStore
	allowedReactions []string
	log              *slog.Logger
}

func NewGatewayService(messages repositories.IMessageRepository,
	members repositories.IMembershipRepository, presence contract.IPresenceStore,
	allowedReactions []string, log *slog.Logger) *GatewayService {
	return &GatewayService{
		messages:         messages,
		members:          members,
		presence:         presence,
		allowedReactions: allowedReactions,
		log:              log,
	}
}

// CreateMessage validates and stores one message. Reactions must come from
// the configured allow-list when one is set; an empty allow-list accepts
// anything.
func (s *GatewayService) CreateMessage(ctx context.Context, cmd domain.CreateMessage) (domain.Message, error) {
	if cmd.Body == "" {
		return domain.Message{}, fmt.Errorf("%w: empty message body", errors.ErrValidation)
	}
	if cmd.IsReaction && len(s.allowedReactions) > 0 && !lo.Contains(s.allowedReactions, cmd.Body) {
		return domain.Message{}, fmt.Errorf("%w: invalid reaction %q", errors.ErrValidation, cmd.Body)
	}
	if cmd.IsReaction && cmd.Parent == nil {
		return domain.Message{}, fmt.Errorf("%w: reaction without a parent message", errors.ErrValidation)
	}

	msg := domain.Message{
		ID:         ulid.Make().String(),
		Room:       cmd.Room,
		Sender:     cmd.Sender,
		Body:       cmd.Body,
		Parent:     cmd.Parent,
		IsReaction: cmd.IsReaction,
		CreatedAt:  time.Now().UTC(),
	}
	err := s.messages.StoreMessage(repositories.DiskMessage{
		ID:         msg.ID,
		Room:       int(msg.Room),
		Author:     string(msg.Sender),
		Content:    msg.Body,
		Parent:     msg.Parent,
		IsReaction: msg.IsReaction,
		At:         msg.CreatedAt,
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("store message: %w", err)
	}
	return msg, nil
}

// GetMembers lists a room's members with their online status: online means
// at least one live connection in the presence store.
func (s *GatewayService) GetMembers(ctx context.Context, room domain.RoomID) ([]domain.Member, error) {
	identities, err := s.members.Members(int(room))
	if err != nil {
		return nil, fmt.Errorf("list members of room %d: %w", room, err)
	}

	members := make([]domain.Member, 0, len(identities))
	for _, identity := range identities {
		conns, err := s.presence.ConnectionsOf(ctx, domain.Identity(identity))
		if err != nil {
			return nil, err
		}
		members = append(members, domain.Member{
			Identity: domain.Identity(identity),
			IsOnline: len(conns) > 0,
		})
	}
	return members, nil
}

func (s *GatewayService) RoomsOf(ctx context.Context, identity domain.Identity) ([]domain.RoomID, error) {
	rooms, err := s.members.RoomsOf(string(identity))
	if err != nil {
		return nil, fmt.Errorf("rooms of %s: %w", identity, err)
	}
	return lo.Map(rooms, func(room int, _ int) domain.RoomID {
		return domain.RoomID(room)
	}), nil
}
