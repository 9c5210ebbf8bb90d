package runtime

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
)

// Router classifies inbound client events and invokes the matching domain
// operation. It owns no connection state: the session hands itself in so the
// router can reach the sender identity and session-scoped operations.
type Router struct {
	gateway  contract.IMessageGateway
	validate *validator.Validate
	log      *slog.Logger
}

func NewRouter(gateway contract.IMessageGateway, log *slog.Logger) *Router {
	return &Router{
		gateway:  gateway,
		validate: validator.New(),
		log:      log,
	}
}

// Route dispatches one inbound envelope. It returns the event to publish to
// a topic (nil for none) and the private reply for the originating
// connection only (nil for none). The returned error is reserved for
// failures that must end the session; validation problems travel back as a
// private reply instead.
func (r *Router) Route(ctx context.Context, s *Session, raw []byte) (*event.Routed, *event.Routed, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, errorReply(fmt.Sprintf("malformed event: %v", err)), nil
	}

	switch head.Type {
	case event.TypeMessageNew:
		observability.EventsRouted.WithLabelValues(head.Type).Inc()
		return r.routeNewMessage(ctx, s, raw)

	case event.TypeMessageEdit:
		// Recognized but not implemented yet. Accepting it keeps newer
		// clients working against this server.
		observability.EventsRouted.WithLabelValues(head.Type).Inc()
		return nil, nil, nil

	case event.TypeMembersList:
		observability.EventsRouted.WithLabelValues(head.Type).Inc()
		return r.routeMembersList(ctx, raw)

	case event.TypeResubscribe:
		observability.EventsRouted.WithLabelValues(head.Type).Inc()
		if err := s.Resubscribe(ctx); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil

	default:
		// Forward compatible: unknown types are ignored, never an error.
		observability.UnknownEvents.Inc()
		r.log.Debug("Ignoring inbound event", "type", head.Type, "reason", errors.ErrUnknownEventType)
		return nil, nil, nil
	}
}

func (r *Router) routeNewMessage(ctx context.Context, s *Session, raw []byte) (*event.Routed, *event.Routed, error) {
	var payload event.NewMessagePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errorReply(fmt.Sprintf("malformed chat.message.new: %v", err)), nil
	}
	if err := r.validate.Struct(payload); err != nil {
		return nil, errorReply(err.Error()), nil
	}

	msg, err := r.gateway.CreateMessage(ctx, domain.CreateMessage{
		Room:       domain.RoomID(payload.ChatGroup),
		Sender:     s.Identity(),
		Body:       payload.Message,
		Parent:     payload.Parent,
		IsReaction: payload.IsReaction,
	})
	switch {
	case stderrors.Is(err, errors.ErrValidation):
		return nil, errorReply(err.Error()), nil
	case err != nil:
		// Storage trouble is terminal for this operation only; the session
		// stays active.
		r.log.Error("Message create failed", "room", payload.ChatGroup, "error", err)
		return nil, errorReply("message could not be stored"), nil
	}

	routed, err := event.NewMessageEvent(event.TypeMessageNew, msg)
	if err != nil {
		return nil, nil, err
	}
	return &routed, nil, nil
}

// routeMembersList answers privately to the requesting connection. This is a
// point-to-point reply, not a publish, even though it reuses the same
// outbound transport path.
func (r *Router) routeMembersList(ctx context.Context, raw []byte) (*event.Routed, *event.Routed, error) {
	var payload event.MembersListPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errorReply(fmt.Sprintf("malformed chat.members.list: %v", err)), nil
	}
	if err := r.validate.Struct(payload); err != nil {
		return nil, errorReply(err.Error()), nil
	}

	members, err := r.gateway.GetMembers(ctx, domain.RoomID(payload.ChatGroup))
	if err != nil {
		r.log.Error("Members lookup failed", "room", payload.ChatGroup, "error", err)
		return nil, errorReply("members could not be listed"), nil
	}

	reply := event.Members{
		Type:      event.TypeGetMembers,
		ChatGroup: payload.ChatGroup,
		Members: lo.Map(members, func(m domain.Member, _ int) event.MemberInfo {
			return event.MemberInfo{Identity: string(m.Identity), IsOnline: m.IsOnline}
		}),
	}
	data, err := json.Marshal(reply)
	if err != nil {
		return nil, nil, err
	}
	return nil, &event.Routed{Type: event.TypeGetMembers, Payload: data}, nil
}

func errorReply(detail string) *event.Routed {
	data, _ := json.Marshal(event.Error{Type: event.TypeError, Detail: detail})
	return &event.Routed{Type: event.TypeError, Payload: data}
}
