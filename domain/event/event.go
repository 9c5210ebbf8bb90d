// Package event defines the wire envelopes of the engine: inbound client
// events, outbound server events, and the transient routed envelope that the
// fan-out publisher consumes exactly once.
package event

import (
	"encoding/json"
	"time"

	"chat-relay/domain"
)

// Inbound event discriminators. Unknown types are ignored, not rejected,
// so newer clients can talk to older servers.
const (
	TypeMessageNew  = "chat.message.new"
	TypeMessageEdit = "chat.message.edit"
	TypeMembersList = "chat.members.list"
	TypeResubscribe = "chat.resubscribe"
)

// Outbound event discriminators.
const (
	TypePostMessage = "chat.post.message"
	TypeGetMembers  = "chat.get.members"
	TypeError       = "chat.error"
)

// Routed is the transient envelope produced by the router and consumed once
// by the fan-out publisher. An empty Topic means a point-to-point reply to
// the originating connection only.
type Routed struct {
	Type    string          `json:"type"`
	Topic   domain.Topic    `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// NewMessagePayload is the body of an inbound chat.message.new.
type NewMessagePayload struct {
	// Room ids are 1-based, so min=1 spells out what required on an int
	// would only imply.
	ChatGroup  int     `json:"chat_group" validate:"min=1"`
	Message    string  `json:"message" validate:"required"`
	Parent     *string `json:"parent,omitempty"`
	IsReaction bool    `json:"is_reaction,omitempty"`
}

// MembersListPayload is the body of an inbound chat.members.list.
type MembersListPayload struct {
	ChatGroup int `json:"chat_group" validate:"min=1"`
}

// MessageNew is the outbound fan-out payload for a created message.
// The same shape serves chat.message.new and chat.post.message.
type MessageNew struct {
	Type       string    `json:"type"`
	ID         string    `json:"id"`
	ChatGroup  int       `json:"chat_group"`
	Sender     string    `json:"sender,omitempty"`
	Message    string    `json:"message"`
	Parent     *string   `json:"parent,omitempty"`
	IsReaction bool      `json:"is_reaction,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// MemberInfo is one entry of a chat.get.members reply.
type MemberInfo struct {
	Identity string `json:"identity"`
	IsOnline bool   `json:"is_online"`
}

// Members is the private reply to chat.members.list.
type Members struct {
	Type      string       `json:"type"`
	ChatGroup int          `json:"chat_group"`
	Members   []MemberInfo `json:"members"`
}

// Error is the private reply carrying a validation failure back to the
// sender. Infrastructure errors never take this path.
type Error struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

// NewMessageEvent builds the routed fan-out envelope for a stored message.
func NewMessageEvent(eventType string, msg domain.Message) (Routed, error) {
	payload, err := json.Marshal(MessageNew{
		Type:       eventType,
		ID:         msg.ID,
		ChatGroup:  int(msg.Room),
		Sender:     string(msg.Sender),
		Message:    msg.Body,
		Parent:     msg.Parent,
		IsReaction: msg.IsReaction,
		CreatedAt:  msg.CreatedAt,
	})
	if err != nil {
		return Routed{}, err
	}
	return Routed{
		Type:    eventType,
		Topic:   domain.RoomTopic(msg.Room),
		Payload: payload,
	}, nil
}
