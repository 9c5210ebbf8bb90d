// Package domain contains core concepts of the fan-out engine.
// This file defines Message entities and related commands.
// Messages are immutable once created.
package domain

import "time"

// Message is the durable chat entity. The engine treats it as an opaque
// payload to route; ordering and uniqueness are whatever persistence gives.
type Message struct {
	ID         string
	Room       RoomID
	Sender     Identity // empty for system messages
	Body       string
	Parent     *string // reply or reaction target
	IsReaction bool
	CreatedAt  time.Time
}

// CreateMessage is the create contract of the persistence gateway.
type CreateMessage struct {
	Room       RoomID
	Sender     Identity
	Body       string
	Parent     *string
	IsReaction bool
}

// Member is one row of a room membership listing.
type Member struct {
	Identity Identity
	IsOnline bool
}
