package domain

import "fmt"

// Topic is a named broadcast channel connections subscribe to.
// Membership is a set of connection ids, not identities: a user with two
// devices in the same room occupies two membership slots.
type Topic string

// SystemTopic carries system-wide announcements.
const SystemTopic Topic = "system.chat"

// PersonalTopic is the per-identity channel used for direct pushes to a user
// regardless of which room they are viewing.
func PersonalTopic(id Identity) Topic {
	return Topic("user.chat." + string(id))
}

// RoomTopic is the per-room channel shared by all active members.
func RoomTopic(room RoomID) Topic {
	return Topic(fmt.Sprintf("room.chat.%d", room))
}
