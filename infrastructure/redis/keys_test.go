package redis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"chat-relay/domain"
)

func TestKeyNaming(t *testing.T) {
	req := require.New(t)

	req.Equal("presence:conn:abc", connKey(domain.ConnectionID("abc")))
	req.Equal("presence:user:alice", userKey(domain.Identity("alice")))
	req.Equal("topic:room.chat.7", topicKey(domain.RoomTopic(7)))
	req.Equal("fanout.room.chat.7", fanoutChannel(domain.RoomTopic(7)))
	req.Equal("fanout.*", fanoutPattern)
}
