package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTopicNaming(t *testing.T) {
	req := require.New(t)

	req.Equal(Topic("user.chat.alice"), PersonalTopic("alice"))
	req.Equal(Topic("room.chat.42"), RoomTopic(42))
	req.Equal(Topic("system.chat"), SystemTopic)
}
