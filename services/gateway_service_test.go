package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/repositories"
)

func TestGatewayService_CreateMessage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	messagesMock := mocks.NewMockIMessageRepository(ctrl)
	membersMock := mocks.NewMockIMembershipRepository(ctrl)
	presenceMock := mocks.NewMockIPresenceStore(ctrl)
	svc := NewGatewayService(messagesMock, membersMock, presenceMock,
		[]string{"👍", "👎"}, slog.Default())

	t.Run("should store a valid message and return the stored entity", func(t *testing.T) {
		req := require.New(t)

		var stored repositories.DiskMessage
		messagesMock.EXPECT().
			StoreMessage(gomock.Any()).
			DoAndReturn(func(dm repositories.DiskMessage) error {
				stored = dm
				return nil
			}).
			Times(1)

		msg, err := svc.CreateMessage(context.Background(), domain.CreateMessage{
			Room:   7,
			Sender: "alice",
			Body:   "hello",
		})

		req.NoError(err)
		req.NotEmpty(msg.ID)
		req.Equal(domain.RoomID(7), msg.Room)
		req.Equal(msg.ID, stored.ID)
		req.Equal("alice", stored.Author)
		req.Equal("hello", stored.Content)
	})

	t.Run("should reject an empty body", func(t *testing.T) {
		req := require.New(t)
		messagesMock.EXPECT().StoreMessage(gomock.Any()).Times(0)

		_, err := svc.CreateMessage(context.Background(), domain.CreateMessage{
			Room:   7,
			Sender: "alice",
		})

		req.ErrorIs(err, errors.ErrValidation)
	})

	t.Run("should reject a reaction outside the allow-list", func(t *testing.T) {
		req := require.New(t)
		messagesMock.EXPECT().StoreMessage(gomock.Any()).Times(0)

		parent := "01A"
		_, err := svc.CreateMessage(context.Background(), domain.CreateMessage{
			Room:       7,
			Sender:     "alice",
			Body:       "🔥",
			Parent:     &parent,
			IsReaction: true,
		})

		req.ErrorIs(err, errors.ErrValidation)
	})

	t.Run("should reject a reaction without a parent", func(t *testing.T) {
		req := require.New(t)
		messagesMock.EXPECT().StoreMessage(gomock.Any()).Times(0)

		_, err := svc.CreateMessage(context.Background(), domain.CreateMessage{
			Room:       7,
			Sender:     "alice",
			Body:       "👍",
			IsReaction: true,
		})

		req.ErrorIs(err, errors.ErrValidation)
	})

	t.Run("should accept an allow-listed reaction with a parent", func(t *testing.T) {
		req := require.New(t)
		messagesMock.EXPECT().StoreMessage(gomock.Any()).Return(nil).Times(1)

		parent := "01A"
		msg, err := svc.CreateMessage(context.Background(), domain.CreateMessage{
			Room:       7,
			Sender:     "alice",
			Body:       "👍",
			Parent:     &parent,
			IsReaction: true,
		})

		req.NoError(err)
		req.True(msg.IsReaction)
	})

	t.Run("should accept any reaction when the allow-list is lifted", func(t *testing.T) {
		req := require.New(t)
		open := NewGatewayService(messagesMock, membersMock, presenceMock, nil, slog.Default())
		messagesMock.EXPECT().StoreMessage(gomock.Any()).Return(nil).Times(1)

		parent := "01A"
		_, err := open.CreateMessage(context.Background(), domain.CreateMessage{
			Room:       7,
			Sender:     "alice",
			Body:       "🔥",
			Parent:     &parent,
			IsReaction: true,
		})

		req.NoError(err)
	})
}

func TestGatewayService_GetMembers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	messagesMock := mocks.NewMockIMessageRepository(ctrl)
	membersMock := mocks.NewMockIMembershipRepository(ctrl)
	presenceMock := mocks.NewMockIPresenceStore(ctrl)
	svc := NewGatewayService(messagesMock, membersMock, presenceMock, nil, slog.Default())

	t.Run("should join online status from the presence store", func(t *testing.T) {
		req := require.New(t)

		membersMock.EXPECT().Members(7).Return([]string{"alice", "bob"}, nil)
		presenceMock.EXPECT().
			ConnectionsOf(gomock.Any(), domain.Identity("alice")).
			Return([]domain.ConnectionID{"conn-1"}, nil)
		presenceMock.EXPECT().
			ConnectionsOf(gomock.Any(), domain.Identity("bob")).
			Return(nil, nil)

		members, err := svc.GetMembers(context.Background(), 7)

		req.NoError(err)
		req.Len(members, 2)
		req.Equal(domain.Identity("alice"), members[0].Identity)
		req.True(members[0].IsOnline)
		req.False(members[1].IsOnline)
	})
}

func TestGatewayService_RoomsOf(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	messagesMock := mocks.NewMockIMessageRepository(ctrl)
	membersMock := mocks.NewMockIMembershipRepository(ctrl)
	presenceMock := mocks.NewMockIPresenceStore(ctrl)
	svc := NewGatewayService(messagesMock, membersMock, presenceMock, nil, slog.Default())

	t.Run("should map stored rooms to room ids", func(t *testing.T) {
		req := require.New(t)
		membersMock.EXPECT().RoomsOf("alice").Return([]int{1, 3}, nil)

		rooms, err := svc.RoomsOf(context.Background(), "alice")

		req.NoError(err)
		req.Equal([]domain.RoomID{1, 3}, rooms)
	})
}
