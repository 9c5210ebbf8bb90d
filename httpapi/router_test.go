package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/repositories"
	"chat-relay/ws"
)

type chatServiceStub struct {
	lastPost domain.CreateMessage
	postMsg  domain.Message
	postErr  error
	members  []domain.Member
}

func (s *chatServiceStub) HandleConnection(ctx context.Context, transport contract.Transport, token string) error {
	return nil
}

func (s *chatServiceStub) PostMessage(ctx context.Context, cmd domain.CreateMessage) (domain.Message, error) {
	s.lastPost = cmd
	return s.postMsg, s.postErr
}

func (s *chatServiceStub) GetMembers(ctx context.Context, room domain.RoomID) ([]domain.Member, error) {
	return s.members, nil
}

func newTestServer(t *testing.T, chat *chatServiceStub,
	messages repositories.IMessageRepository) (*httptest.Server, string) {
	t.Helper()
	authenticator := auth.NewAuthenticator("test-secret")
	token, err := authenticator.GenerateToken("alice", []string{"member"}, time.Hour)
	require.NoError(t, err)

	log := slog.Default()
	wsServer := ws.NewServer(chat, log)
	mux := NewRouter(chat, authenticator, messages, wsServer, log)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, token
}

func TestHandler_PostMessage(t *testing.T) {
	t.Run("should store and return the message for an authenticated caller", func(t *testing.T) {
		req := require.New(t)
		stub := &chatServiceStub{postMsg: domain.Message{
			ID:        "01A",
			Room:      7,
			Sender:    "alice",
			Body:      "hello",
			CreatedAt: time.Now().UTC(),
		}}
		server, token := newTestServer(t, stub, nil)

		request, err := http.NewRequest(http.MethodPost, server.URL+"/rooms/7/message",
			strings.NewReader(`{"message":"hello"}`))
		req.NoError(err)
		request.Header.Set("Authorization", "Bearer "+token)

		resp, err := http.DefaultClient.Do(request)
		req.NoError(err)
		defer resp.Body.Close()

		req.Equal(http.StatusOK, resp.StatusCode)
		req.Equal(domain.RoomID(7), stub.lastPost.Room)
		req.Equal(domain.Identity("alice"), stub.lastPost.Sender)
		req.Equal("hello", stub.lastPost.Body)

		var body messageResponse
		req.NoError(json.NewDecoder(resp.Body).Decode(&body))
		req.Equal("01A", body.ID)
		req.Equal(7, body.ChatGroup)
	})

	t.Run("should reject a missing token", func(t *testing.T) {
		req := require.New(t)
		server, _ := newTestServer(t, &chatServiceStub{}, nil)

		resp, err := http.Post(server.URL+"/rooms/7/message", "application/json",
			strings.NewReader(`{"message":"hello"}`))
		req.NoError(err)
		defer resp.Body.Close()

		req.Equal(http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("should reject a non-numeric room id", func(t *testing.T) {
		req := require.New(t)
		server, token := newTestServer(t, &chatServiceStub{}, nil)

		request, err := http.NewRequest(http.MethodPost, server.URL+"/rooms/lobby/message",
			strings.NewReader(`{"message":"hello"}`))
		req.NoError(err)
		request.Header.Set("Authorization", "Bearer "+token)

		resp, err := http.DefaultClient.Do(request)
		req.NoError(err)
		defer resp.Body.Close()

		req.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("should reject room id zero, matching the live connection rules", func(t *testing.T) {
		req := require.New(t)
		server, token := newTestServer(t, &chatServiceStub{}, nil)

		request, err := http.NewRequest(http.MethodPost, server.URL+"/rooms/0/message",
			strings.NewReader(`{"message":"hello"}`))
		req.NoError(err)
		request.Header.Set("Authorization", "Bearer "+token)

		resp, err := http.DefaultClient.Do(request)
		req.NoError(err)
		defer resp.Body.Close()

		req.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("should map a validation failure to 400", func(t *testing.T) {
		req := require.New(t)
		stub := &chatServiceStub{postErr: errors.ErrValidation}
		server, token := newTestServer(t, stub, nil)

		request, err := http.NewRequest(http.MethodPost, server.URL+"/rooms/7/message",
			strings.NewReader(`{"message":"🔥","is_reaction":true}`))
		req.NoError(err)
		request.Header.Set("Authorization", "Bearer "+token)

		resp, err := http.DefaultClient.Do(request)
		req.NoError(err)
		defer resp.Body.Close()

		req.Equal(http.StatusBadRequest, resp.StatusCode)
	})
}

func TestHandler_GetMembers(t *testing.T) {
	req := require.New(t)
	stub := &chatServiceStub{members: []domain.Member{
		{Identity: "alice", IsOnline: true},
		{Identity: "bob", IsOnline: false},
	}}
	server, _ := newTestServer(t, stub, nil)

	resp, err := http.Get(server.URL + "/rooms/7/members")
	req.NoError(err)
	defer resp.Body.Close()

	req.Equal(http.StatusOK, resp.StatusCode)

	var members []memberResponse
	req.NoError(json.NewDecoder(resp.Body).Decode(&members))
	req.Len(members, 2)
	req.Equal("alice", members[0].Identity)
	req.True(members[0].IsOnline)
}

func TestHandler_GetMessages(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	messagesMock := mocks.NewMockIMessageRepository(ctrl)
	cursor := "00123:01A"
	messagesMock.EXPECT().
		GetMessages(7, gomock.Nil()).
		Return([]repositories.DiskMessage{
			{ID: "01B", Room: 7, Author: "bob", Content: "newest", At: time.Now().UTC()},
			{ID: "01A", Room: 7, Author: "alice", Content: "older", At: time.Now().UTC()},
		}, &cursor, nil)

	server, _ := newTestServer(t, &chatServiceStub{}, messagesMock)

	resp, err := http.Get(server.URL + "/rooms/7/messages")
	req.NoError(err)
	defer resp.Body.Close()

	req.Equal(http.StatusOK, resp.StatusCode)

	var body messagesResponse
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.Len(body.Messages, 2)
	req.Equal("newest", body.Messages[0].Message)
	req.NotNil(body.Cursor)
	req.Equal(cursor, *body.Cursor)
}

func TestHandler_Health(t *testing.T) {
	req := require.New(t)
	server, _ := newTestServer(t, &chatServiceStub{}, nil)

	resp, err := http.Get(server.URL + "/healthz")
	req.NoError(err)
	defer resp.Body.Close()

	req.Equal(http.StatusOK, resp.StatusCode)
}

func TestHandler_Metrics(t *testing.T) {
	req := require.New(t)
	server, _ := newTestServer(t, &chatServiceStub{}, nil)

	resp, err := http.Get(server.URL + "/metrics")
	req.NoError(err)
	defer resp.Body.Close()

	req.Equal(http.StatusOK, resp.StatusCode)
}
