package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/errors"
)

func TestAuthenticator_Resolve(t *testing.T) {
	authenticator := NewAuthenticator("test-secret")

	t.Run("should resolve the identity from a valid token", func(t *testing.T) {
		req := require.New(t)
		token, err := authenticator.GenerateToken("alice", []string{"member"}, time.Hour)
		req.NoError(err)

		identity, err := authenticator.Resolve(context.Background(), token)

		req.NoError(err)
		req.Equal(domain.Identity("alice"), identity)
	})

	t.Run("should reject a missing token", func(t *testing.T) {
		req := require.New(t)
		_, err := authenticator.Resolve(context.Background(), "")
		req.ErrorIs(err, errors.ErrAuthRejected)
	})

	t.Run("should reject a token signed with another secret", func(t *testing.T) {
		req := require.New(t)
		other := NewAuthenticator("other-secret")
		token, err := other.GenerateToken("alice", nil, time.Hour)
		req.NoError(err)

		_, err = authenticator.Resolve(context.Background(), token)
		req.ErrorIs(err, errors.ErrAuthRejected)
	})

	t.Run("should reject an expired token", func(t *testing.T) {
		req := require.New(t)
		token, err := authenticator.GenerateToken("alice", nil, -time.Minute)
		req.NoError(err)

		_, err = authenticator.Resolve(context.Background(), token)
		req.ErrorIs(err, errors.ErrAuthRejected)
	})

	t.Run("should reject garbage", func(t *testing.T) {
		req := require.New(t)
		_, err := authenticator.Resolve(context.Background(), "not-a-jwt")
		req.ErrorIs(err, errors.ErrAuthRejected)
	})
}
