package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chat-relay/domain"
	"chat-relay/errors"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// Authenticator resolves the engine identity from a signed HS256 token.
// The auth protocol itself (issuing, refresh, revocation) lives outside the
// engine; only the resolved identity crosses this boundary.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// GenerateToken creates a signed JWT for a specific user.
func (a *Authenticator) GenerateToken(userID string, roles []string,
	tokenDuration time.Duration) (string, error) {
	expirationTime := time.Now().Add(tokenDuration)

	claims := &CustomClaims{
		UserID: userID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "chat-relay",
		},
	}

	// HS256 (HMAC with SHA256), signed with the server's shared secret.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Resolve parses and validates a handshake token and returns the identity it
// carries. Any failure maps to ErrAuthRejected: the session closes
// immediately, no retry.
func (a *Authenticator) Resolve(_ context.Context, tokenString string) (domain.Identity, error) {
	if tokenString == "" {
		return "", fmt.Errorf("%w: missing token", errors.ErrAuthRejected)
	}

	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrAuthRejected, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", fmt.Errorf("%w: invalid claims", errors.ErrAuthRejected)
	}
	return domain.Identity(claims.UserID), nil
}
