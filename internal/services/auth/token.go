package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Issuer is the iss claim of session tokens
const Issuer = "habit-tracker"

// MinSecretLength is the minimum HMAC key size accepted by NewTokenSigner.
const MinSecretLength = 32

// Claims are the fields carried by a session token
type Claims struct {
	UserID    int64
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenSigner signs and verifies HS256 session tokens
type TokenSigner struct {
	key []byte
	now func() time.Time
}

// NewTokenSigner creates a signer for the given secret.
func NewTokenSigner(secret []byte) (*TokenSigner, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)
	}
	return &TokenSigner{key: secret, now: time.Now}, nil
}

// Sign issues a token for the session valid for ttl.
func (s *TokenSigner) Sign(userID int64, sessionID string, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(ttl)

	token, err := jwt.NewBuilder().
		Issuer(Issuer).
		Subject(strconv.FormatInt(userID, 10)).
		JwtID(sessionID).
		IssuedAt(now).
		Expiration(expires).
		Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, s.key))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), expires, nil
}

// Verify checks the signature, issuer and expiry of a token and extracts its claims.
func (s *TokenSigner) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKey(jwa.HS256, s.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(Issuer),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify token: %w", err)
	}

	userID, err := strconv.ParseInt(token.Subject(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("token has invalid subject %q", token.Subject())
	}
	if token.JwtID() == "" {
		return nil, fmt.Errorf("token missing jti claim")
	}

	return &Claims{
		UserID:    userID,
		SessionID: token.JwtID(),
		IssuedAt:  token.IssuedAt(),
		ExpiresAt: token.Expiration(),
	}, nil
}
