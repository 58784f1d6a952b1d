package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "videohub"
	// SessionLifetime is how long a session token is accepted.
	SessionLifetime = 15 * time.Minute
)

// TokenService signs and validates session JWTs (HS256).
//
// SESSION MODEL
//
// A session is a signed token in the "token" cookie and nothing else; the
// server keeps no session table. The token carries:
//
//   - sub: the user id
//   - adm: true for staff accounts
//   - iss, iat, exp: checked on every request
//
// Because nothing is stored, a token cannot be revoked before it expires.
// The short SessionLifetime bounds that window: a user who is demoted or
// deleted loses access at the next expiry. Logout only clears the cookie.
//
// RequireAdmin trusts adm for the life of the token. Anything that needs
// fresher account state loads the user by sub.
type TokenService struct {
	secret []byte
}

// NewTokenService returns an error for secrets shorter than 16 characters.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// Session is what a valid token says about the caller.
type Session struct {
	UserID string
	Admin  bool
}

type claims struct {
	Admin bool `json:"adm,omitempty"`
	jwt.RegisteredClaims
}

// Generate issues a session token valid for SessionLifetime.
func (s *TokenService) Generate(sess Session) (string, error) {
	return s.GenerateWithDuration(sess, SessionLifetime)
}

// GenerateWithDuration issues a token valid for d. A negative d produces
// an already-expired token, which tests use.
func (s *TokenService) GenerateWithDuration(sess Session, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		Admin: sess.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate checks signature, algorithm, issuer and expiry.
func (s *TokenService) Validate(tokenStr string) (Session, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, fmt.Errorf("auth: token expired")
		}
		return Session{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Session{}, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return Session{}, fmt.Errorf("auth: token has no subject")
	}

	return Session{UserID: c.Subject, Admin: c.Admin}, nil
}
