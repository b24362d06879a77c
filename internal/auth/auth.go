// Package auth implements password verification and bearer-token mint/verify
// for the registry, per spec.md §4.3. Tokens are signed JWTs carrying a
// subject of the form "username:<name>"; the server is otherwise stateless
// with respect to sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/slowlime/knotd/internal/apierr"
	"github.com/slowlime/knotd/internal/model"
)

// DefaultTTL is the default bearer token lifetime.
const DefaultTTL = 2 * time.Hour

const subjectPrefix = "username:"

// HashPassword one-way hashes a plaintext password.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// VerifyPassword reports whether password matches the stored hash.
func VerifyPassword(password, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}

type claims struct {
	jwt.RegisteredClaims
}

// Minter mints and verifies bearer tokens against one signing secret.
type Minter struct {
	secret []byte
	ttl    time.Duration
}

// NewMinter builds a Minter with the given HMAC secret and token TTL. A zero
// ttl falls back to DefaultTTL.
func NewMinter(secret []byte, ttl time.Duration) *Minter {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Minter{secret: secret, ttl: ttl}
}

// Mint produces a signed bearer token for the named user.
func (m *Minter) Mint(username string) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectPrefix + username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(m.secret)
}

// Username decodes a token and returns its claimed username without
// consulting the user store. Used by identify to resolve the subject before
// the caller looks the user up.
func (m *Minter) Username(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		var verr *jwt.ValidationError
		if errors.As(err, &verr) && verr.Errors&jwt.ValidationErrorExpired != 0 {
			return "", apierr.NewUnauthorized("Session expired")
		}
		return "", apierr.NewUnauthorized("invalid token")
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return "", apierr.NewUnauthorized("invalid token")
	}
	name, ok := strippedSubject(c.Subject)
	if !ok {
		return "", apierr.NewUnauthorized("invalid token")
	}
	return name, nil
}

func strippedSubject(subject string) (string, bool) {
	if len(subject) <= len(subjectPrefix) || subject[:len(subjectPrefix)] != subjectPrefix {
		return "", false
	}
	return subject[len(subjectPrefix):], true
}

// UserLookup resolves a username to a current User, as identify needs to
// confirm the subject still names a real account.
type UserLookup func(ctx context.Context, username string) (*model.User, error)

// Identify decodes token and resolves it to a User via lookup. Expired
// tokens fail with "Session expired"; every other failure is a generic
// unauthorized, per spec.md §4.3.
func (m *Minter) Identify(ctx context.Context, tokenString string, lookup UserLookup) (*model.User, error) {
	username, err := m.Username(tokenString)
	if err != nil {
		return nil, err
	}
	user, err := lookup(ctx, username)
	if err != nil || user == nil {
		return nil, apierr.NewUnauthorized("invalid token")
	}
	return user, nil
}
