// Package identity provides bearer tokens for the realtime connection and
// verifies them on the relay side.
//
// A Source is consulted once per connection attempt. Sources must not cache a
// token the connection manager has already used; an expired or rejected token
// is replaced by asking the Source again.
package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

var (
	// ErrNoSession means the caller is not signed in. Connection attempts
	// treat it as "realtime disabled" rather than a failure to retry.
	ErrNoSession = errors.New("no active session")

	ErrInvalidToken = errors.New("invalid token")
	ErrNoSecret     = errors.New("signing secret is required")
)

// Source returns the current session token.
type Source interface {
	Token(ctx context.Context) (string, error)
}

// Func adapts a function to Source.
type Func func(ctx context.Context) (string, error)

// Token calls f.
func (f Func) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Static serves a fixed token until it expires.
type Static string

// Token returns the token, or ErrNoSession when it is empty or its exp claim
// has passed. Tokens that are not JWTs are returned as-is.
func (s Static) Token(ctx context.Context) (string, error) {
	token := strings.TrimSpace(string(s))
	if token == "" {
		return "", ErrNoSession
	}
	if exp, ok := ExpiresAt(token); ok && !exp.After(time.Now()) {
		return "", ErrNoSession
	}
	return token, nil
}

// File reads the token from disk on every call so an external agent can
// rotate it.
type File struct {
	Path string
}

// Token reads and trims the token file. A missing or empty file means no
// session.
func (f File) Token(ctx context.Context) (string, error) {
	if f.Path == "" {
		return "", ErrNoSession
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoSession
		}
		return "", fmt.Errorf("read token file: %w", err)
	}

	return Static(data).Token(ctx)
}
