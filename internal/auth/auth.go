// Package auth exposes the credential collaborator consumed by provider
// clients. The actual sign-in flows (OAuth device codes, browser auth) live
// outside this module; clients only ask a TokenSource for a valid bearer token.
package auth

import (
	"context"
	"errors"
	"os"
)

// ErrNoCredential indicates no valid bearer token is available. Provider
// clients fail fast on this error instead of issuing a request.
var ErrNoCredential = errors.New("no credential available")

// TokenSource yields a valid bearer token for an outgoing request.
// Implementations may refresh tokens internally; callers never cache the
// returned value across requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Static is a fixed-value token source, used for plain API keys.
type Static string

// Token implements TokenSource.
func (s Static) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoCredential
	}
	return string(s), nil
}

// Env reads the first non-empty environment variable from its list on each
// call, so rotated keys are picked up without restarting.
type Env []string

// FromEnv builds an Env token source over the given variable names.
func FromEnv(names ...string) Env { return Env(names) }

// Token implements TokenSource.
func (e Env) Token(context.Context) (string, error) {
	for _, name := range e {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}
	return "", ErrNoCredential
}
