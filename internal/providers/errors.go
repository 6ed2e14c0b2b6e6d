package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Sentinel errors for provider operations. Transport-classified failures
// (401/403/429/network) are mapped exactly once, at the client boundary, to
// one of these with a user-facing message; everything else passes through
// unchanged.
var (
	// ErrAuthentication indicates the bearer token was rejected (401).
	ErrAuthentication = errors.New("authentication failed")

	// ErrAuthorization indicates the credential lacks access (403).
	ErrAuthorization = errors.New("permission denied")

	// ErrRateLimited indicates the provider throttled the request (429).
	ErrRateLimited = errors.New("rate limited")

	// ErrNetwork indicates the request never produced a provider response.
	ErrNetwork = errors.New("network error")

	// ErrTurnLimit indicates the tool loop hit its turn bound without a
	// final answer. Fatal and user-visible, distinct from provider errors.
	ErrTurnLimit = errors.New("tool loop exceeded maximum turns")

	// ErrCancelled is the single distinguished cancellation outcome. It is
	// never retried and never mapped to a provider error message.
	ErrCancelled = errors.New("request cancelled")

	// ErrUnknownProvider indicates the requested provider name is not one
	// of the three supported variants.
	ErrUnknownProvider = errors.New("unknown provider")
)

// ProviderError wraps a classified failure with the provider and operation
// that produced it.
type ProviderError struct {
	Provider string
	Op       string
	Status   int
	Message  string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Message)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

// Unwrap supports errors.Is/As against the sentinel taxonomy.
func (e *ProviderError) Unwrap() error { return e.Err }

// classifyStatus maps an HTTP status to the error taxonomy. Unclassified
// statuses keep the raw body so the caller sees the provider's own message.
func classifyStatus(provider, op string, status int, body string) error {
	body = strings.TrimSpace(body)
	switch status {
	case 401:
		return &ProviderError{
			Provider: provider, Op: op, Status: status,
			Message: "authentication failed, please sign in again",
			Err:     ErrAuthentication,
		}
	case 403:
		return &ProviderError{
			Provider: provider, Op: op, Status: status,
			Message: "access denied for this model or project",
			Err:     ErrAuthorization,
		}
	case 429:
		return &ProviderError{
			Provider: provider, Op: op, Status: status,
			Message: "rate limited, please slow down and try again",
			Err:     ErrRateLimited,
		}
	default:
		return &ProviderError{
			Provider: provider, Op: op, Status: status,
			Message: fmt.Sprintf("unexpected status %d: %s", status, truncateBody(body, 200)),
			Err:     fmt.Errorf("status %d", status),
		}
	}
}

// normalizeError applies the propagation policy: cancellation always wins,
// connection-level failures become ErrNetwork, and everything already
// classified passes through untouched.
func normalizeError(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	if isCancellation(err) {
		return fmt.Errorf("%w: %s %s", ErrCancelled, provider, op)
	}
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return err
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &ProviderError{
			Provider: provider, Op: op,
			Message: "could not reach the provider, check your connection",
			Err:     fmt.Errorf("%w: %v", ErrNetwork, urlErr),
		}
	}
	return err
}

// isCancellation reports whether err represents cooperative cancellation
// rather than a transport or parse failure.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrCancelled)
}

func truncateBody(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
