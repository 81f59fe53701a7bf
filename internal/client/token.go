package client

import (
	"context"
	"time"

	"kiosk-sync/internal/errs"
)

// TokenSource exposes the current bearer token, if one is available.
// Acquisition and refresh are handled by an external collaborator.
type TokenSource interface {
	Token() (string, bool)
}

// StaticTokenSource always returns the same token. Used in tests and for
// pre-provisioned devices.
type StaticTokenSource string

func (s StaticTokenSource) Token() (string, bool) {
	return string(s), s != ""
}

// WaitForToken polls ts until a valid token is available or window elapses.
// Times out with ErrCredentialTimeout rather than hanging indefinitely.
func WaitForToken(ctx context.Context, ts TokenSource, window time.Duration) (string, error) {
	if token, ok := ts.Token(); ok {
		return token, nil
	}

	deadline := time.NewTimer(window)
	defer deadline.Stop()
	poll := time.NewTicker(time.Second)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline.C:
			return "", errs.ErrCredentialTimeout
		case <-poll.C:
			if token, ok := ts.Token(); ok {
				return token, nil
			}
		}
	}
}
