package client_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiosk-sync/internal/client"
	"kiosk-sync/internal/errs"
)

type flakyTokenSource struct {
	available atomic.Bool
}

func (f *flakyTokenSource) Token() (string, bool) {
	if f.available.Load() {
		return "token-123", true
	}
	return "", false
}

func TestWaitForToken_ImmediateWhenAvailable(t *testing.T) {
	token, err := client.WaitForToken(context.Background(), client.StaticTokenSource("abc"), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

func TestWaitForToken_TimesOutWithCredentialError(t *testing.T) {
	start := time.Now()
	_, err := client.WaitForToken(context.Background(), client.StaticTokenSource(""), 50*time.Millisecond)
	require.ErrorIs(t, err, errs.ErrCredentialTimeout)
	assert.Less(t, time.Since(start), 5*time.Second, "must fail fast, not hang")
}

func TestWaitForToken_PicksUpLateToken(t *testing.T) {
	src := &flakyTokenSource{}
	go func() {
		time.Sleep(1100 * time.Millisecond)
		src.available.Store(true)
	}()

	token, err := client.WaitForToken(context.Background(), src, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "token-123", token)
}

func TestWaitForToken_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.WaitForToken(ctx, client.StaticTokenSource(""), time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}
