// File: internal/browser/browser_test.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStageError(t *testing.T) {
	base := errors.New("boom")
	err := FailStage(StageCredentials, fmt.Errorf("typing password: %w", base))

	assert.Equal(t, StageCredentials, StageOf(err))
	assert.ErrorIs(t, err, base, "the cause stays reachable through the wrap")
	assert.Contains(t, err.Error(), "credentials")
}

func TestStageOfDefaultsToUnexpected(t *testing.T) {
	assert.Equal(t, StageUnexpected, StageOf(errors.New("raw")))
}

func TestStageOfNested(t *testing.T) {
	err := fmt.Errorf("attempt failed: %w", FailStage(StageVerify, ErrVerificationFailed))
	assert.Equal(t, StageVerify, StageOf(err))
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func newDetachedTestSession(t *testing.T) (*Session, *int, *int) {
	t.Helper()
	tabCancels, allocCancels := 0, 0
	tabCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &Session{
		accountID:   "AB1234",
		logger:      zap.NewNop(),
		tabCtx:      tabCtx,
		tabCancel:   func() { tabCancels++ },
		allocCancel: func() { allocCancels++ },
	}, &tabCancels, &allocCancels
}

func TestSessionDetachDropsHandlesWithoutCancelling(t *testing.T) {
	s, tabCancels, allocCancels := newDetachedTestSession(t)

	s.Detach()
	assert.Zero(t, *tabCancels, "detach must not close the tab")
	assert.Zero(t, *allocCancels, "detach must not kill the browser process")

	// Close after detach is a no-op: ownership already transferred.
	s.Close()
	assert.Zero(t, *tabCancels)
	assert.Zero(t, *allocCancels)
}

func TestSessionCloseTerminates(t *testing.T) {
	s, tabCancels, allocCancels := newDetachedTestSession(t)

	s.Close()
	assert.Equal(t, 1, *tabCancels)
	assert.Equal(t, 1, *allocCancels)

	// Idempotent.
	s.Close()
	s.Detach()
	assert.Equal(t, 1, *tabCancels)
	assert.Equal(t, 1, *allocCancels)
}

func TestSessionSleepHonoursCancellation(t *testing.T) {
	s, _, _ := newDetachedTestSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Sleep(ctx, time.Minute)
	require.Error(t, err)

	// And completes normally when nothing cancels.
	require.NoError(t, s.Sleep(context.Background(), time.Millisecond))
}

func TestCombineContext(t *testing.T) {
	t.Run("secondary cancellation propagates", func(t *testing.T) {
		secondary, cancelSecondary := context.WithCancel(context.Background())
		combined, cancel := CombineContext(context.Background(), secondary)
		defer cancel()

		cancelSecondary()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context did not observe secondary cancellation")
		}
	})

	t.Run("primary cancellation propagates", func(t *testing.T) {
		primary, cancelPrimary := context.WithCancel(context.Background())
		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()

		cancelPrimary()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context did not observe primary cancellation")
		}
	})
}
