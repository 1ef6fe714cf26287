package signalhandler

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithCancellation_SignalCancelsContext(t *testing.T) {
	ctx, cancel := WithCancellation(context.Background())
	defer cancel()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGINT))

	select {
	case <-ctx.Done():
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled after SIGINT")
	}
}

func TestWithCancellation_CancelIsIdempotent(t *testing.T) {
	ctx, cancel := WithCancellation(context.Background())

	cancel()
	cancel()

	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestWithCancellation_CancelAfterSignal(t *testing.T) {
	ctx, cancel := WithCancellation(context.Background())

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGINT))
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled after SIGINT")
	}

	// The watcher is now waiting for a second signal; cancel must release it
	// rather than leaving it parked for the life of the process.
	cancel()
}

func TestGetOptimalProcs_AtLeastOne(t *testing.T) {
	assert.GreaterOrEqual(t, GetOptimalProcs(), 1)
}
