package pg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hackmd-go/pkg/retry"
)

func TestDefaultWaitPolicy(t *testing.T) {
	t.Parallel()

	p := DefaultWaitPolicy()
	assert.Equal(t, 10, p.MaxAttempts)
	assert.Equal(t, time.Second, p.BaseDelay)
	require.NoError(t, p.Normalize())
}

func TestWaitForDB_GivesUp(t *testing.T) {
	t.Parallel()

	p := retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	err := WaitForDB(context.Background(), "postgres://u:p@127.0.0.1:1/db?connect_timeout=1", p)

	require.Error(t, err)
	var exceeded *retry.RetriesExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 2, exceeded.Attempts)
}

func TestWaitForDB_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitForDB(ctx, "postgres://u:p@127.0.0.1:1/db", DefaultWaitPolicy())
	require.ErrorIs(t, err, context.Canceled)
}

func TestHealthCheckPool_Nil(t *testing.T) {
	t.Parallel()

	require.Error(t, HealthCheckPool(context.Background(), nil))
}
