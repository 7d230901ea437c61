package demo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunCompletesHandshakeAndExchangesChatAndEntityUpdates(t *testing.T) {
	cfg := Config{
		HeartbeatInterval: 50 * time.Millisecond,
		TimeoutDuration:   500 * time.Millisecond,
		TickInterval:      2 * time.Millisecond,
		Duration:          400 * time.Millisecond,
	}

	summary, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.True(t, summary.ClientConnected)
	require.GreaterOrEqual(t, summary.ChatMessagesClient, 1)
	require.GreaterOrEqual(t, summary.ChatMessagesServer, 1)
	require.Greater(t, summary.EntityUpdates, 0)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := DefaultConfig()
	_, err := Run(ctx, cfg, nil)
	require.Error(t, err)
}
