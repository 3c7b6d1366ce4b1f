package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pbright/agent-arena-client/internal/wire"
)

func newCoordinator(q QueueAPI, overall time.Duration) *queueCoordinator {
	return &queueCoordinator{
		api:         q,
		agentID:     "a1",
		waitTimeout: time.Second,
		overall:     overall,
		log:         zap.NewNop(),
	}
}

func TestQueue_ReadyImmediately(t *testing.T) {
	q := &fakeQueue{join: wire.QueueJoinResponse{Status: wire.QueueReady, MatchID: "m1", OpponentID: "op1"}}
	qc := newCoordinator(q, time.Second)

	h, err := qc.Join(context.Background())
	require.NoError(t, err)
	require.Equal(t, MatchHandle{MatchID: "m1", AgentID: "a1", OpponentID: "op1"}, h)
	require.Equal(t, 0, q.waitCalls)
}

func TestQueue_WaitsThroughEmptyBatches(t *testing.T) {
	q := &fakeQueue{
		join: wire.QueueJoinResponse{Status: wire.QueueWaiting},
		batches: [][]wire.QueueEvent{
			{},
			{{Type: "keepalive"}},
			{{Type: wire.QueueEventMatchFound, MatchID: "m7", OpponentID: "op9"}},
		},
	}
	qc := newCoordinator(q, 5*time.Second)

	h, err := qc.Join(context.Background())
	require.NoError(t, err)
	require.Equal(t, "m7", h.MatchID)
	require.Equal(t, "op9", h.OpponentID)
	require.Equal(t, 3, q.waitCalls)
}

func TestQueue_OverallTimeout(t *testing.T) {
	q := &fakeQueue{join: wire.QueueJoinResponse{Status: wire.QueueWaiting}}
	qc := newCoordinator(q, 50*time.Millisecond)

	_, err := qc.Join(context.Background())
	require.ErrorIs(t, err, ErrQueueTimeout)
}

func TestQueue_CallerCancel(t *testing.T) {
	q := &fakeQueue{join: wire.QueueJoinResponse{Status: wire.QueueWaiting}}
	qc := newCoordinator(q, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := qc.Join(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
