package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pbright/agent-arena-client/internal/wire"
)

// QueueAPI is the slice of the API client the coordinator needs.
type QueueAPI interface {
	JoinQueue(ctx context.Context) (wire.QueueJoinResponse, error)
	WaitQueueEvent(ctx context.Context, timeoutSeconds int) (wire.QueueEventsResponse, error)
}

// MatchHandle identifies the assigned match. Created once, never mutated.
type MatchHandle struct {
	MatchID    string
	AgentID    string
	OpponentID string
}

type queueCoordinator struct {
	api         QueueAPI
	agentID     string
	waitTimeout time.Duration // per long-poll call
	overall     time.Duration // total budget before ErrQueueTimeout
	log         *zap.Logger
}

// Join enters matchmaking and blocks until a match is assigned. A wait call
// returning no events is long-poll housekeeping, not a failure; the loop
// retries until the overall budget runs out.
func (q *queueCoordinator) Join(ctx context.Context) (MatchHandle, error) {
	resp, err := q.api.JoinQueue(ctx)
	if err != nil {
		return MatchHandle{}, err
	}
	if resp.Status == wire.QueueReady {
		return MatchHandle{MatchID: resp.MatchID, AgentID: q.agentID, OpponentID: resp.OpponentID}, nil
	}

	q.log.Info("waiting in queue", zap.Duration("budget", q.overall))
	waitCtx, cancel := context.WithTimeout(ctx, q.overall)
	defer cancel()

	waitSec := int(q.waitTimeout / time.Second)
	if waitSec < 1 {
		waitSec = 1
	}

	for {
		evs, err := q.api.WaitQueueEvent(waitCtx, waitSec)
		if err != nil {
			if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
				return MatchHandle{}, ErrQueueTimeout
			}
			if ctx.Err() != nil {
				return MatchHandle{}, ctx.Err()
			}
			q.log.Warn("queue wait failed, retrying", zap.Error(err))
			select {
			case <-time.After(time.Second):
			case <-waitCtx.Done():
			}
			continue
		}
		for _, ev := range evs.Events {
			if ev.Type == wire.QueueEventMatchFound && ev.MatchID != "" {
				return MatchHandle{MatchID: ev.MatchID, AgentID: q.agentID, OpponentID: ev.OpponentID}, nil
			}
		}
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return MatchHandle{}, ErrQueueTimeout
		}
		if err := ctx.Err(); err != nil {
			return MatchHandle{}, fmt.Errorf("queue wait: %w", err)
		}
	}
}
