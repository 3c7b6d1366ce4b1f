package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pbright/agent-arena-client/internal/api"
	"github.com/pbright/agent-arena-client/internal/arenatest"
	"github.com/pbright/agent-arena-client/internal/provider"
	"github.com/pbright/agent-arena-client/internal/transport"
	"github.com/pbright/agent-arena-client/internal/wire"
)

func intp(v int) *int { return &v }

func TestEndToEnd_PushTransport(t *testing.T) {
	srv := arenatest.New()
	defer srv.Close()

	srv.SetSubmitFunc(func(matchID string, sub wire.MoveSubmission) wire.SubmitResponse {
		return wire.SubmitResponse{OK: true, State: &wire.MatchState{
			StateVersion:  sub.ExpectedVersion + 1,
			Status:        wire.StatusEnded,
			WinnerAgentID: "a1",
			EndReason:     "surrender",
		}}
	})

	client := api.NewClient(srv.URL(), "a1", "tok", zap.NewNop())
	r := New(Config{AgentID: "a1"}, client, provider.Passer{}, zap.NewNop())

	done := make(chan runOutcome, 1)
	go func() {
		res, err := r.Run(context.Background())
		done <- runOutcome{res: res, err: err}
	}()

	require.True(t, srv.WaitPushConnected(3*time.Second))
	srv.PushFrame(wire.Frame{Type: wire.FrameYourTurn, StateVersion: intp(0)})

	out := waitOutcome(t, done)
	require.NoError(t, out.err)
	require.Equal(t, transport.OriginPush, out.res.Transport)
	require.Equal(t, "surrender", out.res.Reason)
	require.Equal(t, "a1", out.res.WinnerAgentID)
	require.Equal(t, "op1", out.res.LoserAgentID)

	subs := srv.Submissions()
	require.Len(t, subs, 1)
	require.Equal(t, 0, subs[0].ExpectedVersion)
	require.NotEmpty(t, subs[0].MoveID)
}

func TestEndToEnd_PushOpenTimeoutFallsBackToPoll(t *testing.T) {
	srv := arenatest.New()
	defer srv.Close()
	srv.RefusePush()

	srv.SetSnapshot(wire.MatchState{
		StateVersion: 1,
		Status:       wire.StatusActive,
		Game:         &wire.GameState{ActivePlayer: "a1", Players: []string{"a1", "op1"}},
	})
	srv.SetSubmitFunc(func(matchID string, sub wire.MoveSubmission) wire.SubmitResponse {
		return wire.SubmitResponse{OK: true, State: &wire.MatchState{
			StateVersion:  sub.ExpectedVersion + 1,
			Status:        wire.StatusEnded,
			WinnerAgentID: "op1",
			LoserAgentID:  "a1",
			EndReason:     "completed",
		}}
	})

	client := api.NewClient(srv.URL(), "a1", "tok", zap.NewNop())
	r := New(Config{
		AgentID:         "a1",
		PushOpenTimeout: 200 * time.Millisecond,
		PollInterval:    50 * time.Millisecond,
	}, client, provider.Passer{}, zap.NewNop())

	done := make(chan runOutcome, 1)
	go func() {
		res, err := r.Run(context.Background())
		done <- runOutcome{res: res, err: err}
	}()

	out := waitOutcome(t, done)
	require.NoError(t, out.err)
	require.Equal(t, transport.OriginPoll, out.res.Transport)
	require.Equal(t, "completed", out.res.Reason)

	// The turn signal came from a poll tick's snapshot diff, not from push.
	subs := srv.Submissions()
	require.Len(t, subs, 1)
	require.Equal(t, 1, subs[0].ExpectedVersion)
}

func TestEndToEnd_QueueWaitLoop(t *testing.T) {
	srv := arenatest.New()
	defer srv.Close()

	srv.SetJoin(wire.QueueJoinResponse{Status: wire.QueueWaiting})
	srv.EnqueueQueueBatch() // empty long-poll round
	srv.EnqueueQueueBatch(wire.QueueEvent{Type: wire.QueueEventMatchFound, MatchID: "m1", OpponentID: "op1"})

	client := api.NewClient(srv.URL(), "a1", "tok", zap.NewNop())
	r := New(Config{AgentID: "a1", QueueWaitTimeout: time.Second}, client, provider.Passer{}, zap.NewNop())

	done := make(chan runOutcome, 1)
	go func() {
		res, err := r.Run(context.Background())
		done <- runOutcome{res: res, err: err}
	}()

	require.True(t, srv.WaitPushConnected(3*time.Second))
	srv.PushFrame(wire.Frame{Type: wire.FrameMatchEnded, EndReason: "walkover", WinnerAgentID: "a1", LoserAgentID: "op1"})

	out := waitOutcome(t, done)
	require.NoError(t, out.err)
	require.Equal(t, "m1", out.res.MatchID)
	require.Equal(t, "walkover", out.res.Reason)
}
