package runner

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pbright/agent-arena-client/internal/provider"
	"github.com/pbright/agent-arena-client/internal/wire"
)

const (
	DefaultActionCap        = 32
	DefaultProviderDeadline = 4 * time.Second
)

// MoveSubmitter is the slice of the API client the turn driver needs.
type MoveSubmitter interface {
	SubmitMove(ctx context.Context, matchID string, sub wire.MoveSubmission) (wire.SubmitResponse, error)
}

// turnCursor is the per-run bookkeeping that makes turn handling idempotent.
// It is confined to the orchestrator's event loop and needs no locking.
type turnCursor struct {
	handled    map[int]bool
	maxHandled int
	inFlight   bool
}

func newTurnCursor() *turnCursor {
	return &turnCursor{handled: make(map[int]bool), maxHandled: -1}
}

// shouldIgnore reports whether a YourTurn for version v must be dropped:
// either a turn episode is already running, or v was handled, or something
// newer already was.
func (c *turnCursor) shouldIgnore(v int) bool {
	return c.inFlight || c.handled[v] || v <= c.maxHandled
}

func (c *turnCursor) markHandled(v int) {
	c.handled[v] = true
	if v > c.maxHandled {
		c.maxHandled = v
	}
}

// terminalState is a match-ended verdict, from whichever pathway saw it first.
type terminalState struct {
	reason        string
	winnerAgentID string
	loserAgentID  string
}

// turnResult reports one finished turn episode back to the event loop.
type turnResult struct {
	handled  []int
	terminal *terminalState
}

type turnDriver struct {
	api              MoveSubmitter
	provider         provider.Provider
	handle           MatchHandle
	actionCap        int
	providerDeadline time.Duration
	log              *zap.Logger
}

// runEpisode plays out one YourTurn signal: ask the provider, submit under
// the version precondition, and keep going while the service says it is
// still this agent's turn. The action cap bounds the episode so a service
// that keeps signalling the same agent cannot livelock the run.
func (d *turnDriver) runEpisode(ctx context.Context, v int) turnResult {
	var res turnResult
	for actions := 0; actions < d.actionCap; actions++ {
		move := d.nextMove(ctx, v)

		sub := wire.MoveSubmission{
			MoveID:          uuid.NewString(),
			ExpectedVersion: v,
			Move:            move,
		}
		resp, err := d.api.SubmitMove(ctx, d.handle.MatchID, sub)
		if err != nil {
			if ctx.Err() != nil {
				return res
			}
			// Treated like a rejection without match end: abort the episode
			// and let the next YourTurn carry a corrected version.
			d.log.Warn("move submission failed", zap.Int("expectedVersion", v), zap.Error(err))
			return res
		}

		if !resp.OK {
			if resp.MatchStatus == wire.StatusEnded {
				res.terminal = &terminalState{
					reason:        rejectionReason(resp),
					winnerAgentID: resp.WinnerAgentID,
				}
				return res
			}
			// Typically a version conflict: the server advanced past v
			// before this submission arrived. Do not advance; the next
			// YourTurn carries the corrected version.
			d.log.Info("move rejected",
				zap.Int("expectedVersion", v),
				zap.String("error", resp.Error),
				zap.String("reasonCode", resp.ReasonCode))
			return res
		}

		res.handled = append(res.handled, v)

		st := resp.State
		if st == nil {
			return res
		}
		if st.Ended() {
			res.terminal = &terminalState{
				reason:        st.EndReason,
				winnerAgentID: st.WinnerAgentID,
				loserAgentID:  st.LoserAgentID,
			}
			return res
		}
		if st.StateVersion > v && st.Game != nil && st.Game.ActivePlayer == d.handle.AgentID {
			// Still our turn at the new version; continue the episode.
			v = st.StateVersion
			continue
		}
		return res
	}

	d.log.Warn("turn episode hit action cap", zap.Int("cap", d.actionCap))
	return res
}

// nextMove races the provider against its deadline and substitutes the pass
// fallback on timeout or provider failure; a stuck provider must never stall
// the match.
func (d *turnDriver) nextMove(ctx context.Context, v int) json.RawMessage {
	req := provider.MoveRequest{
		AgentID:      d.handle.AgentID,
		MatchID:      d.handle.MatchID,
		StateVersion: v,
	}

	if d.providerDeadline <= 0 {
		mv, err := d.provider.NextMove(ctx, req)
		if err != nil {
			d.log.Warn("move provider failed, passing", zap.Error(err))
			return provider.Pass()
		}
		return mv
	}

	pctx, cancel := context.WithTimeout(ctx, d.providerDeadline)
	defer cancel()

	type outcome struct {
		mv  json.RawMessage
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		mv, err := d.provider.NextMove(pctx, req)
		ch <- outcome{mv: mv, err: err}
	}()

	select {
	case o := <-ch:
		if o.err != nil {
			d.log.Warn("move provider failed, passing", zap.Error(o.err))
			return provider.Pass()
		}
		return o.mv
	case <-pctx.Done():
		d.log.Warn("move provider deadline exceeded, passing",
			zap.Duration("deadline", d.providerDeadline))
		return provider.Pass()
	}
}

func rejectionReason(resp wire.SubmitResponse) string {
	switch {
	case resp.Reason != "":
		return resp.Reason
	case resp.ReasonCode != "":
		return resp.ReasonCode
	default:
		return resp.Error
	}
}
