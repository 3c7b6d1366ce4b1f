package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pbright/agent-arena-client/internal/wire"
)

const DefaultPollInterval = 1500 * time.Millisecond

// SnapshotFetcher is the slice of the API client the poll source needs.
type SnapshotFetcher interface {
	MatchSnapshot(ctx context.Context, matchID string) (wire.SnapshotResponse, error)
}

// Poll synthesizes runner events from periodic snapshot fetches. It is a
// strictly weaker approximation of the push channel, used once push fails.
type Poll struct {
	MatchID  string
	AgentID  string
	Interval time.Duration
	Fetch    SnapshotFetcher
	Log      *zap.Logger
}

func (p *Poll) Name() string { return OriginPoll }

func (p *Poll) Start(ctx context.Context, sink chan<- Tagged) (func(), error) {
	runCtx, cancel := context.WithCancel(ctx)
	var once sync.Once
	stop := func() { once.Do(cancel) }

	go p.loop(runCtx, sink)
	return stop, nil
}

func (p *Poll) loop(ctx context.Context, sink chan<- Tagged) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastVersion := -1     // last version for which State was emitted
	lastTurnVersion := -1 // last version for which YourTurn was emitted

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snap, err := p.Fetch.MatchSnapshot(ctx, p.MatchID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// A failed tick is not fatal; the schedule continues.
			p.Log.Warn("poll fetch failed", zap.String("matchId", p.MatchID), zap.Error(err))
			p.emit(ctx, sink, SourceError{Err: err})
			continue
		}

		st := snap.State
		if st.StateVersion != lastVersion {
			lastVersion = st.StateVersion
			payload, _ := json.Marshal(st)
			p.emit(ctx, sink, State{StateVersion: st.StateVersion, Snapshot: payload})
		}

		if st.Ended() {
			p.emit(ctx, sink, MatchEnded{
				Reason:        st.EndReason,
				WinnerAgentID: st.WinnerAgentID,
				LoserAgentID:  st.LoserAgentID,
			})
			return
		}

		if st.Game != nil && st.Game.ActivePlayer == p.AgentID && st.StateVersion > lastTurnVersion {
			lastTurnVersion = st.StateVersion
			p.emit(ctx, sink, YourTurn{StateVersion: st.StateVersion})
		}
	}
}

func (p *Poll) emit(ctx context.Context, sink chan<- Tagged, ev Event) {
	select {
	case sink <- Tagged{Origin: OriginPoll, Event: ev}:
	case <-ctx.Done():
	}
}
