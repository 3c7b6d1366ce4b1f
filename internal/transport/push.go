package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/pbright/agent-arena-client/internal/wire"
)

const DefaultOpenTimeout = 15 * time.Second

// Push is the primary transport: a long-lived websocket channel on which the
// service pushes frames. It is best-effort; undecodable frames are dropped
// and correctness falls to the poll fallback.
type Push struct {
	URL         string
	Token       string
	OpenTimeout time.Duration
	Log         *zap.Logger
}

func (p *Push) Name() string { return OriginPush }

// Start dials the channel synchronously so that an open failure is reported
// to the caller (which triggers failover) rather than as an event.
func (p *Push) Start(ctx context.Context, sink chan<- Tagged) (func(), error) {
	openTimeout := p.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = DefaultOpenTimeout
	}

	dialCtx, cancel := context.WithTimeout(ctx, openTimeout)
	defer cancel()

	hdr := http.Header{}
	if p.Token != "" {
		hdr.Set("Authorization", "Bearer "+p.Token)
	}
	conn, _, err := websocket.Dial(dialCtx, p.URL, &websocket.DialOptions{HTTPHeader: hdr})
	if err != nil {
		return nil, fmt.Errorf("open push channel: %w", err)
	}

	runCtx, stopRun := context.WithCancel(ctx)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			stopRun()
			_ = conn.Close(websocket.StatusNormalClosure, "stopped")
		})
	}

	go p.readLoop(runCtx, conn, sink)
	return stop, nil
}

func (p *Push) readLoop(ctx context.Context, conn *websocket.Conn, sink chan<- Tagged) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// Closed by our own stop; stay silent.
				return
			}
			p.emit(ctx, sink, SourceError{Err: fmt.Errorf("push channel closed: %w", err)})
			return
		}

		ev, ok := decodeFrame(data)
		if !ok {
			p.Log.Debug("dropping undecodable push frame", zap.ByteString("frame", data))
			continue
		}
		p.emit(ctx, sink, ev)
	}
}

func (p *Push) emit(ctx context.Context, sink chan<- Tagged, ev Event) {
	select {
	case sink <- Tagged{Origin: OriginPush, Event: ev}:
	case <-ctx.Done():
	}
}

func decodeFrame(data []byte) (Event, bool) {
	var f wire.Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, false
	}
	switch f.Type {
	case wire.FrameYourTurn:
		if f.StateVersion == nil {
			return nil, false
		}
		return YourTurn{StateVersion: *f.StateVersion}, true
	case wire.FrameState:
		if f.StateVersion == nil {
			return nil, false
		}
		return State{StateVersion: *f.StateVersion, Snapshot: f.StateSnapshot}, true
	case wire.FrameMatchEnded:
		return MatchEnded{
			Reason:        f.EndReason,
			WinnerAgentID: f.WinnerAgentID,
			LoserAgentID:  f.LoserAgentID,
		}, true
	case wire.FrameError:
		return SourceError{Err: errors.New(f.Error)}, true
	default:
		return nil, false
	}
}
