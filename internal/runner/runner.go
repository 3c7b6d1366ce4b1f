package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pbright/agent-arena-client/internal/api"
	"github.com/pbright/agent-arena-client/internal/provider"
	"github.com/pbright/agent-arena-client/internal/transport"
)

const (
	DefaultQueueTimeout     = 2 * time.Minute
	DefaultQueueWaitTimeout = 25 * time.Second
)

// Config carries the tunables for one match run. Zero values fall back to
// the package defaults.
type Config struct {
	AgentID          string
	QueueTimeout     time.Duration // overall matchmaking budget
	QueueWaitTimeout time.Duration // per long-poll wait call
	PushOpenTimeout  time.Duration
	PollInterval     time.Duration
	ProviderDeadline time.Duration
	ActionCap        int
	DisableFallback  bool
}

func (c *Config) applyDefaults() {
	if c.QueueTimeout <= 0 {
		c.QueueTimeout = DefaultQueueTimeout
	}
	if c.QueueWaitTimeout <= 0 {
		c.QueueWaitTimeout = DefaultQueueWaitTimeout
	}
	if c.PushOpenTimeout <= 0 {
		c.PushOpenTimeout = transport.DefaultOpenTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = transport.DefaultPollInterval
	}
	if c.ProviderDeadline == 0 {
		c.ProviderDeadline = DefaultProviderDeadline
	}
	if c.ActionCap <= 0 {
		c.ActionCap = DefaultActionCap
	}
}

// RunMatchResult is the single externally visible outcome of a full run.
type RunMatchResult struct {
	MatchID       string `json:"matchId"`
	Transport     string `json:"transport"`
	Reason        string `json:"reason"`
	WinnerAgentID string `json:"winnerAgentId"`
	LoserAgentID  string `json:"loserAgentId"`
}

// SourceFactory builds a transport source for an assigned match.
type SourceFactory func(h MatchHandle) transport.Source

// Runner joins matchmaking, drives the turn loop off whichever transport is
// live, and produces exactly one RunMatchResult.
type Runner struct {
	cfg     Config
	queue   QueueAPI
	submit  MoveSubmitter
	prov    provider.Provider
	newPush SourceFactory
	newPoll SourceFactory
	log     *zap.Logger
}

// New wires a Runner against the real API client.
func New(cfg Config, client *api.Client, prov provider.Provider, log *zap.Logger) *Runner {
	if cfg.AgentID == "" {
		cfg.AgentID = client.AgentID()
	}
	r := newRunner(cfg, client, client, prov, log)
	r.newPush = func(h MatchHandle) transport.Source {
		return &transport.Push{
			URL:         client.PushURL(h.MatchID),
			Token:       client.Token(),
			OpenTimeout: r.cfg.PushOpenTimeout,
			Log:         log,
		}
	}
	r.newPoll = func(h MatchHandle) transport.Source {
		return &transport.Poll{
			MatchID:  h.MatchID,
			AgentID:  h.AgentID,
			Interval: r.cfg.PollInterval,
			Fetch:    client,
			Log:      log,
		}
	}
	return r
}

// newRunner leaves the source factories to the caller; tests inject fakes.
func newRunner(cfg Config, queue QueueAPI, submit MoveSubmitter, prov provider.Provider, log *zap.Logger) *Runner {
	cfg.applyDefaults()
	return &Runner{
		cfg:    cfg,
		queue:  queue,
		submit: submit,
		prov:   prov,
		log:    log,
	}
}

// Run plays one match to completion. It returns the canonical result on any
// graceful termination signal, or an error when the queue times out, both
// transports are exhausted, or the context is cancelled.
func (r *Runner) Run(ctx context.Context) (RunMatchResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	qc := &queueCoordinator{
		api:         r.queue,
		agentID:     r.cfg.AgentID,
		waitTimeout: r.cfg.QueueWaitTimeout,
		overall:     r.cfg.QueueTimeout,
		log:         r.log,
	}
	handle, err := qc.Join(ctx)
	if err != nil {
		return RunMatchResult{}, err
	}
	r.log.Info("match assigned",
		zap.String("matchId", handle.MatchID),
		zap.String("opponentId", handle.OpponentID))

	inbox := make(chan transport.Tagged, 64)
	turnDone := make(chan turnResult, 1)

	var stops []func()
	defer func() {
		for _, stop := range stops {
			stop()
		}
	}()

	active := transport.OriginPush
	pushStale := false
	stop, err := r.newPush(handle).Start(ctx, inbox)
	if err != nil {
		r.log.Warn("push channel failed to open", zap.Error(err))
		pushStale = true
		stop, err = r.startFallback(ctx, handle, inbox)
		if err != nil {
			return RunMatchResult{}, err
		}
		active = transport.OriginPoll
	}
	stops = append(stops, stop)

	driver := &turnDriver{
		api:              r.submit,
		provider:         r.prov,
		handle:           handle,
		actionCap:        r.cfg.ActionCap,
		providerDeadline: r.cfg.ProviderDeadline,
		log:              r.log,
	}
	cursor := newTurnCursor()

	for {
		select {
		case <-ctx.Done():
			return RunMatchResult{}, ctx.Err()

		case tr := <-turnDone:
			cursor.inFlight = false
			for _, v := range tr.handled {
				cursor.markHandled(v)
			}
			if tr.terminal != nil {
				return r.resolve(handle, active, *tr.terminal), nil
			}

		case ev := <-inbox:
			if ev.Origin == transport.OriginPush && pushStale {
				r.log.Debug("discarding stale push event")
				continue
			}

			switch e := ev.Event.(type) {
			case transport.YourTurn:
				if cursor.shouldIgnore(e.StateVersion) {
					r.log.Debug("ignoring your-turn signal",
						zap.Int("stateVersion", e.StateVersion),
						zap.Bool("inFlight", cursor.inFlight))
					continue
				}
				cursor.inFlight = true
				go func(v int) {
					turnDone <- driver.runEpisode(ctx, v)
				}(e.StateVersion)

			case transport.State:
				r.log.Debug("state snapshot",
					zap.String("origin", ev.Origin),
					zap.Int("stateVersion", e.StateVersion))

			case transport.MatchEnded:
				return r.resolve(handle, active, terminalState{
					reason:        e.Reason,
					winnerAgentID: e.WinnerAgentID,
					loserAgentID:  e.LoserAgentID,
				}), nil

			case transport.SourceError:
				if ev.Origin != transport.OriginPush {
					// A poll tick failed; the poll schedule continues.
					r.log.Warn("poll source error", zap.Error(e.Err))
					continue
				}
				r.log.Warn("push channel error", zap.Error(e.Err))
				// One-way failover: mark push stale before the poll source
				// starts so nothing push sends from here on is honored.
				pushStale = true
				pollStop, ferr := r.startFallback(ctx, handle, inbox)
				if ferr != nil {
					return RunMatchResult{}, ferr
				}
				stops = append(stops, pollStop)
				active = transport.OriginPoll
			}
		}
	}
}

func (r *Runner) startFallback(ctx context.Context, handle MatchHandle, inbox chan transport.Tagged) (func(), error) {
	if r.cfg.DisableFallback {
		return nil, ErrTransportExhausted
	}
	r.log.Info("falling back to poll transport", zap.String("matchId", handle.MatchID))
	stop, err := r.newPoll(handle).Start(ctx, inbox)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportExhausted, err)
	}
	return stop, nil
}

// resolve normalizes the verdict relative to the calling agent and freezes
// the run's single result.
func (r *Runner) resolve(h MatchHandle, transportUsed string, t terminalState) RunMatchResult {
	winner, loser := t.winnerAgentID, t.loserAgentID
	switch winner {
	case "":
		// No winner reported (draw, shutdown); keep whatever loser came in.
	case h.AgentID:
		if loser == "" {
			loser = h.OpponentID
		}
	default:
		loser = h.AgentID
	}

	res := RunMatchResult{
		MatchID:       h.MatchID,
		Transport:     transportUsed,
		Reason:        t.reason,
		WinnerAgentID: winner,
		LoserAgentID:  loser,
	}
	r.log.Info("match resolved",
		zap.String("matchId", res.MatchID),
		zap.String("transport", res.Transport),
		zap.String("reason", res.Reason),
		zap.String("winnerAgentId", res.WinnerAgentID),
		zap.String("loserAgentId", res.LoserAgentID))
	return res
}
