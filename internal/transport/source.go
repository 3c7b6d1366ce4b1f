package transport

import (
	"context"
	"encoding/json"
)

// Origin labels which source produced an event. The runner uses it to
// discard events from a source that has gone stale after failover.
const (
	OriginPush = "push"
	OriginPoll = "poll"
)

type Event interface{ isEvent() }

// YourTurn signals that the service expects a move from this agent for the
// given state version.
type YourTurn struct{ StateVersion int }

// State carries an authoritative snapshot of the match state.
type State struct {
	StateVersion int
	Snapshot     json.RawMessage
}

// MatchEnded is terminal. Winner and loser are reported as the service saw
// them; the runner normalizes them relative to the calling agent.
type MatchEnded struct {
	Reason        string
	WinnerAgentID string
	LoserAgentID  string
}

// SourceError reports a transport-level failure. For the push source it is
// terminal and triggers failover; for the poll source it covers a single
// failed tick and the schedule continues.
type SourceError struct{ Err error }

func (YourTurn) isEvent()    {}
func (State) isEvent()       {}
func (MatchEnded) isEvent()  {}
func (SourceError) isEvent() {}

// Tagged wraps an event with its origin for the runner's inbox.
type Tagged struct {
	Origin string
	Event  Event
}

// Source delivers match events onto sink until stopped. The returned stop
// function is idempotent and suppresses any further delivery.
type Source interface {
	Name() string
	Start(ctx context.Context, sink chan<- Tagged) (stop func(), err error)
}
