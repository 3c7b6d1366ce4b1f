package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MoveRequest identifies the decision point handed to a provider.
type MoveRequest struct {
	AgentID      string
	MatchID      string
	StateVersion int
}

// Provider chooses the next move. Implementations live outside this runtime;
// the runtime only races them against its deadline and falls back to Pass.
type Provider interface {
	NextMove(ctx context.Context, req MoveRequest) (json.RawMessage, error)
}

// Func adapts a plain function to the Provider interface.
type Func func(ctx context.Context, req MoveRequest) (json.RawMessage, error)

func (f Func) NextMove(ctx context.Context, req MoveRequest) (json.RawMessage, error) {
	return f(ctx, req)
}

// Pass is the safe fallback move submitted when a provider times out or
// fails: an explicit pass keeps the match moving instead of forfeiting by
// silence.
func Pass() json.RawMessage {
	return json.RawMessage(`{"action":"pass"}`)
}

// Passer always passes.
type Passer struct{}

func (Passer) NextMove(context.Context, MoveRequest) (json.RawMessage, error) {
	return Pass(), nil
}

// Script replays a fixed sequence of moves and passes once exhausted.
type Script struct {
	mu    sync.Mutex
	moves []json.RawMessage
	next  int
}

func NewScript(moves ...json.RawMessage) *Script {
	return &Script{moves: moves}
}

func (s *Script) NextMove(context.Context, MoveRequest) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.moves) {
		return Pass(), nil
	}
	mv := s.moves[s.next]
	s.next++
	return mv, nil
}

// Build returns a built-in provider by name.
func Build(name string) (Provider, error) {
	switch name {
	case "", "pass":
		return Passer{}, nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}
