package provider

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScript_ReplaysThenPasses(t *testing.T) {
	s := NewScript(
		json.RawMessage(`{"action":"place","cell":0}`),
		json.RawMessage(`{"action":"place","cell":4}`),
	)
	req := MoveRequest{AgentID: "a1", MatchID: "m1", StateVersion: 0}

	mv, err := s.NextMove(context.Background(), req)
	require.NoError(t, err)
	require.JSONEq(t, `{"action":"place","cell":0}`, string(mv))

	mv, err = s.NextMove(context.Background(), req)
	require.NoError(t, err)
	require.JSONEq(t, `{"action":"place","cell":4}`, string(mv))

	// Exhausted scripts fall back to passing instead of erroring out.
	mv, err = s.NextMove(context.Background(), req)
	require.NoError(t, err)
	require.JSONEq(t, `{"action":"pass"}`, string(mv))
}

func TestFunc_Adapts(t *testing.T) {
	var got MoveRequest
	p := Func(func(ctx context.Context, req MoveRequest) (json.RawMessage, error) {
		got = req
		return Pass(), nil
	})

	_, err := p.NextMove(context.Background(), MoveRequest{AgentID: "a1", MatchID: "m1", StateVersion: 3})
	require.NoError(t, err)
	require.Equal(t, 3, got.StateVersion)
}

func TestBuild(t *testing.T) {
	p, err := Build("")
	require.NoError(t, err)
	require.IsType(t, Passer{}, p)

	p, err = Build("pass")
	require.NoError(t, err)
	require.IsType(t, Passer{}, p)

	_, err = Build("oracle")
	require.Error(t, err)
}
