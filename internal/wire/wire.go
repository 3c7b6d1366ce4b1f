package wire

import "encoding/json"

// Queue join statuses.
const (
	QueueWaiting = "waiting"
	QueueReady   = "ready"
)

// Match statuses reported by the service.
const (
	StatusActive = "active"
	StatusEnded  = "ended"
)

// Push frame types.
const (
	FrameYourTurn   = "your_turn"
	FrameState      = "state"
	FrameMatchEnded = "match_ended"
	FrameError      = "error"
)

// Queue event types delivered by the long-poll wait endpoint.
const (
	QueueEventMatchFound = "match_found"
)

type QueueJoinResponse struct {
	Status     string `json:"status"` // "waiting" | "ready"
	MatchID    string `json:"matchId,omitempty"`
	OpponentID string `json:"opponentId,omitempty"`
}

type QueueEvent struct {
	Type       string `json:"type"`
	MatchID    string `json:"matchId,omitempty"`
	OpponentID string `json:"opponentId,omitempty"`
}

type QueueEventsResponse struct {
	Events []QueueEvent `json:"events"`
}

// Frame is one message on the push channel. StateVersion is a pointer so a
// frame that omits it can be told apart from version 0 and dropped.
type Frame struct {
	Type          string          `json:"type"`
	StateVersion  *int            `json:"stateVersion,omitempty"`
	StateSnapshot json.RawMessage `json:"stateSnapshot,omitempty"`
	EndReason     string          `json:"endReason,omitempty"`
	WinnerAgentID string          `json:"winnerAgentId,omitempty"`
	LoserAgentID  string          `json:"loserAgentId,omitempty"`
	Error         string          `json:"error,omitempty"`
}

type GameState struct {
	ActivePlayer string   `json:"activePlayer"`
	Players      []string `json:"players"`
}

type MatchState struct {
	StateVersion  int        `json:"stateVersion"`
	Status        string     `json:"status,omitempty"`
	WinnerAgentID string     `json:"winnerAgentId,omitempty"`
	LoserAgentID  string     `json:"loserAgentId,omitempty"`
	EndReason     string     `json:"endReason,omitempty"`
	Game          *GameState `json:"game,omitempty"`
}

// Ended reports whether the state describes a finished match.
func (s MatchState) Ended() bool { return s.Status == StatusEnded }

type SnapshotResponse struct {
	State MatchState `json:"state"`
}

// MoveSubmission is sent once per submission attempt. MoveID is an
// idempotency token and must be fresh on every attempt, including retries
// of the same logical decision.
type MoveSubmission struct {
	MoveID          string          `json:"moveId"`
	ExpectedVersion int             `json:"expectedVersion"`
	Move            json.RawMessage `json:"move"`
}

// SubmitResponse is the envelope for both accepted and rejected submissions.
// OK selects which half of the envelope is meaningful.
type SubmitResponse struct {
	OK    bool        `json:"ok"`
	State *MatchState `json:"state,omitempty"`

	// Rejection fields.
	Error         string `json:"error,omitempty"`
	StateVersion  *int   `json:"stateVersion,omitempty"`
	MatchStatus   string `json:"matchStatus,omitempty"`
	WinnerAgentID string `json:"winnerAgentId,omitempty"`
	Reason        string `json:"reason,omitempty"`
	ReasonCode    string `json:"reasonCode,omitempty"`
}
