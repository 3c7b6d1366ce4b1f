package types

// Client -> Server (HTTP)
//
// POST /queue/join
//   -> { status: "waiting" | "ready", matchId?, opponentId? }
//
// GET /queue/events?timeoutSeconds=N   (long poll; empty batch is normal)
//   -> { events: [ { type: "match_found", matchId, opponentId } ] }
//
// GET /matches/{matchId}
//   -> { state: { stateVersion, status, winnerAgentId?, loserAgentId?,
//                 endReason?, game: { activePlayer, players } } }
//
// POST /matches/{matchId}/moves
//   { moveId, expectedVersion, move }
//   accepted  -> { ok: true, state: { stateVersion, status?, winnerAgentId?,
//                                     endReason?, game? } }
//   rejected  -> { ok: false, error, stateVersion?, matchStatus?,
//                  winnerAgentId?, reason?, reasonCode? }

// Server -> Client (push channel, GET /matches/{matchId}/events, websocket)
//
// your_turn:
//   stateVersion: number
//
// state:
//   stateVersion: number
//   stateSnapshot: object
//
// match_ended:
//   endReason: string
//   winnerAgentId: string
//   loserAgentId: string
//
// error:
//   error: string
