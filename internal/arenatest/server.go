// Package arenatest provides an in-process, scriptable stand-in for the
// match service, used by the client packages' tests.
package arenatest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/pbright/agent-arena-client/internal/wire"
)

// SubmitFunc scripts the service's response to one move submission.
type SubmitFunc func(matchID string, sub wire.MoveSubmission) wire.SubmitResponse

type pushConn struct {
	conn   *websocket.Conn
	frames chan []byte
}

// Server hosts the queue, snapshot, submit, and push-channel endpoints over
// httptest. All scripting methods are safe for concurrent use.
type Server struct {
	mu           sync.Mutex
	join         wire.QueueJoinResponse
	queueBatches [][]wire.QueueEvent
	snapshot     wire.MatchState
	submitFn     SubmitFunc
	submissions  []wire.MoveSubmission
	refusePush   bool
	pending      [][]byte
	conns        []*pushConn
	connected    chan struct{}

	srv *httptest.Server
}

func New() *Server {
	s := &Server{
		join:      wire.QueueJoinResponse{Status: wire.QueueReady, MatchID: "m1", OpponentID: "op1"},
		connected: make(chan struct{}, 16),
	}
	s.submitFn = func(matchID string, sub wire.MoveSubmission) wire.SubmitResponse {
		v := sub.ExpectedVersion + 1
		return wire.SubmitResponse{OK: true, State: &wire.MatchState{StateVersion: v, Status: wire.StatusActive}}
	}

	r := chi.NewRouter()
	r.Post("/queue/join", s.handleJoin)
	r.Get("/queue/events", s.handleQueueEvents)
	r.Get("/matches/{matchID}", s.handleSnapshot)
	r.Post("/matches/{matchID}/moves", s.handleSubmit)
	r.Get("/matches/{matchID}/events", s.handlePush)

	s.srv = httptest.NewServer(r)
	return s
}

func (s *Server) URL() string { return s.srv.URL }

// WSURL is the push channel endpoint in websocket scheme.
func (s *Server) WSURL(matchID string) string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/matches/" + matchID + "/events"
}

func (s *Server) Close() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, pc := range conns {
		_ = pc.conn.Close(websocket.StatusNormalClosure, "shutdown")
	}
	s.srv.Close()
}

// SetJoin scripts the response to POST /queue/join.
func (s *Server) SetJoin(resp wire.QueueJoinResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.join = resp
}

// EnqueueQueueBatch scripts the next wait call's event batch. Calls beyond
// the scripted batches return an empty batch (long-poll semantics).
func (s *Server) EnqueueQueueBatch(events ...wire.QueueEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queueBatches = append(s.queueBatches, events)
}

// SetSnapshot scripts the state returned by the poll endpoint.
func (s *Server) SetSnapshot(st wire.MatchState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = st
}

// SetSubmitFunc scripts submit responses.
func (s *Server) SetSubmitFunc(fn SubmitFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitFn = fn
}

// Submissions returns every move submission received so far.
func (s *Server) Submissions() []wire.MoveSubmission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wire.MoveSubmission, len(s.submissions))
	copy(out, s.submissions)
	return out
}

// RefusePush makes the push endpoint hang without completing the websocket
// handshake, so a client's open timeout fires.
func (s *Server) RefusePush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refusePush = true
}

// PushFrame delivers a frame on every connected push channel; frames sent
// before a connection exists are flushed at connect time.
func (s *Server) PushFrame(f wire.Frame) {
	data, _ := json.Marshal(f)
	s.PushRaw(data)
}

// PushRaw delivers an arbitrary payload, decodable or not.
func (s *Server) PushRaw(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		s.pending = append(s.pending, data)
		return
	}
	for _, pc := range s.conns {
		select {
		case pc.frames <- data:
		default:
		}
	}
}

// ClosePushConns abnormally closes every push connection, as a crashing
// service would.
func (s *Server) ClosePushConns() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, pc := range conns {
		_ = pc.conn.Close(websocket.StatusInternalError, "service failure")
	}
}

// WaitPushConnected blocks until a push client attaches.
func (s *Server) WaitPushConnected(timeout time.Duration) bool {
	select {
	case <-s.connected:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := s.join
	s.mu.Unlock()
	writeJSON(w, resp)
}

func (s *Server) handleQueueEvents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	var batch []wire.QueueEvent
	if len(s.queueBatches) > 0 {
		batch = s.queueBatches[0]
		s.queueBatches = s.queueBatches[1:]
	}
	s.mu.Unlock()
	if batch == nil {
		batch = []wire.QueueEvent{}
	}
	writeJSON(w, wire.QueueEventsResponse{Events: batch})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st := s.snapshot
	s.mu.Unlock()
	writeJSON(w, wire.SnapshotResponse{State: st})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var sub wire.MoveSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	matchID := chi.URLParam(r, "matchID")

	s.mu.Lock()
	s.submissions = append(s.submissions, sub)
	fn := s.submitFn
	s.mu.Unlock()

	writeJSON(w, fn(matchID, sub))
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	refuse := s.refusePush
	s.mu.Unlock()
	if refuse {
		<-r.Context().Done()
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}

	pc := &pushConn{conn: conn, frames: make(chan []byte, 32)}
	s.mu.Lock()
	for _, data := range s.pending {
		pc.frames <- data
	}
	s.pending = nil
	s.conns = append(s.conns, pc)
	s.mu.Unlock()

	select {
	case s.connected <- struct{}{}:
	default:
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-pc.frames:
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			err := conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
