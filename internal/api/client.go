package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pbright/agent-arena-client/internal/wire"
)

// Client speaks the match service's HTTP contract on behalf of one agent.
type Client struct {
	baseURL string
	agentID string
	token   string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(baseURL, agentID, token string, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		agentID: agentID,
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
		log:     log,
	}
}

func (c *Client) AgentID() string { return c.agentID }
func (c *Client) Token() string   { return c.token }

// PushURL is the websocket endpoint for the match's event channel.
func (c *Client) PushURL(matchID string) string {
	u := c.baseURL + "/matches/" + url.PathEscape(matchID) + "/events"
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

func (c *Client) JoinQueue(ctx context.Context) (wire.QueueJoinResponse, error) {
	var out wire.QueueJoinResponse
	err := c.doJSON(ctx, http.MethodPost, "/queue/join", nil, &out)
	if err != nil {
		return wire.QueueJoinResponse{}, fmt.Errorf("join queue: %w", err)
	}
	return out, nil
}

func (c *Client) WaitQueueEvent(ctx context.Context, timeoutSeconds int) (wire.QueueEventsResponse, error) {
	var out wire.QueueEventsResponse
	path := "/queue/events?timeoutSeconds=" + strconv.Itoa(timeoutSeconds)
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		return wire.QueueEventsResponse{}, fmt.Errorf("wait queue event: %w", err)
	}
	return out, nil
}

func (c *Client) MatchSnapshot(ctx context.Context, matchID string) (wire.SnapshotResponse, error) {
	var out wire.SnapshotResponse
	err := c.doJSON(ctx, http.MethodGet, "/matches/"+url.PathEscape(matchID), nil, &out)
	if err != nil {
		return wire.SnapshotResponse{}, fmt.Errorf("match snapshot: %w", err)
	}
	return out, nil
}

// SubmitMove posts one move attempt. A rejection is not an error: the service
// answers 200 or 409 with ok:false and the rejection envelope; both decode
// into the returned SubmitResponse.
func (c *Client) SubmitMove(ctx context.Context, matchID string, sub wire.MoveSubmission) (wire.SubmitResponse, error) {
	var out wire.SubmitResponse
	err := c.doJSON(ctx, http.MethodPost, "/matches/"+url.PathEscape(matchID)+"/moves", sub, &out)
	if err != nil {
		return wire.SubmitResponse{}, fmt.Errorf("submit move: %w", err)
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Agent-Id", c.agentID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	c.log.Debug("api call", zap.String("method", method), zap.String("path", path), zap.Int("status", resp.StatusCode))

	// 409 carries a rejection envelope, not a transport failure.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusConflict {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, snippet)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
