package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"yui/internal/config"
	"yui/internal/logging"
	"yui/internal/types"
)

const (
	defaultBaseURL     = "http://127.0.0.1:3001"
	defaultHTTPTimeout = 10 * time.Second
	maxErrorBodyBytes  = 4096
)

// Client talks to a Yui Protocol server.
type Client struct {
	baseURL     string
	http        *http.Client
	stream      *http.Client
	logger      logging.Logger
	streamDebug bool
}

type Option func(*Client)

func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithStreamDebug(enabled bool) Option {
	return func(c *Client) {
		c.streamDebug = enabled
	}
}

// WithHTTPClient replaces both the request and the streaming transport.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient == nil {
			return
		}
		c.http = httpClient
		c.stream = &http.Client{Transport: httpClient.Transport}
	}
}

func New(cfg config.Config, opts ...Option) *Client {
	opts = append([]Option{WithStreamDebug(cfg.StreamDebugEnabled())}, opts...)
	return NewWithBaseURL(cfg.ServerBaseURL(), opts...)
}

func NewWithBaseURL(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	transport := otelhttp.NewTransport(http.DefaultTransport)
	c := &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   defaultHTTPTimeout,
			Transport: transport,
		},
		// Stage streams run as long as the server keeps producing frames.
		stream: &http.Client{Transport: transport},
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) ListAgents(ctx context.Context) ([]types.Agent, error) {
	var agents []types.Agent
	if err := c.doJSON(ctx, http.MethodGet, "/api/agents", nil, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

// ListSessions returns the server's sessions in the order the server sent
// them. Callers building an initial listing sort with SortSessionsByUpdated.
func (c *Client) ListSessions(ctx context.Context) ([]*types.Session, error) {
	var sessions []*types.Session
	if err := c.doJSON(ctx, http.MethodGet, "/api/sessions", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*types.Session, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, errors.New("session title is required")
	}
	if req.AgentIDs == nil {
		req.AgentIDs = []string{}
	}
	var session types.Session
	if err := c.doJSON(ctx, http.MethodPost, "/api/sessions", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// StartNewSequence asks the server to open the next round of the session.
func (c *Client) StartNewSequence(ctx context.Context, sessionID string) error {
	return c.doJSON(ctx, http.MethodPost, sessionPath(sessionID, "start-new-sequence"), nil, nil)
}

// ResetSession clears the stage history of the session on the server.
func (c *Client) ResetSession(ctx context.Context, sessionID string) error {
	return c.doJSON(ctx, http.MethodPost, sessionPath(sessionID, "reset"), nil, nil)
}

func (c *Client) GetRealtimeSession(ctx context.Context, sessionID string) (*types.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("session id is required")
	}
	var session types.Session
	path := "/api/realtime/sessions/" + url.PathEscape(sessionID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SortSessionsByUpdated orders sessions most recently updated first, keeping
// the relative order of equal timestamps.
func SortSessionsByUpdated(sessions []*types.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		left, right := sessions[i], sessions[j]
		if left == nil || right == nil {
			return left != nil
		}
		return left.UpdatedAt.After(right.UpdatedAt)
	})
}

func sessionPath(sessionID, action string) string {
	return "/api/sessions/" + url.PathEscape(strings.TrimSpace(sessionID)) + "/" + action
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	text := strings.TrimSpace(string(raw))
	var payload struct {
		Error string `json:"error"`
	}
	if len(text) > 0 && text[0] == '{' {
		if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
		}
	}
	if text != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: text}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
}

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}
