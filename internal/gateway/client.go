// Package gateway talks to the remote authority over HTTP and classifies
// every response into an Outcome. It never returns transport errors to
// callers.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/clinicsync/internal/model"
	"go.uber.org/zap"
)

const (
	defaultUserAgent = "clinicsync/0.1"
	maxBodyBytes     = 32 << 20

	bootstrapPath = "/sync/bootstrap"
	chatsPath     = "/sync/chats"
)

// Credentials supplies and revokes the bearer token. *store.DB implements it.
type Credentials interface {
	Token() (string, error)
	ClearToken() error
}

// Client is the remote gateway.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	creds     Credentials
	logger    *zap.Logger
	userAgent string

	mu        sync.RWMutex
	tenantID  string
	branchID  string
	observers []func(reachable bool)
}

// New builds a Client for baseURL. Every call is bounded by timeout.
func New(baseURL string, timeout time.Duration, creds Credentials, logger *zap.Logger) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: timeout},
		creds:     creds,
		logger:    logger,
		userAgent: defaultUserAgent,
	}, nil
}

// OnReachability registers fn to be told after every call whether the
// authority answered.
func (c *Client) OnReachability(fn func(reachable bool)) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// SetScope sets the tenant and branch sent with every request.
func (c *Client) SetScope(tenantID, branchID string) {
	c.mu.Lock()
	c.tenantID, c.branchID = tenantID, branchID
	c.mu.Unlock()
}

// Send performs a mutation. Without a stored token nothing is sent and the
// outcome is Unreachable, so queued work waits for the next sign-in.
func (c *Client) Send(ctx context.Context, method, path string, body []byte) Outcome {
	token, ok := c.token()
	if !ok {
		return Outcome{Kind: Unreachable, Reason: "no credential"}
	}
	out := c.do(ctx, method, path, token, body)
	if out.Status == http.StatusUnauthorized {
		c.revoke()
		// The request itself was not judged; keep it for the next session.
		out.Kind = Unreachable
	}
	return out
}

// Bootstrap reads the full remote state. Any failure yields an empty state.
func (c *Client) Bootstrap(ctx context.Context) (model.RemoteState, Outcome) {
	var state model.RemoteState
	out := c.read(ctx, bootstrapPath, &state)
	if out.Kind != Confirmed {
		return model.RemoteState{}, out
	}
	return state, out
}

type chatsResponse struct {
	Chats []model.ChatMessage `json:"chats"`
}

// Chats reads the chat messages visible to the session. Any failure yields
// an empty list.
func (c *Client) Chats(ctx context.Context) ([]model.ChatMessage, Outcome) {
	var resp chatsResponse
	out := c.read(ctx, chatsPath, &resp)
	if out.Kind != Confirmed {
		return nil, out
	}
	return resp.Chats, out
}

func (c *Client) read(ctx context.Context, path string, dest any) Outcome {
	token, ok := c.token()
	if !ok {
		return Outcome{Kind: Rejected, Reason: "no credential"}
	}
	out := c.do(ctx, http.MethodGet, path, token, nil)
	if out.Status == http.StatusUnauthorized {
		c.revoke()
		return out
	}
	if out.Kind != Confirmed {
		return out
	}
	if len(out.Payload) == 0 {
		return out
	}
	if err := json.Unmarshal(out.Payload, dest); err != nil {
		c.logger.Warn("decode response failed", zap.String("path", path), zap.Error(err))
		return Outcome{Kind: Rejected, Status: out.Status, Reason: fmt.Sprintf("decode response: %v", err)}
	}
	return out
}

func (c *Client) do(ctx context.Context, method, path, token string, body []byte) Outcome {
	reqURL := *c.baseURL
	reqURL.Path = c.baseURL.Path + path

	var rd io.Reader
	if len(body) > 0 {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), rd)
	if err != nil {
		return Outcome{Kind: Rejected, Reason: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Authorization", "Bearer "+token)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	if c.tenantID != "" {
		req.Header.Set("X-Tenant-ID", c.tenantID)
	}
	if c.branchID != "" {
		req.Header.Set("X-Branch-ID", c.branchID)
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		c.notify(false)
		return Outcome{Kind: Unreachable, Reason: fmt.Sprintf("execute request: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.notify(false)
		return Outcome{Kind: Unreachable, Status: resp.StatusCode, Reason: fmt.Sprintf("read response: %v", err)}
	}

	kind := Classify(method, resp.StatusCode)
	c.notify(resp.StatusCode < 500)

	out := Outcome{Kind: kind, Status: resp.StatusCode}
	if kind == Confirmed {
		out.Payload = payload
	} else {
		out.Reason = strings.TrimSpace(string(payload))
	}
	c.logger.Debug("remote call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Stringer("outcome", kind),
	)
	return out
}

func (c *Client) token() (string, bool) {
	if c.creds == nil {
		return "", false
	}
	token, err := c.creds.Token()
	if err != nil {
		c.logger.Warn("read credential failed", zap.Error(err))
		return "", false
	}
	return token, token != ""
}

func (c *Client) revoke() {
	c.logger.Warn("credential rejected by authority, clearing")
	if c.creds == nil {
		return
	}
	if err := c.creds.ClearToken(); err != nil {
		c.logger.Error("clear credential failed", zap.Error(err))
	}
}

func (c *Client) notify(reachable bool) {
	c.mu.RLock()
	obs := c.observers
	c.mu.RUnlock()
	for _, fn := range obs {
		fn(reachable)
	}
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("base url required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base_url %q: %w", raw, err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
