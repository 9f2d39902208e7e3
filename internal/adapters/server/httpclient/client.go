// Package httpclient talks to a session host over its HTTP API.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bnema/odfops/internal/adapters/transport/wire"
	"github.com/bnema/odfops/internal/domain"
	"github.com/bnema/odfops/internal/ports"
)

var (
	_ ports.Server   = (*Client)(nil)
	_ ports.OpSyncer = (*Client)(nil)
)

type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger

	mu     sync.RWMutex
	token  string
	userID domain.UserID
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) Connect(ctx context.Context, timeout time.Duration) domain.NetworkStatus {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	switch {
	case err == nil:
		return domain.NetworkReady
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NetworkTimeout
	default:
		c.logger.Debug("session host unavailable", "url", c.baseURL, "error", err)
		return domain.NetworkUnavailable
	}
}

func (c *Client) Login(ctx context.Context, login, password string) (domain.LoginResult, error) {
	var resp wire.LoginResponse
	err := c.do(ctx, http.MethodPost, "/login", wire.LoginRequest{Login: login, Password: password}, &resp)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidToken) {
			return domain.LoginResult{}, domain.ErrInvalidCredentials
		}
		return domain.LoginResult{}, fmt.Errorf("login: %w", err)
	}

	c.mu.Lock()
	c.token = resp.Token
	c.userID = resp.UserID
	c.mu.Unlock()

	return domain.LoginResult{UserID: resp.UserID, Token: resp.Token}, nil
}

// JoinSession joins as the logged in user; userID must be that user.
func (c *Client) JoinSession(ctx context.Context, userID domain.UserID, sessionID domain.SessionID) (domain.JoinResult, error) {
	c.mu.RLock()
	loggedIn := c.userID
	c.mu.RUnlock()
	if loggedIn != "" && userID != loggedIn {
		return domain.JoinResult{}, fmt.Errorf("%w: logged in as %s, not %s", domain.ErrInvalidToken, loggedIn, userID)
	}

	var resp wire.JoinResponse
	if err := c.do(ctx, http.MethodPost, sessionPath(sessionID, "join"), struct{}{}, &resp); err != nil {
		return domain.JoinResult{}, fmt.Errorf("join session: %w", err)
	}

	return resp.Result(), nil
}

func (c *Client) LeaveSession(ctx context.Context, sessionID domain.SessionID, memberID domain.MemberID) error {
	if err := c.do(ctx, http.MethodPost, sessionPath(sessionID, "leave"), wire.LeaveRequest{MemberID: memberID}, nil); err != nil {
		return fmt.Errorf("leave session: %w", err)
	}
	return nil
}

func (c *Client) Sync(ctx context.Context, req domain.SyncRequest) (domain.SyncResponse, error) {
	var resp domain.SyncResponse
	if err := c.do(ctx, http.MethodPost, sessionPath(req.SessionID, "sync"), req, &resp); err != nil {
		return domain.SyncResponse{}, fmt.Errorf("sync operations: %w", err)
	}
	return resp, nil
}

func (c *Client) State(ctx context.Context, sessionID domain.SessionID) (wire.StateResponse, error) {
	var resp wire.StateResponse
	if err := c.do(ctx, http.MethodGet, sessionPath(sessionID, "state"), nil, &resp); err != nil {
		return wire.StateResponse{}, fmt.Errorf("get session state: %w", err)
	}
	return resp, nil
}

func (c *Client) Sessions(ctx context.Context) ([]domain.SessionID, error) {
	var resp wire.SessionsResponse
	if err := c.do(ctx, http.MethodGet, "/sessions", nil, &resp); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return resp.Sessions, nil
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.token
}

func (c *Client) LiveURL(sessionID domain.SessionID) (string, error) {
	u, err := url.Parse(c.baseURL + sessionPath(sessionID, "live"))
	if err != nil {
		return "", fmt.Errorf("parse host url: %w", err)
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

func sessionPath(sessionID domain.SessionID, action string) string {
	return "/sessions/" + url.PathEscape(string(sessionID)) + "/" + action
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return statusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func statusError(resp *http.Response) error {
	var body wire.ErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body)
	message := body.Error
	if message == "" {
		message = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", domain.ErrInvalidToken, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, message)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrNotSessionMember, message)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrMalformedOperation, message)
	default:
		return fmt.Errorf("session host returned %d: %s", resp.StatusCode, message)
	}
}
