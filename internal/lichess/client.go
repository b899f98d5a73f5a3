package lichess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

var (
	ErrUnauthorized = errors.New("lichess: unauthorized")
	ErrRateLimited  = errors.New("lichess: rate limited")
)

// StatusError reports a non-2xx response from a named endpoint.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("lichess %s: status=%d body=%s", e.Endpoint, e.Code, truncate(e.Body, 256))
}

// HeaderProvider allows injecting per-request headers.
type HeaderProvider func() map[string]string

// BearerHeaders is the standard provider for token auth.
func BearerHeaders(token string) HeaderProvider {
	return func() map[string]string {
		if strings.TrimSpace(token) == "" {
			return nil
		}
		return map[string]string{"Authorization": "Bearer " + token}
	}
}

type Client struct {
	baseURL string
	http    *fasthttp.Client
	stream  *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &fasthttp.Client{ReadTimeout: 15 * time.Second, WriteTimeout: 15 * time.Second, MaxConnsPerHost: 32},
		// Long-lived NDJSON feeds: stream the body, no read deadline.
		// Lichess keeps idle feeds alive with newline heartbeats.
		stream: &fasthttp.Client{
			StreamResponseBody: true,
			WriteTimeout:       15 * time.Second,
			MaxConnsPerHost:    32,
		},
		defaultTimeout: 15 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Account fetches the token owner's account info.
func (c *Client) Account(ctx context.Context) (*AccountInfo, error) {
	var info AccountInfo
	if err := c.getJSON(ctx, "/api/account", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ActiveGameIDs returns the ids of the account's currently running games.
func (c *Client) ActiveGameIDs(ctx context.Context) ([]string, error) {
	var resp NowPlayingResponse
	if err := c.getJSON(ctx, "/api/account/playing", &resp); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.NowPlaying))
	for _, g := range resp.NowPlaying {
		if id := strings.TrimSpace(g.GameID); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// StreamEvents opens the global account event feed.
func (c *Client) StreamEvents(ctx context.Context) (*Stream, error) {
	return c.openStream(ctx, "event", "/api/stream/event")
}

// StreamGame opens a per-game feed of the given transport kind
// ("bot" or "board").
func (c *Client) StreamGame(ctx context.Context, kind, gameID string) (*Stream, error) {
	path := fmt.Sprintf("/api/%s/game/stream/%s", kind, gameID)
	return c.openStream(ctx, kind+"-stream", path)
}

// ExportOngoing fetches the snapshot export of the user's running games.
// Moves in the export are SAN.
func (c *Client) ExportOngoing(ctx context.Context, username string) ([]ExportGame, error) {
	path := fmt.Sprintf("/api/games/user/%s?ongoing=true&moves=true", url.PathEscape(username))
	body, err := c.getNDJSON(ctx, path)
	if err != nil {
		return nil, err
	}
	var games []ExportGame
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var g ExportGame
		if err := json.Unmarshal([]byte(line), &g); err != nil {
			continue
		}
		if g.ID != "" {
			games = append(games, g)
		}
	}
	return games, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.get(ctx, path, "application/json")
	if err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return nil
}

func (c *Client) getNDJSON(ctx context.Context, path string) ([]byte, error) {
	return c.get(ctx, path, "application/x-ndjson")
}

func (c *Client) get(ctx context.Context, path, accept string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	c.prepare(req, path, accept)

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		deadline := c.computeDeadline(ctx)
		err := c.http.DoDeadline(req, resp, deadline)
		if err != nil {
			lastErr = fmt.Errorf("request %s: %w", path, err)
			if attempt == attempts {
				return nil, lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return nil, lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			err := statusError(path, status, resp.Body())
			if attempt == attempts || !shouldRetryStatus(status) {
				return nil, err
			}
			lastErr = err
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return nil, lastErr
			}
			continue
		}

		out := make([]byte, len(resp.Body()))
		copy(out, resp.Body())
		return out, nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return nil, lastErr
}

func (c *Client) openStream(ctx context.Context, name, path string) (*Stream, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	release := func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}

	c.prepare(req, path, "application/x-ndjson")

	// The deadline covers connect + response headers only; the body is
	// a long-lived stream read by the Stream goroutine.
	if err := c.stream.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
		release()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		err := statusError(path, status, resp.Body())
		resp.CloseBodyStream() //nolint:errcheck
		release()
		return nil, err
	}

	fasthttp.ReleaseRequest(req)
	return newStream(name, resp), nil
}

func (c *Client) prepare(req *fasthttp.Request, path, accept string) {
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + path)
	req.Header.Set("Accept", accept)
	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}

func statusError(endpoint string, code int, body []byte) error {
	switch code {
	case fasthttp.StatusUnauthorized, fasthttp.StatusForbidden:
		return fmt.Errorf("%w: %s status=%d", ErrUnauthorized, endpoint, code)
	case fasthttp.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, endpoint)
	}
	return &StatusError{Endpoint: endpoint, Code: code, Body: string(body)}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ...
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
