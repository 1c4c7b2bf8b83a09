// Package upstream talks to the receipts backend that fronts the cash registers.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/breadline/backoffice/internal/daterange"
	"github.com/breadline/backoffice/internal/retry"
)

const sessionHeader = "X-SBISSessionID"

var (
	// ErrUnavailable wraps every failure that survived the retry policy.
	ErrUnavailable = errors.New("upstream: unavailable")
	// ErrUnauthorized means the backend rejected the token or session id.
	ErrUnauthorized = errors.New("upstream: unauthorized")
)

// Observer receives one call per HTTP exchange.
type Observer interface {
	ObserveUpstream(endpoint string, err error, elapsed time.Duration)
}

// Config groups client settings.
type Config struct {
	BaseURL  string
	Token    string
	Timeout  time.Duration
	Retry    retry.Policy
	Logger   *slog.Logger
	Observer Observer
}

// Client wraps the receipts backend REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retry      retry.Policy
	logger     *slog.Logger
	observer   Observer
}

// NewClient constructs a client. A zero retry policy falls back to retry.Default.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	policy := cfg.Retry
	if policy.MaxAttempts == 0 {
		policy = retry.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		retry:      policy,
		logger:     logger,
		observer:   cfg.Observer,
	}
}

// Point is one cash register as reported by the backend.
type Point struct {
	RegID     string `json:"regId"`
	FSNumber  string `json:"fsNumber"`
	PointName string `json:"pointName"`
}

// Receipt is one aggregated receipt block for a point.
type Receipt struct {
	PointName string        `json:"point_name"`
	Items     []ReceiptItem `json:"items"`
	TotalSum  int64         `json:"total_sum"`
}

// ReceiptItem is one sold product line; TotalSum is in minor currency units.
type ReceiptItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	TotalSum int64   `json:"total_sum"`
}

// Authenticate opens a backend session and returns its id.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	var out struct {
		SID string `json:"sid"`
	}
	if err := c.get(ctx, "/api/auth", nil, "", &out); err != nil {
		return "", err
	}
	if out.SID == "" {
		return "", fmt.Errorf("%w: empty session id", ErrUnavailable)
	}
	return out.SID, nil
}

// Points lists the registers visible to the session.
func (c *Client) Points(ctx context.Context, sid string) ([]Point, error) {
	var out struct {
		KKTs []Point `json:"kkts"`
	}
	if err := c.get(ctx, "/api/kkts", nil, sid, &out); err != nil {
		return nil, err
	}
	return out.KKTs, nil
}

// Receipts fetches receipts for the half-open window [from, to). An empty
// point returns every point.
func (c *Client) Receipts(ctx context.Context, sid string, window daterange.Pair, point string) ([]Receipt, error) {
	query := url.Values{}
	query.Set("date_from", window.From.String())
	query.Set("date_to", window.To.String())
	if point != "" {
		query.Set("point_name", point)
	}
	var out struct {
		Data []Receipt `json:"data"`
	}
	if err := c.get(ctx, "/api/receipts", query, sid, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, sid string, dest any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	attempt := 0
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		start := time.Now()
		err := c.do(ctx, endpoint, sid, dest)
		if c.observer != nil {
			c.observer.ObserveUpstream(path, err, time.Since(start))
		}
		if err != nil {
			c.logger.Warn("upstream request failed",
				slog.String("path", path),
				slog.Int("attempt", attempt),
				slog.Any("error", err))
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return err
		}
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint, sid string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if sid != "" {
		req.Header.Set(sessionHeader, sid)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return retry.Permanent(fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode))
	case resp.StatusCode >= 500:
		return fmt.Errorf("status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return retry.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
