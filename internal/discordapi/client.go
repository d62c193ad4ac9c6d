package discordapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nfrund/profilecard/internal/domain"
)

// DefaultTimeout bounds a single profile request.
const DefaultTimeout = 10 * time.Second

// Client fetches profiles from a Discord profile API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	group      singleflight.Group
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a profile client for the API rooted at baseURL.
// Profiles are requested at <baseURL>/<userID>.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default().With("component", "discordapi"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetProfile fetches the profile of userID. Concurrent calls for the same
// user share a single request. The shared request is not tied to any one
// caller's ctx; each caller stops waiting when its own ctx is done.
func (c *Client) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", domain.ErrProfileFetch)
	}

	ch := c.group.DoChan(userID, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultTimeout)
		defer cancel()
		return c.fetch(fetchCtx, userID)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", domain.ErrProfileFetch, ctx.Err())
	case res := <-ch:
		if res.Shared {
			c.logger.Debug("singleflight: shared profile fetch", "user_id", userID)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Profile), nil
	}
}

func (c *Client) fetch(ctx context.Context, userID string) (*domain.Profile, error) {
	endpoint := c.baseURL + "/" + url.PathEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", domain.ErrProfileFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProfileFetch, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Profile API responded",
		"user_id", userID,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %w", domain.ErrProfileFetch, domain.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: unexpected status %d: %s", domain.ErrProfileFetch, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var profile domain.Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", domain.ErrProfileFetch, err)
	}
	return &profile, nil
}
