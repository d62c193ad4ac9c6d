package lanyard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nfrund/profilecard/internal/domain"
)

const (
	DefaultSocketURL = "wss://api.lanyard.rest/socket"
	DefaultAPIURL    = "https://api.lanyard.rest/v1/users/"

	helloTimeout     = 10 * time.Second
	writeWait        = 5 * time.Second
	defaultHeartbeat = 30 * time.Second
)

// Client is a presence feed backed by the Lanyard relay.
type Client struct {
	userID     string
	socketURL  string
	apiURL     string
	dialer     *websocket.Dialer
	httpClient *http.Client
	logger     *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	heartbeat time.Duration
	closed    bool

	writeMu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithSocketURL overrides the relay socket endpoint.
func WithSocketURL(u string) Option {
	return func(c *Client) { c.socketURL = u }
}

// WithAPIURL overrides the REST endpoint prefix.
func WithAPIURL(u string) Option {
	return func(c *Client) { c.apiURL = u }
}

// WithHTTPClient replaces the client used for REST requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a relay client following userID.
func NewClient(userID string, opts ...Option) *Client {
	c := &Client{
		userID:     userID,
		socketURL:  DefaultSocketURL,
		apiURL:     DefaultAPIURL,
		dialer:     websocket.DefaultDialer,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     slog.Default().With("component", "lanyard", "user_id", userID),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetupConnection dials the relay, waits for its hello and subscribes to the user.
func (c *Client) SetupConnection(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.socketURL, nil)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}

	interval, err := c.handshake(conn)
	if err != nil {
		conn.Close()
		return err
	}

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn
	c.heartbeat = interval
	c.closed = false
	c.mu.Unlock()

	c.logger.Info("Connected to presence relay", "url", c.socketURL, "heartbeat", interval)
	return nil
}

func (c *Client) handshake(conn *websocket.Conn) (time.Duration, error) {
	conn.SetReadDeadline(time.Now().Add(helloTimeout))
	var hello frame
	if err := conn.ReadJSON(&hello); err != nil {
		return 0, fmt.Errorf("read hello: %w", err)
	}
	if hello.Op != OpHello {
		return 0, fmt.Errorf("expected hello, got op %d", hello.Op)
	}
	conn.SetReadDeadline(time.Time{})

	var data helloData
	if len(hello.D) > 0 {
		if err := json.Unmarshal(hello.D, &data); err != nil {
			return 0, fmt.Errorf("decode hello: %w", err)
		}
	}
	interval := time.Duration(data.HeartbeatInterval) * time.Millisecond
	if interval <= 0 {
		interval = defaultHeartbeat
	}

	if err := c.writeJSON(conn, outgoing{Op: OpInitialize, D: initializeData{SubscribeToID: c.userID}}); err != nil {
		return 0, fmt.Errorf("send initialize: %w", err)
	}
	return interval, nil
}

// Subscribe starts delivering snapshots from the established connection.
// The snapshot channel is closed when the stream ends. A read failure is
// reported once on the error channel; ending through ctx or Close is silent.
func (c *Client) Subscribe(ctx context.Context) (<-chan domain.PresenceSnapshot, <-chan error) {
	snapshots := make(chan domain.PresenceSnapshot)
	errs := make(chan error, 1)

	c.mu.Lock()
	conn, interval := c.conn, c.heartbeat
	c.mu.Unlock()

	if conn == nil {
		errs <- domain.ErrNotConnected
		close(snapshots)
		return snapshots, errs
	}

	done := make(chan struct{})
	go c.readLoop(ctx, conn, snapshots, errs, done)
	go c.heartbeatLoop(ctx, conn, interval, done)
	go func() {
		select {
		case <-ctx.Done():
			// Unblocks the pending read.
			conn.Close()
		case <-done:
		}
	}()
	return snapshots, errs
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, snapshots chan<- domain.PresenceSnapshot, errs chan<- error, done chan struct{}) {
	defer close(done)
	defer close(snapshots)

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil || c.isClosed() {
				return
			}
			errs <- fmt.Errorf("read relay: %w", err)
			return
		}

		switch f.Op {
		case OpEvent:
			snapshot, err := toSnapshot(f)
			if err != nil {
				c.logger.Warn("Dropping malformed presence event", "event", f.T, "error", err)
				continue
			}
			select {
			case snapshots <- snapshot:
			case <-ctx.Done():
				return
			}
		case OpHello:
			c.logger.Debug("Ignoring repeated hello")
		default:
			c.logger.Debug("Ignoring relay frame", "op", f.Op)
		}
	}
}

func toSnapshot(f frame) (domain.PresenceSnapshot, error) {
	snapshot := domain.PresenceSnapshot{Op: f.Op, Seq: f.Seq, T: f.T}
	if len(f.D) == 0 || string(f.D) == "null" {
		return snapshot, nil
	}
	var data domain.PresenceData
	if err := json.Unmarshal(f.D, &data); err != nil {
		return snapshot, err
	}
	snapshot.D = &data
	return snapshot, nil
}

func (c *Client) heartbeatLoop(ctx context.Context, conn *websocket.Conn, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := c.writeJSON(conn, outgoing{Op: OpHeartbeat}); err != nil {
				c.logger.Warn("Heartbeat failed", "error", err)
				return
			}
		}
	}
}

func (c *Client) writeJSON(conn *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close sends a close frame and releases the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.closed = true
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.writeMu.Unlock()

	c.logger.Info("Presence relay connection closed")
	return conn.Close()
}

// FetchPresence reads the current presence once over REST.
func (c *Client) FetchPresence(ctx context.Context) (*domain.PresenceData, error) {
	endpoint := strings.TrimSuffix(c.apiURL, "/") + "/" + c.userID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch presence: %w", err)
	}
	defer resp.Body.Close()

	var body restResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode presence: %w (status %d)", err, resp.StatusCode)
	}
	if !body.Success {
		msg := http.StatusText(resp.StatusCode)
		if body.Error != nil {
			msg = body.Error.Code + ": " + body.Error.Message
		}
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
		}
		return nil, errors.New("fetch presence: " + msg)
	}

	var data domain.PresenceData
	if err := json.Unmarshal(body.Data, &data); err != nil {
		return nil, fmt.Errorf("decode presence data: %w", err)
	}
	return &data, nil
}
