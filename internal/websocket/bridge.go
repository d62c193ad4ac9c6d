package websocket

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nfrund/profilecard/internal/pubsub"
)

// ConnectionType defines the type of WebSocket connection.
type ConnectionType int

const (
	// ConnectionTypeHTML is for viewers that consume HTML fragments (htmx).
	ConnectionTypeHTML ConnectionType = iota
	// ConnectionTypeData is for viewers that consume JSON.
	ConnectionTypeData
)

const (
	sendBuffer   = 16
	writeTimeout = 10 * time.Second
)

// ViewerConnected is published whenever a viewer opens a socket.
type ViewerConnected struct {
	ViewerID       string         `json:"viewer_id"`
	ConnectionType ConnectionType `json:"connection_type"`
}

// TopicViewerConnected lets modules greet new viewers with the current state.
var TopicViewerConnected = pubsub.NewEvent[ViewerConnected](
	"ws.viewer.connected",
	"A browser opened a live card connection",
)

// Viewer is a single anonymous connection.
type Viewer struct {
	// ID is generated per connection; viewers are not authenticated.
	ID       string
	conn     *websocket.Conn
	send     chan []byte
	connType ConnectionType
	bridge   *Bridge
}

// BroadcastMessage represents a message to be broadcast to viewers.
type BroadcastMessage struct {
	payload     []byte
	targetTypes map[ConnectionType]bool
}

// DirectMessage represents a message to be sent to a single viewer.
type DirectMessage struct {
	ViewerID    string
	Payload     []byte
	targetTypes map[ConnectionType]bool
}

// Bridge fans card updates out to every connected viewer.
type Bridge struct {
	publisher      pubsub.Publisher
	originPatterns []string
	logger         *slog.Logger

	viewers map[string]*Viewer

	register   chan *Viewer
	unregister chan *Viewer
	broadcast  chan *BroadcastMessage
	direct     chan *DirectMessage

	// done is closed when Run returns.
	done chan struct{}

	mu sync.RWMutex
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithOriginPatterns allows cross-origin upgrades from the given host patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(b *Bridge) { b.originPatterns = patterns }
}

// NewBridge initializes a new Bridge. pub may be nil.
func NewBridge(pub pubsub.Publisher, opts ...Option) *Bridge {
	b := &Bridge{
		publisher:  pub,
		logger:     slog.Default().With("component", "ws_bridge"),
		viewers:    make(map[string]*Viewer),
		register:   make(chan *Viewer),
		unregister: make(chan *Viewer),
		broadcast:  make(chan *BroadcastMessage, 64),
		direct:     make(chan *DirectMessage, 64),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run manages viewer lifecycle and message routing until ctx is canceled.
func (b *Bridge) Run(ctx context.Context) {
	b.logger.Info("WebSocket bridge started")
	defer close(b.done)

	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for id, v := range b.viewers {
				close(v.send)
				delete(b.viewers, id)
			}
			b.mu.Unlock()
			b.logger.Info("WebSocket bridge stopped")
			return

		case viewer := <-b.register:
			b.mu.Lock()
			b.viewers[viewer.ID] = viewer
			b.mu.Unlock()
			b.logger.Info("Viewer registered", "viewerID", viewer.ID, "type", viewer.connType)

		case viewer := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.viewers[viewer.ID]; ok {
				delete(b.viewers, viewer.ID)
				close(viewer.send)
				b.logger.Info("Viewer unregistered", "viewerID", viewer.ID)
			}
			b.mu.Unlock()

		case message := <-b.broadcast:
			b.mu.RLock()
			for _, viewer := range b.viewers {
				if !message.targetTypes[viewer.connType] {
					continue
				}
				select {
				case viewer.send <- message.payload:
				default:
					// Drop message if the viewer's send buffer is full.
					b.logger.Warn("Viewer send channel full, dropping message", "viewerID", viewer.ID)
				}
			}
			b.mu.RUnlock()

		case message := <-b.direct:
			b.mu.RLock()
			if viewer, ok := b.viewers[message.ViewerID]; ok && message.targetTypes[viewer.connType] {
				select {
				case viewer.send <- message.Payload:
				default:
					b.logger.Warn("Viewer send channel full, dropping direct message", "viewerID", viewer.ID)
				}
			}
			b.mu.RUnlock()
		}
	}
}

// Handler returns an echo.HandlerFunc that upgrades requests for a given connection type.
func (b *Bridge) Handler(connType ConnectionType) echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			OriginPatterns: b.originPatterns,
		})
		if err != nil {
			b.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
			return err
		}

		viewer := &Viewer{
			ID:       uuid.NewString(),
			conn:     conn,
			send:     make(chan []byte, sendBuffer),
			connType: connType,
			bridge:   b,
		}

		select {
		case b.register <- viewer:
		case <-b.done:
			conn.Close(websocket.StatusGoingAway, "Server shutting down")
			return nil
		}

		go viewer.writePump()
		go viewer.readPump()

		if b.publisher != nil {
			// Detached from the request, which ends once the upgrade is done.
			go func() {
				evt := ViewerConnected{ViewerID: viewer.ID, ConnectionType: connType}
				if err := pubsub.Publish(context.Background(), b.publisher, TopicViewerConnected, evt); err != nil {
					b.logger.Error("Failed to publish viewer connect event", "error", err)
				}
			}()
		}
		return nil
	}
}

// readPump drains the connection so control frames are handled and a
// disconnect is noticed. Viewers have nothing to say to the server.
func (v *Viewer) readPump() {
	defer func() {
		select {
		case v.bridge.unregister <- v:
		case <-v.bridge.done:
		}
		v.conn.Close(websocket.StatusNormalClosure, "Viewer disconnected")
	}()

	for {
		if _, _, err := v.conn.Read(context.Background()); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				v.bridge.logger.Debug("WebSocket closed by viewer", "viewerID", v.ID)
			} else if err != io.EOF {
				v.bridge.logger.Debug("WebSocket read ended", "viewerID", v.ID, "error", err)
			}
			return
		}
	}
}

// writePump pumps messages from the viewer's send channel to the connection.
func (v *Viewer) writePump() {
	defer v.conn.Close(websocket.StatusNormalClosure, "Server-side cleanup")

	for message := range v.send {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := v.conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			v.bridge.logger.Warn("WebSocket write error", "viewerID", v.ID, "error", err)
			return
		}
	}
}

func targets(connTypes []ConnectionType) map[ConnectionType]bool {
	m := make(map[ConnectionType]bool, len(connTypes))
	for _, t := range connTypes {
		m[t] = true
	}
	return m
}

// Broadcast sends a message to all viewers of the specified connection types.
func (b *Bridge) Broadcast(payload []byte, connTypes ...ConnectionType) {
	select {
	case b.broadcast <- &BroadcastMessage{payload: payload, targetTypes: targets(connTypes)}:
	case <-b.done:
	}
}

// SendDirect sends a message to one viewer if its connection type matches.
func (b *Bridge) SendDirect(viewerID string, payload []byte, connTypes ...ConnectionType) {
	select {
	case b.direct <- &DirectMessage{ViewerID: viewerID, Payload: payload, targetTypes: targets(connTypes)}:
	case <-b.done:
	}
}

// ViewerCount reports the number of connected viewers.
func (b *Bridge) ViewerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.viewers)
}
