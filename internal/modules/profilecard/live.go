package profilecard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nfrund/profilecard/internal/card"
	"github.com/nfrund/profilecard/internal/pubsub"
	"github.com/nfrund/profilecard/internal/rendering"
	"github.com/nfrund/profilecard/internal/view"
	ws "github.com/nfrund/profilecard/internal/websocket"
)

// Broadcaster delivers payloads to connected viewers.
type Broadcaster interface {
	Broadcast(payload []byte, connTypes ...ws.ConnectionType)
	SendDirect(viewerID string, payload []byte, connTypes ...ws.ConnectionType)
}

// LiveSubscriber turns card events into fragments pushed to viewers.
type LiveSubscriber struct {
	subscriber pubsub.Subscriber
	state      *card.State
	renderer   rendering.Renderer
	bridge     Broadcaster
	now        func() time.Time
	logger     *slog.Logger
}

// NewLiveSubscriber creates a new LiveSubscriber.
func NewLiveSubscriber(sub pubsub.Subscriber, state *card.State, renderer rendering.Renderer, bridge Broadcaster) *LiveSubscriber {
	return &LiveSubscriber{
		subscriber: sub,
		state:      state,
		renderer:   renderer,
		bridge:     bridge,
		now:        time.Now,
		logger:     slog.Default().With("component", "card_live_subscriber"),
	}
}

// Start subscribes to the card topics. Delivery stops when ctx is canceled.
func (ls *LiveSubscriber) Start(ctx context.Context) error {
	subs := map[string]pubsub.Handler{
		card.TopicPresenceUpdated.Name(): ls.handlePresenceUpdated,
		TopicProfileLoaded.Name():        ls.handleProfileLoaded,
		ws.TopicViewerConnected.Name():   ls.handleViewerConnected,
	}
	for topic, handler := range subs {
		if err := ls.subscriber.Subscribe(ctx, topic, handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	ls.logger.Info("Live card subscriber started")
	return nil
}

func (ls *LiveSubscriber) handlePresenceUpdated(ctx context.Context, msg pubsub.Message) error {
	presence, err := pubsub.Decode(card.TopicPresenceUpdated, msg)
	if err != nil {
		return err
	}

	html, err := ls.renderer.RenderComponent(ctx, view.PresenceOOB(presence))
	if err != nil {
		return err
	}
	ls.bridge.Broadcast(html, ws.ConnectionTypeHTML)
	// Data viewers get the same payload the event carried.
	ls.bridge.Broadcast(msg.Payload, ws.ConnectionTypeData)

	ls.logger.Debug("Pushed presence update", "activities", len(presence.Activities))
	return nil
}

func (ls *LiveSubscriber) handleProfileLoaded(ctx context.Context, msg pubsub.Message) error {
	if _, err := pubsub.Decode(TopicProfileLoaded, msg); err != nil {
		return err
	}

	html, err := ls.renderer.RenderComponent(ctx, view.ProfileOOB(ls.state.View(ls.now())))
	if err != nil {
		return err
	}
	ls.bridge.Broadcast(html, ws.ConnectionTypeHTML)
	return nil
}

// handleViewerConnected sends the current card to a viewer that just joined,
// since it may have missed updates between page load and socket open.
func (ls *LiveSubscriber) handleViewerConnected(ctx context.Context, msg pubsub.Message) error {
	evt, err := pubsub.Decode(ws.TopicViewerConnected, msg)
	if err != nil {
		return err
	}

	current := ls.state.View(ls.now())
	switch evt.ConnectionType {
	case ws.ConnectionTypeData:
		payload, err := json.Marshal(current)
		if err != nil {
			return err
		}
		ls.bridge.SendDirect(evt.ViewerID, payload, ws.ConnectionTypeData)
	default:
		profile, err := ls.renderer.RenderComponent(ctx, view.ProfileOOB(current))
		if err != nil {
			return err
		}
		presence, err := ls.renderer.RenderComponent(ctx, view.PresenceOOB(current.Presence))
		if err != nil {
			return err
		}
		ls.bridge.SendDirect(evt.ViewerID, append(profile, presence...), ws.ConnectionTypeHTML)
	}
	return nil
}
