package profilecard

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/nfrund/profilecard/internal/domain"
	"github.com/nfrund/profilecard/internal/pubsub"
	ws "github.com/nfrund/profilecard/internal/websocket"
)

const testUserID = "123456789012345678"

func testProfile() *domain.Profile {
	accent := 0x00FF00
	return &domain.Profile{
		User: discordgo.User{ID: testUserID, Username: "nyx", GlobalName: "Nyx"},
		UserProfile: &domain.UserProfile{
			Bio:         "hello\nworld",
			ThemeColors: []int{0xFF0000, 0x0000FF},
			Pronouns:    "they/them",
			AccentColor: &accent,
		},
	}
}

type stubFetcher struct {
	profile *domain.Profile
	err     error
}

func (f stubFetcher) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	return f.profile, f.err
}

// fakeFeed hands out a snapshot channel the test writes to.
type fakeFeed struct {
	snapshots chan domain.PresenceSnapshot
	errs      chan error
	mu        sync.Mutex
	closed    bool
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		snapshots: make(chan domain.PresenceSnapshot),
		errs:      make(chan error, 1),
	}
}

func (f *fakeFeed) SetupConnection(ctx context.Context) error { return nil }

func (f *fakeFeed) Subscribe(ctx context.Context) (<-chan domain.PresenceSnapshot, <-chan error) {
	return f.snapshots, f.errs
}

func (f *fakeFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeFeed) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// syncBus delivers published messages to subscribers on the caller's goroutine.
type syncBus struct {
	mu       sync.Mutex
	handlers map[string][]pubsub.Handler
}

func newSyncBus() *syncBus {
	return &syncBus{handlers: make(map[string][]pubsub.Handler)}
}

func (b *syncBus) Publish(ctx context.Context, msg pubsub.Message) error {
	b.mu.Lock()
	handlers := append([]pubsub.Handler(nil), b.handlers[msg.Topic]...)
	b.mu.Unlock()
	for _, h := range handlers {
		if err := h(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (b *syncBus) Subscribe(ctx context.Context, topic string, handler pubsub.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
	return nil
}

func (b *syncBus) Close() error { return nil }

type sent struct {
	viewerID string
	payload  string
	types    []ws.ConnectionType
}

// recordingBridge captures everything pushed to viewers.
type recordingBridge struct {
	mu         sync.Mutex
	broadcasts []sent
	directs    []sent
}

func (r *recordingBridge) Broadcast(payload []byte, connTypes ...ws.ConnectionType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, sent{payload: string(payload), types: connTypes})
}

func (r *recordingBridge) SendDirect(viewerID string, payload []byte, connTypes ...ws.ConnectionType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.directs = append(r.directs, sent{viewerID: viewerID, payload: string(payload), types: connTypes})
}

func (r *recordingBridge) broadcastsTo(t ws.ConnectionType) []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sent
	for _, s := range r.broadcasts {
		for _, ct := range s.types {
			if ct == t {
				out = append(out, s)
			}
		}
	}
	return out
}

func (r *recordingBridge) directMessages() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sent(nil), r.directs...)
}
