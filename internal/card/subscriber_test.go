package card

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nfrund/profilecard/internal/domain"
	"github.com/nfrund/profilecard/internal/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFeed implements PresenceFeed with channels driven by the test.
type fakeFeed struct {
	setupErr  error
	snapshots chan domain.PresenceSnapshot
	errs      chan error

	mu     sync.Mutex
	setups int
	closed int
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		snapshots: make(chan domain.PresenceSnapshot),
		errs:      make(chan error, 1),
	}
}

func (f *fakeFeed) SetupConnection(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setups++
	return f.setupErr
}

func (f *fakeFeed) Subscribe(ctx context.Context) (<-chan domain.PresenceSnapshot, <-chan error) {
	return f.snapshots, f.errs
}

func (f *fakeFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeFeed) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// mockPublisher implements pubsub.Publisher for testing
type mockPublisher struct {
	messages []pubsub.Message
	mu       sync.Mutex
}

func (m *mockPublisher) Publish(ctx context.Context, msg pubsub.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockPublisher) Close() error {
	return nil
}

func (m *mockPublisher) getMessages() []pubsub.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]pubsub.Message, len(m.messages))
	copy(result, m.messages)
	return result
}

func gameSnapshot(start time.Time) domain.PresenceSnapshot {
	return domain.PresenceSnapshot{
		T: "PRESENCE_UPDATE",
		D: &domain.PresenceData{
			DiscordStatus: "online",
			Activities: []domain.Activity{
				{ID: "g", Name: "Game", ApplicationID: "42", Timestamps: &domain.Timestamps{Start: start.UnixMilli()}},
			},
		},
	}
}

func TestSubscriber_HandleSnapshot(t *testing.T) {
	state := NewState(testArtwork())
	publisher := &mockPublisher{}
	sub := NewSubscriber(newFakeFeed(), state, publisher)

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	sub.now = func() time.Time { return now }

	sub.handleSnapshot(context.Background(), gameSnapshot(now.Add(-90*time.Minute)))

	require.True(t, state.HasSnapshot())
	messages := publisher.getMessages()
	require.Len(t, messages, 1)
	assert.Equal(t, TopicPresenceUpdated.Name(), messages[0].Topic)

	view, err := pubsub.Decode(TopicPresenceUpdated, messages[0])
	require.NoError(t, err)
	require.Len(t, view.Activities, 1)
	assert.Equal(t, "1 hour and 30 minutes elapsed", view.Activities[0].Elapsed)
}

func TestSubscriber_SnapshotWithoutData(t *testing.T) {
	state := NewState(testArtwork())
	sub := NewSubscriber(newFakeFeed(), state, nil)

	sub.handleSnapshot(context.Background(), domain.PresenceSnapshot{T: "INIT_STATE"})

	view := state.Presence(time.Now())
	assert.True(t, view.Received)
	assert.Empty(t, view.Activities)
}

func TestSubscriber_StartProcessesStream(t *testing.T) {
	feed := newFakeFeed()
	state := NewState(testArtwork())
	sub := NewSubscriber(feed, state, &mockPublisher{})

	require.NoError(t, sub.Start(context.Background()))

	feed.snapshots <- gameSnapshot(time.Now().Add(-time.Minute))
	assert.Eventually(t, state.HasSnapshot, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sub.Stop(ctx))
	assert.Equal(t, 1, feed.closeCount())

	// A second stop is a no-op.
	require.NoError(t, sub.Stop(ctx))
	assert.Equal(t, 1, feed.closeCount())
}

func TestSubscriber_StartTwice(t *testing.T) {
	sub := NewSubscriber(newFakeFeed(), NewState(testArtwork()), nil)
	require.NoError(t, sub.Start(context.Background()))
	defer sub.Stop(context.Background())

	assert.Error(t, sub.Start(context.Background()))
}

func TestSubscriber_SetupFailure(t *testing.T) {
	feed := newFakeFeed()
	feed.setupErr = errors.New("dial refused")
	sub := NewSubscriber(feed, NewState(testArtwork()), nil)

	err := sub.Start(context.Background())
	assert.ErrorIs(t, err, domain.ErrPresenceStream)
}

func TestSubscriber_StreamErrorKeepsLastSnapshot(t *testing.T) {
	feed := newFakeFeed()
	state := NewState(testArtwork())
	sub := NewSubscriber(feed, state, nil)
	require.NoError(t, sub.Start(context.Background()))

	feed.snapshots <- gameSnapshot(time.Now())
	require.Eventually(t, state.HasSnapshot, time.Second, 10*time.Millisecond)

	feed.errs <- errors.New("connection reset")

	// The loop exits on the error and releases the feed itself.
	assert.Eventually(t, func() bool { return feed.closeCount() == 1 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sub.Stop(ctx))
	assert.Equal(t, 1, feed.closeCount())

	view := state.Presence(time.Now())
	assert.Len(t, view.Activities, 1)
}

func TestSubscriber_RestartAfterStreamEnds(t *testing.T) {
	feed := newFakeFeed()
	state := NewState(testArtwork())
	sub := NewSubscriber(feed, state, nil)
	require.NoError(t, sub.Start(context.Background()))

	feed.errs <- errors.New("connection reset")
	require.Eventually(t, func() bool { return feed.closeCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, sub.Start(context.Background()))
	feed.mu.Lock()
	assert.Equal(t, 2, feed.setups)
	feed.mu.Unlock()

	feed.snapshots <- gameSnapshot(time.Now())
	assert.Eventually(t, state.HasSnapshot, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sub.Stop(ctx))
	assert.Equal(t, 2, feed.closeCount())
}

func TestSubscriber_ParentCancelReleasesFeed(t *testing.T) {
	feed := newFakeFeed()
	sub := NewSubscriber(feed, NewState(testArtwork()), nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, sub.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool { return feed.closeCount() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, sub.Stop(context.Background()))
	assert.Equal(t, 1, feed.closeCount())
}
