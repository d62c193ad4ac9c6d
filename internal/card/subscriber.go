package card

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nfrund/profilecard/internal/domain"
	"github.com/nfrund/profilecard/internal/pubsub"
)

// TopicPresenceUpdated carries the derived presence after each snapshot.
var TopicPresenceUpdated = pubsub.NewEvent[PresenceView](
	"card.presence.updated",
	"Derived presence view published after every received snapshot",
)

// PresenceFeed is the realtime presence relay.
type PresenceFeed interface {
	// SetupConnection establishes the realtime connection.
	SetupConnection(ctx context.Context) error
	// Subscribe starts delivering snapshots. The snapshot channel is closed
	// when the stream ends; a terminal error, if any, is sent on the error channel first.
	Subscribe(ctx context.Context) (<-chan domain.PresenceSnapshot, <-chan error)
	// Close releases the connection.
	Close() error
}

// Subscriber keeps the state in sync with the presence feed.
type Subscriber struct {
	feed      PresenceFeed
	state     *State
	publisher pubsub.Publisher
	now       func() time.Time
	logger    *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSubscriber creates a subscriber. publisher may be nil.
func NewSubscriber(feed PresenceFeed, state *State, publisher pubsub.Publisher) *Subscriber {
	return &Subscriber{
		feed:      feed,
		state:     state,
		publisher: publisher,
		now:       time.Now,
		logger:    slog.Default().With("component", "presence_subscriber"),
	}
}

// Start connects to the feed and processes snapshots in the background
// until Stop is called, ctx is canceled or the stream fails. Once the stream
// has ended on its own the subscriber can be started again.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("presence subscriber already started")
	}

	if err := s.feed.SetupConnection(ctx); err != nil {
		return fmt.Errorf("%w: setup connection: %w", domain.ErrPresenceStream, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	snapshots, errs := s.feed.Subscribe(runCtx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go s.run(runCtx, cancel, snapshots, errs, done)
	s.logger.Info("Presence subscription started")
	return nil
}

// Stop ends the subscription and releases the feed connection. It waits for
// the processing loop to exit or ctx to expire.
func (s *Subscriber) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	closeErr := s.feed.Close()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.logger.Info("Presence subscription released")
	return closeErr
}

func (s *Subscriber) run(ctx context.Context, cancel context.CancelFunc, snapshots <-chan domain.PresenceSnapshot, errs <-chan error, done chan struct{}) {
	defer close(done)
	defer s.release(cancel, done)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.logStreamError(err)
			return
		case snapshot, ok := <-snapshots:
			if !ok {
				s.drainError(errs)
				return
			}
			s.handleSnapshot(ctx, snapshot)
		}
	}
}

// release clears the running subscription when the loop ends without Stop,
// closing the feed so the connection is not leaked.
func (s *Subscriber) release(cancel context.CancelFunc, done chan struct{}) {
	s.mu.Lock()
	owned := s.done == done
	if owned {
		s.cancel, s.done = nil, nil
	}
	s.mu.Unlock()

	if !owned {
		return
	}
	cancel()
	if err := s.feed.Close(); err != nil {
		s.logger.Debug("Closing ended presence feed", "error", err)
	}
}

// drainError reports a terminal error that raced the snapshot channel closing.
func (s *Subscriber) drainError(errs <-chan error) {
	select {
	case err, ok := <-errs:
		if ok && err != nil {
			s.logStreamError(err)
			return
		}
	default:
	}
	s.logger.Info("Presence stream ended")
}

// logStreamError logs a failed stream. The last snapshot stays displayed and
// the stream is not re-established.
func (s *Subscriber) logStreamError(err error) {
	s.logger.Error("Presence stream failed", "error", fmt.Errorf("%w: %w", domain.ErrPresenceStream, err))
}

// handleSnapshot replaces the displayed presence and announces it.
func (s *Subscriber) handleSnapshot(ctx context.Context, snapshot domain.PresenceSnapshot) {
	now := s.now()
	s.state.SetSnapshot(snapshot, now)
	view := s.state.Presence(now)

	s.logger.Debug("Presence snapshot received",
		"event", snapshot.T,
		"activities", len(view.Activities),
		"status", view.Status)

	if s.publisher == nil {
		return
	}
	if err := pubsub.Publish(ctx, s.publisher, TopicPresenceUpdated, view); err != nil {
		s.logger.Error("Failed to publish presence update", "error", err)
	}
}
