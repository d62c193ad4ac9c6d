package profilecard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/nfrund/profilecard/internal/card"
	"github.com/nfrund/profilecard/internal/middleware"
	"github.com/nfrund/profilecard/internal/pubsub"
	"github.com/nfrund/profilecard/internal/registry"
	"github.com/nfrund/profilecard/internal/rendering"
)

// Service keys published by this module.
var (
	KeyState  = registry.Key[*card.State]("profilecard.State")
	KeyLoader = registry.Key[*card.Loader]("profilecard.Loader")
)

// Per client IP: one /message redirect per second after a burst of five.
var (
	messageRate  = rate.Every(time.Second)
	messageBurst = 5
)

// Dependencies are the collaborators the module needs from the application.
type Dependencies struct {
	Publisher  pubsub.Publisher
	Subscriber pubsub.Subscriber
	Renderer   rendering.Renderer
	Bridge     Broadcaster
	Fetcher    card.ProfileFetcher
	Feed       card.PresenceFeed
}

// Module serves the profile card and keeps it live.
type Module struct {
	deps   Dependencies
	logger *slog.Logger

	state      *card.State
	loader     *card.Loader
	subscriber *card.Subscriber
	live       *LiveSubscriber
	refresh    *cron.Cron

	userID  string
	cancel  context.CancelFunc
	started sync.WaitGroup
}

// New creates the module.
func New(deps Dependencies) *Module {
	return &Module{
		deps:   deps,
		logger: slog.Default().With("component", "profilecard_module"),
	}
}

func (m *Module) Name() string {
	return "profilecard"
}

// Register builds the card state and its loader and subscriber.
func (m *Module) Register(reg *registry.Registry) error {
	cfg := reg.Config()
	if cfg == nil {
		return fmt.Errorf("profilecard: missing configuration")
	}
	m.userID = cfg.DiscordUserID

	m.state = card.NewState(card.Artwork{
		UserID:         cfg.DiscordUserID,
		AvatarProxyURL: cfg.AvatarProxyURL,
	})
	m.loader = card.NewLoader(m.deps.Fetcher, cfg.DiscordUserID, m.state, m.publishLoaded)
	m.subscriber = card.NewSubscriber(m.deps.Feed, m.state, m.deps.Publisher)

	registry.Set(reg, KeyState, m.state)
	registry.Set(reg, KeyLoader, m.loader)
	return nil
}

// publishLoaded is the loader's post-load hook.
func (m *Module) publishLoaded(ctx context.Context, loaded bool) {
	if m.deps.Publisher == nil {
		return
	}
	if err := pubsub.Publish(ctx, m.deps.Publisher, TopicProfileLoaded, ProfileLoaded{Loaded: loaded}); err != nil {
		m.logger.Error("Failed to publish profile loaded event", "error", err)
	}
}

// Boot mounts the routes, fetches the profile and opens the presence
// subscription. Failures of either fetch are logged, never returned.
func (m *Module) Boot(ctx context.Context, g *echo.Group, reg *registry.Registry) error {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	if spec := reg.Config().ProfileRefresh; spec != "" {
		m.refresh = cron.New(cron.WithLogger(cronLogger{m.logger}))
		if _, err := m.refresh.AddFunc(spec, func() { _ = m.loader.Load(runCtx) }); err != nil {
			m.refresh = nil
			return fmt.Errorf("schedule profile refresh %q: %w", spec, err)
		}
	}

	if m.deps.Subscriber != nil && m.deps.Bridge != nil {
		m.live = NewLiveSubscriber(m.deps.Subscriber, m.state, m.deps.Renderer, m.deps.Bridge)
		if err := m.live.Start(runCtx); err != nil {
			return err
		}
	}

	m.started.Add(2)
	go func() {
		defer m.started.Done()
		_ = m.loader.Load(runCtx)
	}()
	go func() {
		defer m.started.Done()
		if err := m.subscriber.Start(runCtx); err != nil {
			m.logger.Error("Presence subscription not started", "error", err)
		}
	}()

	if m.refresh != nil {
		m.refresh.Start()
		m.logger.Info("Profile refresh scheduled", "spec", reg.Config().ProfileRefresh)
	}

	h := NewHandler(m.state, m.deps.Renderer, m.userID)
	g.GET("/", h.Page)
	g.GET("/message", h.Message, middleware.RateLimiter(messageRate, messageBurst))

	api := g.Group("/api")
	api.GET("/card", h.Card)
	api.GET("/profile", h.Profile)
	api.GET("/presence", h.Presence)

	return nil
}

// Shutdown stops the refresh schedule and releases the presence subscription.
func (m *Module) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down profile card module")
	if m.cancel != nil {
		m.cancel()
	}
	if m.refresh != nil {
		select {
		case <-m.refresh.Stop().Done():
		case <-ctx.Done():
		}
	}

	// Wait for the initial fetch and connection attempt so Stop sees them.
	waited := make(chan struct{})
	go func() {
		m.started.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		return ctx.Err()
	}

	if m.subscriber == nil {
		return nil
	}
	return m.subscriber.Stop(ctx)
}

// cronLogger routes cron's logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
