package card

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nfrund/profilecard/internal/domain"
)

// ProfileFetcher retrieves a user's profile from the profile API.
type ProfileFetcher interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
}

// LoadedHook runs after every load attempt, successful or not.
type LoadedHook func(ctx context.Context, loaded bool)

// Loader fetches the card owner's profile into the state.
type Loader struct {
	fetcher ProfileFetcher
	userID  string
	state   *State
	hook    LoadedHook
	logger  *slog.Logger
}

// NewLoader creates a loader. hook may be nil.
func NewLoader(fetcher ProfileFetcher, userID string, state *State, hook LoadedHook) *Loader {
	return &Loader{
		fetcher: fetcher,
		userID:  userID,
		state:   state,
		hook:    hook,
		logger:  slog.Default().With("component", "profile_loader", "user_id", userID),
	}
}

// Load fetches the profile once. On failure the state is marked as not
// loaded and the error is logged and returned; it is never retried.
func (l *Loader) Load(ctx context.Context) error {
	defer func() {
		if l.hook != nil {
			l.hook(ctx, l.state.Loaded())
		}
	}()

	profile, err := l.fetcher.GetProfile(ctx, l.userID)
	if err == nil && profile == nil {
		err = domain.ErrNotFound
	}
	if err != nil {
		l.state.MarkNotLoaded()
		if !errors.Is(err, domain.ErrProfileFetch) {
			err = fmt.Errorf("%w: %w", domain.ErrProfileFetch, err)
		}
		l.logger.Error("Failed to load profile", "error", err)
		return err
	}

	l.state.SetProfile(profile)
	l.logger.Info("Profile loaded",
		"username", profile.User.Username,
		"theme_colors", len(profile.ThemeColors()))
	return nil
}
