package card

import (
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/nfrund/profilecard/internal/domain"
)

// ProfileView is the display form of a profile.
type ProfileView struct {
	UserID      string      `json:"user_id"`
	Username    string      `json:"username"`
	DisplayName string      `json:"display_name"`
	AvatarURL   string      `json:"avatar_url"`
	Pronouns    string      `json:"pronouns,omitempty"`
	Bio         string      `json:"bio,omitempty"`
	ThemeColors []string    `json:"theme_colors"`
	Badges      []BadgeView `json:"badges,omitempty"`
	MessageURL  string      `json:"message_url"`
}

// BadgeView is a badge ready to render.
type BadgeView struct {
	Description string `json:"description"`
	IconURL     string `json:"icon_url"`
}

// ActivityView pairs a raw activity with the fields derived for display.
type ActivityView struct {
	domain.Activity
	Elapsed       string `json:"elapsed"`
	LargeImageURL string `json:"large_image_url"`
	SmallImageURL string `json:"small_image_url,omitempty"`
}

// PresenceView is the display form of the latest presence snapshot.
type PresenceView struct {
	Received   bool             `json:"received"`
	Status     discordgo.Status `json:"status,omitempty"`
	Activities []ActivityView   `json:"activities"`
	Spotify    *domain.Spotify  `json:"spotify,omitempty"`
	UpdatedAt  time.Time        `json:"updated_at,omitempty"`
}

// View is the full card.
type View struct {
	Loaded   bool         `json:"loaded"`
	Profile  *ProfileView `json:"profile,omitempty"`
	Presence PresenceView `json:"presence"`
}

// State holds the card's current data. The profile loader and the presence
// subscriber write it; HTTP handlers read it.
type State struct {
	mu      sync.RWMutex
	artwork Artwork

	loaded      bool
	profile     *domain.Profile
	bio         string
	themeColors []string

	snapshot   *domain.PresenceSnapshot
	receivedAt time.Time
}

// NewState creates an empty state for the card owner described by artwork.
func NewState(artwork Artwork) *State {
	return &State{
		artwork:     artwork,
		themeColors: FormatThemeColors(nil),
	}
}

// Artwork returns the resolver used for activity images.
func (s *State) Artwork() Artwork {
	return s.artwork
}

// SetProfile replaces the stored profile and derives its display fields.
func (s *State) SetProfile(p *domain.Profile) {
	bio := FormatBio(p.Bio())
	colors := FormatThemeColors(p.ThemeColors())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	s.profile = p
	s.bio = bio
	s.themeColors = colors
}

// MarkNotLoaded flags the profile as unavailable after a failed fetch.
func (s *State) MarkNotLoaded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
}

// Loaded reports whether the last profile fetch succeeded.
func (s *State) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// ThemeColors returns the formatted theme colors; never fewer than two.
func (s *State) ThemeColors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.themeColors...)
}

// Profile returns the display profile, or false when none is loaded.
func (s *State) Profile() (ProfileView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded || s.profile == nil {
		return ProfileView{}, false
	}

	user := s.profile.User
	userID := user.ID
	if userID == "" {
		userID = s.artwork.UserID
	}
	displayName := user.GlobalName
	if displayName == "" {
		displayName = user.Username
	}

	view := ProfileView{
		UserID:      userID,
		Username:    user.Username,
		DisplayName: displayName,
		AvatarURL:   s.avatarURL(&user),
		Bio:         s.bio,
		ThemeColors: append([]string(nil), s.themeColors...),
		MessageURL:  MessageURL(userID),
	}
	if s.profile.UserProfile != nil {
		view.Pronouns = s.profile.UserProfile.Pronouns
	}
	for _, b := range s.profile.Badges {
		view.Badges = append(view.Badges, BadgeView{Description: b.Description, IconURL: b.IconURL()})
	}
	return view, true
}

func (s *State) avatarURL(user *discordgo.User) string {
	if user.ID == "" {
		return s.artwork.AvatarURL()
	}
	return user.AvatarURL("256")
}

// SetSnapshot replaces the stored snapshot. The snapshot is kept as received.
func (s *State) SetSnapshot(snapshot domain.PresenceSnapshot, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = &snapshot
	s.receivedAt = at
}

// HasSnapshot reports whether any snapshot has been received.
func (s *State) HasSnapshot() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot != nil
}

// Presence derives the display presence as of now. Elapsed texts are
// computed on every call from the raw start instants.
func (s *State) Presence(now time.Time) PresenceView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return PresenceView{Activities: []ActivityView{}}
	}
	return derivePresence(*s.snapshot, s.artwork, now, s.receivedAt)
}

// View returns the whole card as of now.
func (s *State) View(now time.Time) View {
	v := View{Presence: s.Presence(now)}
	if p, ok := s.Profile(); ok {
		v.Loaded = true
		v.Profile = &p
	}
	return v
}

func derivePresence(snapshot domain.PresenceSnapshot, artwork Artwork, now, receivedAt time.Time) PresenceView {
	activities := snapshot.Activities()
	view := PresenceView{
		Received:   true,
		Activities: make([]ActivityView, 0, len(activities)),
		UpdatedAt:  receivedAt,
	}
	if snapshot.D != nil {
		view.Status = snapshot.D.DiscordStatus
		view.Spotify = snapshot.D.Spotify
	}
	for _, a := range activities {
		view.Activities = append(view.Activities, ActivityView{
			Activity:      a,
			Elapsed:       ActivityElapsed(a, now),
			LargeImageURL: artwork.Large(a),
			SmallImageURL: artwork.Small(a),
		})
	}
	return view
}
