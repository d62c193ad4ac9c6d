package domain

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// CustomActivityID is the activity identifier the relay uses for custom statuses.
const CustomActivityID = "custom"

// PresenceSnapshot is a single push frame received from the presence relay.
// Each snapshot fully replaces the previous one; nothing is merged.
type PresenceSnapshot struct {
	Op  int           `json:"op"`
	Seq int           `json:"seq,omitempty"`
	T   string        `json:"t,omitempty"`
	D   *PresenceData `json:"d,omitempty"`
}

// Activities returns the snapshot's activity list, or an empty list when the
// data block is absent.
func (s PresenceSnapshot) Activities() []Activity {
	if s.D == nil || s.D.Activities == nil {
		return []Activity{}
	}
	return s.D.Activities
}

// PresenceData is the presence payload tracked by the relay for one user.
type PresenceData struct {
	DiscordUser            *discordgo.User   `json:"discord_user,omitempty"`
	DiscordStatus          discordgo.Status  `json:"discord_status,omitempty"`
	Activities             []Activity        `json:"activities"`
	ListeningToSpotify     bool              `json:"listening_to_spotify"`
	Spotify                *Spotify          `json:"spotify,omitempty"`
	ActiveOnDiscordDesktop bool              `json:"active_on_discord_desktop"`
	ActiveOnDiscordMobile  bool              `json:"active_on_discord_mobile"`
	ActiveOnDiscordWeb     bool              `json:"active_on_discord_web"`
	KV                     map[string]string `json:"kv,omitempty"`
}

// Spotify describes the track the user is listening to.
type Spotify struct {
	TrackID     string      `json:"track_id"`
	Timestamps  *Timestamps `json:"timestamps,omitempty"`
	Album       string      `json:"album"`
	AlbumArtURL string      `json:"album_art_url"`
	Artist      string      `json:"artist"`
	Song        string      `json:"song"`
}

// Activity is a single ongoing action (game, custom status, music) in a snapshot.
type Activity struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name"`
	Type          discordgo.ActivityType `json:"type"`
	State         string                 `json:"state,omitempty"`
	Details       string                 `json:"details,omitempty"`
	ApplicationID string                 `json:"application_id,omitempty"`
	Emoji         *discordgo.Emoji       `json:"emoji,omitempty"`
	Assets        *discordgo.Assets      `json:"assets,omitempty"`
	Timestamps    *Timestamps            `json:"timestamps,omitempty"`
}

// IsCustomStatus reports whether the activity is a user's custom status.
func (a Activity) IsCustomStatus() bool {
	return a.ID == CustomActivityID
}

// Timestamps holds the raw start and end instants of an activity in Unix
// milliseconds. Zero means unset.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

// StartTime returns the start instant and whether it is set.
func (t *Timestamps) StartTime() (time.Time, bool) {
	if t == nil || t.Start == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(t.Start), true
}
