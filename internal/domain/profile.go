package domain

import "github.com/bwmarrin/discordgo"

// Profile is the record returned by the profile API for a single user.
// It is immutable once received and replaced wholesale on each fetch.
type Profile struct {
	User        discordgo.User `json:"user"`
	UserProfile *UserProfile   `json:"user_profile,omitempty"`
	Badges      []Badge        `json:"badges,omitempty"`
}

// UserProfile holds the customisable part of a profile.
type UserProfile struct {
	Bio         string `json:"bio,omitempty"`
	ThemeColors []int  `json:"theme_colors,omitempty"` // 24-bit RGB values
	Pronouns    string `json:"pronouns,omitempty"`
	AccentColor *int   `json:"accent_color,omitempty"`
}

// Badge is a profile badge as exposed by the profile API.
type Badge struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// IconURL returns the CDN URL of the badge icon.
func (b Badge) IconURL() string {
	return discordgo.EndpointCDN + "badge-icons/" + b.Icon + ".png"
}

// Bio returns the raw biography, or "" when the profile has none.
func (p *Profile) Bio() string {
	if p == nil || p.UserProfile == nil {
		return ""
	}
	return p.UserProfile.Bio
}

// ThemeColors returns the raw theme colors, or nil when none are set.
func (p *Profile) ThemeColors() []int {
	if p == nil || p.UserProfile == nil {
		return nil
	}
	return p.UserProfile.ThemeColors
}
