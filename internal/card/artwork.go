package card

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/nfrund/profilecard/internal/domain"
)

const (
	spotifyAssetPrefix = "spotify:"
	embeddedURLMarker  = "https/"

	spotifyImageBaseURL = "https://i.scdn.co/image/"
	appIconBaseURL      = "https://dcdn.dstn.to/app-icons/"
)

// Artwork resolves image URLs for activities.
type Artwork struct {
	// UserID is the Discord user the card belongs to.
	UserID string
	// AvatarProxyURL serves a user's avatar by ID; used for custom statuses without an emoji.
	AvatarProxyURL string
}

// URL returns the image to display for an activity, given one of its asset
// keys (large or small image). The asset may be empty.
func (a Artwork) URL(activity domain.Activity, asset string) string {
	switch {
	case activity.IsCustomStatus():
		if activity.Emoji != nil && activity.Emoji.ID != "" {
			if activity.Emoji.Animated {
				return discordgo.EndpointEmojiAnimated(activity.Emoji.ID)
			}
			return discordgo.EndpointEmoji(activity.Emoji.ID)
		}
		return a.AvatarURL()
	case strings.HasPrefix(asset, spotifyAssetPrefix):
		return spotifyImageBaseURL + strings.Split(asset, ":")[1]
	case strings.Contains(asset, embeddedURLMarker):
		return "https://" + strings.Split(asset, embeddedURLMarker)[1]
	default:
		return appIconBaseURL + activity.ApplicationID + ".png"
	}
}

// AvatarURL is the avatar-proxy URL of the card's user.
func (a Artwork) AvatarURL() string {
	return strings.TrimSuffix(a.AvatarProxyURL, "/") + "/" + a.UserID
}

// Large resolves the activity's main image.
func (a Artwork) Large(activity domain.Activity) string {
	var asset string
	if activity.Assets != nil {
		asset = activity.Assets.LargeImageID
	}
	return a.URL(activity, asset)
}

// Small resolves the activity's secondary image, or "" when it has none.
func (a Artwork) Small(activity domain.Activity) string {
	if activity.IsCustomStatus() || activity.Assets == nil || activity.Assets.SmallImageID == "" {
		return ""
	}
	return a.URL(activity, activity.Assets.SmallImageID)
}
