package profilecard

import "github.com/nfrund/profilecard/internal/pubsub"

// ProfileLoaded reports the outcome of a profile load attempt.
type ProfileLoaded struct {
	Loaded bool `json:"loaded"`
}

// TopicProfileLoaded is published after every load attempt.
var TopicProfileLoaded = pubsub.NewEvent[ProfileLoaded](
	"card.profile.loaded",
	"A profile fetch finished; loaded reports whether it succeeded",
)
