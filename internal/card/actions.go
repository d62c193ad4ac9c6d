package card

// FallbackImagePath is served in place of any card image that fails to load.
const FallbackImagePath = "/assets/images/no-image-found.svg"

const discordUsersURL = "https://discord.com/users/"

// MessageURL is the Discord profile page where a direct message can be started.
func MessageURL(userID string) string {
	return discordUsersURL + userID
}

// ImageErrorHandler is the inline handler attached to card images. It swaps
// the element's source to the fallback image once.
func ImageErrorHandler() string {
	return "this.onerror=null;this.src='" + FallbackImagePath + "'"
}
