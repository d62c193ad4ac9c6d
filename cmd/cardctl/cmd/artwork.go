package cmd

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"

	"github.com/nfrund/profilecard/internal/card"
	"github.com/nfrund/profilecard/internal/config"
	"github.com/nfrund/profilecard/internal/domain"
)

var (
	artworkActivityID string
	artworkAppID      string
	artworkAsset      string
	artworkEmojiID    string
	artworkAnimated   bool
	artworkAvatarURL  string
)

var artworkCmd = &cobra.Command{
	Use:   "artwork",
	Short: "Resolve the image URL for an activity asset",
	Long: `Resolve the image URL the card would display for an activity.

Examples:
  cardctl artwork --activity-id custom --emoji-id 123 --animated
  cardctl artwork --activity-id spotify:1 --asset spotify:ab67616d0000b273
  cardctl artwork --activity-id x --asset mp:external/abc/https/example.com/a.png
  cardctl artwork --activity-id x --app-id 383226320970055681`,
	RunE: func(cmd *cobra.Command, args []string) error {
		activity := domain.Activity{ID: artworkActivityID, ApplicationID: artworkAppID}
		if artworkEmojiID != "" {
			activity.Emoji = &discordgo.Emoji{ID: artworkEmojiID, Animated: artworkAnimated}
		}

		artwork := card.Artwork{UserID: userIDFlag, AvatarProxyURL: artworkAvatarURL}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), artwork.URL(activity, artworkAsset))
		return err
	},
}

func init() {
	f := artworkCmd.Flags()
	f.StringVar(&artworkActivityID, "activity-id", "", "Activity ID (\"custom\" for a custom status)")
	f.StringVar(&artworkAppID, "app-id", "", "Application ID used for the icon fallback")
	f.StringVar(&artworkAsset, "asset", "", "Asset key (large or small image)")
	f.StringVar(&artworkEmojiID, "emoji-id", "", "Custom status emoji ID")
	f.BoolVar(&artworkAnimated, "animated", false, "Whether the emoji is animated")
	f.StringVar(&artworkAvatarURL, "avatar-proxy-url", config.DefaultAvatarProxyURL, "Avatar proxy used when a custom status has no emoji")
	_ = artworkCmd.MarkFlagRequired("activity-id")
	rootCmd.AddCommand(artworkCmd)
}
