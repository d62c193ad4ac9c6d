package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nfrund/profilecard/internal/card"
	"github.com/nfrund/profilecard/internal/discordapi"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Fetch the profile and print its formatted fields as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		state := card.NewState(card.Artwork{UserID: cfg.DiscordUserID, AvatarProxyURL: cfg.AvatarProxyURL})
		loader := card.NewLoader(discordapi.NewClient(cfg.ProfileAPIURL), cfg.DiscordUserID, state, nil)
		if err := loader.Load(cmd.Context()); err != nil {
			return err
		}

		view, _ := state.Profile()
		return printJSON(cmd.OutOrStdout(), view)
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
}
