package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nfrund/profilecard/internal/card"
	"github.com/nfrund/profilecard/internal/config"
	"github.com/nfrund/profilecard/internal/domain"
	"github.com/nfrund/profilecard/internal/lanyard"
	"github.com/nfrund/profilecard/internal/pubsub"
)

var presenceCmd = &cobra.Command{
	Use:   "presence",
	Short: "Read presence from the Lanyard relay",
}

var presenceGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current activities once, with elapsed times",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		data, err := newPresenceClient(cfg).FetchPresence(cmd.Context())
		if err != nil {
			return err
		}

		now := time.Now()
		state := card.NewState(artworkFor(cfg))
		state.SetSnapshot(domain.PresenceSnapshot{D: data}, now)
		return printJSON(cmd.OutOrStdout(), state.Presence(now))
	},
}

var presenceWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream presence updates until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out := &linePublisher{cmd: cmd}
		sub := card.NewSubscriber(newPresenceClient(cfg), card.NewState(artworkFor(cfg)), out)
		if err := sub.Start(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Watching presence, press Ctrl+C to stop")

		<-cmd.Context().Done()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return sub.Stop(ctx)
	},
}

// linePublisher prints each published payload as one line.
type linePublisher struct {
	cmd *cobra.Command
}

func (p *linePublisher) Publish(ctx context.Context, msg pubsub.Message) error {
	_, err := fmt.Fprintln(p.cmd.OutOrStdout(), string(msg.Payload))
	return err
}

func (p *linePublisher) Close() error { return nil }

func newPresenceClient(cfg *config.Config) *lanyard.Client {
	return lanyard.NewClient(cfg.DiscordUserID,
		lanyard.WithSocketURL(cfg.LanyardSocketURL),
		lanyard.WithAPIURL(cfg.LanyardAPIURL),
	)
}

func artworkFor(cfg *config.Config) card.Artwork {
	return card.Artwork{UserID: cfg.DiscordUserID, AvatarProxyURL: cfg.AvatarProxyURL}
}

func init() {
	presenceCmd.AddCommand(presenceGetCmd, presenceWatchCmd)
	rootCmd.AddCommand(presenceCmd)
}
