package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nfrund/profilecard/internal/card"
	"github.com/nfrund/profilecard/internal/modules/profilecard"
	ws "github.com/nfrund/profilecard/internal/websocket"
)

// topicInfo describes one bus topic.
type topicInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func knownTopics() []topicInfo {
	return []topicInfo{
		{card.TopicPresenceUpdated.Name(), card.TopicPresenceUpdated.Description()},
		{profilecard.TopicProfileLoaded.Name(), profilecard.TopicProfileLoaded.Description()},
		{ws.TopicViewerConnected.Name(), ws.TopicViewerConnected.Description()},
	}
}

var topicsFormat string

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List the events published on the internal bus",
	RunE: func(cmd *cobra.Command, args []string) error {
		topics := knownTopics()
		switch topicsFormat {
		case "json":
			return printJSON(cmd.OutOrStdout(), topics)
		case "table":
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDESCRIPTION")
			for _, t := range topics {
				fmt.Fprintf(w, "%s\t%s\n", t.Name, t.Description)
			}
			return w.Flush()
		default:
			return fmt.Errorf("unknown format %q: use table or json", topicsFormat)
		}
	},
}

func init() {
	topicsCmd.Flags().StringVar(&topicsFormat, "format", "table", "Output format: table or json")
	rootCmd.AddCommand(topicsCmd)
}
