package cmd

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nfrund/profilecard/internal/config"
	"github.com/nfrund/profilecard/internal/logging"
)

var (
	userIDFlag string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "cardctl",
	Short: "Inspect the Discord profile card from the terminal",
	Long: `cardctl runs the profile card's operations without the web server.

Available commands:
  profile          Fetch and format the configured profile
  presence get     Read the current presence once
  presence watch   Stream presence snapshots until interrupted
  artwork          Resolve the image URL for an activity asset
  topics           List the events published on the internal bus

Configuration is read the same way as the server (CONFIG_FILE, .env and
environment variables). Use "cardctl [command] --help" for details.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Logs go to stderr so command output stays parseable.
		logging.NewWithWriter(cmd.ErrOrStderr(), "text", logLevel)
	},
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&userIDFlag, "user-id", "", "Discord user ID (overrides DISCORD_USER_ID)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
}

// loadConfig reads the service configuration, letting --user-id stand in for
// DISCORD_USER_ID.
func loadConfig() (*config.Config, error) {
	if userIDFlag != "" {
		os.Setenv("DISCORD_USER_ID", userIDFlag)
	}
	return config.New()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
