package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley chat client",
	Long: `Parley is a command-line client for a Parley chat server.

It keeps a local message log synchronized with the server across
reconnects and pagination, with optimistic reactions.

Configuration is read from flags, the environment, or a .env file:
  PARLEY_URL    WebSocket endpoint (e.g. ws://localhost:8080/ws)
  PARLEY_TOKEN  session JWT
  PARLEY_USER   user id`,
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()
}
