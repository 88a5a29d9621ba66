package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tessellate-ai/recall/internal/cli"
	"github.com/tessellate-ai/recall/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "recall",
		Short: "Recall CLI - Search your AI conversation history",
		Long: `Recall CLI normalizes chat exports and searches them through the daemon.

Environment variables:
  RECALL_API_KEY   API key for authentication (only needed when the daemon requires one)
  RECALL_API_URL   API base URL (default: http://localhost:8000)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.InitCmd())
	rootCmd.AddCommand(client.ImportCmd())
	rootCmd.AddCommand(client.MergeCmd())
	rootCmd.AddCommand(client.StatsCmd())
	rootCmd.AddCommand(client.UploadCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.InteractiveCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
