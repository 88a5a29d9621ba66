package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tessellate-ai/recall/internal/cli"
	"github.com/tessellate-ai/recall/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "recalld",
		Short: "Recall daemon and admin CLI",
		Long:  "Recall daemon for running the search API server and managing the vector index",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.IndexCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
