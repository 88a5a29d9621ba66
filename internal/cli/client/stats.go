package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tessellate-ai/recall/internal/domain"
)

// StatsCmd creates the stats command.
func StatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <collection-file>",
		Short: "Show collection statistics",
		Long:  "Prints per-platform chunk and conversation counts, date ranges, and interpretation coverage.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runStats(args[0], outputJSON)
		},
	}

	return cmd
}

type platformStatsOut struct {
	Platform            string `json:"platform"`
	Chunks              int    `json:"chunks"`
	Conversations       int    `json:"conversations"`
	Earliest            string `json:"earliest,omitempty"`
	Latest              string `json:"latest,omitempty"`
	WithInterpretations int    `json:"with_interpretations"`
	WithToolUsage       int    `json:"with_tool_usage"`
}

func runStats(path string, outputJSON bool) error {
	collection, err := domain.LoadCollection(path)
	if err != nil {
		return err
	}

	stats := collection.Stats()
	platforms := collection.Platforms()

	out := make([]platformStatsOut, 0, len(platforms))
	for _, platform := range platforms {
		s := stats[platform]
		entry := platformStatsOut{
			Platform:            string(platform),
			Chunks:              s.ChunkCount,
			Conversations:       s.ConversationCount,
			WithInterpretations: s.WithInterpretations,
			WithToolUsage:       s.WithToolUsage,
		}
		if s.Earliest != nil {
			entry.Earliest = s.Earliest.UTC().Format(time.RFC3339)
		}
		if s.Latest != nil {
			entry.Latest = s.Latest.UTC().Format(time.RFC3339)
		}
		out = append(out, entry)
	}

	if outputJSON {
		data, _ := json.MarshalIndent(map[string]interface{}{
			"file":         path,
			"total_chunks": collection.Len(),
			"platforms":    out,
		}, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("%s: %d chunks\n\n", path, collection.Len())
	for _, entry := range out {
		fmt.Printf("%s:\n", entry.Platform)
		fmt.Printf("  Chunks: %d from %d conversations\n", entry.Chunks, entry.Conversations)
		if entry.Earliest != "" {
			fmt.Printf("  Range: %s to %s\n", entry.Earliest, entry.Latest)
		}
		if entry.WithInterpretations > 0 {
			fmt.Printf("  With interpretations: %d\n", entry.WithInterpretations)
		}
		if entry.WithToolUsage > 0 {
			fmt.Printf("  With tool usage: %d\n", entry.WithToolUsage)
		}
	}

	return nil
}
