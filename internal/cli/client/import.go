package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tessellate-ai/recall/internal/parser"
	"github.com/tessellate-ai/recall/internal/service"
)

// ImportCmd creates the import command.
func ImportCmd() *cobra.Command {
	var (
		output       string
		maxInputSize int64
	)

	cmd := &cobra.Command{
		Use:   "import <export-file>...",
		Short: "Normalize chat export files into a collection",
		Long: `Detects the platform of each export file (ChatGPT, Claude, Claude
Projects), normalizes the conversations into chunks, and writes one
merged collection file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runImport(args, output, maxInputSize, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&output, "out", "o", "collection.json", "Output collection file")
	cmd.Flags().Int64Var(&maxInputSize, "max-input-size", 0, "Maximum export file size in bytes (default 500MB)")

	return cmd
}

func runImport(paths []string, output string, maxInputSize int64, outputJSON bool) error {
	registry := parser.NewRegistry()
	if maxInputSize > 0 {
		registry.SetMaxInputSize(maxInputSize)
	}

	ingest := service.NewIngestService(registry)
	result, err := ingest.ImportFiles(paths)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	if err := result.Collection.SaveFile(output); err != nil {
		return err
	}

	if outputJSON {
		files := make([]map[string]interface{}, 0, len(result.Files))
		for _, f := range result.Files {
			files = append(files, map[string]interface{}{
				"path":     f.Path,
				"platform": string(f.Platform),
				"chunks":   f.Chunks,
			})
		}
		data, _ := json.MarshalIndent(map[string]interface{}{
			"success":      true,
			"output":       output,
			"total_chunks": result.Collection.Len(),
			"files":        files,
		}, "", "  ")
		fmt.Println(string(data))
	} else {
		for _, f := range result.Files {
			fmt.Printf("%s: %d chunks (%s)\n", f.Path, f.Chunks, f.Platform)
		}
		fmt.Printf("Saved %d chunks to %s\n", result.Collection.Len(), output)
	}

	return nil
}
