package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tessellate-ai/recall/internal/parser"
	"github.com/tessellate-ai/recall/internal/service"
	"gopkg.in/yaml.v3"
)

// MergeManifest lists the collection files to combine. Paths are resolved
// relative to the manifest's own directory.
type MergeManifest struct {
	Collections []string `yaml:"collections"`
	Output      string   `yaml:"output,omitempty"`
}

// MergeCmd creates the merge command.
func MergeCmd() *cobra.Command {
	var (
		manifestPath string
		output       string
	)

	cmd := &cobra.Command{
		Use:   "merge [collection-file...]",
		Short: "Merge collection files into one",
		Long: `Concatenates previously imported collection files in order. Inputs come
either from positional arguments or from a YAML manifest:

  collections:
    - chatgpt.json
    - claude.json
  output: merged.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runMerge(args, manifestPath, output, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "YAML manifest listing collection files")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Output collection file (default merged.json)")

	return cmd
}

func runMerge(args []string, manifestPath, output string, outputJSON bool) error {
	paths := args
	if manifestPath != "" {
		if len(args) > 0 {
			return fmt.Errorf("pass either positional files or --manifest, not both")
		}
		manifest, err := loadMergeManifest(manifestPath)
		if err != nil {
			return err
		}
		paths = manifest.Collections
		if output == "" {
			output = manifest.Output
		}
	}

	if len(paths) == 0 {
		return fmt.Errorf("nothing to merge: pass collection files or --manifest")
	}
	if output == "" {
		output = "merged.json"
	}

	ingest := service.NewIngestService(parser.NewRegistry())
	merged, err := ingest.MergeFiles(paths)
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	if err := merged.SaveFile(output); err != nil {
		return err
	}

	if outputJSON {
		platforms := make([]string, 0)
		for _, p := range merged.Platforms() {
			platforms = append(platforms, string(p))
		}
		data, _ := json.MarshalIndent(map[string]interface{}{
			"success":      true,
			"output":       output,
			"inputs":       len(paths),
			"total_chunks": merged.Len(),
			"platforms":    platforms,
		}, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Printf("Merged %d files into %s (%d chunks)\n", len(paths), output, merged.Len())
	}

	return nil
}

func loadMergeManifest(path string) (*MergeManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest MergeManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if len(manifest.Collections) == 0 {
		return nil, fmt.Errorf("manifest lists no collections")
	}

	base := filepath.Dir(path)
	resolved := make([]string, len(manifest.Collections))
	for i, c := range manifest.Collections {
		if filepath.IsAbs(c) {
			resolved[i] = c
			continue
		}
		resolved[i] = filepath.Join(base, c)
	}
	manifest.Collections = resolved

	if manifest.Output != "" && !filepath.IsAbs(manifest.Output) {
		manifest.Output = filepath.Join(base, manifest.Output)
	}

	return &manifest, nil
}
