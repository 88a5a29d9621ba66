package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tessellate-ai/recall/internal/cli"
	"github.com/tessellate-ai/recall/internal/config"
	"github.com/tessellate-ai/recall/internal/domain"
	"github.com/tessellate-ai/recall/internal/index"
	"github.com/tessellate-ai/recall/internal/service"
)

// embedModeValue is a pflag.Value restricted to the known embedding modes.
type embedModeValue struct {
	mode *domain.EmbedMode
}

func (v *embedModeValue) String() string { return string(*v.mode) }

func (v *embedModeValue) Set(s string) error {
	switch domain.EmbedMode(s) {
	case domain.EmbedModeBalanced, domain.EmbedModeUserFocused, domain.EmbedModeMinimal, domain.EmbedModeFull:
		*v.mode = domain.EmbedMode(s)
		return nil
	}
	return fmt.Errorf("unknown embedding mode %q (want balanced, user_focused, minimal, or full)", s)
}

func (v *embedModeValue) Type() string { return "mode" }

// UploadCmd creates the upload command.
func UploadCmd() *cobra.Command {
	var (
		mode       = domain.EmbedModeBalanced
		batchSize  int
		recreate   bool
		autoYes    bool
		collection string
	)

	cmd := &cobra.Command{
		Use:   "upload <collection-file>",
		Short: "Encode a collection and upsert it into the index",
		Long: `Encodes every chunk with the configured embedding backend and upserts
the points into the index service in batches. Requires RECALL_INDEX_URL
and the embedding backend settings in the environment or .env.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runUpload(args[0], mode, batchSize, collection, recreate, autoYes, outputJSON)
		},
	}

	cmd.Flags().Var(&embedModeValue{mode: &mode}, "mode", "Embedding text mode (balanced, user_focused, minimal, full)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Chunks per upsert batch (default 8)")
	cmd.Flags().BoolVar(&recreate, "recreate", false, "Drop and recreate the collection before uploading")
	cmd.Flags().BoolVarP(&autoYes, "yes", "y", false, "Skip the confirmation prompt for --recreate")
	cmd.Flags().StringVar(&collection, "collection", "", "Index collection name (overrides config)")

	return cmd
}

func runUpload(path string, mode domain.EmbedMode, batchSize int, collection string, recreate, autoYes, outputJSON bool) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	chunks, err := domain.LoadCollection(path)
	if err != nil {
		return err
	}
	if chunks.Len() == 0 {
		return fmt.Errorf("%s holds no chunks", path)
	}

	if recreate && !autoYes {
		fmt.Print("This deletes the existing index collection and recreates it. Continue? (yes/no): ")
		reader := bufio.NewReader(os.Stdin)
		answer, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if strings.TrimSpace(strings.ToLower(answer)) != "yes" {
			return fmt.Errorf("upload cancelled")
		}
	}

	encoder := cli.NewEncoder(cfg)
	indexCfg := cli.IndexConfig(cfg, collection)
	uploadSvc := service.NewUploadService(encoder, func() service.UploadIndex {
		return index.New(indexCfg)
	})

	created, err := uploadSvc.EnsureCollection(ctx, recreate)
	if err != nil {
		return fmt.Errorf("failed to prepare collection: %w", err)
	}
	if created && !outputJSON {
		fmt.Printf("Created collection %q\n", indexCfg.Collection)
	}

	opts := service.UploadOptions{
		Mode:      mode,
		BatchSize: batchSize,
	}
	if !outputJSON {
		opts.Progress = func(done, total int) {
			fmt.Printf("\rUploaded %d/%d chunks", done, total)
		}
	}

	report, err := uploadSvc.Upload(ctx, chunks, opts)
	if err != nil {
		if !outputJSON {
			fmt.Println()
		}
		return fmt.Errorf("upload failed: %w", err)
	}

	if outputJSON {
		data, _ := json.MarshalIndent(map[string]interface{}{
			"success":    true,
			"collection": indexCfg.Collection,
			"points":     report.Points,
			"batches":    report.Batches,
			"skipped":    report.Skipped,
			"created":    created,
		}, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Println()
		fmt.Printf("Upserted %d points in %d batches", report.Points, report.Batches)
		if report.Skipped > 0 {
			fmt.Printf(" (%d chunks skipped: empty embedding text)", report.Skipped)
		}
		fmt.Println()
	}

	return nil
}
