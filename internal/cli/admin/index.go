package admin

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
	"github.com/tessellate-ai/recall/internal/index"
	"github.com/tessellate-ai/recall/internal/service"
)

func IndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the vector index",
		Long:  "Create and inspect the vector index collection",
	}

	cmd.AddCommand(IndexInitCmd())
	cmd.AddCommand(IndexInfoCmd())

	return cmd
}

func IndexInitCmd() *cobra.Command {
	var (
		collection string
		recreate   bool
		autoYes    bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the index collection",
		Long:  "Create the index collection with dense and sparse vector slots sized for the configured encoder",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runIndexInit(collection, recreate, autoYes, outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().StringVar(&collection, "collection", "", "Collection name (defaults to the configured one)")
	cmd.Flags().BoolVar(&recreate, "recreate", false, "Drop the collection first if it exists")
	cmd.Flags().BoolVarP(&autoYes, "yes", "y", false, "Skip the recreate confirmation prompt")

	return cmd
}

func runIndexInit(collection string, recreate, autoYes bool, outputFormat string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if recreate && !autoYes {
		fmt.Print("This deletes the existing index collection and recreates it. Continue? (yes/no): ")
		reader := bufio.NewReader(os.Stdin)
		answer, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if strings.TrimSpace(strings.ToLower(answer)) != "yes" {
			return fmt.Errorf("init cancelled")
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

	if outputFormat == "json" {
		data := map[string]interface{}{
			"collection": indexCfg.Collection,
			"created":    created,
			"dimensions": encoder.Dimensions(),
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		if created {
			fmt.Printf("Created collection %q (dense size %d)\n", indexCfg.Collection, encoder.Dimensions())
		} else {
			fmt.Printf("Collection %q already exists\n", indexCfg.Collection)
		}
	}

	return nil
}

func IndexInfoCmd() *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show index collection status",
		Long:  "Show point counts and status for the index collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runIndexInfo(collection, outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().StringVar(&collection, "collection", "", "Collection name (defaults to the configured one)")

	return cmd
}

func runIndexInfo(collection string, outputFormat string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	indexCfg := cli.IndexConfig(cfg, collection)
	client := index.New(indexCfg)
	defer client.Close()

	exists, err := client.Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		return fmt.Errorf("collection %q does not exist (run 'index init' first)", indexCfg.Collection)
	}

	info, err := client.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch collection info: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"collection":     indexCfg.Collection,
			"status":         info.Status,
			"points_count":   info.PointsCount,
			"vectors_count":  info.VectorsCount,
			"indexed_count":  info.IndexedCount,
			"segments_count": info.SegmentsCount,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Collection: %s\n", indexCfg.Collection)
		fmt.Printf("  Status:   %s\n", info.Status)
		fmt.Printf("  Points:   %d\n", info.PointsCount)
		fmt.Printf("  Vectors:  %d (indexed: %d)\n", info.VectorsCount, info.IndexedCount)
		fmt.Printf("  Segments: %d\n", info.SegmentsCount)
	}

	return nil
}
