package admin

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessellate-ai/recall/internal/api/handlers"
	"github.com/tessellate-ai/recall/internal/cli"
	"github.com/tessellate-ai/recall/internal/config"
	"github.com/tessellate-ai/recall/internal/index"
	"github.com/tessellate-ai/recall/internal/server"
	"github.com/tessellate-ai/recall/internal/service"
	"github.com/tessellate-ai/recall/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the search API server",
		Long:  "Start the recall search API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8000", "Port to listen on")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.HasSentry() {
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.SentryEnv,
			TracesSampleRate: cfg.SentrySampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8000" {
		cfg.Port = portFlag
	}

	indexCfg := cli.IndexConfig(cfg, "")
	probe := index.New(indexCfg)
	if err := probe.Health(ctx); err != nil {
		probe.Close()
		return fmt.Errorf("failed to reach vector index at %s: %w", cfg.IndexURL, err)
	}
	probe.Close()
	log.Printf("connected to vector index at %s", cfg.IndexURL)

	encoder := cli.NewEncoder(cfg)
	searchSvc := service.NewSearchService(encoder, func() service.SearchIndex {
		return index.New(indexCfg)
	})
	searchHandler := handlers.NewSearchHandler(searchSvc)

	routerCfg := server.RouterConfig{
		SearchHandler: searchHandler,
		APIKey:        cfg.APIKey,
		MaxBodyBytes:  cfg.MaxBodyBytes,
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}
