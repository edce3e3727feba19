package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/embedder"
	"github.com/kozaktomas/face-auth/internal/enrollment"
	"github.com/kozaktomas/face-auth/internal/web"
	"github.com/kozaktomas/face-auth/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Auth web server.
It serves the register and login pages and the JSON API used by them.
WEB_PORT and WEB_HOST are used unless --port or --host is given.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 5000, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort applies --port and --host over the environment configuration.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("port") {
		cfg.Web.Port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Web.Host = mustGetString(cmd, "host")
	}
}

// readinessChecks reports the embedder, the store and whether every enrolled
// embedding has the dimension the embedder produces.
func readinessChecks(store database.IdentityReader, embedderHealth handlers.Checker, dim int) map[string]handlers.Checker {
	return map[string]handlers.Checker{
		"embedder": embedderHealth,
		"store": func(ctx context.Context) error {
			_, err := store.Count(ctx)
			return err
		},
		"embedding_dim": func(ctx context.Context) error {
			n, err := store.CountDimensionMismatches(ctx, dim)
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%d enrolled identities do not have dimension %d", n, dim)
			}
			return nil
		},
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	resolveServeHostPort(cmd, cfg)

	ctx, stop := commandContext()
	defer stop()

	closeStore, err := openStore(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn().Err(err).Msg("Closing storage backend")
		}
	}()

	store, err := database.GetIdentityWriter(ctx)
	if err != nil {
		return err
	}

	client := embedder.NewClient(cfg.Embedding.URL, cfg.Embedding.Dim, cfg.Embedding.Timeout)
	if err := client.Health(ctx); err != nil {
		log.Warn().Err(err).Str("url", client.BaseURL()).Msg("Embedding service not reachable yet")
	}

	if n, err := store.CountDimensionMismatches(ctx, cfg.Embedding.Dim); err == nil && n > 0 {
		log.Warn().Int("identities", n).Int("dim", cfg.Embedding.Dim).
			Msg("Enrolled identities use a different embedding dimension and will fail verification")
	}

	service := enrollment.NewService(store, client, cfg.Verification.Threshold)
	server := web.NewServer(cfg, service, readinessChecks(store, client.Health, cfg.Embedding.Dim))

	go func() {
		<-ctx.Done()
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error during shutdown")
		}
	}()

	log.Info().
		Float64("threshold", cfg.Verification.Threshold).
		Str("backend", cfg.Database.Backend).
		Str("embedding_url", cfg.Embedding.URL).
		Msg("Face Auth ready")
	fmt.Printf("Starting Face Auth on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
