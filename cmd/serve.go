package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"itsm-knowledge-base/config"
	"itsm-knowledge-base/router"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var (
	port string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the lock expiry sweeper",
		RunE:  runServe,
	}
)

func init() {
	serveCmd.Flags().StringVar(&port, "port", "", "listen port; overrides PORT")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port != "" {
		cfg.Port = port
	}

	backend, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := router.NewServices(backend, cfg, nil)
	if err := seedCategories(ctx, cfg, svc); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.SetupRouter(cfg, svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server starting", "port", cfg.Port, "storage", cfg.StorageDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return svc.Locks.RunSweeper(gctx, cfg.LockSweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func seedCategories(ctx context.Context, cfg *config.Config, svc *router.Services) error {
	if cfg.CategorySeedFile == "" {
		return nil
	}
	seeds, err := config.LoadCategorySeed(cfg.CategorySeedFile)
	if err != nil {
		return err
	}
	added, err := svc.Categories.Seed(ctx, seeds)
	if err != nil {
		return err
	}
	slog.Info("Categories seeded", "file", cfg.CategorySeedFile, "added", added)
	return nil
}
