package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notebox/config"
	"notebox/database"
	"notebox/handlers"
	"notebox/logger"
	"notebox/middleware"
	"notebox/repositories"
	"notebox/services"
	"notebox/storage"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type Options struct {
	ConfigPath string
}

func (o *Options) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&o.ConfigPath, "config", "c", "config.yaml", "path to the YAML config file")
}

func main() {
	opts := &Options{}
	root := &cobra.Command{
		Use:          "notebox",
		Short:        "notes and file storage service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	opts.AddFlags(root.PersistentFlags())

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "run the HTTP API",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), opts)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "create or update the database schema and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(opts)
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func loadConfig(opts *Options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Setup(cfg.Log)
	return cfg, nil
}

func runMigrate(opts *Options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	slog.Info("database migration completed", "driver", cfg.Database.Driver)
	return nil
}

func runServe(ctx context.Context, opts *Options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	slog.Info("starting notebox service")

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	redisClient, err := database.OpenRedis(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	blobs, err := storage.NewLocalBlobStore(cfg.Storage.BasePath)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	repoContainer := repositories.NewGormRepositories(db, redisClient, repositories.RevocationOptions{
		Capacity: cfg.JWT.RevocationCapacity,
		TTL:      time.Duration(cfg.JWT.RefreshExpireHours) * time.Hour,
	}).BuildContainer()
	handlers.SetServices(services.NewContainer(cfg, repoContainer, blobs), handlers.Options{
		DefaultPageSize: cfg.Pagination.DefaultPageSize,
		Ping: func(ctx context.Context) error {
			return database.Ping(ctx, db)
		},
	})

	services.StartCleanupWorkers(ctx, blobs, services.CleanupConfig{
		Interval: time.Duration(cfg.Storage.TempFileCleanupInterval) * time.Second,
		MaxAge:   time.Duration(cfg.Storage.TempFileMaxAge) * time.Second,
	})

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.MaxMultipartMemory = cfg.Server.MaxMultipartMemory
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.Metrics(), middleware.CORSMiddleware())
	handlers.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr, "storage", blobs.Root())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server start failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
