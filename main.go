package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/isdelr/readtrack/internal/api"
	"github.com/isdelr/readtrack/internal/auth"
	"github.com/isdelr/readtrack/internal/config"
	"github.com/isdelr/readtrack/internal/database"
	"github.com/isdelr/readtrack/internal/logger"
	"github.com/isdelr/readtrack/internal/openlibrary"
	"github.com/isdelr/readtrack/internal/services"
)

func main() {
	app := &cli.Command{
		Name:  "readtrack",
		Usage: "Track the books you want to read, are reading and have read",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "Apply the database schema",
				Action: migrate,
			},
			{
				Name:  "createsuperuser",
				Usage: "Create a staff reader with superuser rights",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{
						Name:     "password",
						Usage:    "password for the new account",
						Sources:  cli.EnvVars("READTRACK_SUPERUSER_PASSWORD"),
						Required: true,
					},
				},
				Action: createSuperuser,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("readtrack failed")
	}
}

// setup loads configuration, configures logging and opens the migrated database.
func setup() (*config.Config, *sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Init(cfg.LogLevel, cfg.IsProduction())

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	return cfg, db, nil
}

func migrate(ctx context.Context, cmd *cli.Command) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	log.Info().Str("path", cfg.DatabasePath).Msg("Database schema is up to date")
	return nil
}

func createSuperuser(ctx context.Context, cmd *cli.Command) error {
	_, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	readers := services.NewReaderService(db, services.NewActivityService(db))
	reader, err := readers.CreateSuperuser(ctx, cmd.String("username"), cmd.String("email"), cmd.String("password"))
	if err != nil {
		return fmt.Errorf("failed to create superuser: %w", err)
	}

	log.Info().Str("reader_id", reader.ID).Str("username", reader.Username).Msg("Superuser created")
	return nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	// Set up services
	activityService := services.NewActivityService(db)
	readerService := services.NewReaderService(db, activityService)
	catalogService := services.NewCatalogService(db)
	trackerService := services.NewTrackerService(db, activityService)
	searchService := services.NewSearchService(openlibrary.NewClient(openlibrary.Options{
		BaseURL:   cfg.SearchBaseURL,
		Timeout:   cfg.SearchTimeout,
		RateLimit: cfg.SearchRateLimit,
		RateBurst: cfg.SearchRateBurst,
	}))

	// Set up router
	router := api.NewRouter(api.Services{
		DB:       db,
		Readers:  readerService,
		Catalog:  catalogService,
		Tracker:  trackerService,
		Search:   searchService,
		Activity: activityService,
		Sessions: auth.NewManager(cfg.JWTSecret, cfg.SessionTTL, cfg.IsProduction()),
	}, cfg.CORSOrigins)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("env", cfg.AppEnv).Msg("Server starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	case <-ctx.Done():
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exiting")
	return nil
}
