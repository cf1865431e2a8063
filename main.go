package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/urfave/cli/v2"

	"github.com/reviewloop/reviewloop/config"
	"github.com/reviewloop/reviewloop/dto"
	"github.com/reviewloop/reviewloop/internal/database"
	"github.com/reviewloop/reviewloop/internal/logger"
	"github.com/reviewloop/reviewloop/internal/repository"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/internal/utils"
	"github.com/reviewloop/reviewloop/server"
	"github.com/reviewloop/reviewloop/services"
)

func main() {
	app := &cli.App{
		Name:  "reviewloop",
		Usage: "review request and retention email scheduler",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Run database migrations",
				Action: migrate,
			},
			{
				Name:   "server",
				Usage:  "Start the API server and the cron jobs",
				Action: serve,
			},
			{
				Name:  "cycle",
				Usage: "Run one scheduling cycle and print the summary",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "tenant", Usage: "limit the cycle to one tenant id"},
					&cli.TimestampFlag{Name: "at", Layout: time.RFC3339, Usage: "cycle clock, defaults to now"},
				},
				Action: cycle,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("reviewloop: %v", err)
	}
}

func setup() (*config.Config, logger.Logger, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("config initialization failed: %w", err)
	}

	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()
	return cfg, appLogger, nil
}

func migrate(c *cli.Context) error {
	cfg, appLogger, err := setup()
	if err != nil {
		return err
	}

	db, err := database.InitDatabase(cfg.DatabaseConfig)
	if err != nil {
		return fmt.Errorf("database initialization failed: %w", err)
	}
	if err := repository.MigrateDB(db); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	appLogger.Info("Database migration completed successfully")
	return nil
}

func serve(c *cli.Context) error {
	cfg, appLogger, err := setup()
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	db, err := database.InitDatabase(cfg.DatabaseConfig)
	if err != nil {
		return fmt.Errorf("database initialization failed: %w", err)
	}

	appLogger.Info("reviewloop starting up...")
	srv, err := server.NewServer(cfg, appLogger, db)
	if err != nil {
		return fmt.Errorf("server setup failed: %w", err)
	}
	if err := srv.Run(); err != nil {
		return fmt.Errorf("server startup failed: %w", err)
	}
	appLogger.Info("Shutdown complete")
	return nil
}

func cycle(c *cli.Context) error {
	cfg, appLogger, err := setup()
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		return err
	}
	defer closer.Close()
	opentracing.SetGlobalTracer(tracer)

	db, err := database.InitDatabase(cfg.DatabaseConfig)
	if err != nil {
		return fmt.Errorf("database initialization failed: %w", err)
	}

	svcs, err := services.InitServices(cfg, appLogger, repository.InitRepositories(db))
	if err != nil {
		return err
	}
	defer svcs.Close()

	now := utils.Now()
	if at := c.Timestamp("at"); at != nil {
		now = at.UTC()
	}

	// Ctrl+C stops dispatching; sends already started are finished
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var summary dto.CycleSummary
	if tenantID := c.String("tenant"); tenantID != "" {
		summary, err = svcs.Scheduler.RunTenantCycle(ctx, tenantID, now)
	} else {
		summary, err = svcs.Scheduler.RunCycle(ctx, now)
	}
	fmt.Printf("processed=%d sent=%d failed=%d skipped=%d\n", summary.Processed, summary.Sent, summary.Failed, summary.Skipped)
	return err
}
