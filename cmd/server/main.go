package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"rankguard/internal/audit"
	"rankguard/internal/config"
	"rankguard/internal/db"
	"rankguard/internal/handlers"
	"rankguard/internal/handlers/api"
	"rankguard/internal/jobs"
	"rankguard/internal/logging"
	"rankguard/internal/metrics"
	"rankguard/internal/ranking"
	"rankguard/internal/searchconsole"
	"rankguard/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rankguard: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return err
	}

	tuning, err := config.LoadTuning(cfg.TuningFile)
	if err != nil {
		return fmt.Errorf("load tuning: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	database, err := db.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return err
	}
	defer database.Close()

	// Run migrations
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return err
	}
	log.Info().Msg("migrations completed successfully")

	if cfg.IsDev() {
		if err := database.SeedDevCampaign(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to seed dev campaign")
		}
	}

	if cfg.GoogleClientID == "" {
		log.Warn().Msg("GOOGLE_CLIENT_ID not set; expired Search Console tokens cannot be refreshed")
	}
	provider := searchconsole.New(cfg.GoogleClientID, cfg.GoogleClientSecret, log,
		searchconsole.WithRowLimit(tuning.SearchConsole.RowLimit))

	var queue *jobs.AuditQueue
	recorder := metrics.Register(prometheus.DefaultRegisterer, database, func() float64 {
		return float64(queue.Len())
	}, log)

	auditService := audit.NewService(database, provider, database, log,
		audit.WithThreshold(tuning.Cannibalization.OverlapThreshold),
		audit.WithWindows(audit.Windows{
			InitialMonths: tuning.Windows.InitialMonths,
			ScheduledDays: tuning.Windows.ScheduledDays,
			ResultsMonths: tuning.Windows.ResultsMonths,
		}),
		audit.WithRecorder(recorder),
	)
	queue = jobs.NewAuditQueue(auditService, cfg.AuditWorkers, cfg.AuditQueueSize, cfg.AuditTimeout, log)
	rankingService := ranking.NewService(database, nil)

	srv := server.New(cfg, log)
	srv.RegisterRoutes(server.Routes{
		Probe:    handlers.NewProbeHandler(database),
		Audits:   api.NewAuditHandler(auditService, queue),
		Rankings: api.NewRankingHandler(rankingService),
		Metrics:  prometheus.DefaultGatherer,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		queue.Start(gctx)
		return nil
	})
	g.Go(func() error {
		jobs.NewReaper(database, queue, 2*cfg.AuditTimeout, log).Start(gctx)
		return nil
	})
	if cfg.ScheduleEnabled {
		g.Go(func() error {
			jobs.NewScheduler(database, queue, cfg.ScheduleInterval, log).Start(gctx)
			return nil
		})
	}
	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logExit(log, err)
	return err
}

func logExit(log zerolog.Logger, err error) {
	if err != nil {
		log.Error().Err(err).Msg("server exited with error")
		return
	}
	log.Info().Msg("server exited")
}
