// Package main is the entry point of the progress tracker worker.
//
// The worker runs the periodic jobs:
//   - syncing every enrolled student's Codeforces progress
//   - checking for inactive students and sending reminder emails
//   - sending weekly progress reports
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cf-hub/progress-tracker/config"
	"github.com/cf-hub/progress-tracker/internal/application/inactivity"
	"github.com/cf-hub/progress-tracker/internal/application/syncer"
	"github.com/cf-hub/progress-tracker/internal/domain/notification"
	"github.com/cf-hub/progress-tracker/internal/infrastructure/email"
	"github.com/cf-hub/progress-tracker/internal/infrastructure/external/codeforces"
	"github.com/cf-hub/progress-tracker/internal/infrastructure/persistence/postgres"
	"github.com/cf-hub/progress-tracker/internal/infrastructure/persistence/redis"
	"github.com/cf-hub/progress-tracker/internal/infrastructure/scheduler"
	"github.com/cf-hub/progress-tracker/internal/infrastructure/scheduler/jobs"
	"github.com/cf-hub/progress-tracker/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.Setup(logger.Options{
		Level:   cfg.Observability.LogLevel,
		Format:  cfg.Observability.LogFormat,
		Service: cfg.App.Name,
	})
	log.Info("starting progress tracker worker",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. MIGRATIONS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var studentCache *redis.StudentCache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		cache, err := redis.NewCache(ctx, redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
		} else {
			defer cache.Close()
			studentCache = redis.NewStudentCache(cache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. REPOSITORIES
	// ─────────────────────────────────────────────────────────────────────────
	studentRepo := postgres.NewStudentRepository(dbConn)
	syncRunRepo := postgres.NewSyncRunRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. CODEFORCES CLIENT
	// ─────────────────────────────────────────────────────────────────────────
	cfConfig := codeforces.DefaultClientConfig(cfg.Codeforces.BaseURL)
	cfConfig.MinInterval = cfg.Codeforces.MinInterval
	cfConfig.SubmissionPageSize = cfg.Codeforces.SubmissionPageSize
	cfConfig.Timeout = cfg.Codeforces.RequestTimeout
	cfConfig.Logger = log
	cfClient := codeforces.NewClient(cfConfig)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. NOTIFICATION GATEWAY
	// ─────────────────────────────────────────────────────────────────────────
	var gateway notification.Gateway
	if cfg.SMTP.Disabled || cfg.SMTP.Host == "" {
		log.Info("SMTP disabled, notifications go to the log")
		gateway = email.NewLogGateway(log)
	} else {
		gateway = email.NewSMTPGateway(email.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, log)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. APPLICATION SERVICES
	// ─────────────────────────────────────────────────────────────────────────
	var invalidator syncer.CacheInvalidator
	var engineCache inactivity.CacheInvalidator
	if studentCache != nil {
		invalidator = studentCache
		engineCache = studentCache
	}

	syncService := syncer.NewService(cfClient, studentRepo, invalidator, log)

	inactivityConfig := inactivity.Config{
		Threshold: time.Duration(cfg.Inactivity.ThresholdDays) * 24 * time.Hour,
		Cooldown:  time.Duration(cfg.Inactivity.CooldownDays) * 24 * time.Hour,
		Cap:       cfg.Inactivity.Cap,
	}
	engine := inactivity.NewEngine(inactivityConfig, gateway, studentRepo, engineCache, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 10. JOBS AND SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	syncJob := jobs.NewSyncRosterJob(syncService, studentRepo, jobs.SyncRosterConfig{
		Concurrency:    cfg.Sync.Concurrency,
		MaxFailureRate: cfg.Sync.MaxFailureRate,
	}, log).WithJournal(&syncRunJournal{repo: syncRunRepo})

	inactivityJob := jobs.NewCheckInactivityJob(engine, studentRepo, inactivityConfig, log)
	reportJob := jobs.NewWeeklyReportJob(studentRepo, gateway, log)

	sched := scheduler.New(scheduler.Config{
		Logger:   log,
		Timezone: cfg.App.Location,
	})

	if err := sched.Register(syncJob, scheduler.Every(cfg.Sync.Interval)); err != nil {
		return fmt.Errorf("register sync job: %w", err)
	}
	if err := sched.Register(inactivityJob, scheduler.DailyAt(cfg.Inactivity.CheckHour, cfg.Inactivity.CheckMinute)); err != nil {
		return fmt.Errorf("register inactivity job: %w", err)
	}
	if err := sched.Register(reportJob, scheduler.WeeklyAt(cfg.WeeklyReport.Weekday, cfg.WeeklyReport.Hour, cfg.WeeklyReport.Minute)); err != nil {
		return fmt.Errorf("register weekly report job: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	log.Info("progress tracker worker is running",
		"sync_interval", cfg.Sync.Interval.String(),
		"inactivity_check", fmt.Sprintf("%02d:%02d", cfg.Inactivity.CheckHour, cfg.Inactivity.CheckMinute),
		"weekly_report", fmt.Sprintf("%s %02d:%02d", cfg.WeeklyReport.Weekday, cfg.WeeklyReport.Hour, cfg.WeeklyReport.Minute),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	if err := sched.Stop(); err != nil {
		log.Warn("scheduler stop failed", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SYNC RUN JOURNAL ADAPTER
// ══════════════════════════════════════════════════════════════════════════════

// syncRunJournal adapts the sync run repository to the job's journal
// port.
type syncRunJournal struct {
	repo *postgres.SyncRunRepository
}

func (j *syncRunJournal) RecordSyncRun(ctx context.Context, stats jobs.SyncRosterStats) error {
	return j.repo.Record(ctx, postgres.SyncRun{
		StartedAt:    stats.StartedAt,
		CompletedAt:  stats.CompletedAt,
		Total:        stats.Total,
		Synced:       stats.Synced,
		Failed:       stats.Failed,
		Skipped:      stats.Skipped,
		ErrorSummary: summarizeErrors(stats.Errors),
	})
}

// summarizeErrors flattens per-student errors into one short column.
func summarizeErrors(errs []jobs.SyncError) string {
	if len(errs) == 0 {
		return ""
	}
	const maxEntries = 5
	parts := make([]string, 0, maxEntries)
	for i, e := range errs {
		if i == maxEntries {
			parts = append(parts, fmt.Sprintf("... and %d more", len(errs)-maxEntries))
			break
		}
		parts = append(parts, fmt.Sprintf("%s: %s", e.Handle, e.Message))
	}
	return strings.Join(parts, "; ")
}
