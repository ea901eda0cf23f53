package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/curelink/hospital-scheduling/internal/config"
	"github.com/curelink/hospital-scheduling/internal/db"
	"github.com/curelink/hospital-scheduling/internal/scheduling"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "reminder-worker").Logger()
	log.Info().Msg("reminder-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	log.Info().Str("env", cfg.Env).Str("schedule", cfg.ReminderCron).Msg("configured")

	loc, err := time.LoadLocation(cfg.HospitalTZ)
	if err != nil {
		log.Fatal().Err(err).Str("tz", cfg.HospitalTZ).Msg("invalid hospital time zone")
	}

	windows := make([]scheduling.BusinessWindow, 0, len(cfg.BusinessWindows))
	for _, w := range cfg.BusinessWindows {
		windows = append(windows, scheduling.BusinessWindow{StartMinute: w.StartMinute, EndMinute: w.EndMinute})
	}
	policy, err := scheduling.NewWindowPolicy(loc, cfg.SlotDuration, windows)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid window policy")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	repo := scheduling.NewPgRepository(pgPool, loc)
	svc := scheduling.NewReminderService(repo, policy, scheduling.SystemClock(), log)

	runOnce := func() {
		runCtx, cancel := context.WithTimeout(rootCtx, 60*time.Second)
		defer cancel()

		start := time.Now()
		count, err := svc.RunOnce(runCtx)
		if err != nil {
			log.Error().Err(err).Msg("reminder run error")
			return
		}
		log.Info().Int("reminders", count).Dur("took", time.Since(start)).Msg("reminder run complete")
	}

	// Run once at startup so a restart never skips today's reminders.
	runOnce()

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(cfg.ReminderCron, runOnce); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.ReminderCron).Msg("invalid cron schedule")
	}
	c.Start()

	<-rootCtx.Done()
	log.Info().Msg("shutdown signal received, stopping reminder worker")

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		log.Warn().Msg("timed out waiting for in-flight reminder run")
	}
}
