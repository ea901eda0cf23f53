package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/curelink/hospital-scheduling/internal/api"
	"github.com/curelink/hospital-scheduling/internal/config"
	"github.com/curelink/hospital-scheduling/internal/db"
	redisclient "github.com/curelink/hospital-scheduling/internal/redis"
	"github.com/curelink/hospital-scheduling/internal/scheduling"
)

const version = "0.3.0"

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "api-server").Logger()
	log.Info().Msg("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("configured")

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

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	clock := scheduling.SystemClock()
	repo := scheduling.NewPgRepository(pgPool, loc)
	locker := redisclient.NewRedisBookingLocker(rdb, cfg.LockTTL)
	calc := scheduling.NewSlotCalculator(policy, clock)

	avail := scheduling.NewAvailabilityService(repo, calc, policy, log)
	booking := scheduling.NewBookingCoordinator(repo, avail, policy, locker, clock, log)
	leaves := scheduling.NewLeaveService(repo, policy, clock, log)
	emergency := scheduling.NewEmergencyService(repo, clock, log)

	router := api.NewRouter(api.RouterConfig{
		Availability: avail,
		Booking:      booking,
		Leaves:       leaves,
		Emergency:    emergency,
		Policy:       policy,
		PgPool:       pgPool,
		Redis:        rdb,
		Logger:       log,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
