package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/curelink/hospital-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Availability *scheduling.AvailabilityService
	Booking      *scheduling.BookingCoordinator
	Leaves       *scheduling.LeaveService
	Emergency    *scheduling.EmergencyService
	Policy       *scheduling.WindowPolicy
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Logger       zerolog.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Availability
	r.Get("/doctors/{id}/slots", freeSlotsHandler(cfg.Availability, cfg.Policy))

	// Appointments
	r.Post("/appointments", bookAppointmentHandler(cfg.Booking, cfg.Policy))
	r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Booking, cfg.Policy))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Booking))
	r.Get("/patients/{id}/appointments", upcomingAppointmentsHandler(cfg.Booking))

	// Leave
	r.Post("/leaves", requestLeaveHandler(cfg.Leaves, cfg.Policy))
	r.Get("/doctors/{id}/leave-impact", leaveImpactHandler(cfg.Leaves, cfg.Policy))
	r.Post("/leaves/{id}/approve", approveLeaveHandler(cfg.Leaves))
	r.Post("/leaves/{id}/reject", rejectLeaveHandler(cfg.Leaves))

	// Emergency
	r.Post("/emergency-requests", submitEmergencyHandler(cfg.Emergency))
	r.Get("/hospitals/{id}/emergency-doctors", emergencyDoctorsHandler(cfg.Emergency))
	r.Post("/emergency-requests/{id}/assign", assignEmergencyHandler(cfg.Emergency))

	return r
}
