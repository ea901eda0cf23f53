package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AvailabilityService computes the free-slot set for a doctor and day.
// Results are recomputed on every call; slot state can change between a
// query and the booking commit, so nothing here is cached.
type AvailabilityService struct {
	repo   Repository
	calc   *SlotCalculator
	policy *WindowPolicy
	log    zerolog.Logger
}

func NewAvailabilityService(repo Repository, calc *SlotCalculator, policy *WindowPolicy, log zerolog.Logger) *AvailabilityService {
	return &AvailabilityService{repo: repo, calc: calc, policy: policy, log: log}
}

// FreeSlots returns the bookable slots for doctorID on date, in
// chronological order. An approved leave covering date empties the result.
func (s *AvailabilityService) FreeSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeSlot, error) {
	return s.freeSlots(ctx, doctorID, date, uuid.Nil)
}

// FreeSlotsExcluding is FreeSlots with one appointment left out of the
// conflict set; reschedule validation passes the appointment being moved.
func (s *AvailabilityService) FreeSlotsExcluding(ctx context.Context, doctorID uuid.UUID, date time.Time, exceptID uuid.UUID) ([]TimeSlot, error) {
	return s.freeSlots(ctx, doctorID, date, exceptID)
}

func (s *AvailabilityService) freeSlots(ctx context.Context, doctorID uuid.UUID, date time.Time, exceptID uuid.UUID) ([]TimeSlot, error) {
	day := s.policy.DayStart(date)

	onLeave, err := s.onApprovedLeave(ctx, doctorID, day)
	if err != nil {
		return nil, err
	}
	if onLeave {
		s.log.Debug().
			Stringer("doctor_id", doctorID).
			Time("date", day).
			Msg("doctor on approved leave, no slots offered")
		return nil, nil
	}

	candidates := s.calc.SlotsForDay(day)
	if len(candidates) == 0 {
		return nil, nil
	}

	existing, err := s.repo.ListAppointments(ctx, doctorID, day)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	free := candidates[:0]
	for _, slot := range candidates {
		if !ConflictsWithAnyExcept(slot, existing, exceptID) {
			free = append(free, slot)
		}
	}
	return free, nil
}

func (s *AvailabilityService) onApprovedLeave(ctx context.Context, doctorID uuid.UUID, day time.Time) (bool, error) {
	leaves, err := s.repo.ListApprovedLeave(ctx, doctorID)
	if err != nil {
		return false, fmt.Errorf("list approved leave: %w", err)
	}
	for _, leave := range leaves {
		start := s.policy.DayStart(leave.StartDate)
		end := s.policy.DayStart(leave.EndDate)
		if !day.Before(start) && !day.After(end) {
			return true, nil
		}
	}
	return false, nil
}
