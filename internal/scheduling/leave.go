package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LeaveService handles the leave lifecycle and the impact of a leave
// interval on existing appointments. Approval flips the leave status only;
// cancelling the affected appointments is a separate, explicit operation
// so the approver decides whether the cascade runs.
type LeaveService struct {
	repo   Repository
	policy *WindowPolicy
	clock  Clock
	log    zerolog.Logger
}

func NewLeaveService(repo Repository, policy *WindowPolicy, clock Clock, log zerolog.Logger) *LeaveService {
	return &LeaveService{repo: repo, policy: policy, clock: clock, log: log}
}

// Request files a new leave in pending status. A doctor may hold at most
// one pending leave at a time; a second request is rejected until the
// first is resolved.
func (s *LeaveService) Request(ctx context.Context, doctorID, hospitalID uuid.UUID, leaveType, reason string, startDate, endDate time.Time) (*Leave, error) {
	start := s.policy.DayStart(startDate)
	end := s.policy.DayStart(endDate)
	if start.After(end) {
		return nil, ErrInvalidLeaveRange
	}

	if _, err := s.repo.GetDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	// Fast path only; InsertLeave is the arbiter when two requests race.
	pending, err := s.repo.HasPendingLeave(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("check pending leave: %w", err)
	}
	if pending {
		return nil, ErrLeavePending
	}

	now := s.clock.Now()
	leave := &Leave{
		ID:         uuid.New(),
		DoctorID:   doctorID,
		HospitalID: hospitalID,
		Type:       leaveType,
		Reason:     reason,
		StartDate:  start,
		EndDate:    end,
		Status:     LeavePending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.InsertLeave(ctx, leave); err != nil {
		if errors.Is(err, ErrLeavePending) {
			return nil, ErrLeavePending
		}
		return nil, fmt.Errorf("insert leave: %w", err)
	}

	recordEvent(ctx, s.repo, s.clock, s.log, EventLeaveRequested, leave.ID, map[string]any{
		"doctor_id":  doctorID.String(),
		"start_date": start.Format("2006-01-02"),
		"end_date":   end.Format("2006-01-02"),
	})
	return leave, nil
}

// AffectedAppointments returns every non-cancelled appointment of the
// doctor whose date falls within [startDate, endDate] inclusive, plus the
// count shown to the approver before a decision.
func (s *LeaveService) AffectedAppointments(ctx context.Context, doctorID uuid.UUID, startDate, endDate time.Time) (int, []Appointment, error) {
	start := s.policy.DayStart(startDate)
	end := s.policy.DayStart(endDate)
	if start.After(end) {
		return 0, nil, ErrInvalidLeaveRange
	}

	appts, err := s.repo.ListAppointmentsInRange(ctx, doctorID, start, end)
	if err != nil {
		return 0, nil, fmt.Errorf("list appointments in range: %w", err)
	}

	affected := appts[:0]
	for _, appt := range appts {
		if appt.Status == StatusCancelled {
			continue
		}
		affected = append(affected, appt)
	}
	return len(affected), affected, nil
}

// Approve moves a pending leave to approved. The status write is a
// compare-and-set, so the second of two racing approvers fails with
// ErrInvalidState.
func (s *LeaveService) Approve(ctx context.Context, leaveID uuid.UUID) (*Leave, error) {
	leave, err := s.resolve(ctx, leaveID, LeaveApproved)
	if err != nil {
		return nil, err
	}
	recordEvent(ctx, s.repo, s.clock, s.log, EventLeaveApproved, leave.ID, map[string]any{
		"doctor_id": leave.DoctorID.String(),
	})
	return leave, nil
}

// Reject moves a pending leave to rejected.
func (s *LeaveService) Reject(ctx context.Context, leaveID uuid.UUID) (*Leave, error) {
	leave, err := s.resolve(ctx, leaveID, LeaveRejected)
	if err != nil {
		return nil, err
	}
	recordEvent(ctx, s.repo, s.clock, s.log, EventLeaveRejected, leave.ID, map[string]any{
		"doctor_id": leave.DoctorID.String(),
	})
	return leave, nil
}

func (s *LeaveService) resolve(ctx context.Context, leaveID uuid.UUID, to LeaveStatus) (*Leave, error) {
	leave, err := s.repo.UpdateLeaveStatus(ctx, leaveID, LeavePending, to)
	if err == nil {
		return leave, nil
	}
	if !errors.Is(err, ErrLeaveNotFound) {
		return nil, fmt.Errorf("update leave status: %w", err)
	}

	// No pending row matched: missing leave or one already resolved.
	existing, getErr := s.repo.GetLeave(ctx, leaveID)
	if getErr != nil {
		return nil, getErr
	}
	if existing.Status != LeavePending {
		return nil, ErrInvalidState
	}
	return nil, ErrLeaveNotFound
}

// CancelAppointmentsDuringLeave cancels every scheduled appointment of the
// doctor inside the leave interval and returns how many were cancelled.
// It is not invoked by Approve; callers opt in to the cascade.
func (s *LeaveService) CancelAppointmentsDuringLeave(ctx context.Context, doctorID uuid.UUID, startDate, endDate time.Time) (int, error) {
	_, affected, err := s.AffectedAppointments(ctx, doctorID, startDate, endDate)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, appt := range affected {
		if appt.Status != StatusScheduled {
			continue
		}
		updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusScheduled, StatusCancelled)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				// completed or cancelled since we listed it
				continue
			}
			return cancelled, fmt.Errorf("cancel appointment %s: %w", appt.ID, err)
		}
		cancelled++
		recordEvent(ctx, s.repo, s.clock, s.log, EventAppointmentCancelled, updated.ID, map[string]any{
			"doctor_id": doctorID.String(),
			"reason":    "doctor_leave",
		})
	}

	s.log.Info().
		Stringer("doctor_id", doctorID).
		Int("cancelled", cancelled).
		Msg("cancelled appointments during leave")
	return cancelled, nil
}
