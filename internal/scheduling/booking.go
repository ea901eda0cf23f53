package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/curelink/hospital-scheduling/internal/redis"
)

// BookingCoordinator commits new appointments and mutates existing ones.
// Availability is re-validated at commit time, inside a distributed lock
// keyed on (doctor, slot start); the partial unique index in the store is
// the final arbiter when two commits still race.
type BookingCoordinator struct {
	repo   Repository
	avail  *AvailabilityService
	policy *WindowPolicy
	locker redisclient.Locker
	clock  Clock
	log    zerolog.Logger
}

func NewBookingCoordinator(repo Repository, avail *AvailabilityService, policy *WindowPolicy, locker redisclient.Locker, clock Clock, log zerolog.Logger) *BookingCoordinator {
	return &BookingCoordinator{
		repo:   repo,
		avail:  avail,
		policy: policy,
		locker: locker,
		clock:  clock,
		log:    log,
	}
}

// Book creates a scheduled appointment for the given slot, or fails with
// ErrSlotUnavailable when the slot is taken by commit time. Losers of a
// concurrent race get ErrSlotUnavailable and must re-query free slots.
func (c *BookingCoordinator) Book(ctx context.Context, doctorID, patientID uuid.UUID, date time.Time, slot TimeSlot, typ AppointmentType) (*Appointment, error) {
	if err := c.validateSlot(slot); err != nil {
		return nil, err
	}
	if _, err := c.repo.GetDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	day := c.policy.DayStart(date)
	var created *Appointment

	err := c.locker.WithBookingLock(ctx, doctorID, slot.Start, func(lockCtx context.Context) error {
		free, err := c.avail.FreeSlots(lockCtx, doctorID, day)
		if err != nil {
			return err
		}
		if !containsSlot(free, slot) {
			return ErrSlotUnavailable
		}

		now := c.clock.Now()
		appt := &Appointment{
			ID:        uuid.New(),
			DoctorID:  doctorID,
			PatientID: patientID,
			Date:      day,
			Slot:      slot,
			Type:      typ,
			Status:    StatusScheduled,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := c.insertOnce(lockCtx, appt, doctorID, day, slot); err != nil {
			return err
		}

		created = appt
		c.logEvent(lockCtx, EventAppointmentBooked, appt.ID, map[string]any{
			"doctor_id":  doctorID.String(),
			"patient_id": patientID.String(),
			"start":      slot.Start,
			"type":       string(typ),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			// another client is mid-commit on the same slot
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	return created, nil
}

// insertOnce inserts the appointment, absorbing a single unique violation
// with one re-query. No retry loop beyond that; persistent losers are
// reported as ErrSlotUnavailable.
func (c *BookingCoordinator) insertOnce(ctx context.Context, appt *Appointment, doctorID uuid.UUID, day time.Time, slot TimeSlot) error {
	err := c.repo.InsertAppointment(ctx, appt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUniqueViolation) {
		return fmt.Errorf("insert appointment: %w", err)
	}

	free, ferr := c.avail.FreeSlots(ctx, doctorID, day)
	if ferr != nil {
		return fmt.Errorf("re-check availability: %w", ferr)
	}
	if !containsSlot(free, slot) {
		return ErrSlotUnavailable
	}
	// the conflicting row was cancelled between violation and re-query
	if err := c.repo.InsertAppointment(ctx, appt); err != nil {
		if errors.Is(err, ErrUniqueViolation) {
			return ErrSlotUnavailable
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

// Reschedule moves an appointment to a new date and slot. The appointment
// being moved is excluded from the conflict set, so rescheduling to the
// slot it already occupies succeeds trivially. OriginalSlot is written
// only on the first reschedule.
func (c *BookingCoordinator) Reschedule(ctx context.Context, appointmentID uuid.UUID, newDate time.Time, newSlot TimeSlot) (*Appointment, error) {
	if err := c.validateSlot(newSlot); err != nil {
		return nil, err
	}

	appt, err := c.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	switch appt.Status {
	case StatusCancelled:
		return nil, ErrAppointmentNotFound
	case StatusCompleted:
		return nil, ErrInvalidState
	}

	day := c.policy.DayStart(newDate)
	var updated *Appointment

	err = c.locker.WithBookingLock(ctx, appt.DoctorID, newSlot.Start, func(lockCtx context.Context) error {
		free, err := c.avail.FreeSlotsExcluding(lockCtx, appt.DoctorID, day, appt.ID)
		if err != nil {
			return err
		}
		if !containsSlot(free, newSlot) {
			return ErrSlotUnavailable
		}

		now := c.clock.Now()
		if appt.OriginalSlot == nil {
			orig := appt.Slot
			appt.OriginalSlot = &orig
		}
		appt.RescheduledAt = &now
		appt.Date = day
		appt.Slot = newSlot
		appt.UpdatedAt = now

		if err := c.repo.UpdateAppointment(lockCtx, appt); err != nil {
			if errors.Is(err, ErrUniqueViolation) {
				return ErrSlotUnavailable
			}
			if errors.Is(err, ErrAppointmentNotFound) {
				// reached a terminal state between our read and the write
				current, getErr := c.repo.GetAppointment(lockCtx, appt.ID)
				if getErr != nil {
					return getErr
				}
				if current.Status == StatusCompleted {
					return ErrInvalidState
				}
				return ErrAppointmentNotFound
			}
			return fmt.Errorf("update appointment: %w", err)
		}

		updated = appt
		c.logEvent(lockCtx, EventAppointmentRescheduled, appt.ID, map[string]any{
			"doctor_id": appt.DoctorID.String(),
			"start":     newSlot.Start,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	return updated, nil
}

// Cancel moves an appointment to cancelled. Cancelled is terminal; the
// slot is never reused by resurrecting the row, and cancelling twice fails
// with ErrAppointmentNotFound.
func (c *BookingCoordinator) Cancel(ctx context.Context, appointmentID uuid.UUID) (*Appointment, error) {
	updated, err := c.repo.UpdateAppointmentStatus(ctx, appointmentID, StatusScheduled, StatusCancelled)
	if err == nil {
		c.logEvent(ctx, EventAppointmentCancelled, updated.ID, map[string]any{
			"doctor_id": updated.DoctorID.String(),
		})
		return updated, nil
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	// No scheduled row matched: distinguish a missing appointment from one
	// in a terminal state.
	appt, getErr := c.repo.GetAppointment(ctx, appointmentID)
	if getErr != nil {
		return nil, getErr
	}
	if appt.Status == StatusCompleted {
		return nil, ErrInvalidState
	}
	return nil, ErrAppointmentNotFound
}

// ListUpcomingByPatient returns the patient's scheduled appointments from
// the current instant onward.
func (c *BookingCoordinator) ListUpcomingByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	appts, err := c.repo.ListUpcomingByPatient(ctx, patientID, c.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("list upcoming appointments: %w", err)
	}
	return appts, nil
}

func (c *BookingCoordinator) validateSlot(slot TimeSlot) error {
	if !c.policy.IsValidInstant(slot.Start) {
		return ErrInvalidTimeWindow
	}
	if slot.Duration() != c.policy.SlotDuration() {
		return ErrInvalidTimeWindow
	}
	return nil
}

func (c *BookingCoordinator) logEvent(ctx context.Context, eventType string, entityID uuid.UUID, payload map[string]any) {
	recordEvent(ctx, c.repo, c.clock, c.log, eventType, entityID, payload)
}

func containsSlot(slots []TimeSlot, want TimeSlot) bool {
	for _, s := range slots {
		if s.Equal(want) {
			return true
		}
	}
	return false
}
