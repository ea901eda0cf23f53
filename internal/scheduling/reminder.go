package scheduling

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// ReminderService records a daily reminder event for every appointment
// scheduled on a given day. Actual delivery (SMS, push) is out of scope;
// the event log is the hand-off point for downstream notifiers.
type ReminderService struct {
	repo   Repository
	policy *WindowPolicy
	clock  Clock
	log    zerolog.Logger
}

func NewReminderService(repo Repository, policy *WindowPolicy, clock Clock, log zerolog.Logger) *ReminderService {
	return &ReminderService{repo: repo, policy: policy, clock: clock, log: log}
}

// RunOnce records reminders for all appointments still scheduled today.
// Returns the number of reminders recorded.
func (s *ReminderService) RunOnce(ctx context.Context) (int, error) {
	today := s.policy.DayStart(s.clock.Now())

	appts, err := s.repo.ListScheduledOn(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("list scheduled appointments: %w", err)
	}

	for _, appt := range appts {
		recordEvent(ctx, s.repo, s.clock, s.log, EventReminderRecorded, appt.ID, map[string]any{
			"appointment_id": appt.ID.String(),
			"doctor_id":      appt.DoctorID.String(),
			"patient_id":     appt.PatientID.String(),
			"slot_start":     appt.Slot.Start,
		})
	}

	s.log.Info().Int("count", len(appts)).Time("date", today).Msg("reminder run recorded")
	return len(appts), nil
}
