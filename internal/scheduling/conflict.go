package scheduling

import "github.com/google/uuid"

// Overlaps tests two slots with half-open interval semantics: touching
// endpoints do not conflict. Every conflict check in the engine routes
// through here; nothing else re-implements the interval math.
func Overlaps(a, b TimeSlot) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// ConflictsWithAny reports whether slot overlaps any non-cancelled
// appointment in existing. Callers are expected to have already narrowed
// existing to a single doctor and day.
func ConflictsWithAny(slot TimeSlot, existing []Appointment) bool {
	return ConflictsWithAnyExcept(slot, existing, uuid.Nil)
}

// ConflictsWithAnyExcept is ConflictsWithAny with one appointment excluded
// from the conflict set; reschedule uses it so an appointment never
// conflicts with its own current slot.
func ConflictsWithAnyExcept(slot TimeSlot, existing []Appointment, exceptID uuid.UUID) bool {
	for _, appt := range existing {
		if appt.Status == StatusCancelled {
			continue
		}
		if appt.ID == exceptID {
			continue
		}
		if Overlaps(slot, appt.Slot) {
			return true
		}
	}
	return false
}
