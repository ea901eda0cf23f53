package scheduling

import "time"

// SlotCalculator enumerates candidate slots for a calendar day. It is a
// pure calendar walk: bookings and leave are not consulted here.
type SlotCalculator struct {
	policy *WindowPolicy
	clock  Clock
}

func NewSlotCalculator(policy *WindowPolicy, clock Clock) *SlotCalculator {
	return &SlotCalculator{policy: policy, clock: clock}
}

// SlotsForDay returns every candidate slot on date in chronological order:
// fixed duration, non-overlapping, contiguous within each business window.
// Slots whose start has already passed are never offered.
func (c *SlotCalculator) SlotsForDay(date time.Time) []TimeSlot {
	now := c.clock.Now()
	duration := c.policy.SlotDuration()

	var slots []TimeSlot
	for _, window := range c.policy.windowsOn(date) {
		for start := window.Start; !start.Add(duration).After(window.End); start = start.Add(duration) {
			if start.Before(now) {
				continue
			}
			slots = append(slots, TimeSlot{Start: start, End: start.Add(duration)})
		}
	}
	return slots
}
