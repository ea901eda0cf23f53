package scheduling

import (
	"fmt"
	"time"
)

// BusinessWindow is a daily interval during which slots may be offered,
// expressed as minutes from midnight in the hospital zone.
type BusinessWindow struct {
	StartMinute int
	EndMinute   int
}

// WindowPolicy defines the business-hours model and slot granularity.
// It is pure and stateless; changing business hours means building a new
// policy, nothing else.
type WindowPolicy struct {
	loc      *time.Location
	duration time.Duration
	windows  []BusinessWindow
}

// NewWindowPolicy validates that windows are ordered, non-overlapping and
// each long enough to hold at least one slot.
func NewWindowPolicy(loc *time.Location, duration time.Duration, windows []BusinessWindow) (*WindowPolicy, error) {
	if loc == nil {
		return nil, fmt.Errorf("window policy: location is required")
	}
	if duration <= 0 || duration%time.Minute != 0 {
		return nil, fmt.Errorf("window policy: slot duration %s must be a positive whole number of minutes", duration)
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("window policy: at least one business window is required")
	}
	slotMin := int(duration / time.Minute)
	prevEnd := 0
	for _, w := range windows {
		if w.StartMinute < 0 || w.EndMinute > 24*60 || w.StartMinute >= w.EndMinute {
			return nil, fmt.Errorf("window policy: invalid window %d-%d", w.StartMinute, w.EndMinute)
		}
		if w.StartMinute < prevEnd {
			return nil, fmt.Errorf("window policy: window starting at minute %d overlaps the previous one", w.StartMinute)
		}
		if w.EndMinute-w.StartMinute < slotMin {
			return nil, fmt.Errorf("window policy: window %d-%d is shorter than one slot", w.StartMinute, w.EndMinute)
		}
		prevEnd = w.EndMinute
	}
	return &WindowPolicy{loc: loc, duration: duration, windows: windows}, nil
}

// DefaultWindowPolicy is the observed hospital policy: 09:00-13:00 and
// 14:00-19:00 with 20 minute slots.
func DefaultWindowPolicy(loc *time.Location) *WindowPolicy {
	p, err := NewWindowPolicy(loc, 20*time.Minute, []BusinessWindow{
		{StartMinute: 9 * 60, EndMinute: 13 * 60},
		{StartMinute: 14 * 60, EndMinute: 19 * 60},
	})
	if err != nil {
		panic(err)
	}
	return p
}

func (p *WindowPolicy) SlotDuration() time.Duration { return p.duration }

func (p *WindowPolicy) Location() *time.Location { return p.loc }

// DayStart normalizes an instant to midnight of its civil day in the
// hospital zone.
func (p *WindowPolicy) DayStart(t time.Time) time.Time {
	local := t.In(p.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.loc)
}

// IsValidInstant reports whether t is a valid slot start: inside a business
// window, aligned to the slot grid, with the whole slot fitting before the
// window closes.
func (p *WindowPolicy) IsValidInstant(t time.Time) bool {
	local := t.In(p.loc)
	if local.Second() != 0 || local.Nanosecond() != 0 {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	slotMin := int(p.duration / time.Minute)
	for _, w := range p.windows {
		if minute < w.StartMinute || minute+slotMin > w.EndMinute {
			continue
		}
		if (minute-w.StartMinute)%slotMin == 0 {
			return true
		}
	}
	return false
}

// SlotAt builds the slot beginning at start, or fails with
// ErrInvalidTimeWindow when start is not a valid slot boundary.
func (p *WindowPolicy) SlotAt(start time.Time) (TimeSlot, error) {
	if !p.IsValidInstant(start) {
		return TimeSlot{}, ErrInvalidTimeWindow
	}
	local := start.In(p.loc)
	return TimeSlot{Start: local, End: local.Add(p.duration)}, nil
}

// windowsOn resolves the business windows to absolute intervals on a
// given civil day.
func (p *WindowPolicy) windowsOn(date time.Time) []TimeSlot {
	day := p.DayStart(date)
	out := make([]TimeSlot, 0, len(p.windows))
	for _, w := range p.windows {
		out = append(out, TimeSlot{
			Start: day.Add(time.Duration(w.StartMinute) * time.Minute),
			End:   day.Add(time.Duration(w.EndMinute) * time.Minute),
		})
	}
	return out
}
