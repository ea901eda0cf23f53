package scheduling

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeRepo is an in-memory Repository for service tests. It enforces the
// same at-most-one non-cancelled appointment per (doctor, slot start) rule
// the Postgres schema does, so booking races behave like production.
type fakeRepo struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*Appointment
	doctors      map[uuid.UUID]*Doctor
	departments  map[uuid.UUID]*Department
	leaves       map[uuid.UUID]*Leave
	emergencies  map[uuid.UUID]*EmergencyRequest
	events       []Event
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		appointments: make(map[uuid.UUID]*Appointment),
		doctors:      make(map[uuid.UUID]*Doctor),
		departments:  make(map[uuid.UUID]*Department),
		leaves:       make(map[uuid.UUID]*Leave),
		emergencies:  make(map[uuid.UUID]*EmergencyRequest),
	}
}

func (r *fakeRepo) addDoctor(d Doctor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := d
	r.doctors[d.ID] = &cp
}

func (r *fakeRepo) addDepartment(d Department) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := d
	r.departments[d.ID] = &cp
}

func (r *fakeRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		types = append(types, ev.Type)
	}
	return types
}

func (r *fakeRepo) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *appt
	return &cp, nil
}

func (r *fakeRepo) ListAppointments(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, appt := range r.appointments {
		if appt.DoctorID == doctorID && appt.Date.Equal(date) {
			out = append(out, *appt)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListAppointmentsInRange(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, appt := range r.appointments {
		if appt.DoctorID != doctorID {
			continue
		}
		if appt.Date.Before(start) || appt.Date.After(end) {
			continue
		}
		out = append(out, *appt)
	}
	return out, nil
}

func (r *fakeRepo) ListUpcomingByPatient(ctx context.Context, patientID uuid.UUID, from time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, appt := range r.appointments {
		if appt.PatientID != patientID || appt.Status != StatusScheduled {
			continue
		}
		if appt.Slot.Start.Before(from) {
			continue
		}
		out = append(out, *appt)
	}
	return out, nil
}

func (r *fakeRepo) ListScheduledOn(ctx context.Context, date time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, appt := range r.appointments {
		if appt.Status == StatusScheduled && appt.Date.Equal(date) {
			out = append(out, *appt)
		}
	}
	return out, nil
}

func (r *fakeRepo) InsertAppointment(ctx context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.appointments {
		if existing.Status == StatusCancelled {
			continue
		}
		if existing.DoctorID == appt.DoctorID && existing.Slot.Start.Equal(appt.Slot.Start) {
			return ErrUniqueViolation
		}
	}
	cp := *appt
	r.appointments[appt.ID] = &cp
	return nil
}

func (r *fakeRepo) UpdateAppointment(ctx context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.appointments[appt.ID]
	if !ok || current.Status != StatusScheduled {
		return ErrAppointmentNotFound
	}
	for id, existing := range r.appointments {
		if id == appt.ID || existing.Status == StatusCancelled {
			continue
		}
		if existing.DoctorID == appt.DoctorID && existing.Slot.Start.Equal(appt.Slot.Start) {
			return ErrUniqueViolation
		}
	}
	cp := *appt
	cp.Status = current.Status
	r.appointments[appt.ID] = &cp
	return nil
}

func (r *fakeRepo) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.appointments[id]
	if !ok || appt.Status != from {
		return nil, ErrAppointmentNotFound
	}
	appt.Status = to
	appt.UpdatedAt = time.Now()
	cp := *appt
	return &cp, nil
}

func (r *fakeRepo) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *fakeRepo) ListEmergencyDoctors(ctx context.Context, hospitalID uuid.UUID) ([]Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Doctor
	for _, d := range r.doctors {
		if d.HospitalID != hospitalID || !d.IsActive {
			continue
		}
		dept, ok := r.departments[d.DepartmentID]
		if !ok || dept.Name != "Emergency" {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

func (r *fakeRepo) GetLeave(ctx context.Context, id uuid.UUID) (*Leave, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leaves[id]
	if !ok {
		return nil, ErrLeaveNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *fakeRepo) ListApprovedLeave(ctx context.Context, doctorID uuid.UUID) ([]Leave, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Leave
	for _, l := range r.leaves {
		if l.DoctorID == doctorID && l.Status == LeaveApproved {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *fakeRepo) HasPendingLeave(ctx context.Context, doctorID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.leaves {
		if l.DoctorID == doctorID && l.Status == LeavePending {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) InsertLeave(ctx context.Context, leave *Leave) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if leave.Status == LeavePending {
		for _, existing := range r.leaves {
			if existing.DoctorID == leave.DoctorID && existing.Status == LeavePending {
				return ErrLeavePending
			}
		}
	}
	cp := *leave
	r.leaves[leave.ID] = &cp
	return nil
}

func (r *fakeRepo) UpdateLeaveStatus(ctx context.Context, id uuid.UUID, from, to LeaveStatus) (*Leave, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leaves[id]
	if !ok || l.Status != from {
		return nil, ErrLeaveNotFound
	}
	l.Status = to
	l.UpdatedAt = time.Now()
	cp := *l
	return &cp, nil
}

func (r *fakeRepo) GetEmergencyRequest(ctx context.Context, id uuid.UUID) (*EmergencyRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.emergencies[id]
	if !ok {
		return nil, ErrEmergencyRequestNotFound
	}
	cp := *req
	return &cp, nil
}

func (r *fakeRepo) InsertEmergencyRequest(ctx context.Context, req *EmergencyRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *req
	r.emergencies[req.ID] = &cp
	return nil
}

func (r *fakeRepo) AssignEmergencyDoctor(ctx context.Context, requestID, doctorID uuid.UUID) (*EmergencyRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.emergencies[requestID]
	if !ok || req.Status != EmergencyPending {
		return nil, ErrEmergencyRequestNotFound
	}
	id := doctorID
	req.AssignedDoctorID = &id
	req.UpdatedAt = time.Now()
	cp := *req
	return &cp, nil
}

func (r *fakeRepo) InsertEvent(ctx context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// noopLocker runs the critical section without any mutual exclusion, so
// tests exercise the unique-violation path rather than the lock.
type noopLocker struct{}

func (noopLocker) WithBookingLock(ctx context.Context, doctorID uuid.UUID, slotStart time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// hookLocker grants the lock immediately but runs hook first, standing in
// for a writer that commits between the caller's read and the critical
// section.
type hookLocker struct {
	hook func(ctx context.Context)
}

func (l hookLocker) WithBookingLock(ctx context.Context, doctorID uuid.UUID, slotStart time.Time, fn func(ctx context.Context) error) error {
	if l.hook != nil {
		l.hook(ctx)
	}
	return fn(ctx)
}
