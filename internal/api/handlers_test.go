package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curelink/hospital-scheduling/internal/scheduling"
)

// memRepo is a minimal in-memory scheduling.Repository for handler tests.
// It mirrors the store's uniqueness rule for non-cancelled (doctor, slot
// start) pairs.
type memRepo struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*scheduling.Appointment
	doctors      map[uuid.UUID]*scheduling.Doctor
	leaves       map[uuid.UUID]*scheduling.Leave
	emergencies  map[uuid.UUID]*scheduling.EmergencyRequest
	erDoctors    map[uuid.UUID]bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		appointments: make(map[uuid.UUID]*scheduling.Appointment),
		doctors:      make(map[uuid.UUID]*scheduling.Doctor),
		leaves:       make(map[uuid.UUID]*scheduling.Leave),
		emergencies:  make(map[uuid.UUID]*scheduling.EmergencyRequest),
		erDoctors:    make(map[uuid.UUID]bool),
	}
}

func (r *memRepo) GetAppointment(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.appointments[id]
	if !ok {
		return nil, scheduling.ErrAppointmentNotFound
	}
	cp := *appt
	return &cp, nil
}

func (r *memRepo) ListAppointments(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]scheduling.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []scheduling.Appointment
	for _, appt := range r.appointments {
		if appt.DoctorID == doctorID && appt.Date.Equal(date) {
			out = append(out, *appt)
		}
	}
	return out, nil
}

func (r *memRepo) ListAppointmentsInRange(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]scheduling.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []scheduling.Appointment
	for _, appt := range r.appointments {
		if appt.DoctorID == doctorID && !appt.Date.Before(start) && !appt.Date.After(end) {
			out = append(out, *appt)
		}
	}
	return out, nil
}

func (r *memRepo) ListUpcomingByPatient(ctx context.Context, patientID uuid.UUID, from time.Time) ([]scheduling.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []scheduling.Appointment
	for _, appt := range r.appointments {
		if appt.PatientID == patientID && appt.Status == scheduling.StatusScheduled && !appt.Slot.Start.Before(from) {
			out = append(out, *appt)
		}
	}
	return out, nil
}

func (r *memRepo) ListScheduledOn(ctx context.Context, date time.Time) ([]scheduling.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []scheduling.Appointment
	for _, appt := range r.appointments {
		if appt.Status == scheduling.StatusScheduled && appt.Date.Equal(date) {
			out = append(out, *appt)
		}
	}
	return out, nil
}

func (r *memRepo) InsertAppointment(ctx context.Context, appt *scheduling.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.appointments {
		if existing.Status != scheduling.StatusCancelled &&
			existing.DoctorID == appt.DoctorID && existing.Slot.Start.Equal(appt.Slot.Start) {
			return scheduling.ErrUniqueViolation
		}
	}
	cp := *appt
	r.appointments[appt.ID] = &cp
	return nil
}

func (r *memRepo) UpdateAppointment(ctx context.Context, appt *scheduling.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.appointments[appt.ID]
	if !ok || current.Status != scheduling.StatusScheduled {
		return scheduling.ErrAppointmentNotFound
	}
	cp := *appt
	cp.Status = current.Status
	r.appointments[appt.ID] = &cp
	return nil
}

func (r *memRepo) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to scheduling.AppointmentStatus) (*scheduling.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.appointments[id]
	if !ok || appt.Status != from {
		return nil, scheduling.ErrAppointmentNotFound
	}
	appt.Status = to
	cp := *appt
	return &cp, nil
}

func (r *memRepo) GetDoctor(ctx context.Context, id uuid.UUID) (*scheduling.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, scheduling.ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *memRepo) ListEmergencyDoctors(ctx context.Context, hospitalID uuid.UUID) ([]scheduling.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []scheduling.Doctor
	for id, d := range r.doctors {
		if d.HospitalID == hospitalID && d.IsActive && r.erDoctors[id] {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *memRepo) GetLeave(ctx context.Context, id uuid.UUID) (*scheduling.Leave, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leaves[id]
	if !ok {
		return nil, scheduling.ErrLeaveNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *memRepo) ListApprovedLeave(ctx context.Context, doctorID uuid.UUID) ([]scheduling.Leave, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []scheduling.Leave
	for _, l := range r.leaves {
		if l.DoctorID == doctorID && l.Status == scheduling.LeaveApproved {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *memRepo) HasPendingLeave(ctx context.Context, doctorID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.leaves {
		if l.DoctorID == doctorID && l.Status == scheduling.LeavePending {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) InsertLeave(ctx context.Context, leave *scheduling.Leave) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if leave.Status == scheduling.LeavePending {
		for _, existing := range r.leaves {
			if existing.DoctorID == leave.DoctorID && existing.Status == scheduling.LeavePending {
				return scheduling.ErrLeavePending
			}
		}
	}
	cp := *leave
	r.leaves[leave.ID] = &cp
	return nil
}

func (r *memRepo) UpdateLeaveStatus(ctx context.Context, id uuid.UUID, from, to scheduling.LeaveStatus) (*scheduling.Leave, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leaves[id]
	if !ok || l.Status != from {
		return nil, scheduling.ErrLeaveNotFound
	}
	l.Status = to
	cp := *l
	return &cp, nil
}

func (r *memRepo) GetEmergencyRequest(ctx context.Context, id uuid.UUID) (*scheduling.EmergencyRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.emergencies[id]
	if !ok {
		return nil, scheduling.ErrEmergencyRequestNotFound
	}
	cp := *req
	return &cp, nil
}

func (r *memRepo) InsertEmergencyRequest(ctx context.Context, req *scheduling.EmergencyRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *req
	r.emergencies[req.ID] = &cp
	return nil
}

func (r *memRepo) AssignEmergencyDoctor(ctx context.Context, requestID, doctorID uuid.UUID) (*scheduling.EmergencyRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.emergencies[requestID]
	if !ok || req.Status != scheduling.EmergencyPending {
		return nil, scheduling.ErrEmergencyRequestNotFound
	}
	id := doctorID
	req.AssignedDoctorID = &id
	cp := *req
	return &cp, nil
}

func (r *memRepo) InsertEvent(ctx context.Context, ev scheduling.Event) error { return nil }

type passLocker struct{}

func (passLocker) WithBookingLock(ctx context.Context, doctorID uuid.UUID, slotStart time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type apiFixture struct {
	repo       *memRepo
	server     http.Handler
	doctorID   uuid.UUID
	hospitalID uuid.UUID
	day        time.Time
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	repo := newMemRepo()
	day := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	clock := scheduling.FixedClock{Instant: day.Add(-24 * time.Hour)}

	policy := scheduling.DefaultWindowPolicy(time.UTC)
	calc := scheduling.NewSlotCalculator(policy, clock)
	avail := scheduling.NewAvailabilityService(repo, calc, policy, zerolog.Nop())
	booking := scheduling.NewBookingCoordinator(repo, avail, policy, passLocker{}, clock, zerolog.Nop())
	leaves := scheduling.NewLeaveService(repo, policy, clock, zerolog.Nop())
	emergency := scheduling.NewEmergencyService(repo, clock, zerolog.Nop())

	doctorID := uuid.New()
	hospitalID := uuid.New()
	repo.doctors[doctorID] = &scheduling.Doctor{ID: doctorID, HospitalID: hospitalID, FullName: "Dr. Asha Rao", IsActive: true}
	repo.erDoctors[doctorID] = true

	router := NewRouter(RouterConfig{
		Availability: avail,
		Booking:      booking,
		Leaves:       leaves,
		Emergency:    emergency,
		Policy:       policy,
		Logger:       zerolog.Nop(),
		Env:          "test",
		Version:      "test",
	})

	return &apiFixture{repo: repo, server: router, doctorID: doctorID, hospitalID: hospitalID, day: day}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) bookBody(hour int) BookAppointmentRequest {
	start := f.day.Add(time.Duration(hour) * time.Hour)
	return BookAppointmentRequest{
		DoctorID:  f.doctorID.String(),
		PatientID: uuid.New().String(),
		Date:      f.day.Format("2006-01-02"),
		Start:     start.Format(time.RFC3339),
		Type:      "consultation",
	}
}

func TestBookEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/appointments", f.bookBody(9))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, f.doctorID, resp.DoctorID)
	assert.Equal(t, "scheduled", resp.Status)
	assert.Equal(t, f.day.Format("2006-01-02"), resp.Date)
}

func TestBookEndpointConflict(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/appointments", f.bookBody(9))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/appointments", f.bookBody(9))
	assert.Equal(t, http.StatusConflict, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "slot_unavailable", errResp.Error)
}

func TestBookEndpointValidation(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name   string
		mutate func(*BookAppointmentRequest)
		code   string
	}{
		{"bad doctor id", func(r *BookAppointmentRequest) { r.DoctorID = "nope" }, "invalid_doctor_id"},
		{"bad patient id", func(r *BookAppointmentRequest) { r.PatientID = "nope" }, "invalid_patient_id"},
		{"bad date", func(r *BookAppointmentRequest) { r.Date = "14-09-2026" }, "invalid_date"},
		{"bad start", func(r *BookAppointmentRequest) { r.Start = "today" }, "invalid_start"},
		{"misaligned start", func(r *BookAppointmentRequest) {
			r.Start = f.day.Add(9*time.Hour + 10*time.Minute).Format(time.RFC3339)
		}, "invalid_time_window"},
		{"bad type", func(r *BookAppointmentRequest) { r.Type = "walk-in" }, "invalid_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := f.bookBody(9)
			tt.mutate(&body)
			rec := f.do(t, http.MethodPost, "/appointments", body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			var errResp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
			assert.Equal(t, tt.code, errResp.Error)
		})
	}
}

func TestBookEndpointUnknownDoctor(t *testing.T) {
	f := newAPIFixture(t)

	body := f.bookBody(9)
	body.DoctorID = uuid.New().String()
	rec := f.do(t, http.MethodPost, "/appointments", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFreeSlotsEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/doctors/%s/slots?date=%s", f.doctorID, f.day.Format("2006-01-02")), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp FreeSlotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Slots, 27)

	// booking removes the slot from the next query
	f.do(t, http.MethodPost, "/appointments", f.bookBody(9))
	rec = f.do(t, http.MethodGet, fmt.Sprintf("/doctors/%s/slots?date=%s", f.doctorID, f.day.Format("2006-01-02")), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Slots, 26)
}

func TestFreeSlotsEndpointBadDate(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/doctors/%s/slots?date=tomorrow", f.doctorID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRescheduleEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/appointments", f.bookBody(9))
	require.Equal(t, http.StatusCreated, rec.Code)
	var appt AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &appt))

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/appointments/%s/reschedule", appt.ID), RescheduleAppointmentRequest{
		Date:  f.day.Format("2006-01-02"),
		Start: f.day.Add(14 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var moved AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &moved))
	require.NotNil(t, moved.OriginalSlot)
	assert.True(t, moved.OriginalSlot.Start.Equal(f.day.Add(9*time.Hour)))
	assert.NotNil(t, moved.RescheduledAt)
}

func TestCancelEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/appointments", f.bookBody(9))
	require.Equal(t, http.StatusCreated, rec.Code)
	var appt AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &appt))

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/appointments/%s/cancel", appt.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// cancelled is terminal
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/appointments/%s/cancel", appt.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeaveEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/leaves", RequestLeaveRequest{
		DoctorID:   f.doctorID.String(),
		HospitalID: f.hospitalID.String(),
		Type:       "casual",
		Reason:     "family function",
		StartDate:  f.day.Format("2006-01-02"),
		EndDate:    f.day.AddDate(0, 0, 1).Format("2006-01-02"),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var leave LeaveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &leave))
	assert.Equal(t, "pending", leave.Status)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/leaves/%s/approve", leave.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &leave))
	assert.Equal(t, "approved", leave.Status)
	assert.Nil(t, leave.CancelledAppointments)

	// double approval conflicts
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/leaves/%s/approve", leave.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLeaveApproveCascade(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/appointments", f.bookBody(9))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/leaves", RequestLeaveRequest{
		DoctorID:   f.doctorID.String(),
		HospitalID: f.hospitalID.String(),
		Type:       "sick",
		Reason:     "fever",
		StartDate:  f.day.Format("2006-01-02"),
		EndDate:    f.day.Format("2006-01-02"),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var leave LeaveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &leave))

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/leaves/%s/approve", leave.ID), ResolveLeaveRequest{CascadeCancel: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &leave))
	require.NotNil(t, leave.CancelledAppointments)
	assert.Equal(t, 1, *leave.CancelledAppointments)
}

func TestLeaveImpactEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/appointments", f.bookBody(9))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/doctors/%s/leave-impact?start_date=%s&end_date=%s",
		f.doctorID, f.day.Format("2006-01-02"), f.day.Format("2006-01-02")), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LeaveImpactResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Len(t, resp.Appointments, 1)
}

func TestEmergencyEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/emergency-requests", SubmitEmergencyRequest{
		HospitalID:  f.hospitalID.String(),
		PatientID:   uuid.New().String(),
		Description: "chest pain",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var er EmergencyRequestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
	assert.Equal(t, "pending", er.Status)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/hospitals/%s/emergency-doctors", f.hospitalID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var doctors []DoctorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doctors))
	require.Len(t, doctors, 1)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/emergency-requests/%s/assign", er.ID),
		AssignEmergencyRequest{DoctorID: f.doctorID.String()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
	require.NotNil(t, er.AssignedDoctorID)
	assert.Equal(t, f.doctorID, *er.AssignedDoctorID)
}

func TestEmergencySubmitValidation(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/emergency-requests", SubmitEmergencyRequest{
		HospitalID: f.hospitalID.String(),
		PatientID:  uuid.New().String(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
