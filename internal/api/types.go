package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/curelink/hospital-scheduling/internal/scheduling"
)

type BookAppointmentRequest struct {
	DoctorID  string `json:"doctor_id"`
	PatientID string `json:"patient_id"`
	Date      string `json:"date"`  // 2006-01-02, hospital zone
	Start     string `json:"start"` // RFC 3339
	Type      string `json:"type"`
}

type RescheduleAppointmentRequest struct {
	Date  string `json:"date"`
	Start string `json:"start"`
}

type TimeSlotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type AppointmentResponse struct {
	ID            uuid.UUID         `json:"id"`
	DoctorID      uuid.UUID         `json:"doctor_id"`
	PatientID     uuid.UUID         `json:"patient_id"`
	Date          string            `json:"date"`
	Slot          TimeSlotResponse  `json:"slot"`
	Type          string            `json:"type"`
	Status        string            `json:"status"`
	OriginalSlot  *TimeSlotResponse `json:"original_slot,omitempty"`
	RescheduledAt *time.Time        `json:"rescheduled_at,omitempty"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:            a.ID,
		DoctorID:      a.DoctorID,
		PatientID:     a.PatientID,
		Date:          a.Date.Format("2006-01-02"),
		Slot:          TimeSlotResponse{Start: a.Slot.Start, End: a.Slot.End},
		Type:          string(a.Type),
		Status:        string(a.Status),
		RescheduledAt: a.RescheduledAt,
	}
	if a.OriginalSlot != nil {
		resp.OriginalSlot = &TimeSlotResponse{Start: a.OriginalSlot.Start, End: a.OriginalSlot.End}
	}
	return resp
}

type FreeSlotsResponse struct {
	DoctorID uuid.UUID          `json:"doctor_id"`
	Date     string             `json:"date"`
	Slots    []TimeSlotResponse `json:"slots"`
}

type RequestLeaveRequest struct {
	DoctorID   string `json:"doctor_id"`
	HospitalID string `json:"hospital_id"`
	Type       string `json:"type"`
	Reason     string `json:"reason"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

type ResolveLeaveRequest struct {
	// CascadeCancel opts in to cancelling the appointments inside the
	// leave interval after approval.
	CascadeCancel bool `json:"cascade_cancel"`
}

type LeaveResponse struct {
	ID         uuid.UUID `json:"id"`
	DoctorID   uuid.UUID `json:"doctor_id"`
	HospitalID uuid.UUID `json:"hospital_id"`
	Type       string    `json:"type"`
	Reason     string    `json:"reason"`
	StartDate  string    `json:"start_date"`
	EndDate    string    `json:"end_date"`
	Status     string    `json:"status"`
	// CancelledAppointments is set only when the approval cascade ran.
	CancelledAppointments *int `json:"cancelled_appointments,omitempty"`
}

func toLeaveResponse(l *scheduling.Leave) LeaveResponse {
	return LeaveResponse{
		ID:         l.ID,
		DoctorID:   l.DoctorID,
		HospitalID: l.HospitalID,
		Type:       l.Type,
		Reason:     l.Reason,
		StartDate:  l.StartDate.Format("2006-01-02"),
		EndDate:    l.EndDate.Format("2006-01-02"),
		Status:     string(l.Status),
	}
}

type LeaveImpactResponse struct {
	DoctorID     uuid.UUID             `json:"doctor_id"`
	StartDate    string                `json:"start_date"`
	EndDate      string                `json:"end_date"`
	Count        int                   `json:"count"`
	Appointments []AppointmentResponse `json:"appointments"`
}

type SubmitEmergencyRequest struct {
	HospitalID  string `json:"hospital_id"`
	PatientID   string `json:"patient_id"`
	Description string `json:"description"`
}

type AssignEmergencyRequest struct {
	DoctorID string `json:"doctor_id"`
}

type EmergencyRequestResponse struct {
	ID               uuid.UUID  `json:"id"`
	HospitalID       uuid.UUID  `json:"hospital_id"`
	PatientID        uuid.UUID  `json:"patient_id"`
	Description      string     `json:"description"`
	Status           string     `json:"status"`
	AssignedDoctorID *uuid.UUID `json:"assigned_doctor_id,omitempty"`
}

func toEmergencyResponse(e *scheduling.EmergencyRequest) EmergencyRequestResponse {
	return EmergencyRequestResponse{
		ID:               e.ID,
		HospitalID:       e.HospitalID,
		PatientID:        e.PatientID,
		Description:      e.Description,
		Status:           string(e.Status),
		AssignedDoctorID: e.AssignedDoctorID,
	}
}

type DoctorResponse struct {
	ID           uuid.UUID `json:"id"`
	HospitalID   uuid.UUID `json:"hospital_id"`
	DepartmentID uuid.UUID `json:"department_id"`
	FullName     string    `json:"full_name"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
