package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// ParseAppointmentStatus rejects unknown values instead of coercing them.
func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	switch AppointmentStatus(s) {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return AppointmentStatus(s), nil
	}
	return "", fmt.Errorf("unknown appointment status %q", s)
}

type AppointmentType string

const (
	TypeConsultation AppointmentType = "consultation"
	TypeEmergency    AppointmentType = "emergency"
)

func ParseAppointmentType(s string) (AppointmentType, error) {
	switch AppointmentType(s) {
	case TypeConsultation, TypeEmergency:
		return AppointmentType(s), nil
	}
	return "", fmt.Errorf("unknown appointment type %q", s)
}

type LeaveStatus string

const (
	LeavePending  LeaveStatus = "pending"
	LeaveApproved LeaveStatus = "approved"
	LeaveRejected LeaveStatus = "rejected"
)

func ParseLeaveStatus(s string) (LeaveStatus, error) {
	switch LeaveStatus(s) {
	case LeavePending, LeaveApproved, LeaveRejected:
		return LeaveStatus(s), nil
	}
	return "", fmt.Errorf("unknown leave status %q", s)
}

type EmergencyStatus string

const (
	EmergencyPending   EmergencyStatus = "pending"
	EmergencyCompleted EmergencyStatus = "completed"
	EmergencyCancelled EmergencyStatus = "cancelled"
)

func ParseEmergencyStatus(s string) (EmergencyStatus, error) {
	switch EmergencyStatus(s) {
	case EmergencyPending, EmergencyCompleted, EmergencyCancelled:
		return EmergencyStatus(s), nil
	}
	return "", fmt.Errorf("unknown emergency request status %q", s)
}

// TimeSlot is the atomic unit of bookable time. Start and End are absolute
// instants in the hospital's zone; End-Start always equals the policy's
// slot duration.
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (s TimeSlot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

func (s TimeSlot) Equal(other TimeSlot) bool {
	return s.Start.Equal(other.Start) && s.End.Equal(other.End)
}

type Appointment struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	// Date is the civil day of the slot, midnight in the hospital zone.
	Date   time.Time
	Slot   TimeSlot
	Type   AppointmentType
	Status AppointmentStatus
	// OriginalSlot is set once, on the first reschedule, and never
	// overwritten afterwards.
	OriginalSlot  *TimeSlot
	RescheduledAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Leave struct {
	ID         uuid.UUID
	DoctorID   uuid.UUID
	HospitalID uuid.UUID
	Type       string
	Reason     string
	// StartDate and EndDate are civil days, inclusive on both ends.
	StartDate time.Time
	EndDate   time.Time
	Status    LeaveStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

type EmergencyRequest struct {
	ID               uuid.UUID
	HospitalID       uuid.UUID
	PatientID        uuid.UUID
	Description      string
	Status           EmergencyStatus
	AssignedDoctorID *uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Doctor is the scheduling-relevant view of a doctor; the full profile
// lives outside this engine.
type Doctor struct {
	ID           uuid.UUID
	HospitalID   uuid.UUID
	DepartmentID uuid.UUID
	FullName     string
	IsActive     bool
}

type Department struct {
	ID         uuid.UUID
	HospitalID uuid.UUID
	Name       string
}

// Event is an append-only audit record for scheduling state changes.
type Event struct {
	ID        int64
	Type      string
	EntityID  *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventLeaveRequested         = "LEAVE_REQUESTED"
	EventLeaveApproved          = "LEAVE_APPROVED"
	EventLeaveRejected          = "LEAVE_REJECTED"
	EventEmergencySubmitted     = "EMERGENCY_SUBMITTED"
	EventEmergencyAssigned      = "EMERGENCY_ASSIGNED"
	EventReminderRecorded       = "REMINDER_RECORDED"
)
