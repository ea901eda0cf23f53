package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the storage boundary of the engine. Implementations must
// enforce at most one non-cancelled appointment per (doctor, slot start);
// InsertAppointment and UpdateAppointment return ErrUniqueViolation when a
// concurrent writer got there first.
type Repository interface {
	// Appointments
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// ListAppointments returns all appointments of a doctor on a civil
	// day, cancelled ones included; the conflict detector filters.
	ListAppointments(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error)
	// ListAppointmentsInRange returns appointments of a doctor whose date
	// falls in [start, end], both ends inclusive.
	ListAppointmentsInRange(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]Appointment, error)
	ListUpcomingByPatient(ctx context.Context, patientID uuid.UUID, from time.Time) ([]Appointment, error)
	ListScheduledOn(ctx context.Context, date time.Time) ([]Appointment, error)
	InsertAppointment(ctx context.Context, appt *Appointment) error
	// UpdateAppointment rewrites the slot fields of a scheduled
	// appointment. Rows in a terminal state never match; the write fails
	// with ErrAppointmentNotFound so a racing cancel stays cancelled.
	UpdateAppointment(ctx context.Context, appt *Appointment) error
	// UpdateAppointmentStatus performs a compare-and-set on status and
	// returns ErrAppointmentNotFound when no row matched.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	// Doctors
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	// ListEmergencyDoctors returns the active doctors of the hospital's
	// emergency department.
	ListEmergencyDoctors(ctx context.Context, hospitalID uuid.UUID) ([]Doctor, error)

	// Leave
	GetLeave(ctx context.Context, id uuid.UUID) (*Leave, error)
	ListApprovedLeave(ctx context.Context, doctorID uuid.UUID) ([]Leave, error)
	HasPendingLeave(ctx context.Context, doctorID uuid.UUID) (bool, error)
	// InsertLeave returns ErrLeavePending when the doctor already holds a
	// pending leave; the store enforces the rule, not the caller.
	InsertLeave(ctx context.Context, leave *Leave) error
	// UpdateLeaveStatus performs a compare-and-set on status and returns
	// ErrLeaveNotFound when no row matched.
	UpdateLeaveStatus(ctx context.Context, id uuid.UUID, from, to LeaveStatus) (*Leave, error)

	// Emergency requests
	GetEmergencyRequest(ctx context.Context, id uuid.UUID) (*EmergencyRequest, error)
	InsertEmergencyRequest(ctx context.Context, req *EmergencyRequest) error
	// AssignEmergencyDoctor sets the assigned doctor in one conditional
	// write; it fails with ErrEmergencyRequestNotFound when the request is
	// missing or no longer pending.
	AssignEmergencyDoctor(ctx context.Context, requestID, doctorID uuid.UUID) (*EmergencyRequest, error)

	// Audit trail
	InsertEvent(ctx context.Context, ev Event) error
}
