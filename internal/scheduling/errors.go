package scheduling

import "errors"

var (
	ErrInvalidTimeWindow = errors.New("slot does not align to business hours")
	ErrSlotUnavailable   = errors.New("slot is no longer available")
	ErrInvalidState      = errors.New("operation not allowed in current state")

	// ErrUniqueViolation is the backing-store signal for a lost booking
	// race. The coordinator translates it to ErrSlotUnavailable; it never
	// reaches callers of this package.
	ErrUniqueViolation = errors.New("conflicting appointment committed concurrently")

	ErrAppointmentNotFound      = errors.New("appointment not found")
	ErrDoctorNotFound           = errors.New("doctor not found")
	ErrLeaveNotFound            = errors.New("leave request not found")
	ErrEmergencyRequestNotFound = errors.New("emergency request not found")

	ErrInvalidLeaveRange = errors.New("leave start date is after end date")
	ErrLeavePending      = errors.New("doctor already has a pending leave request")
)
