package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository is the Postgres implementation of Repository. The partial
// unique index on (doctor_id, slot_start) for non-cancelled rows is what
// ultimately guarantees at most one committed booking per slot; violations
// surface as ErrUniqueViolation.
type PgRepository struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

// NewPgRepository builds a repository; loc is the hospital zone civil
// dates are normalized to when scanned.
func NewPgRepository(pool *pgxpool.Pool, loc *time.Location) *PgRepository {
	return &PgRepository{pool: pool, loc: loc}
}

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

const dateLayout = "2006-01-02"

// civilDay rebuilds a DATE column value as midnight in the hospital zone.
func (r *PgRepository) civilDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, r.loc)
}

// Scan helpers

func (r *PgRepository) scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a             Appointment
		date          time.Time
		typ, status   string
		origStart     *time.Time
		origEnd       *time.Time
		rescheduledAt *time.Time
	)

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&date,
		&a.Slot.Start,
		&a.Slot.End,
		&typ,
		&status,
		&origStart,
		&origEnd,
		&rescheduledAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = r.civilDay(date)
	a.Slot.Start = a.Slot.Start.In(r.loc)
	a.Slot.End = a.Slot.End.In(r.loc)
	if a.Type, err = ParseAppointmentType(typ); err != nil {
		return nil, err
	}
	if a.Status, err = ParseAppointmentStatus(status); err != nil {
		return nil, err
	}
	if origStart != nil && origEnd != nil {
		a.OriginalSlot = &TimeSlot{Start: origStart.In(r.loc), End: origEnd.In(r.loc)}
	}
	a.RescheduledAt = rescheduledAt
	return &a, nil
}

func (r *PgRepository) scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID,
		&d.HospitalID,
		&d.DepartmentID,
		&d.FullName,
		&d.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *PgRepository) scanLeave(row pgx.Row) (*Leave, error) {
	var (
		l          Leave
		start, end time.Time
		status     string
	)
	err := row.Scan(
		&l.ID,
		&l.DoctorID,
		&l.HospitalID,
		&l.Type,
		&l.Reason,
		&start,
		&end,
		&status,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeaveNotFound
		}
		return nil, err
	}

	l.StartDate = r.civilDay(start)
	l.EndDate = r.civilDay(end)
	if l.Status, err = ParseLeaveStatus(status); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *PgRepository) scanEmergencyRequest(row pgx.Row) (*EmergencyRequest, error) {
	var (
		e      EmergencyRequest
		status string
	)
	err := row.Scan(
		&e.ID,
		&e.HospitalID,
		&e.PatientID,
		&e.Description,
		&status,
		&e.AssignedDoctorID,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmergencyRequestNotFound
		}
		return nil, err
	}
	if e.Status, err = ParseEmergencyStatus(status); err != nil {
		return nil, err
	}
	return &e, nil
}

const appointmentColumns = `
	id, doctor_id, patient_id, date, slot_start, slot_end, type, status,
	original_start, original_end, rescheduled_at, created_at, updated_at`

// Appointments

func (r *PgRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return r.scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND date = $2
		ORDER BY slot_start
	`, doctorID, date.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	return r.collectAppointments(rows)
}

func (r *PgRepository) ListAppointmentsInRange(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY slot_start
	`, doctorID, start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	return r.collectAppointments(rows)
}

func (r *PgRepository) ListUpcomingByPatient(ctx context.Context, patientID uuid.UUID, from time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1 AND status = 'scheduled' AND slot_start >= $2
		ORDER BY slot_start
	`, patientID, from)
	if err != nil {
		return nil, err
	}
	return r.collectAppointments(rows)
}

func (r *PgRepository) ListScheduledOn(ctx context.Context, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE date = $1 AND status = 'scheduled'
		ORDER BY slot_start
	`, date.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	return r.collectAppointments(rows)
}

func (r *PgRepository) collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) InsertAppointment(ctx context.Context, appt *Appointment) error {
	var origStart, origEnd *time.Time
	if appt.OriginalSlot != nil {
		origStart = &appt.OriginalSlot.Start
		origEnd = &appt.OriginalSlot.End
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (
			id, doctor_id, patient_id, date, slot_start, slot_end, type, status,
			original_start, original_end, rescheduled_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		appt.ID, appt.DoctorID, appt.PatientID, appt.Date.Format(dateLayout),
		appt.Slot.Start, appt.Slot.End, string(appt.Type), string(appt.Status),
		origStart, origEnd, appt.RescheduledAt, appt.CreatedAt, appt.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUniqueViolation
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

// UpdateAppointment rewrites the slot fields of a scheduled appointment.
// The status guard means a row moved to a terminal state by a concurrent
// writer never matches, so a racing cancel cannot be overwritten.
func (r *PgRepository) UpdateAppointment(ctx context.Context, appt *Appointment) error {
	var origStart, origEnd *time.Time
	if appt.OriginalSlot != nil {
		origStart = &appt.OriginalSlot.Start
		origEnd = &appt.OriginalSlot.End
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET date = $2,
		    slot_start = $3,
		    slot_end = $4,
		    original_start = $5,
		    original_end = $6,
		    rescheduled_at = $7,
		    updated_at = $8
		WHERE id = $1
		  AND status = 'scheduled'
	`,
		appt.ID, appt.Date.Format(dateLayout), appt.Slot.Start, appt.Slot.End,
		origStart, origEnd, appt.RescheduledAt, appt.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUniqueViolation
		}
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, string(to), string(from))
	return r.scanAppointment(row)
}

// Doctors

func (r *PgRepository) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, hospital_id, department_id, full_name, is_active
		FROM doctors
		WHERE id = $1
	`, id)
	return r.scanDoctor(row)
}

func (r *PgRepository) ListEmergencyDoctors(ctx context.Context, hospitalID uuid.UUID) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT d.id, d.hospital_id, d.department_id, d.full_name, d.is_active
		FROM doctors d
		JOIN departments dep ON dep.id = d.department_id
		WHERE d.hospital_id = $1
		  AND d.is_active
		  AND dep.name = 'Emergency'
		ORDER BY d.full_name
	`, hospitalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := r.scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

const leaveColumns = `
	id, doctor_id, hospital_id, type, reason, start_date, end_date, status,
	created_at, updated_at`

// Leave

func (r *PgRepository) GetLeave(ctx context.Context, id uuid.UUID) (*Leave, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leaveColumns+`
		FROM leaves
		WHERE id = $1
	`, id)
	return r.scanLeave(row)
}

func (r *PgRepository) ListApprovedLeave(ctx context.Context, doctorID uuid.UUID) ([]Leave, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leaveColumns+`
		FROM leaves
		WHERE doctor_id = $1 AND status = 'approved'
		ORDER BY start_date
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Leave
	for rows.Next() {
		l, err := r.scanLeave(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) HasPendingLeave(ctx context.Context, doctorID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM leaves WHERE doctor_id = $1 AND status = 'pending'
		)
	`, doctorID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PgRepository) InsertLeave(ctx context.Context, leave *Leave) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO leaves (
			id, doctor_id, hospital_id, type, reason, start_date, end_date,
			status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		leave.ID, leave.DoctorID, leave.HospitalID, leave.Type, leave.Reason,
		leave.StartDate.Format(dateLayout), leave.EndDate.Format(dateLayout),
		string(leave.Status), leave.CreatedAt, leave.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrLeavePending
		}
		return fmt.Errorf("insert leave: %w", err)
	}
	return nil
}

func (r *PgRepository) UpdateLeaveStatus(ctx context.Context, id uuid.UUID, from, to LeaveStatus) (*Leave, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leaves
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+leaveColumns+`
	`, id, string(to), string(from))
	return r.scanLeave(row)
}

// Emergency requests

func (r *PgRepository) GetEmergencyRequest(ctx context.Context, id uuid.UUID) (*EmergencyRequest, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, hospital_id, patient_id, description, status,
		       assigned_doctor_id, created_at, updated_at
		FROM emergency_requests
		WHERE id = $1
	`, id)
	return r.scanEmergencyRequest(row)
}

func (r *PgRepository) InsertEmergencyRequest(ctx context.Context, req *EmergencyRequest) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO emergency_requests (
			id, hospital_id, patient_id, description, status,
			assigned_doctor_id, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		req.ID, req.HospitalID, req.PatientID, req.Description,
		string(req.Status), req.AssignedDoctorID, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert emergency request: %w", err)
	}
	return nil
}

func (r *PgRepository) AssignEmergencyDoctor(ctx context.Context, requestID, doctorID uuid.UUID) (*EmergencyRequest, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE emergency_requests
		SET assigned_doctor_id = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'pending'
		RETURNING id, hospital_id, patient_id, description, status,
		          assigned_doctor_id, created_at, updated_at
	`, requestID, doctorID)
	return r.scanEmergencyRequest(row)
}

// Audit trail

func (r *PgRepository) InsertEvent(ctx context.Context, ev Event) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, entity_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.Type, ev.EntityID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
