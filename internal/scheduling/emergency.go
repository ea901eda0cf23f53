package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EmergencyAssigner staffs emergency requests. The contract is
// deliberately thin: a flat eligible list and a manual pick, no priority
// or load balancing. A load-aware strategy can replace the default
// implementation without touching callers.
type EmergencyAssigner interface {
	AssignableDoctors(ctx context.Context, hospitalID uuid.UUID) ([]Doctor, error)
	Assign(ctx context.Context, requestID, doctorID uuid.UUID) (*EmergencyRequest, error)
}

// EmergencyService is the default EmergencyAssigner and also handles
// request intake.
type EmergencyService struct {
	repo  Repository
	clock Clock
	log   zerolog.Logger
}

func NewEmergencyService(repo Repository, clock Clock, log zerolog.Logger) *EmergencyService {
	return &EmergencyService{repo: repo, clock: clock, log: log}
}

// Submit files a new emergency request in pending status.
func (s *EmergencyService) Submit(ctx context.Context, hospitalID, patientID uuid.UUID, description string) (*EmergencyRequest, error) {
	now := s.clock.Now()
	req := &EmergencyRequest{
		ID:          uuid.New(),
		HospitalID:  hospitalID,
		PatientID:   patientID,
		Description: description,
		Status:      EmergencyPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertEmergencyRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("insert emergency request: %w", err)
	}

	recordEvent(ctx, s.repo, s.clock, s.log, EventEmergencySubmitted, req.ID, map[string]any{
		"hospital_id": hospitalID.String(),
		"patient_id":  patientID.String(),
	})
	return req, nil
}

// AssignableDoctors returns the active doctors of the hospital's emergency
// department, unordered.
func (s *EmergencyService) AssignableDoctors(ctx context.Context, hospitalID uuid.UUID) ([]Doctor, error) {
	doctors, err := s.repo.ListEmergencyDoctors(ctx, hospitalID)
	if err != nil {
		return nil, fmt.Errorf("list emergency doctors: %w", err)
	}
	return doctors, nil
}

// Assign records the chosen doctor on a pending request. Assignment does
// not advance the request's lifecycle; completed and cancelled requests
// fail with ErrInvalidState.
func (s *EmergencyService) Assign(ctx context.Context, requestID, doctorID uuid.UUID) (*EmergencyRequest, error) {
	req, err := s.repo.GetEmergencyRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status == EmergencyCompleted || req.Status == EmergencyCancelled {
		return nil, ErrInvalidState
	}

	doctor, err := s.repo.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.IsActive {
		return nil, ErrInvalidState
	}

	// conditional write: a request resolved since the read is not assigned
	updated, err := s.repo.AssignEmergencyDoctor(ctx, requestID, doctorID)
	if err != nil {
		if errors.Is(err, ErrEmergencyRequestNotFound) {
			return nil, ErrInvalidState
		}
		return nil, err
	}

	recordEvent(ctx, s.repo, s.clock, s.log, EventEmergencyAssigned, updated.ID, map[string]any{
		"doctor_id": doctorID.String(),
	})
	return updated, nil
}
