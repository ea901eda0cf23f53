package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/curelink/hospital-scheduling/internal/scheduling"
)

func freeSlotsHandler(avail *scheduling.AvailabilityService, policy *scheduling.WindowPolicy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseUUIDParam(w, r, "id", "doctor_id")
		if !ok {
			return
		}
		date, ok := parseDateQuery(w, r, "date", policy)
		if !ok {
			return
		}

		slots, err := avail.FreeSlots(r.Context(), doctorID, date)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		resp := FreeSlotsResponse{
			DoctorID: doctorID,
			Date:     date.Format("2006-01-02"),
			Slots:    make([]TimeSlotResponse, 0, len(slots)),
		}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, TimeSlotResponse{Start: s.Start, End: s.End})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func bookAppointmentHandler(booking *scheduling.BookingCoordinator, policy *scheduling.WindowPolicy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		date, err := time.ParseInLocation("2006-01-02", req.Date, policy.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must look like 2006-01-02")
			return
		}
		slot, ok := parseSlot(w, req.Start, policy)
		if !ok {
			return
		}
		apptType := scheduling.TypeConsultation
		if req.Type != "" {
			if apptType, err = scheduling.ParseAppointmentType(req.Type); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_type", err.Error())
				return
			}
		}

		appt, err := booking.Book(r.Context(), doctorID, patientID, date, slot, apptType)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func rescheduleAppointmentHandler(booking *scheduling.BookingCoordinator, policy *scheduling.WindowPolicy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apptID, ok := parseUUIDParam(w, r, "id", "appointment_id")
		if !ok {
			return
		}

		var req RescheduleAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		date, err := time.ParseInLocation("2006-01-02", req.Date, policy.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must look like 2006-01-02")
			return
		}
		slot, ok := parseSlot(w, req.Start, policy)
		if !ok {
			return
		}

		appt, err := booking.Reschedule(r.Context(), apptID, date, slot)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(booking *scheduling.BookingCoordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apptID, ok := parseUUIDParam(w, r, "id", "appointment_id")
		if !ok {
			return
		}

		appt, err := booking.Cancel(r.Context(), apptID)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func upcomingAppointmentsHandler(booking *scheduling.BookingCoordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, ok := parseUUIDParam(w, r, "id", "patient_id")
		if !ok {
			return
		}

		appts, err := booking.ListUpcomingByPatient(r.Context(), patientID)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func leaveImpactHandler(leaves *scheduling.LeaveService, policy *scheduling.WindowPolicy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseUUIDParam(w, r, "id", "doctor_id")
		if !ok {
			return
		}
		start, ok := parseDateQuery(w, r, "start_date", policy)
		if !ok {
			return
		}
		end, ok := parseDateQuery(w, r, "end_date", policy)
		if !ok {
			return
		}

		count, appts, err := leaves.AffectedAppointments(r.Context(), doctorID, start, end)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		resp := LeaveImpactResponse{
			DoctorID:     doctorID,
			StartDate:    start.Format("2006-01-02"),
			EndDate:      end.Format("2006-01-02"),
			Count:        count,
			Appointments: make([]AppointmentResponse, 0, len(appts)),
		}
		for i := range appts {
			resp.Appointments = append(resp.Appointments, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func requestLeaveHandler(leaves *scheduling.LeaveService, policy *scheduling.WindowPolicy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RequestLeaveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		hospitalID, err := uuid.Parse(req.HospitalID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_hospital_id", "hospital_id must be a valid UUID")
			return
		}
		start, err := time.ParseInLocation("2006-01-02", req.StartDate, policy.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_date", "start_date must look like 2006-01-02")
			return
		}
		end, err := time.ParseInLocation("2006-01-02", req.EndDate, policy.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end_date", "end_date must look like 2006-01-02")
			return
		}

		leave, err := leaves.Request(r.Context(), doctorID, hospitalID, req.Type, req.Reason, start, end)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toLeaveResponse(leave))
	}
}

func approveLeaveHandler(leaves *scheduling.LeaveService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		leaveID, ok := parseUUIDParam(w, r, "id", "leave_id")
		if !ok {
			return
		}

		var req ResolveLeaveRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
				return
			}
		}

		leave, err := leaves.Approve(r.Context(), leaveID)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		resp := toLeaveResponse(leave)
		if req.CascadeCancel {
			cancelled, err := leaves.CancelAppointmentsDuringLeave(r.Context(), leave.DoctorID, leave.StartDate, leave.EndDate)
			if err != nil {
				handleSchedulingError(w, err)
				return
			}
			resp.CancelledAppointments = &cancelled
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func rejectLeaveHandler(leaves *scheduling.LeaveService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		leaveID, ok := parseUUIDParam(w, r, "id", "leave_id")
		if !ok {
			return
		}

		leave, err := leaves.Reject(r.Context(), leaveID)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toLeaveResponse(leave))
	}
}

func submitEmergencyHandler(emergency *scheduling.EmergencyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubmitEmergencyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		hospitalID, err := uuid.Parse(req.HospitalID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_hospital_id", "hospital_id must be a valid UUID")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		if req.Description == "" {
			writeError(w, http.StatusBadRequest, "invalid_description", "description is required")
			return
		}

		er, err := emergency.Submit(r.Context(), hospitalID, patientID, req.Description)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toEmergencyResponse(er))
	}
}

func emergencyDoctorsHandler(emergency scheduling.EmergencyAssigner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hospitalID, ok := parseUUIDParam(w, r, "id", "hospital_id")
		if !ok {
			return
		}

		doctors, err := emergency.AssignableDoctors(r.Context(), hospitalID)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		resp := make([]DoctorResponse, 0, len(doctors))
		for _, d := range doctors {
			resp = append(resp, DoctorResponse{
				ID:           d.ID,
				HospitalID:   d.HospitalID,
				DepartmentID: d.DepartmentID,
				FullName:     d.FullName,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func assignEmergencyHandler(emergency scheduling.EmergencyAssigner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, ok := parseUUIDParam(w, r, "id", "request_id")
		if !ok {
			return
		}

		var req AssignEmergencyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		er, err := emergency.Assign(r.Context(), requestID, doctorID)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toEmergencyResponse(er))
	}
}

// Shared helpers

func parseUUIDParam(w http.ResponseWriter, r *http.Request, param, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseDateQuery(w http.ResponseWriter, r *http.Request, key string, policy *scheduling.WindowPolicy) (time.Time, bool) {
	raw := r.URL.Query().Get(key)
	date, err := time.ParseInLocation("2006-01-02", raw, policy.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+key, key+" must look like 2006-01-02")
		return time.Time{}, false
	}
	return date, true
}

func parseSlot(w http.ResponseWriter, raw string, policy *scheduling.WindowPolicy) (scheduling.TimeSlot, bool) {
	start, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start", "start must be an RFC 3339 timestamp")
		return scheduling.TimeSlot{}, false
	}
	slot, err := policy.SlotAt(start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_time_window", "start does not align to business hours")
		return scheduling.TimeSlot{}, false
	}
	return slot, true
}

func handleSchedulingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrInvalidTimeWindow):
		writeError(w, http.StatusBadRequest, "invalid_time_window", err.Error())
	case errors.Is(err, scheduling.ErrInvalidLeaveRange):
		writeError(w, http.StatusBadRequest, "invalid_leave_range", err.Error())
	case errors.Is(err, scheduling.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, scheduling.ErrLeavePending):
		writeError(w, http.StatusConflict, "leave_pending", err.Error())
	case errors.Is(err, scheduling.ErrInvalidState):
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, scheduling.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, scheduling.ErrLeaveNotFound):
		writeError(w, http.StatusNotFound, "leave_not_found", err.Error())
	case errors.Is(err, scheduling.ErrEmergencyRequestNotFound):
		writeError(w, http.StatusNotFound, "emergency_request_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
