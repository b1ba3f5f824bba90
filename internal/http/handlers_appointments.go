package http

import (
	"html/template"
	"net/http"

	"bizbalance/internal/core"
	applog "bizbalance/internal/log"
)

func (s *Server) handleAppointments(w http.ResponseWriter, r *http.Request, ownerID string) {
	switch r.Method {
	case http.MethodGet:
		appts, err := s.ledger.Appointments(r.Context(), ownerID)
		if err != nil {
			s.storeFailure(w, r, "Failed to list appointments", err, ownerID)
			return
		}
		if wantsJSON(r) {
			if appts == nil {
				appts = []core.Appointment{}
			}
			writeJSON(w, http.StatusOK, appts)
			return
		}
		s.render(w, r, http.StatusOK, "appointments_list", dashboardData{Appointments: appts})
	case http.MethodPost:
		s.handleCreateAppointment(w, r, ownerID)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

// handleCreateAppointment records an appointment. An end time before the
// start time is accepted as entered.
func (s *Server) handleCreateAppointment(w http.ResponseWriter, r *http.Request, ownerID string) {
	ctx := r.Context()

	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.rejectInput(w, r, http.StatusBadRequest, "Formato de requisição inválido", err)
		return
	}

	a, err := ParseAppointment(p, ownerID)
	if err == nil {
		err = a.Validate()
	}
	if err != nil {
		applog.FromContext(ctx).InfoContext(ctx, "Appointment rejected",
			applog.FieldError, err,
			applog.FieldOwnerID, ownerID,
			"error_type", applog.ErrorTypeValidation)
		s.rejectInput(w, r, http.StatusUnprocessableEntity, validationMessage(err), err)
		return
	}

	saved, err := s.ledger.RecordAppointment(ctx, a)
	if err != nil {
		if isValidationError(err) {
			s.rejectInput(w, r, http.StatusUnprocessableEntity, validationMessage(err), err)
			return
		}
		s.storeFailure(w, r, "Failed to save appointment", err, ownerID)
		return
	}
	s.appMetrics.appointmentsCreated.Add(1)

	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, saved)
		return
	}
	NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerAppointmentCreated(core.FormatDate(saved.Date)).
		TriggerFormReset().
		TriggerSuccessNotification("Compromisso agendado").
		BodyHTML(`<div class="success">Compromisso agendado: ` +
			template.HTMLEscapeString(saved.Title) + ` (` +
			template.HTMLEscapeString(saved.StartTime) + `–` +
			template.HTMLEscapeString(saved.EndTime) + `)</div>`).
		Write(w)
}
