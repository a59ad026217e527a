// internal/web/pages.go
package web

import (
	"net/http"

	apperrors "cancercare-web/internal/common/errors"
	"cancercare-web/internal/notify"
)

const (
	msgContactSent   = "Thank you for your message. We will get back to you soon."
	msgContactFailed = "We could not send your message. Please try again later."
	msgChooseRole    = "Please choose either Patient or Clinician."
	msgBookingFailed = "We could not schedule your appointment. Please try again later."
	maxFormBytes     = 1 << 20
)

type contactForm struct {
	Name    string
	Email   string
	Message string
}

type appointmentForm struct {
	Date   string
	Reason string
}

// Role redirect targets.
var roleTargets = map[string]string{
	"patient":   "/patient-dashboard",
	"clinician": "/upload-form",
}

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageIndex, page{Data: contactForm{}})
}

func (h *Handler) Contact(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, pageIndex, page{Error: msgContactFailed, Data: contactForm{}})
		return
	}
	form := contactForm{
		Name:    r.PostForm.Get("name"),
		Email:   r.PostForm.Get("email"),
		Message: r.PostForm.Get("message"),
	}

	err := h.sendContact(r, form)
	switch {
	case err == nil:
		h.render(w, r, http.StatusOK, pageIndex, page{Notice: msgContactSent, Data: contactForm{}})
	case apperrors.IsCode(err, apperrors.ErrCodeValidationFailed):
		h.render(w, r, http.StatusBadRequest, pageIndex, page{Error: apperrors.Normalize(err).Message, Data: form})
	default:
		h.errors.Log(r, err)
		h.render(w, r, http.StatusBadGateway, pageIndex, page{Error: msgContactFailed, Data: form})
	}
}

func (h *Handler) sendContact(r *http.Request, form contactForm) error {
	if h.deps.Notifier == nil {
		return apperrors.NewInternalError(errNoNotifier)
	}
	return h.deps.Notifier.SendContact(r.Context(), notify.ContactMessage{
		Name:    form.Name,
		Email:   form.Email,
		Message: form.Message,
	})
}

func (h *Handler) RoleSelection(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageRoleSelection, page{})
}

func (h *Handler) SelectRole(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	_ = r.ParseForm()

	target, ok := roleTargets[r.PostForm.Get("role")]
	if !ok {
		h.render(w, r, http.StatusBadRequest, pageRoleSelection, page{Error: msgChooseRole})
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) PatientDashboard(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pagePatientDashboard, page{})
}

func (h *Handler) ProgressTracking(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageProgressTracking, page{Data: appointmentForm{}})
}

func (h *Handler) ScheduleAppointment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	_ = r.ParseForm()
	form := appointmentForm{
		Date:   r.PostForm.Get("date"),
		Reason: r.PostForm.Get("reason"),
	}

	if h.deps.Notifier == nil {
		h.errors.Log(r, errNoNotifier)
		h.render(w, r, http.StatusBadGateway, pageProgressTracking, page{Error: msgBookingFailed, Data: form})
		return
	}

	confirmation, err := h.deps.Notifier.ScheduleAppointment(r.Context(), notify.Appointment{
		Date:   form.Date,
		Reason: form.Reason,
	})
	switch {
	case err == nil:
		h.render(w, r, http.StatusOK, pageProgressTracking, page{Notice: confirmation, Data: appointmentForm{}})
	case apperrors.IsCode(err, apperrors.ErrCodeValidationFailed):
		h.render(w, r, http.StatusBadRequest, pageProgressTracking, page{Error: apperrors.Normalize(err).Message, Data: form})
	default:
		h.errors.Log(r, err)
		h.render(w, r, http.StatusBadGateway, pageProgressTracking, page{Error: msgBookingFailed, Data: form})
	}
}
