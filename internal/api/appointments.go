package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	httperrors "github.com/velvetbrow/studio/internal/http/errors"
	"github.com/velvetbrow/studio/internal/ical"
	"github.com/velvetbrow/studio/internal/store"
)

var validStatuses = map[string]bool{
	store.StatusPendingDeposit: true,
	store.StatusPending:        true,
	store.StatusConfirmed:      true,
	store.StatusCompleted:      true,
	store.StatusCancelled:      true,
}

const maxCancelReason = 500

type statusRequest struct {
	Status string `json:"status"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type appointmentResponse struct {
	Success    bool   `json:"success"`
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Status     string `json:"status"`
}

// repo resolves the {collection} URL parameter.
func (h *Handler) repo(r *http.Request) (store.AppointmentRepository, string, error) {
	repo, err := h.collections.Collection(chi.URLParam(r, "collection"))
	if err != nil {
		return nil, "", err
	}
	return repo, chi.URLParam(r, "id"), nil
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	repo, id, err := h.repo(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httperrors.BadRequestError(w, r, err, "invalid request body")
		return
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if !validStatuses[status] {
		httperrors.Write(w, http.StatusBadRequest, "invalid status")
		return
	}

	if err := repo.SetStatus(r.Context(), id, status); err != nil {
		WriteError(w, r, err)
		return
	}
	httperrors.LogInfo(r, "appointment "+repo.Collection()+"/"+id+" status set to "+status+" by "+actor(r))
	WriteJSON(w, http.StatusOK, appointmentResponse{Success: true, Collection: repo.Collection(), ID: id, Status: status})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	repo, id, err := h.repo(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req cancelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httperrors.BadRequestError(w, r, err, "invalid request body")
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if len(reason) > maxCancelReason {
		httperrors.Write(w, http.StatusBadRequest, "reason is too long")
		return
	}

	if err := repo.Cancel(r.Context(), id, reason); err != nil {
		WriteError(w, r, err)
		return
	}
	httperrors.LogInfo(r, "appointment "+repo.Collection()+"/"+id+" cancelled by "+actor(r))
	WriteJSON(w, http.StatusOK, appointmentResponse{Success: true, Collection: repo.Collection(), ID: id, Status: store.StatusCancelled})
}

func (h *Handler) MarkDepositPaid(w http.ResponseWriter, r *http.Request) {
	repo, id, err := h.repo(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := repo.MarkDepositPaid(r.Context(), id); err != nil {
		WriteError(w, r, err)
		return
	}
	appt, err := repo.Get(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	httperrors.LogInfo(r, "appointment "+repo.Collection()+"/"+id+" deposit marked paid by "+actor(r))
	WriteJSON(w, http.StatusOK, appointmentResponse{Success: true, Collection: repo.Collection(), ID: id, Status: appt.Status})
}

// CalendarFile serves the booking as an .ics attachment.
func (h *Handler) CalendarFile(w http.ResponseWriter, r *http.Request) {
	repo, id, err := h.repo(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	appt, err := repo.Get(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	opts := h.event
	body, err := ical.BuildAppointment(*appt, h.location, &opts)
	if err != nil {
		httperrors.Write(w, http.StatusUnprocessableEntity, "appointment has no valid date")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+ical.Filename(*appt)+`"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
