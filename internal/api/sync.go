package api

import (
	"fmt"
	"net/http"

	"github.com/velvetbrow/studio/internal/crmsync"
	httperrors "github.com/velvetbrow/studio/internal/http/errors"
	"github.com/velvetbrow/studio/internal/metrics"
)

type pushRequest struct {
	ForceResync bool `json:"forceResync"`
}

type pushSummary struct {
	Total   int `json:"total"`
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

type pushResponse struct {
	Success bool                 `json:"success"`
	Summary pushSummary          `json:"summary"`
	Results []crmsync.SyncResult `json:"results"`
	Message string               `json:"message"`
}

type pullResponse struct {
	Success bool `json:"success"`
	crmsync.PullResult
}

type statusResponse struct {
	Success     bool                                `json:"success"`
	Collections map[string]crmsync.CollectionStatus `json:"collections"`
	Totals      crmsync.CollectionStatus            `json:"totals"`
}

func (h *Handler) Push(w http.ResponseWriter, r *http.Request) {
	var req pushRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httperrors.BadRequestError(w, r, err, "invalid request body")
		return
	}

	ctx := metrics.WithRoute(r.Context(), "crm.sync.push")
	result, err := h.sync.Push(ctx, crmsync.PushOptions{ForceResync: req.ForceResync})
	if err != nil {
		WriteError(w, r, err)
		return
	}

	httperrors.LogInfo(r, fmt.Sprintf("crm push by %s (force=%v): %s", actor(r), req.ForceResync, pushMessage(result)))

	results := result.Results
	if results == nil {
		results = []crmsync.SyncResult{}
	}
	WriteJSON(w, http.StatusOK, pushResponse{
		Success: true,
		Summary: pushSummary{
			Total:   result.Total,
			Synced:  result.Synced,
			Failed:  result.Failed,
			Skipped: result.Skipped,
		},
		Results: results,
		Message: pushMessage(result),
	})
}

func pushMessage(r *crmsync.PushResult) string {
	if r.Total == 0 {
		return "No appointments to sync"
	}
	return fmt.Sprintf("Synced %d of %d appointments (%d failed, %d skipped)", r.Synced, r.Total, r.Failed, r.Skipped)
}

func (h *Handler) Pull(w http.ResponseWriter, r *http.Request) {
	ctx := metrics.WithRoute(r.Context(), "crm.sync.pull")
	result, err := h.sync.Pull(ctx)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	httperrors.LogInfo(r, fmt.Sprintf("crm pull by %s: %d synced, %d deleted, %d failed", actor(r), result.Synced, result.Deleted, result.Failed))
	WriteJSON(w, http.StatusOK, pullResponse{Success: true, PullResult: *result})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	report, err := h.sync.Status(metrics.WithRoute(r.Context(), "crm.sync.status"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, statusResponse{
		Success:     true,
		Collections: report.Collections,
		Totals:      report.Totals,
	})
}

func (h *Handler) Calendars(w http.ResponseWriter, r *http.Request) {
	calendars, err := h.sync.Calendars(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "calendars": calendars})
}
