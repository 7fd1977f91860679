package api

import (
	"net/http"
	"strings"

	"github.com/velvetbrow/studio/internal/crmsync"
	httperrors "github.com/velvetbrow/studio/internal/http/errors"
)

type settingsResponse struct {
	Configured bool   `json:"configured"`
	HasAPIKey  bool   `json:"hasApiKey"`
	LocationID string `json:"locationId"`
	CalendarID string `json:"calendarId"`
	Source     string `json:"source"`
}

type settingsRequest struct {
	APIKey     string `json:"apiKey"`
	LocationID string `json:"locationId"`
	CalendarID string `json:"calendarId"`
}

func toSettingsResponse(c crmsync.Credentials) settingsResponse {
	return settingsResponse{
		Configured: c.Configured(),
		HasAPIKey:  c.APIKey != "",
		LocationID: c.LocationID,
		CalendarID: c.CalendarID,
		Source:     c.Source,
	}
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	creds, err := h.sync.Credentials(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, toSettingsResponse(creds))
}

func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeStrictJSON(w, r, &req); err != nil {
		httperrors.BadRequestError(w, r, err, "invalid request body")
		return
	}
	req.LocationID = strings.TrimSpace(req.LocationID)
	if req.LocationID == "" {
		httperrors.Write(w, http.StatusBadRequest, "locationId is required")
		return
	}

	creds, err := h.sync.SaveSettings(r.Context(), crmsync.SettingsUpdate{
		APIKey:     strings.TrimSpace(req.APIKey),
		LocationID: req.LocationID,
		CalendarID: strings.TrimSpace(req.CalendarID),
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	httperrors.LogInfo(r, "crm settings for location "+creds.LocationID+" saved by "+actor(r))
	WriteJSON(w, http.StatusOK, toSettingsResponse(creds))
}
