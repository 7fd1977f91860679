package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/velvetbrow/studio/internal/crmsync"
	httperrors "github.com/velvetbrow/studio/internal/http/errors"
	"github.com/velvetbrow/studio/internal/store"
)

// maxBodyBytes bounds admin JSON request bodies.
const maxBodyBytes = 64 << 10

// WriteJSON marshals v as JSON and writes it to w with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ERROR] failed to write JSON response: %v", err)
	}
}

// WriteError maps domain errors to a status and writes the JSON error body.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, crmsync.ErrNotConfigured):
		httperrors.Write(w, http.StatusServiceUnavailable, "GoHighLevel is not configured")
	case errors.Is(err, crmsync.ErrNoCalendar):
		httperrors.Write(w, http.StatusServiceUnavailable, "no GoHighLevel calendar available for this location")
	case errors.Is(err, crmsync.ErrSyncInProgress):
		httperrors.Write(w, http.StatusConflict, "a sync in this direction is already running")
	case errors.Is(err, crmsync.ErrAPIKeyRequired):
		httperrors.Write(w, http.StatusBadRequest, "apiKey is required")
	case errors.Is(err, store.ErrUnknownCollection):
		httperrors.Write(w, http.StatusBadRequest, "unknown collection")
	case errors.Is(err, store.ErrNotFound):
		httperrors.Write(w, http.StatusNotFound, "not found")
	default:
		httperrors.InternalError(w, r, err, "request failed")
	}
}

// decodeJSON reads an optional JSON body into dst, ignoring fields dst does
// not declare. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeBody(w, r, dst, false)
}

// decodeStrictJSON is decodeJSON that rejects unknown fields, for bodies
// where a misspelled key would silently drop a setting.
func decodeStrictJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeBody(w, r, dst, true)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any, strict bool) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
