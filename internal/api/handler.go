// Package api serves the admin JSON endpoints for CRM sync and appointment
// lifecycle changes, plus the public booking confirmation download.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/velvetbrow/studio/internal/auth"
	"github.com/velvetbrow/studio/internal/crmsync"
	"github.com/velvetbrow/studio/internal/ghl"
	"github.com/velvetbrow/studio/internal/ical"
	"github.com/velvetbrow/studio/internal/store"
)

// SyncService is the subset of crmsync.Service the handlers call.
type SyncService interface {
	Push(ctx context.Context, opts crmsync.PushOptions) (*crmsync.PushResult, error)
	Pull(ctx context.Context) (*crmsync.PullResult, error)
	Status(ctx context.Context) (*crmsync.StatusReport, error)
	Calendars(ctx context.Context) ([]ghl.Calendar, error)
	Credentials(ctx context.Context) (crmsync.Credentials, error)
	SaveSettings(ctx context.Context, u crmsync.SettingsUpdate) (crmsync.Credentials, error)
}

// Collections resolves an appointment collection by name.
type Collections interface {
	Collection(name string) (store.AppointmentRepository, error)
}

type Handler struct {
	sync        SyncService
	collections Collections
	location    *time.Location
	event       ical.EventOptions
}

func NewHandler(sync SyncService, collections Collections, loc *time.Location, event ical.EventOptions) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{sync: sync, collections: collections, location: loc, event: event}
}

// AdminRoutes mounts the authenticated endpoints. The caller applies auth.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Route("/crm", func(r chi.Router) {
		r.Post("/sync/push", h.Push)
		r.Post("/sync/pull", h.Pull)
		r.Get("/sync/status", h.Status)
		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.PutSettings)
		r.Get("/calendars", h.Calendars)
	})
	r.Route("/appointments/{collection}/{id}", func(r chi.Router) {
		r.Patch("/status", h.SetStatus)
		r.Post("/cancel", h.Cancel)
		r.Post("/deposit", h.MarkDepositPaid)
	})
}

// PublicRoutes mounts endpoints that need no admin credentials.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/appointments/{collection}/{id}/calendar.ics", h.CalendarFile)
}

// actor names the authenticated admin for audit log lines.
func actor(r *http.Request) string {
	p, ok := auth.PrincipalFromContext(r.Context())
	switch {
	case !ok || p == nil:
		return "anonymous"
	case p.Email != "":
		return p.Email
	case p.Subject != "":
		return p.Method + ":" + p.Subject
	}
	return p.Method
}
