package crmsync

import (
	"context"
	"log"
	"time"

	"github.com/velvetbrow/studio/internal/ghl"
)

// CRM is the set of remote operations the reconciler uses. *ghl.Client
// implements it.
type CRM interface {
	SearchContacts(ctx context.Context, query string) ([]ghl.Contact, error)
	CreateContact(ctx context.Context, nc ghl.NewContact) (string, error)
	GetContact(ctx context.Context, id string) (*ghl.Contact, error)
	ListCalendars(ctx context.Context) ([]ghl.Calendar, error)
	ListCalendarEvents(ctx context.Context, calendarID string, start, end time.Time) ([]ghl.Appointment, error)
	ListContactAppointments(ctx context.Context, contactID string, start, end time.Time) ([]ghl.Appointment, error)
	CreateAppointment(ctx context.Context, na ghl.NewAppointment) (string, error)
}

// ClientFactory builds a CRM client for resolved credentials.
type ClientFactory func(creds Credentials) CRM

// NewGHLFactory returns a factory for real GoHighLevel clients. An empty
// baseURL keeps the public API host.
func NewGHLFactory(baseURL string, logger *log.Logger) ClientFactory {
	return func(creds Credentials) CRM {
		c := ghl.NewClient(creds.APIKey, creds.LocationID)
		if baseURL != "" {
			c.BaseURL = baseURL
		}
		c.Logger = logger
		return c
	}
}
