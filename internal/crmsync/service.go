package crmsync

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/velvetbrow/studio/internal/config"
	"github.com/velvetbrow/studio/internal/ghl"
	"github.com/velvetbrow/studio/internal/metrics"
	"github.com/velvetbrow/studio/internal/store"
)

// DefaultSettingsID is the settings row written when no row is in use yet.
const DefaultSettingsID = "default"

// Service wires credential resolution, the CRM client and the store into the
// two sync directions. Each direction runs at most once at a time per process.
type Service struct {
	Store    *store.Store
	Resolver *CredentialResolver
	NewCRM   ClientFactory

	Location   *time.Location
	SyncDelay  time.Duration
	PastDays   int
	FutureDays int

	Now    func() time.Time
	Logger *log.Logger

	pushMu sync.Mutex
	pullMu sync.Mutex
}

// NewService builds a Service from the process configuration.
func NewService(cfg *config.Config, st *store.Store) *Service {
	return &Service{
		Store: st,
		Resolver: &CredentialResolver{
			Settings: st.CRMSettings,
			Env: Credentials{
				APIKey:     cfg.GHL.APIKey,
				LocationID: cfg.GHL.LocationID,
				CalendarID: cfg.GHL.CalendarID,
			},
		},
		NewCRM:     NewGHLFactory(cfg.GHL.BaseURL, nil),
		Location:   cfg.Location(),
		SyncDelay:  cfg.GHL.SyncDelay,
		PastDays:   cfg.GHL.PastDays,
		FutureDays: cfg.GHL.FutureDays,
	}
}

func (s *Service) lg() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}

// client resolves credentials and builds a CRM client for them.
func (s *Service) client(ctx context.Context) (CRM, Credentials, error) {
	creds, err := s.Resolver.Resolve(ctx)
	if err != nil {
		return nil, Credentials{}, err
	}
	if !creds.Configured() {
		return nil, creds, ErrNotConfigured
	}
	return s.NewCRM(creds), creds, nil
}

// Push runs the store to CRM direction.
func (s *Service) Push(ctx context.Context, opts PushOptions) (*PushResult, error) {
	if !s.pushMu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.pushMu.Unlock()

	crm, creds, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	calendarID, err := s.calendarID(ctx, crm, creds)
	if err != nil {
		metrics.RecordSyncRun(directionPush, "error")
		return nil, err
	}

	p := &Pusher{
		Sources:    sourcesOf(s.Store),
		CRM:        crm,
		CalendarID: calendarID,
		Pacer:      NewPacer(s.SyncDelay),
		Location:   s.Location,
		Now:        s.Now,
		Logger:     s.Logger,
	}
	result, err := p.Run(ctx, opts)
	recordRun(directionPush, err)
	return result, err
}

// Pull runs the CRM to store direction.
func (s *Service) Pull(ctx context.Context) (*PullResult, error) {
	if !s.pullMu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.pullMu.Unlock()

	crm, _, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	p := &Puller{
		Sources:    sourcesOf(s.Store),
		Target:     s.Store.Appointments,
		CRM:        crm,
		Pacer:      NewPacer(s.SyncDelay),
		Location:   s.Location,
		PastDays:   s.PastDays,
		FutureDays: s.FutureDays,
		Now:        s.Now,
		Logger:     s.Logger,
	}
	result, err := p.Run(ctx)
	recordRun(directionPull, err)
	return result, err
}

// Status reports push progress without touching the CRM.
func (s *Service) Status(ctx context.Context) (*StatusReport, error) {
	return BuildStatus(ctx, sourcesOf(s.Store))
}

// Calendars lists the calendars of the configured location.
func (s *Service) Calendars(ctx context.Context) ([]ghl.Calendar, error) {
	crm, _, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	return crm.ListCalendars(ctx)
}

// Credentials returns the currently resolved credentials.
func (s *Service) Credentials(ctx context.Context) (Credentials, error) {
	return s.Resolver.Resolve(ctx)
}

// SettingsUpdate is an admin change to the stored credentials. An empty
// APIKey keeps the stored key.
type SettingsUpdate struct {
	APIKey     string
	LocationID string
	CalendarID string
}

// SaveSettings writes to the settings row the resolver currently reads from,
// or to DefaultSettingsID when credentials come from the environment.
func (s *Service) SaveSettings(ctx context.Context, u SettingsUpdate) (Credentials, error) {
	current, err := s.Resolver.Resolve(ctx)
	if err != nil {
		return Credentials{}, err
	}

	row := store.CRMSettings{
		ID:         DefaultSettingsID,
		APIKey:     u.APIKey,
		LocationID: u.LocationID,
		CalendarID: u.CalendarID,
	}
	if current.Source == SourceSettings && current.SettingsID != "" {
		row.ID = current.SettingsID
		if row.APIKey == "" {
			row.APIKey = current.APIKey
		}
	}
	if row.APIKey == "" {
		return Credentials{}, ErrAPIKeyRequired
	}

	if _, err := s.Store.CRMSettings.Upsert(ctx, row); err != nil {
		return Credentials{}, fmt.Errorf("save crm settings: %w", err)
	}
	s.lg().Printf("[INFO] [crmsync] crm settings %q updated", row.ID)
	return s.Resolver.Resolve(ctx)
}

// calendarID prefers the configured calendar, else the location's first.
func (s *Service) calendarID(ctx context.Context, crm CRM, creds Credentials) (string, error) {
	if creds.CalendarID != "" {
		return creds.CalendarID, nil
	}
	calendars, err := crm.ListCalendars(ctx)
	if err != nil {
		return "", fmt.Errorf("list calendars: %w", err)
	}
	for _, c := range calendars {
		if c.ID != "" {
			s.lg().Printf("[INFO] [crmsync] no calendar configured, using %s (%s)", c.ID, c.Name)
			return c.ID, nil
		}
	}
	return "", ErrNoCalendar
}

func recordRun(direction string, err error) {
	if err != nil {
		metrics.RecordSyncRun(direction, "error")
		return
	}
	metrics.RecordSyncRun(direction, "ok")
}
