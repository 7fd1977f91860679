package crmsync

import (
	"context"
	"errors"
	"testing"

	"github.com/velvetbrow/studio/internal/config"
	"github.com/velvetbrow/studio/internal/ghl"
	"github.com/velvetbrow/studio/internal/store"
)

type serviceFixture struct {
	svc      *Service
	crm      *fakeCRM
	bookings *fakeRepo
	appts    *fakeRepo
	settings *fakeSettings
	builds   int
}

func newServiceFixture(env Credentials, rows ...store.CRMSettings) *serviceFixture {
	f := &serviceFixture{
		crm:      newFakeCRM(),
		bookings: newFakeRepo(store.CollectionBookings),
		appts:    newFakeRepo(store.CollectionAppointments),
		settings: newFakeSettings(rows...),
	}
	st := &store.Store{Bookings: f.bookings, Appointments: f.appts, CRMSettings: f.settings}
	f.svc = &Service{
		Store:    st,
		Resolver: &CredentialResolver{Settings: f.settings, Env: env, Logger: quietLogger()},
		NewCRM: func(Credentials) CRM {
			f.builds++
			return f.crm
		},
		Now:    fixedNow,
		Logger: quietLogger(),
	}
	return f
}

func TestServiceNotConfiguredMakesNoCalls(t *testing.T) {
	f := newServiceFixture(Credentials{})

	if _, err := f.svc.Push(context.Background(), PushOptions{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Push() error = %v, want ErrNotConfigured", err)
	}
	if _, err := f.svc.Pull(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Pull() error = %v, want ErrNotConfigured", err)
	}
	if _, err := f.svc.Calendars(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Calendars() error = %v, want ErrNotConfigured", err)
	}
	if f.builds != 0 {
		t.Errorf("built %d CRM clients without credentials", f.builds)
	}
}

func TestServiceRejectsOverlappingRuns(t *testing.T) {
	f := newServiceFixture(Credentials{APIKey: "k", LocationID: "l", CalendarID: "cal"})

	f.svc.pushMu.Lock()
	_, err := f.svc.Push(context.Background(), PushOptions{})
	f.svc.pushMu.Unlock()
	if !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("Push() error = %v, want ErrSyncInProgress", err)
	}

	f.svc.pullMu.Lock()
	_, err = f.svc.Pull(context.Background())
	f.svc.pullMu.Unlock()
	if !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("Pull() error = %v, want ErrSyncInProgress", err)
	}
}

func TestServicePushFallsBackToFirstCalendar(t *testing.T) {
	f := newServiceFixture(Credentials{APIKey: "k", LocationID: "l"})
	f.crm.calendars = []ghl.Calendar{{ID: "cal-first", Name: "Studio"}, {ID: "cal-second"}}
	f.bookings.records = append(f.bookings.records, booking("b1", "Jane Doe", "", "", "2025-12-01"))

	result, err := f.svc.Push(context.Background(), PushOptions{})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if result.Synced != 1 {
		t.Fatalf("result = %+v", result)
	}
	if got := f.crm.createdAppts[0].CalendarID; got != "cal-first" {
		t.Errorf("CalendarID = %q, want cal-first", got)
	}
}

func TestServicePushNoCalendar(t *testing.T) {
	f := newServiceFixture(Credentials{APIKey: "k", LocationID: "l"})

	if _, err := f.svc.Push(context.Background(), PushOptions{}); !errors.Is(err, ErrNoCalendar) {
		t.Fatalf("Push() error = %v, want ErrNoCalendar", err)
	}
}

func TestServiceSaveSettings(t *testing.T) {
	f := newServiceFixture(Credentials{}, store.CRMSettings{ID: LegacySettingsID, APIKey: "old-key", LocationID: "old-loc"})

	creds, err := f.svc.SaveSettings(context.Background(), SettingsUpdate{LocationID: "new-loc", CalendarID: "cal-9"})
	if err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
	if creds.APIKey != "old-key" || creds.LocationID != "new-loc" || creds.CalendarID != "cal-9" {
		t.Errorf("creds = %+v", creds)
	}
	if _, ok := f.settings.rows[DefaultSettingsID]; ok {
		t.Errorf("wrote a new row instead of updating the one in use")
	}
}

func TestServiceSaveSettingsRequiresKey(t *testing.T) {
	f := newServiceFixture(Credentials{})

	if _, err := f.svc.SaveSettings(context.Background(), SettingsUpdate{LocationID: "loc"}); !errors.Is(err, ErrAPIKeyRequired) {
		t.Fatalf("SaveSettings() error = %v, want ErrAPIKeyRequired", err)
	}

	creds, err := f.svc.SaveSettings(context.Background(), SettingsUpdate{APIKey: "k", LocationID: "loc"})
	if err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
	if creds.SettingsID != DefaultSettingsID || !creds.Configured() {
		t.Errorf("creds = %+v", creds)
	}
}

func TestServiceStatus(t *testing.T) {
	f := newServiceFixture(Credentials{})
	f.bookings.records = append(f.bookings.records, linked("b1", "ghl-1"))

	report, err := f.svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if report.Totals.Synced != 1 {
		t.Errorf("totals = %+v", report.Totals)
	}
}

func TestNewServiceFromConfig(t *testing.T) {
	cfg := &config.Config{Timezone: "UTC"}
	cfg.GHL.APIKey = "env-key"
	cfg.GHL.LocationID = "loc-env"
	cfg.GHL.BaseURL = "https://ghl.test"
	cfg.GHL.PastDays = 3
	cfg.GHL.FutureDays = 30

	settings := newFakeSettings()
	st := &store.Store{Bookings: newFakeRepo(store.CollectionBookings), Appointments: newFakeRepo(store.CollectionAppointments), CRMSettings: settings}
	svc := NewService(cfg, st)
	svc.Resolver.Logger = quietLogger()

	creds, err := svc.Credentials(context.Background())
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if creds.Source != SourceEnv || creds.LocationID != "loc-env" {
		t.Errorf("creds = %+v", creds)
	}
	if svc.PastDays != 3 || svc.FutureDays != 30 {
		t.Errorf("window = %d/%d", svc.PastDays, svc.FutureDays)
	}
	client, ok := svc.NewCRM(creds).(*ghl.Client)
	if !ok {
		t.Fatalf("NewCRM returned %T", svc.NewCRM(creds))
	}
	if client.BaseURL != "https://ghl.test" || client.LocationID != "loc-env" {
		t.Errorf("client = %+v", client)
	}
}
