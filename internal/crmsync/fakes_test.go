package crmsync

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/velvetbrow/studio/internal/ghl"
	"github.com/velvetbrow/studio/internal/store"
)

var testNow = time.Date(2025, 11, 20, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func strPtr(s string) *string { return &s }

// fakeRepo is an in-memory AppointmentRepository with the same claim rules
// as the SQL implementation.
type fakeRepo struct {
	mu      sync.Mutex
	name    string
	records []store.Appointment
	claims  map[string]string
	listErr error
	updates map[string]int
	nextID  int
}

func newFakeRepo(name string, records ...store.Appointment) *fakeRepo {
	r := &fakeRepo{name: name, claims: map[string]string{}, updates: map[string]int{}}
	for _, rec := range records {
		rec.Collection = name
		r.records = append(r.records, rec)
	}
	return r
}

func (r *fakeRepo) find(id string) (int, bool) {
	for i := range r.records {
		if r.records[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

func (r *fakeRepo) get(id string) store.Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.find(id)
	if !ok {
		return store.Appointment{}
	}
	return r.records[i]
}

func (r *fakeRepo) has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.find(id)
	return ok
}

func (r *fakeRepo) Collection() string { return r.name }

func (r *fakeRepo) List(ctx context.Context) ([]store.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]store.Appointment, len(r.records))
	copy(out, r.records)
	return out, nil
}

func (r *fakeRepo) Get(ctx context.Context, id string) (*store.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.find(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	a := r.records[i]
	return &a, nil
}

func (r *fakeRepo) FindByGHLAppointmentID(ctx context.Context, ghlID string) (*store.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.records {
		if a.GHLAppointmentID != nil && *a.GHLAppointmentID == ghlID {
			found := a
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *fakeRepo) Insert(ctx context.Context, a store.Appointment) (*store.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == "" {
		r.nextID++
		a.ID = fmt.Sprintf("%s-new-%d", r.name, r.nextID)
	}
	a.Collection = r.name
	r.records = append(r.records, a)
	return &a, nil
}

func (r *fakeRepo) UpdateFromCRM(ctx context.Context, id string, a store.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.find(id)
	if !ok {
		return store.ErrNotFound
	}
	cur := r.records[i]
	a.ID, a.Collection, a.Source, a.CreatedAt = cur.ID, cur.Collection, cur.Source, cur.CreatedAt
	a.GHLSyncError = nil
	r.records[i] = a
	return nil
}

func (r *fakeRepo) ApplySyncUpdate(ctx context.Context, id string, u store.SyncUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.find(id)
	if !ok {
		return store.ErrNotFound
	}
	a := &r.records[i]
	if u.GHLContactID != nil {
		a.GHLContactID = u.GHLContactID
	}
	if u.GHLAppointmentID != nil {
		a.GHLAppointmentID = u.GHLAppointmentID
	}
	if u.LastSyncedAt != nil {
		a.LastSyncedAt = u.LastSyncedAt
	}
	if u.ClearSyncError {
		a.GHLSyncError = nil
	} else if u.SyncError != nil {
		a.GHLSyncError = u.SyncError
	}
	if u.SyncAttempted != nil {
		a.GHLSyncAttempted = u.SyncAttempted
	}
	if u.SkippedReason != nil {
		a.GHLSkippedReason = u.SkippedReason
	}
	delete(r.claims, id)
	r.updates[id]++
	return nil
}

func (r *fakeRepo) Claim(ctx context.Context, id, runID string, force bool, lease time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.find(id)
	if !ok {
		return false, nil
	}
	if !force && r.records[i].HasGHLAppointment() {
		return false, nil
	}
	if holder, held := r.claims[id]; held && holder != runID {
		return false, nil
	}
	r.claims[id] = runID
	return true, nil
}

func (r *fakeRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.find(id)
	if !ok {
		return store.ErrNotFound
	}
	r.records = append(r.records[:i], r.records[i+1:]...)
	return nil
}

func (r *fakeRepo) SetStatus(ctx context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.find(id)
	if !ok {
		return store.ErrNotFound
	}
	r.records[i].Status = status
	return nil
}

func (r *fakeRepo) Cancel(ctx context.Context, id, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.find(id)
	if !ok {
		return store.ErrNotFound
	}
	r.records[i].Status = store.StatusCancelled
	r.records[i].CancellationReason = &reason
	return nil
}

func (r *fakeRepo) MarkDepositPaid(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.find(id)
	if !ok {
		return store.ErrNotFound
	}
	r.records[i].DepositPaid = true
	if r.records[i].Status == store.StatusPendingDeposit {
		r.records[i].Status = store.StatusConfirmed
	}
	return nil
}

type fakeSettings struct {
	rows     map[string]store.CRMSettings
	order    []string
	firstErr error
}

func newFakeSettings(rows ...store.CRMSettings) *fakeSettings {
	s := &fakeSettings{rows: map[string]store.CRMSettings{}}
	for _, row := range rows {
		s.rows[row.ID] = row
		s.order = append(s.order, row.ID)
	}
	return s
}

func (s *fakeSettings) First(ctx context.Context) (*store.CRMSettings, error) {
	if s.firstErr != nil {
		return nil, s.firstErr
	}
	for _, id := range s.order {
		if row := s.rows[id]; row.APIKey != "" {
			return &row, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeSettings) GetByID(ctx context.Context, id string) (*store.CRMSettings, error) {
	row, ok := s.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &row, nil
}

func (s *fakeSettings) Upsert(ctx context.Context, row store.CRMSettings) (*store.CRMSettings, error) {
	if _, ok := s.rows[row.ID]; !ok {
		s.order = append(s.order, row.ID)
	}
	s.rows[row.ID] = row
	return &row, nil
}

// fakeCRM records every call and serves canned calendars and appointments.
type fakeCRM struct {
	mu sync.Mutex

	contacts     map[string]ghl.Contact
	search       map[string]string
	calendars    []ghl.Calendar
	events       map[string][]ghl.Appointment
	contactAppts map[string][]ghl.Appointment

	failContactFor     map[string]bool
	failAppointmentFor map[string]bool
	failCalendar       map[string]bool
	contactApptErr     map[string]error
	listCalendarsErr   error

	searches        []string
	createdContacts []ghl.NewContact
	createdAppts    []ghl.NewAppointment
	nextID          int
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{
		contacts:           map[string]ghl.Contact{},
		search:             map[string]string{},
		events:             map[string][]ghl.Appointment{},
		contactAppts:       map[string][]ghl.Appointment{},
		failContactFor:     map[string]bool{},
		failAppointmentFor: map[string]bool{},
		failCalendar:       map[string]bool{},
		contactApptErr:     map[string]error{},
	}
}

func (f *fakeCRM) networkCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searches) + len(f.createdContacts) + len(f.createdAppts)
}

func (f *fakeCRM) SearchContacts(ctx context.Context, query string) ([]ghl.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, query)
	if id, ok := f.search[strings.ToLower(query)]; ok {
		return []ghl.Contact{f.contacts[id]}, nil
	}
	return nil, nil
}

func (f *fakeCRM) CreateContact(ctx context.Context, nc ghl.NewContact) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdContacts = append(f.createdContacts, nc)
	if f.failContactFor[nc.Name] {
		return "", &ghl.APIError{Method: "POST", Path: "/contacts/", StatusCode: 422, Body: `{"message":"invalid"}`}
	}
	f.nextID++
	id := fmt.Sprintf("contact-%d", f.nextID)
	f.contacts[id] = ghl.Contact{ID: id, Name: nc.Name, Email: nc.Email, Phone: nc.Phone}
	return id, nil
}

func (f *fakeCRM) GetContact(ctx context.Context, id string) (*ghl.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeCRM) ListCalendars(ctx context.Context) ([]ghl.Calendar, error) {
	if f.listCalendarsErr != nil {
		return nil, f.listCalendarsErr
	}
	return f.calendars, nil
}

func (f *fakeCRM) ListCalendarEvents(ctx context.Context, calendarID string, start, end time.Time) ([]ghl.Appointment, error) {
	if f.failCalendar[calendarID] {
		return nil, &ghl.APIError{Method: "GET", Path: "/calendars/events", StatusCode: 500}
	}
	return f.events[calendarID], nil
}

func (f *fakeCRM) ListContactAppointments(ctx context.Context, contactID string, start, end time.Time) ([]ghl.Appointment, error) {
	if err := f.contactApptErr[contactID]; err != nil {
		return nil, err
	}
	return f.contactAppts[contactID], nil
}

func (f *fakeCRM) CreateAppointment(ctx context.Context, na ghl.NewAppointment) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdAppts = append(f.createdAppts, na)
	if f.failAppointmentFor[na.ContactID] {
		return "", &ghl.APIError{Method: "POST", Path: "/calendars/events/appointments", StatusCode: 400, Body: "slot unavailable"}
	}
	f.nextID++
	return fmt.Sprintf("appt-%d", f.nextID), nil
}

func (f *fakeCRM) contactWith(id, email string) ghl.Contact {
	return ghl.Contact{ID: id, Email: email}
}
