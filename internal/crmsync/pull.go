package crmsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/velvetbrow/studio/internal/ghl"
	"github.com/velvetbrow/studio/internal/metrics"
	"github.com/velvetbrow/studio/internal/store"
)

const (
	defaultPastDays   = 7
	defaultFutureDays = 90
)

type PullResult struct {
	Synced    int `json:"synced"`
	Failed    int `json:"failed"`
	Deleted   int `json:"deleted"`
	Calendars int `json:"calendars"`
}

// Puller brings CRM appointments into the local store and removes local
// records whose CRM appointment no longer exists.
type Puller struct {
	// Sources are searched for existing links and for deletion candidates.
	Sources []AppointmentSource
	// Target receives appointments that have no local record yet.
	Target AppointmentSource
	CRM    CRM
	Pacer  Pacer

	Location   *time.Location
	PastDays   int
	FutureDays int

	Now    func() time.Time
	Logger *log.Logger
}

func (p *Puller) lg() *log.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return log.Default()
}

func (p *Puller) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Puller) location() *time.Location {
	if p.Location != nil {
		return p.Location
	}
	return time.UTC
}

func (p *Puller) window() (time.Time, time.Time) {
	past, future := p.PastDays, p.FutureDays
	if past <= 0 {
		past = defaultPastDays
	}
	if future <= 0 {
		future = defaultFutureDays
	}
	now := p.now()
	return now.AddDate(0, 0, -past), now.AddDate(0, 0, future)
}

// Run pulls every appointment in the window. Only a failure to list local
// records or calendars aborts the run; everything after that is recovered per
// appointment.
func (p *Puller) Run(ctx context.Context) (*PullResult, error) {
	pacer := p.Pacer
	if pacer == nil {
		pacer = noPacer{}
	}
	start, end := p.window()
	result := &PullResult{}

	locals := make(map[AppointmentSource][]store.Appointment, len(p.Sources))
	for _, src := range p.Sources {
		records, err := src.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", src.Collection(), err)
		}
		locals[src] = records
	}

	calendars, err := p.CRM.ListCalendars(ctx)
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	result.Calendars = len(calendars)

	fetched := make(map[string]ghl.Appointment)
	var order []string
	collect := func(appts []ghl.Appointment) {
		for _, a := range appts {
			if a.ID == "" {
				continue
			}
			if _, seen := fetched[a.ID]; !seen {
				order = append(order, a.ID)
			}
			fetched[a.ID] = a
		}
	}

	// Deletion is inferred from absence. A failed calendar fetch leaves the
	// whole fetched set incomplete; a failed contact fetch only leaves that
	// contact's appointments unknown.
	complete := true
	failedContacts := make(map[string]bool)

	for _, cal := range calendars {
		events, err := p.CRM.ListCalendarEvents(ctx, cal.ID, start, end)
		if err != nil {
			p.lg().Printf("[WARN] [crmsync] pull calendar %s (%s): %v", cal.ID, cal.Name, err)
			complete = false
			continue
		}
		collect(events)
	}

	for _, contactID := range p.contactIDs(fetched, locals) {
		if err := pacer.Wait(ctx); err != nil {
			return result, err
		}
		appts, err := p.CRM.ListContactAppointments(ctx, contactID, start, end)
		if ghl.IsNotFound(err) {
			continue
		}
		if err != nil {
			p.lg().Printf("[WARN] [crmsync] pull contact %s appointments: %v", contactID, err)
			failedContacts[contactID] = true
			continue
		}
		collect(appts)
	}

	p.lg().Printf("[INFO] [crmsync] pull fetched %d appointments from %d calendars", len(order), len(calendars))

	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := p.upsert(ctx, fetched[id]); err != nil {
			p.lg().Printf("[WARN] [crmsync] pull appointment %s failed: %v", id, err)
			result.Failed++
			metrics.RecordSyncOutcome(directionPull, OutcomeFailed)
			continue
		}
		result.Synced++
		metrics.RecordSyncOutcome(directionPull, OutcomeSynced)
	}

	if !complete {
		p.lg().Printf("[WARN] [crmsync] pull skipped deletion: CRM fetch was incomplete")
		return result, nil
	}

	for _, src := range p.Sources {
		for _, appt := range locals[src] {
			if !appt.HasGHLAppointment() {
				continue
			}
			if _, ok := fetched[*appt.GHLAppointmentID]; ok {
				continue
			}
			if appt.HasGHLContact() && failedContacts[*appt.GHLContactID] {
				p.lg().Printf("[WARN] [crmsync] kept %s/%s: appointments of contact %s could not be fetched", src.Collection(), appt.ID, *appt.GHLContactID)
				continue
			}
			if err := src.Delete(ctx, appt.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				p.lg().Printf("[ERROR] [crmsync] delete %s/%s: %v", src.Collection(), appt.ID, err)
				continue
			}
			p.lg().Printf("[INFO] [crmsync] deleted %s/%s (GHL appointment %s no longer exists)", src.Collection(), appt.ID, *appt.GHLAppointmentID)
			result.Deleted++
			metrics.RecordSyncOutcome(directionPull, OutcomeDeleted)
		}
	}

	return result, nil
}

// contactIDs lists the distinct contacts seen in fetched appointments and in
// local records, sorted for a stable request order.
func (p *Puller) contactIDs(fetched map[string]ghl.Appointment, locals map[AppointmentSource][]store.Appointment) []string {
	set := make(map[string]struct{})
	for _, a := range fetched {
		if a.ContactID != "" {
			set[a.ContactID] = struct{}{}
		}
	}
	for _, records := range locals {
		for _, r := range records {
			if r.HasGHLContact() {
				set[*r.GHLContactID] = struct{}{}
			}
		}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// upsert writes one CRM appointment onto the local record linked to it, or
// inserts a new record into Target.
func (p *Puller) upsert(ctx context.Context, a ghl.Appointment) error {
	startAt, err := a.Start()
	if err != nil {
		return fmt.Errorf("start time: %w", err)
	}

	var contact *ghl.Contact
	if a.ContactID != "" {
		contact, err = p.CRM.GetContact(ctx, a.ContactID)
		if err != nil {
			p.lg().Printf("[WARN] [crmsync] contact %s for appointment %s: %v", a.ContactID, a.ID, err)
			contact = nil
		}
	}

	local := p.toLocal(a, contact, startAt)

	for _, src := range p.Sources {
		existing, err := src.FindByGHLAppointmentID(ctx, a.ID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("look up %s: %w", src.Collection(), err)
		}
		if existing.HasGHLContact() && local.GHLContactID == nil {
			local.GHLContactID = existing.GHLContactID
		}
		return src.UpdateFromCRM(ctx, existing.ID, local)
	}

	if p.Target == nil {
		return fmt.Errorf("no target collection for new appointments")
	}
	local.Source = store.SourceGHL
	_, err = p.Target.Insert(ctx, local)
	return err
}

func (p *Puller) toLocal(a ghl.Appointment, contact *ghl.Contact, startAt time.Time) store.Appointment {
	price, depositPaid := ghl.ParseNotes(a.Notes)
	local := startAt.In(p.location())
	now := p.now()
	apptID := a.ID

	appt := store.Appointment{
		ClientName:       clientName(contact),
		ServiceName:      ServiceFromTitle(a.Title),
		Date:             local.Format(dateLayout),
		Time:             local.Format(timeLayout),
		Status:           LocalStatus(a.Status),
		Price:            price,
		DepositPaid:      depositPaid,
		Notes:            a.Notes,
		GHLAppointmentID: &apptID,
		LastSyncedAt:     &now,
	}
	if contact != nil {
		appt.ClientEmail = contact.Email
		appt.ClientPhone = contact.Phone
	}
	if a.ContactID != "" {
		contactID := a.ContactID
		appt.GHLContactID = &contactID
	}
	return appt
}
