package crmsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/velvetbrow/studio/internal/ghl"
	"github.com/velvetbrow/studio/internal/metrics"
	"github.com/velvetbrow/studio/internal/store"
)

// Per-record outcomes.
const (
	OutcomeSynced  = "synced"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
	OutcomeDeleted = "deleted"
)

const (
	reasonAlreadySynced = "already synced"
	reasonClaimed       = "claimed by another sync run"
	reasonContactFailed = "Failed to create/find GHL contact"
	reasonInvalidDate   = "invalid appointment date"
)

const (
	directionPush = "push"
	directionPull = "pull"

	defaultPastCutoff = 7 * 24 * time.Hour
	defaultClaimLease = 15 * time.Minute

	dateTimeLayout = "2006-01-02 15:04"
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04"
)

type PushOptions struct {
	ForceResync bool
}

// SyncResult is the outcome for one local record.
type SyncResult struct {
	Collection       string `json:"collection"`
	ID               string `json:"id"`
	ClientName       string `json:"clientName"`
	Status           string `json:"status"`
	Reason           string `json:"reason,omitempty"`
	GHLContactID     string `json:"ghlContactId,omitempty"`
	GHLAppointmentID string `json:"ghlAppointmentId,omitempty"`
}

type PushResult struct {
	Total   int          `json:"total"`
	Synced  int          `json:"synced"`
	Failed  int          `json:"failed"`
	Skipped int          `json:"skipped"`
	Results []SyncResult `json:"results"`
}

func (r *PushResult) add(res SyncResult) {
	r.Total++
	switch res.Status {
	case OutcomeSynced:
		r.Synced++
	case OutcomeFailed:
		r.Failed++
	case OutcomeSkipped:
		r.Skipped++
	}
	r.Results = append(r.Results, res)
}

// Pusher sends local records that have no CRM appointment to the CRM.
type Pusher struct {
	Sources    []AppointmentSource
	CRM        CRM
	CalendarID string
	Pacer      Pacer
	Location   *time.Location

	// PastCutoff is how far back a record's date may lie before it is skipped.
	PastCutoff time.Duration
	ClaimLease time.Duration

	Now    func() time.Time
	Logger *log.Logger
}

func (p *Pusher) lg() *log.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return log.Default()
}

func (p *Pusher) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pusher) location() *time.Location {
	if p.Location != nil {
		return p.Location
	}
	return time.UTC
}

// Run processes every record of every source in order. Per-record failures
// are recorded and never stop the run; a cancelled ctx stops it between
// records and returns the partial result with ctx's error.
func (p *Pusher) Run(ctx context.Context, opts PushOptions) (*PushResult, error) {
	pacer := p.Pacer
	if pacer == nil {
		pacer = noPacer{}
	}
	runID := uuid.NewString()
	result := &PushResult{Results: []SyncResult{}}

	p.lg().Printf("[INFO] [crmsync] push run %s started (force=%t)", runID, opts.ForceResync)

	for _, src := range p.Sources {
		records, err := src.List(ctx)
		if err != nil {
			return result, fmt.Errorf("list %s: %w", src.Collection(), err)
		}

		for _, appt := range records {
			if err := ctx.Err(); err != nil {
				return result, err
			}

			res, calledCRM := p.pushOne(ctx, src, appt, opts, runID)
			result.add(res)
			metrics.RecordSyncOutcome(directionPush, res.Status)
			if res.Status == OutcomeFailed {
				p.lg().Printf("[WARN] [crmsync] push %s/%s failed: %s", res.Collection, res.ID, res.Reason)
			}

			if calledCRM {
				if err := pacer.Wait(ctx); err != nil {
					return result, err
				}
			}
		}
	}

	p.lg().Printf("[INFO] [crmsync] push run %s finished: total=%d synced=%d failed=%d skipped=%d",
		runID, result.Total, result.Synced, result.Failed, result.Skipped)
	return result, nil
}

// pushOne reconciles one record. calledCRM reports whether any CRM request was made.
func (p *Pusher) pushOne(ctx context.Context, src AppointmentSource, appt store.Appointment, opts PushOptions, runID string) (res SyncResult, calledCRM bool) {
	res = SyncResult{
		Collection:   src.Collection(),
		ID:           appt.ID,
		ClientName:   appt.ClientName,
		GHLContactID: deref(appt.GHLContactID),
	}

	if appt.HasGHLAppointment() && !opts.ForceResync {
		res.Status = OutcomeSkipped
		res.Reason = reasonAlreadySynced
		res.GHLAppointmentID = *appt.GHLAppointmentID
		return res, false
	}

	start, err := p.startTime(appt)
	if err != nil {
		p.stampFailure(ctx, src, appt.ID, "", reasonInvalidDate+": "+err.Error())
		return fail(res, reasonInvalidDate), false
	}

	if !opts.ForceResync && start.Before(p.now().Add(-p.pastCutoff())) {
		if deref(appt.GHLSkippedReason) != store.SkippedPastDate {
			reason := store.SkippedPastDate
			if err := src.ApplySyncUpdate(ctx, appt.ID, store.SyncUpdate{SkippedReason: &reason}); err != nil {
				p.lg().Printf("[ERROR] [crmsync] mark %s/%s past date: %v", res.Collection, appt.ID, err)
			}
		}
		res.Status = OutcomeSkipped
		res.Reason = store.SkippedPastDate
		return res, false
	}

	claimed, err := src.Claim(ctx, appt.ID, runID, opts.ForceResync, p.claimLease())
	if err != nil {
		return fail(res, err.Error()), false
	}
	if !claimed {
		res.Status = OutcomeSkipped
		res.Reason = reasonClaimed
		return res, false
	}

	contactID := deref(appt.GHLContactID)
	if contactID == "" {
		contactID, err = p.resolveContact(ctx, appt)
		if err != nil || contactID == "" {
			if err != nil {
				p.lg().Printf("[WARN] [crmsync] contact for %s/%s: %v", res.Collection, appt.ID, err)
			}
			p.stampFailure(ctx, src, appt.ID, "", reasonContactFailed)
			return fail(res, reasonContactFailed), true
		}
	}
	res.GHLContactID = contactID

	apptID, err := p.CRM.CreateAppointment(ctx, ghl.NewAppointment{
		CalendarID:  p.CalendarID,
		ContactID:   contactID,
		Title:       appointmentTitle(appt),
		Status:      CRMStatus(appt.Status),
		Start:       start,
		ServiceName: appt.ServiceName,
		Price:       appt.Price,
		DepositPaid: appt.DepositPaid,
		Notes:       appt.Notes,
	})
	if err != nil {
		reason := "Failed to create GHL appointment: " + err.Error()
		p.stampFailure(ctx, src, appt.ID, contactID, reason)
		return fail(res, reason), true
	}

	now := p.now()
	update := store.SyncUpdate{
		GHLContactID:     &contactID,
		GHLAppointmentID: &apptID,
		LastSyncedAt:     &now,
		ClearSyncError:   true,
	}
	if err := src.ApplySyncUpdate(ctx, appt.ID, update); err != nil {
		return fail(res, fmt.Sprintf("created GHL appointment %s but could not save it locally: %v", apptID, err)), true
	}

	res.Status = OutcomeSynced
	res.GHLAppointmentID = apptID
	return res, true
}

// resolveContact finds a contact by email, then phone, else creates one.
// Search failures count as no match.
func (p *Pusher) resolveContact(ctx context.Context, appt store.Appointment) (string, error) {
	for _, query := range []string{appt.ClientEmail, appt.ClientPhone} {
		query = strings.TrimSpace(query)
		if query == "" {
			continue
		}
		contacts, err := p.CRM.SearchContacts(ctx, query)
		if err != nil {
			p.lg().Printf("[WARN] [crmsync] search contacts for %s: %v", appt.ID, err)
			continue
		}
		for _, c := range contacts {
			if c.ID != "" {
				return c.ID, nil
			}
		}
	}

	return p.CRM.CreateContact(ctx, ghl.NewContact{
		Name:  appt.ClientName,
		Email: strings.TrimSpace(appt.ClientEmail),
		Phone: strings.TrimSpace(appt.ClientPhone),
	})
}

// stampFailure records the attempt and error on the record, plus the contact
// id when one is already known, and releases the claim.
func (p *Pusher) stampFailure(ctx context.Context, src AppointmentSource, id, contactID, reason string) {
	now := p.now()
	update := store.SyncUpdate{SyncAttempted: &now, SyncError: &reason}
	if contactID != "" {
		update.GHLContactID = &contactID
	}
	if err := src.ApplySyncUpdate(ctx, id, update); err != nil && !errors.Is(err, store.ErrNotFound) {
		p.lg().Printf("[ERROR] [crmsync] record failure on %s/%s: %v", src.Collection(), id, err)
	}
}

// startTime combines the record's date and time in the studio time zone.
func (p *Pusher) startTime(appt store.Appointment) (time.Time, error) {
	t := strings.TrimSpace(appt.Time)
	if t == "" {
		t = defaultTime
	}
	return time.ParseInLocation(dateTimeLayout, strings.TrimSpace(appt.Date)+" "+t, p.location())
}

func (p *Pusher) pastCutoff() time.Duration {
	if p.PastCutoff > 0 {
		return p.PastCutoff
	}
	return defaultPastCutoff
}

func (p *Pusher) claimLease() time.Duration {
	if p.ClaimLease > 0 {
		return p.ClaimLease
	}
	return defaultClaimLease
}

func fail(res SyncResult, reason string) SyncResult {
	res.Status = OutcomeFailed
	res.Reason = reason
	return res
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
