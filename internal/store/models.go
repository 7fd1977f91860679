package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// Collection names for the two legacy appointment stores.
const (
	CollectionBookings     = "bookings"
	CollectionAppointments = "appointments"
)

// Appointment statuses as stored locally.
const (
	StatusPendingDeposit = "pending_deposit"
	StatusPending        = "pending"
	StatusConfirmed      = "confirmed"
	StatusCompleted      = "completed"
	StatusCancelled      = "cancelled"
)

// Record sources.
const (
	SourceWebsite = "website"
	SourceGHL     = "ghl"
)

// SkippedPastDate marks records the push direction will not send to the CRM.
const SkippedPastDate = "past_date"

// Appointment is a booking record from either legacy collection. Client fields
// are denormalized copies, not references to a user record.
type Appointment struct {
	ID         string
	Collection string

	ClientName  string
	ClientEmail string
	ClientPhone string
	ServiceName string
	Date        string // YYYY-MM-DD
	Time        string // HH:MM
	Status      string
	Price       decimal.Decimal
	DepositPaid bool
	Notes       string

	GHLContactID       *string
	GHLAppointmentID   *string
	LastSyncedAt       *time.Time
	GHLSyncError       *string
	GHLSyncAttempted   *time.Time
	GHLSkippedReason   *string
	CancellationReason *string

	Source    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasGHLAppointment reports whether the record is linked to a CRM appointment.
func (a Appointment) HasGHLAppointment() bool {
	return a.GHLAppointmentID != nil && *a.GHLAppointmentID != ""
}

// HasGHLContact reports whether the record is linked to a CRM contact.
func (a Appointment) HasGHLContact() bool {
	return a.GHLContactID != nil && *a.GHLContactID != ""
}

// SyncUpdate carries the bookkeeping fields a sync run writes back. Nil fields
// are left untouched. Applying an update always releases the record's sync claim.
type SyncUpdate struct {
	GHLContactID     *string
	GHLAppointmentID *string
	LastSyncedAt     *time.Time
	SyncError        *string
	ClearSyncError   bool
	SyncAttempted    *time.Time
	SkippedReason    *string
}

// CRMSettings is a persisted credential document for the CRM.
type CRMSettings struct {
	ID         string
	APIKey     string
	LocationID string
	CalendarID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
