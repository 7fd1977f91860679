package store

import (
	"context"
	"time"
)

// AppointmentRepository is one appointment collection. Both legacy collections
// share this interface and differ only by table.
type AppointmentRepository interface {
	Collection() string
	List(ctx context.Context) ([]Appointment, error)
	Get(ctx context.Context, id string) (*Appointment, error)
	FindByGHLAppointmentID(ctx context.Context, ghlID string) (*Appointment, error)
	Insert(ctx context.Context, appt Appointment) (*Appointment, error)
	UpdateFromCRM(ctx context.Context, id string, appt Appointment) error
	ApplySyncUpdate(ctx context.Context, id string, update SyncUpdate) error
	Claim(ctx context.Context, id, runID string, force bool, lease time.Duration) (bool, error)
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id, status string) error
	Cancel(ctx context.Context, id, reason string) error
	MarkDepositPaid(ctx context.Context, id string) error
}

// CRMSettingsRepository stores CRM credential documents.
type CRMSettingsRepository interface {
	First(ctx context.Context) (*CRMSettings, error)
	GetByID(ctx context.Context, id string) (*CRMSettings, error)
	Upsert(ctx context.Context, settings CRMSettings) (*CRMSettings, error)
}
