package crmsync

import (
	"context"
	"time"

	"github.com/velvetbrow/studio/internal/store"
)

// AppointmentSource is one local appointment collection as the reconciler
// sees it. Both legacy collections are served by the same adapter type.
type AppointmentSource interface {
	Collection() string
	List(ctx context.Context) ([]store.Appointment, error)
	FindByGHLAppointmentID(ctx context.Context, ghlID string) (*store.Appointment, error)
	Insert(ctx context.Context, appt store.Appointment) (*store.Appointment, error)
	UpdateFromCRM(ctx context.Context, id string, appt store.Appointment) error
	ApplySyncUpdate(ctx context.Context, id string, update store.SyncUpdate) error
	Claim(ctx context.Context, id, runID string, force bool, lease time.Duration) (bool, error)
	Delete(ctx context.Context, id string) error
}

func sourcesOf(s *store.Store) []AppointmentSource {
	repos := s.Collections()
	out := make([]AppointmentSource, 0, len(repos))
	for _, r := range repos {
		out = append(out, r)
	}
	return out
}
