package crmsync

import (
	"context"
	"fmt"

	"github.com/velvetbrow/studio/internal/store"
)

type CollectionStatus struct {
	Total    int `json:"total"`
	Synced   int `json:"synced"`
	Unsynced int `json:"unsynced"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

func (c *CollectionStatus) addAll(o CollectionStatus) {
	c.Total += o.Total
	c.Synced += o.Synced
	c.Unsynced += o.Unsynced
	c.Failed += o.Failed
	c.Skipped += o.Skipped
}

type StatusReport struct {
	Collections map[string]CollectionStatus `json:"collections"`
	Totals      CollectionStatus            `json:"totals"`
}

// BuildStatus summarizes push progress from the bookkeeping fields alone; it
// makes no CRM calls and no writes. A record skipped as past_date counts as
// both skipped and synced so progress reaches 100%, which means the counters
// do not partition Total.
func BuildStatus(ctx context.Context, sources []AppointmentSource) (*StatusReport, error) {
	report := &StatusReport{Collections: make(map[string]CollectionStatus, len(sources))}

	for _, src := range sources {
		records, err := src.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", src.Collection(), err)
		}

		var cs CollectionStatus
		for _, r := range records {
			cs.Total++
			switch {
			case r.HasGHLAppointment():
				cs.Synced++
			case deref(r.GHLSkippedReason) == store.SkippedPastDate:
				cs.Skipped++
				cs.Synced++
			case deref(r.GHLSyncError) != "":
				cs.Failed++
			default:
				cs.Unsynced++
			}
		}
		report.Collections[src.Collection()] = cs
		report.Totals.addAll(cs)
	}
	return report, nil
}
