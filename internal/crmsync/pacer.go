package crmsync

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out CRM calls in bulk loops.
type Pacer interface {
	Wait(ctx context.Context) error
}

// NewPacer allows one call per delay. A zero delay disables pacing.
func NewPacer(delay time.Duration) Pacer {
	if delay <= 0 {
		return noPacer{}
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

type noPacer struct{}

func (noPacer) Wait(ctx context.Context) error { return ctx.Err() }
