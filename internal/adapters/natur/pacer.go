package natur

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Stage identifies one class of outbound traffic with its own politeness
// budget.
type Stage string

const (
	StageCatalog  Stage = "catalog"
	StageDetail   Stage = "detail"
	StageCalendar Stage = "calendar"
)

// Pacer enforces a minimum interval between consecutive requests per stage.
// It exists purely to be polite to the upstream; a nil Pacer never waits.
type Pacer struct {
	limiters map[Stage]*rate.Limiter
}

// NewPacer builds a pacer from per-stage minimum intervals. A non-positive
// interval leaves that stage ungated.
func NewPacer(catalog, detail, calendar time.Duration) *Pacer {
	p := &Pacer{limiters: map[Stage]*rate.Limiter{}}
	for stage, iv := range map[Stage]time.Duration{
		StageCatalog:  catalog,
		StageDetail:   detail,
		StageCalendar: calendar,
	} {
		if iv > 0 {
			p.limiters[stage] = rate.NewLimiter(rate.Every(iv), 1)
		}
	}
	return p
}

// Wait blocks until the stage's next slot, or until ctx is done.
func (p *Pacer) Wait(ctx context.Context, stage Stage) error {
	if p == nil {
		return ctx.Err()
	}
	l, ok := p.limiters[stage]
	if !ok {
		return ctx.Err()
	}
	return l.Wait(ctx)
}
