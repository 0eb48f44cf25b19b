// Package rollover closes out calendar months: when a new month begins,
// the previous month's podium is computed once and recorded under its
// month key.
package rollover

import (
	"time"

	"github.com/fridgegames/leaderboard-engine/internal/model"
	"github.com/fridgegames/leaderboard-engine/internal/podium"
)

// Controller decides when the previous calendar month needs its podium
// snapshot. Now is injectable so month boundaries can be tested without
// waiting for them.
type Controller struct {
	Now func() time.Time
}

// New returns a controller running on the real clock.
func New() *Controller {
	return &Controller{Now: time.Now}
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// MonthKey formats t's UTC calendar month as "YYYY-MM".
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// PrevMonthKey returns the month key of the calendar month immediately
// before t: the first of t's month minus one day, which carries year
// boundaries correctly.
func PrevMonthKey(t time.Time) string {
	t = t.UTC()
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return MonthKey(first.AddDate(0, 0, -1))
}

// Apply runs the automatic rollover check against doc. When the previous
// month has no winners entry yet and the current users produce a non-empty
// podium, that podium is recorded under the previous month's key. The
// evaluation marker then advances to the current month whether or not a
// snapshot was written; membership in MonthlyWinners, not the marker, is
// what keeps a closed month closed. Reports whether doc was changed.
func (c *Controller) Apply(doc *model.Document) bool {
	now := c.now()
	cur := MonthKey(now)
	if doc.LastMonthClosed == cur {
		return false
	}

	prev := PrevMonthKey(now)
	if _, closed := doc.MonthlyWinners[prev]; !closed {
		if p := podium.Compute(doc.Users, podium.DefaultSize); len(p) > 0 {
			doc.MonthlyWinners[prev] = &model.MonthlyWinners{
				Podium:   p,
				ClosedAt: now.UTC(),
			}
		}
	}

	doc.LastMonthClosed = cur
	return true
}

// Result reports the outcome of a manual month close.
type Result struct {
	Month         string
	Podium        []model.PodiumEntry
	AlreadyClosed bool
}

// Close runs the manual month close against doc. It evaluates the actual
// previous month relative to now, ignoring the evaluation marker. An
// already-closed month leaves doc untouched (callers skip persisting in
// that case). Otherwise the podium is computed and, when non-empty,
// recorded; a month with no users is never recorded and stays open. The
// marker is stamped with the current month on every mutating pass, which
// keeps this path consistent with the automatic one.
func (c *Controller) Close(doc *model.Document) Result {
	now := c.now()
	prev := PrevMonthKey(now)

	if _, closed := doc.MonthlyWinners[prev]; closed {
		return Result{Month: prev, AlreadyClosed: true}
	}

	p := podium.Compute(doc.Users, podium.DefaultSize)
	if len(p) > 0 {
		doc.MonthlyWinners[prev] = &model.MonthlyWinners{
			Podium:   p,
			ClosedAt: now.UTC(),
		}
	}
	doc.LastMonthClosed = MonthKey(now)
	if p == nil {
		// Callers serialize the podium; an empty month reports [] rather
		// than null.
		p = []model.PodiumEntry{}
	}
	return Result{Month: prev, Podium: p}
}
