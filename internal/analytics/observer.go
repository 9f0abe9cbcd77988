package analytics

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/dependence"
)

// Tracker buffers events for publishing; *collector.BatchCollector
// implements it.
type Tracker interface {
	Track(key string, value any)
}

// PassObserver is a dependence.Observer that forwards every pass report to
// a Tracker as a PassEvent keyed by query ID. It never blocks the pass.
type PassObserver struct {
	tracker Tracker
	now     func() time.Time
}

var _ dependence.Observer = (*PassObserver)(nil)

func NewPassObserver(t Tracker) *PassObserver {
	return &PassObserver{tracker: t, now: time.Now}
}

func (o *PassObserver) ObserveDependencePass(r dependence.Report, elapsed time.Duration) {
	o.tracker.Track(r.QueryID, NewPassEvent(r, elapsed, o.now()))
}
