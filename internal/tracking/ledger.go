// Package tracking implements the per-author time-tracking state machine:
// a sequence of kind-1650 events yields a current active task per author
// and a set of derived (author, task, interval) tuples that the aggregator
// rolls up into "time" and "rtime".
package tracking

import "github.com/xeruf/mostr/internal/nostrevent"

// Interval is one (author, start, end?) tracking span. End is nil while
// the interval is still open.
type Interval struct {
	Author string
	TaskID string
	Start  int64
	End    *int64
}

// Open reports whether the interval has not yet been closed by a
// subsequent kind-1650 event from the same author.
func (iv Interval) Open() bool {
	return iv.End == nil
}

// Ledger is the time-tracking state machine. It is not safe for concurrent
// use; the core that owns it stays single-threaded by design.
type Ledger struct {
	eventsByAuthor    map[string][]nostrevent.Event
	intervalsByAuthor map[string][]Interval
	latestEventAt     int64
}

func NewLedger() *Ledger {
	return &Ledger{
		eventsByAuthor:    make(map[string][]nostrevent.Event),
		intervalsByAuthor: make(map[string][]Interval),
	}
}

// Apply records a kind-1650 event and recomputes that author's interval
// history from scratch. Recomputing from scratch (rather than patching in
// place) is cheap because per-author interval lists are short, and it is
// what makes out-of-order arrival converge correctly regardless of when
// events turn up. Returns the set of task ids whose tracked intervals may
// have changed, for aggregator invalidation.
func (l *Ledger) Apply(e nostrevent.Event) []string {
	if e.Kind != nostrevent.KindTracking {
		return nil
	}
	if e.CreatedAt > l.latestEventAt {
		l.latestEventAt = e.CreatedAt
	}

	author := e.Author
	events := append(l.eventsByAuthor[author], e)
	nostrevent.SortEvents(events)
	l.eventsByAuthor[author] = events

	before := l.intervalsByAuthor[author]
	after := recompute(events)
	l.intervalsByAuthor[author] = after

	return affectedTaskIDs(before, after)
}

// ActiveTask returns the task the given author is currently tracking, if
// any. This is the "active task" of the glossary: the target of the
// author's most recent non-terminating kind-1650 event.
func (l *Ledger) ActiveTask(author string) (string, bool) {
	intervals := l.intervalsByAuthor[author]
	if len(intervals) == 0 {
		return "", false
	}
	last := intervals[len(intervals)-1]
	if !last.Open() {
		return "", false
	}
	return last.TaskID, true
}

// IntervalsForTask returns every interval, across all authors, whose
// TaskID matches. Order is unspecified.
func (l *Ledger) IntervalsForTask(taskID string) []Interval {
	var out []Interval
	for _, intervals := range l.intervalsByAuthor {
		for _, iv := range intervals {
			if iv.TaskID == taskID {
				out = append(out, iv)
			}
		}
	}
	return out
}

// LatestEventAt is the CreatedAt of the most recently observed kind-1650
// event across all authors, used to truncate other authors' still-open
// intervals when computing rtime.
func (l *Ledger) LatestEventAt() int64 {
	return l.latestEventAt
}

// trackingTarget extracts the task reference from a kind-1650 event's
// e-tags. An empty string or the literal "root" means "stop tracking".
func trackingTarget(e nostrevent.Event) (string, bool) {
	for _, v := range e.Tags.All("e") {
		if v != "" && v != "root" {
			return v, true
		}
	}
	return "", false
}

func recompute(events []nostrevent.Event) []Interval {
	var out []Interval
	var open *Interval

	for _, e := range events {
		if open != nil {
			end := e.CreatedAt
			if end < open.Start {
				// Clock skew across authors; clamp to zero duration rather
				// than reporting a negative interval.
				end = open.Start
			}
			closed := *open
			closed.End = &end
			out = append(out, closed)
			open = nil
		}
		if target, ok := trackingTarget(e); ok {
			open = &Interval{Author: e.Author, TaskID: target, Start: e.CreatedAt}
		}
	}
	if open != nil {
		out = append(out, *open)
	}
	return out
}

func affectedTaskIDs(groups ...[]Interval) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, intervals := range groups {
		for _, iv := range intervals {
			if _, ok := seen[iv.TaskID]; !ok {
				seen[iv.TaskID] = struct{}{}
				out = append(out, iv.TaskID)
			}
		}
	}
	return out
}
