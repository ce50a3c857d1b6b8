// Package aggregate computes the roll-up properties — rtime, progress,
// subtasks, path/rpath, description/desc — over a store.Store and
// tracking.Ledger, memoized per store generation.
package aggregate

import (
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/xeruf/mostr/internal/nostrevent"
	"github.com/xeruf/mostr/internal/store"
	"github.com/xeruf/mostr/internal/tracking"
)

type rollupKey struct {
	taskID     string
	generation uint64
}

type rollup struct {
	rtimeSeconds int64
	doneLeaves   int
	totalLeaves  int
	doneChildren int
}

// Aggregator computes derived task properties. Clock is injected so tests
// can pin "now" instead of racing time.Now(); it defaults to time.Now in
// New.
type Aggregator struct {
	store       *store.Store
	ledger      *tracking.Ledger
	localAuthor string
	clock       func() int64

	cache *lru.Cache[rollupKey, rollup]
}

const defaultMemoSize = 4096

func New(st *store.Store, ledger *tracking.Ledger, localAuthor string) *Aggregator {
	cache, _ := lru.New[rollupKey, rollup](defaultMemoSize)
	return &Aggregator{
		store:       st,
		ledger:      ledger,
		localAuthor: localAuthor,
		clock:       func() int64 { return time.Now().Unix() },
		cache:       cache,
	}
}

// WithClock overrides the "now" function; used by tests.
func (a *Aggregator) WithClock(clock func() int64) *Aggregator {
	a.clock = clock
	return a
}

func (a *Aggregator) rollupFor(id string) rollup {
	key := rollupKey{id, a.store.Generation()}
	if v, ok := a.cache.Get(key); ok {
		return v
	}

	task, ok := a.store.Get(id)
	if !ok {
		return rollup{}
	}

	own := a.allAuthorsDuration(id)
	r := rollup{rtimeSeconds: own}

	children := a.store.ChildrenOf(id)
	if len(children) == 0 {
		kind, _ := task.Status()
		r.totalLeaves, r.doneLeaves = leafCounts(kind)
	} else {
		for _, c := range children {
			cr := a.rollupFor(c.ID)
			r.rtimeSeconds += cr.rtimeSeconds
			r.doneLeaves += cr.doneLeaves
			r.totalLeaves += cr.totalLeaves
			if kind, _ := c.Status(); kind == nostrevent.KindDone {
				r.doneChildren++
			}
		}
	}

	a.cache.Add(key, r)
	return r
}

func leafCounts(status nostrevent.Kind) (total, done int) {
	switch status {
	case nostrevent.KindClosed:
		return 0, 0
	case nostrevent.KindDone:
		return 1, 1
	default: // Open or Pending
		return 1, 0
	}
}

// RTime is tracked time on this task plus all transitive descendants,
// across every author.
func (a *Aggregator) RTime(id string) time.Duration {
	return time.Duration(a.rollupFor(id).rtimeSeconds) * time.Second
}

// Time is tracked time on this task alone, for the local viewer only.
func (a *Aggregator) Time(id string) time.Duration {
	return time.Duration(a.localAuthorDuration(id)) * time.Second
}

// Progress is the percentage of leaf tasks in the subtree whose status is
// Done. Closed tasks are excluded from the denominator; a subtree with no
// Open/Done/Pending leaves reports 100.
func (a *Aggregator) Progress(id string) int {
	r := a.rollupFor(id)
	if r.totalLeaves == 0 {
		return 100
	}
	return r.doneLeaves * 100 / r.totalLeaves
}

// Subtasks is the count of direct children whose status is Done.
func (a *Aggregator) Subtasks(id string) int {
	return a.rollupFor(id).doneChildren
}

func (a *Aggregator) allAuthorsDuration(id string) int64 {
	var sum int64
	now := a.clock()
	latestObserved := a.ledger.LatestEventAt()
	for _, iv := range a.ledger.IntervalsForTask(id) {
		end := latestObserved
		if iv.End != nil {
			end = *iv.End
		} else if iv.Author == a.localAuthor {
			end = now
		}
		if d := end - iv.Start; d > 0 {
			sum += d
		}
	}
	return sum
}

func (a *Aggregator) localAuthorDuration(id string) int64 {
	var sum int64
	now := a.clock()
	for _, iv := range a.ledger.IntervalsForTask(id) {
		if iv.Author != a.localAuthor {
			continue
		}
		end := now
		if iv.End != nil {
			end = *iv.End
		}
		if d := end - iv.Start; d > 0 {
			sum += d
		}
	}
	return sum
}

// Path is the name chain from the forest root down to id, joined by " > ".
func (a *Aggregator) Path(id string) string {
	return a.pathUntil(id, "")
}

// RPath is the name chain from position down to id (position excluded),
// used when rendering a subtree rooted at the current view position.
func (a *Aggregator) RPath(id, position string) string {
	return a.pathUntil(id, position)
}

func (a *Aggregator) pathUntil(id, stopAt string) string {
	var names []string
	cur := id
	for cur != "" && cur != stopAt {
		task, ok := a.store.Get(cur)
		if !ok {
			break
		}
		names = append(names, task.Name)
		cur = task.ParentID
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, " > ")
}

// Description concatenates every note on id, in created_at order.
func (a *Aggregator) Description(id string) string {
	task, ok := a.store.Get(id)
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(task.Notes))
	for _, n := range task.Notes {
		parts = append(parts, n.Content)
	}
	return strings.Join(parts, " ")
}

// Desc is the content of the most recent note on id.
func (a *Aggregator) Desc(id string) string {
	task, ok := a.store.Get(id)
	if !ok {
		return ""
	}
	latest, ok := nostrevent.Latest(task.Notes)
	if !ok {
		return ""
	}
	return latest.Content
}
