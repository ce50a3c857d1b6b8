// Package store implements the event-sourced task store: a
// content-addressed map of Task entities, built by folding an append-only,
// possibly out-of-order, possibly duplicated stream of signed events.
package store

import (
	"log"
	"sort"
	"sync"

	"github.com/xeruf/mostr/internal/nostrevent"
	"github.com/xeruf/mostr/internal/tracking"
)

// Store holds every known task plus the bookkeeping needed to converge
// regardless of arrival order. It is single-threaded by design; the one
// exception is cycleWarned, guarded separately so a relay
// goroutine logging a cycle warning can never race the core loop.
type Store struct {
	ledger *tracking.Ledger

	tasks           map[string]*Task
	seen            map[string]struct{}
	pendingByParent map[string][]nostrevent.Event
	rawPool         map[nostrevent.Kind][]nostrevent.Event
	generation      uint64

	cycleWarnedMu sync.Mutex
	cycleWarned   map[string]struct{}
}

func New(ledger *tracking.Ledger) *Store {
	return &Store{
		ledger:          ledger,
		tasks:           make(map[string]*Task),
		seen:            make(map[string]struct{}),
		pendingByParent: make(map[string][]nostrevent.Event),
		rawPool:         make(map[nostrevent.Kind][]nostrevent.Event),
		cycleWarned:     make(map[string]struct{}),
	}
}

// Generation increments on every event that actually changes a
// projection. The aggregator memoizes roll-ups keyed by (task id,
// generation).
func (s *Store) Generation() uint64 {
	return s.generation
}

// Apply folds one event into the store. It is idempotent: applying the
// same event id twice, or applying a permutation of an event sequence,
// converges to the same projections regardless of order or duplication.
// It returns the ids of tasks whose projections changed, for aggregator
// invalidation.
func (s *Store) Apply(e nostrevent.Event) []string {
	if _, ok := s.seen[e.ID]; ok {
		return nil
	}
	s.seen[e.ID] = struct{}{}

	var changed []string
	switch {
	case e.Kind == nostrevent.KindTask:
		changed = s.applyTaskCreate(e)
	case e.Kind.IsStatus():
		changed = s.applyTargeted(e)
	case e.Kind.IsNote():
		changed = s.applyTargeted(e)
	case e.Kind == nostrevent.KindTracking:
		changed = s.ledger.Apply(e)
	default:
		s.rawPool[e.Kind] = append(s.rawPool[e.Kind], e)
	}

	if len(changed) > 0 {
		s.generation++
	}
	return changed
}

func (s *Store) applyTaskCreate(e nostrevent.Event) []string {
	if _, exists := s.tasks[e.ID]; exists {
		return nil
	}

	parentID := ""
	if p, ok := e.Tags.ETag(); ok {
		if s.wouldCycle(p, e.ID) {
			s.warnCycleOnce(e.ID, p)
		} else {
			parentID = p
		}
	}

	task := newTask(e, parentID)
	s.tasks[e.ID] = task

	changed := []string{e.ID}
	if buffered, ok := s.pendingByParent[e.ID]; ok {
		delete(s.pendingByParent, e.ID)
		for _, be := range buffered {
			applyDirect(task, be)
		}
	}
	return changed
}

// applyTargeted handles kind-1/1622/1630-1633 events: all of them carry an
// e-tag identifying their target task and differ only in what they append
// to once the target is resolved.
func (s *Store) applyTargeted(e nostrevent.Event) []string {
	target, ok := e.Tags.ETag()
	if !ok {
		return nil
	}
	if task, ok := s.tasks[target]; ok {
		applyDirect(task, e)
		return []string{target}
	}
	s.pendingByParent[target] = append(s.pendingByParent[target], e)
	return nil
}

func applyDirect(task *Task, e nostrevent.Event) {
	if e.Kind.IsStatus() {
		task.StatusEvents = append(task.StatusEvents, e)
		return
	}
	task.Notes = append(task.Notes, e)
	nostrevent.SortEvents(task.Notes)
}

// wouldCycle reports whether setting newID's parent to candidate would
// close a cycle, by walking candidate's existing ancestor chain. It also
// terminates (without rejecting) if it finds a cycle that predates newID,
// rather than looping forever.
func (s *Store) wouldCycle(candidate, newID string) bool {
	visited := make(map[string]struct{})
	cur := candidate
	for cur != "" {
		if cur == newID {
			return true
		}
		if _, ok := visited[cur]; ok {
			return false
		}
		visited[cur] = struct{}{}
		t, ok := s.tasks[cur]
		if !ok {
			return false
		}
		cur = t.ParentID
	}
	return false
}

func (s *Store) warnCycleOnce(childID, parentCandidate string) {
	s.cycleWarnedMu.Lock()
	defer s.cycleWarnedMu.Unlock()
	if _, ok := s.cycleWarned[childID]; ok {
		return
	}
	s.cycleWarned[childID] = struct{}{}
	log.Printf("store: rejecting cyclic parent edge %s -> %s, task will appear as a root", childID, parentCandidate)
}

// Get returns the task projection for id, or (nil, false) if unknown.
func (s *Store) Get(id string) (*Task, bool) {
	t, ok := s.tasks[id]
	return t, ok
}

// Iter enumerates every known task in stable order (created_at asc, id asc
// tiebreak).
func (s *Store) Iter() []*Task {
	out := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sortTasks(out)
	return out
}

// ChildrenOf enumerates the direct children of id, in stable order. An
// empty id means root: every task with no known parent.
func (s *Store) ChildrenOf(id string) []*Task {
	var out []*Task
	for _, t := range s.tasks {
		if t.ParentID == id {
			out = append(out, t)
			continue
		}
		if id == "" {
			// A dangling parent reference shows the task as a root until
			// the parent's creation event arrives.
			if _, known := s.tasks[t.ParentID]; !known {
				out = append(out, t)
			}
		}
	}
	sortTasks(out)
	return out
}

// RawPool returns events of kinds this store does not otherwise project,
// for the debug "props" column.
func (s *Store) RawPool(kind nostrevent.Kind) []nostrevent.Event {
	return s.rawPool[kind]
}

// RawPoolForTarget returns every unrecognized-kind event whose first e-tag
// points at id, across all raw kinds — addressable by target task, for the
// "props" debug column.
func (s *Store) RawPoolForTarget(id string) []nostrevent.Event {
	var out []nostrevent.Event
	for _, events := range s.rawPool {
		for _, e := range events {
			if target, ok := e.Tags.ETag(); ok && target == id {
				out = append(out, e)
			}
		}
	}
	nostrevent.SortEvents(out)
	return out
}

func sortTasks(tasks []*Task) {
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return a.ID < b.ID
	})
}
