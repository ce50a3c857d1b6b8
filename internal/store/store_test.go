package store

import (
	"testing"

	"github.com/xeruf/mostr/internal/nostrevent"
	"github.com/xeruf/mostr/internal/tracking"
)

func newStore() *Store {
	return New(tracking.NewLedger())
}

func taskEvent(id, author, content string, createdAt int64, parent string, tags ...string) nostrevent.Event {
	var ts nostrevent.Tags
	if parent != "" {
		ts = append(ts, nostrevent.Tag{"e", parent})
	}
	for _, tag := range tags {
		ts = append(ts, nostrevent.Tag{"t", tag})
	}
	return nostrevent.Event{ID: id, Author: author, CreatedAt: createdAt, Kind: nostrevent.KindTask, Content: content, Tags: ts}
}

func statusEvent(id, author, target, content string, createdAt int64, kind nostrevent.Kind) nostrevent.Event {
	return nostrevent.Event{ID: id, Author: author, CreatedAt: createdAt, Kind: kind, Content: content, Tags: nostrevent.Tags{{"e", target}}}
}

func TestApplyIdempotent(t *testing.T) {
	s := newStore()
	e := taskEvent("t1", "a1", "groceries", 100, "")
	s.Apply(e)
	s.Apply(e)

	if len(s.Iter()) != 1 {
		t.Fatalf("expected 1 task after duplicate apply, got %d", len(s.Iter()))
	}
}

func TestDanglingParentThenResolved(t *testing.T) {
	s := newStore()
	child := taskEvent("child", "a1", "buy milk", 200, "parent")
	s.Apply(child)

	if task, _ := s.Get("child"); task.ParentID != "parent" {
		t.Fatalf("expected dangling ParentID to still be recorded")
	}
	if len(s.ChildrenOf("")) != 1 {
		t.Fatalf("expected child to appear as a root while parent is unknown")
	}

	parent := taskEvent("parent", "a1", "groceries", 100, "")
	s.Apply(parent)

	if len(s.ChildrenOf("")) != 1 {
		t.Fatalf("expected only parent at root once it arrives, got %d", len(s.ChildrenOf("")))
	}
	if len(s.ChildrenOf("parent")) != 1 {
		t.Fatalf("expected child to now appear under parent")
	}
}

func TestStatusConvergenceOrderIndependent(t *testing.T) {
	task := taskEvent("t1", "a1", "groceries", 100, "")
	done := statusEvent("done1", "a1", "t1", "bought", 200, nostrevent.KindDone)
	closed := statusEvent("closed1", "a2", "t1", "never mind", 205, nostrevent.KindClosed)

	forward := newStore()
	forward.Apply(task)
	forward.Apply(done)
	forward.Apply(closed)

	reversed := newStore()
	reversed.Apply(closed)
	reversed.Apply(done)
	reversed.Apply(task)

	for _, s := range []*Store{forward, reversed} {
		got, _ := s.Get("t1")
		kind, desc := got.Status()
		if kind != nostrevent.KindClosed || desc != "never mind" {
			t.Fatalf("expected Closed/'never mind', got %v/%q", kind, desc)
		}
	}
}

func TestStatusEventBufferedUntilTaskArrives(t *testing.T) {
	s := newStore()
	s.Apply(statusEvent("done1", "a1", "t1", "bought", 200, nostrevent.KindDone))
	s.Apply(taskEvent("t1", "a1", "groceries", 100, ""))

	got, ok := s.Get("t1")
	if !ok {
		t.Fatalf("expected task to exist")
	}
	kind, _ := got.Status()
	if kind != nostrevent.KindDone {
		t.Fatalf("expected buffered status event to apply retroactively, got %v", kind)
	}
}

func TestCyclicParentEdgeRejected(t *testing.T) {
	s := newStore()
	s.Apply(taskEvent("a", "auth", "A", 100, "b"))
	s.Apply(taskEvent("b", "auth", "B", 200, "a"))

	a, _ := s.Get("a")
	b, _ := s.Get("b")
	if a.ParentID != "" && b.ParentID != "" {
		t.Fatalf("expected at least one edge of the cycle to be rejected, got a.Parent=%q b.Parent=%q", a.ParentID, b.ParentID)
	}
}

func TestHashtagsFrozenFromCreation(t *testing.T) {
	s := newStore()
	s.Apply(taskEvent("t1", "a1", "groceries", 100, "", "shop", "errand"))
	task, _ := s.Get("t1")
	if !task.HasHashtag("shop") || !task.HasHashtag("errand") {
		t.Fatalf("expected both hashtags to be recorded")
	}
}

func TestGenerationBumpsOnlyWhenSomethingChanges(t *testing.T) {
	s := newStore()
	e := taskEvent("t1", "a1", "groceries", 100, "")
	s.Apply(e)
	gen := s.Generation()
	s.Apply(e) // duplicate, no-op
	if s.Generation() != gen {
		t.Fatalf("expected generation unchanged on duplicate apply")
	}
}
