// Package view tracks navigation/view state: current position, depth,
// column list, sort key, and the navigation history used by undo.
package view

import (
	"strings"

	"github.com/xeruf/mostr/internal/filter"
)

// ColumnCatalog is the fixed set of property names the column list may
// reference.
var ColumnCatalog = []string{
	"id", "parentid", "name", "state", "hashtags", "tags",
	"desc", "description", "path", "rpath",
	"time", "rtime", "progress", "subtasks",
	"props", "alltags", "descriptions",
}

func ValidColumn(name string) bool {
	for _, c := range ColumnCatalog {
		if c == name {
			return true
		}
	}
	return false
}

// State is the current position in the task forest plus everything that
// shapes what is rendered and what context new events inherit. "" as a
// position denotes root.
type State struct {
	Position string
	Depth    int
	Columns  []string
	SortKey  []string
	Filters  filter.Filters

	history []string
}

func New() *State {
	return &State{
		Depth:   1,
		Columns: []string{"id", "name", "state"},
		Filters: filter.Default(),
	}
}

// MoveTo changes position, recording the prior position on the
// navigation-undo history. Moving to the current position is a no-op.
func (s *State) MoveTo(id string) {
	if id == s.Position {
		return
	}
	s.history = append(s.history, s.Position)
	s.Position = id
}

// UndoMove pops one step of navigation history, returning false if there
// is none.
func (s *State) UndoMove() bool {
	if len(s.history) == 0 {
		return false
	}
	n := len(s.history) - 1
	s.Position = s.history[n]
	s.history = s.history[:n]
	return true
}

// ClearHistory drops the navigation-undo stack; called once a write
// commits, since navigation-only moves may be undone by & only as long as
// no write has been confirmed since.
func (s *State) ClearHistory() {
	s.history = nil
}

func (s *State) SetDepth(n int) {
	if n < 1 {
		n = 1
	}
	s.Depth = n
}

// ToggleColumnByName removes name if present, else appends it at the end.
func (s *State) ToggleColumnByName(name string) {
	for i, c := range s.Columns {
		if c == name {
			s.Columns = append(s.Columns[:i], s.Columns[i+1:]...)
			return
		}
	}
	s.Columns = append(s.Columns, name)
}

// InsertColumnAt inserts name at the given 1-indexed position, clamped to
// the end of the list if index is out of range.
func (s *State) InsertColumnAt(index int, name string) {
	i := index - 1
	if i < 0 {
		i = 0
	}
	if i > len(s.Columns) {
		i = len(s.Columns)
	}
	s.Columns = append(s.Columns[:i], append([]string{name}, s.Columns[i:]...)...)
}

// RemoveColumnAt removes the 1-indexed entry, a no-op if out of range.
func (s *State) RemoveColumnAt(index int) {
	i := index - 1
	if i < 0 || i >= len(s.Columns) {
		return
	}
	s.Columns = append(s.Columns[:i], s.Columns[i+1:]...)
}

func (s *State) SetSortKey(names []string) {
	s.SortKey = names
}

func (s *State) SortKeyString() string {
	return strings.Join(s.SortKey, " ")
}
