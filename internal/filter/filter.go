// Package filter implements the tag/status/author/depth filters over the
// task forest, and the context propagation that applies a subset of the
// active filters to newly created tasks.
package filter

import (
	"sort"
	"strings"

	"github.com/xeruf/mostr/internal/nostrevent"
	"github.com/xeruf/mostr/internal/store"
)

// StatusMode selects how the status predicate evaluates a task.
type StatusMode int

const (
	// StatusDefault hides Closed and Done tasks (see DESIGN.md for why).
	StatusDefault StatusMode = iota
	StatusAll
	StatusKind
	StatusDescription
)

type StatusFilter struct {
	Mode        StatusMode
	Kind        nostrevent.Kind
	Description string
}

func (f StatusFilter) Matches(kind nostrevent.Kind, description string) bool {
	switch f.Mode {
	case StatusAll:
		return true
	case StatusKind:
		return kind == f.Kind
	case StatusDescription:
		return SmartCaseContains(f.Description, description)
	default:
		return kind != nostrevent.KindClosed && kind != nostrevent.KindDone
	}
}

type AuthorMode int

const (
	AuthorAny AuthorMode = iota
	AuthorLocal
	AuthorExact
	AuthorPrefix
)

type AuthorFilter struct {
	Mode  AuthorMode
	Value string
}

func (f AuthorFilter) Matches(author, localAuthor string) bool {
	switch f.Mode {
	case AuthorLocal:
		return author == localAuthor
	case AuthorExact:
		return author == f.Value
	case AuthorPrefix:
		return strings.HasPrefix(author, f.Value)
	default:
		return true
	}
}

// Filters bundles every independent predicate; Matches composes them by
// conjunction.
type Filters struct {
	TagInclude map[string]struct{}
	TagExclude map[string]struct{}
	Status     StatusFilter
	Author     AuthorFilter

	// NameQuery is the "/TEXT" smart-case substring filter over task names.
	NameQuery string
}

func Default() Filters {
	return Filters{Status: StatusFilter{Mode: StatusDefault}}
}

func (f Filters) Matches(t *store.Task, localAuthor string) bool {
	if len(f.TagInclude) > 0 && !intersects(t.Hashtags, f.TagInclude) {
		return false
	}
	if len(f.TagExclude) > 0 && intersects(t.Hashtags, f.TagExclude) {
		return false
	}
	kind, desc := t.Status()
	if !f.Status.Matches(kind, desc) {
		return false
	}
	if !f.Author.Matches(t.Author, localAuthor) {
		return false
	}
	if f.NameQuery != "" && !SmartCaseContains(f.NameQuery, t.Name) {
		return false
	}
	return true
}

func intersects(a, b map[string]struct{}) bool {
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}

// SmartCaseContains matches text against query case-insensitively, unless
// query itself contains an uppercase rune, in which case matching is
// case-sensitive ("smart-case" matching).
func SmartCaseContains(query, text string) bool {
	if hasUpper(query) {
		return strings.Contains(text, query)
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(query))
}

func hasUpper(s string) bool {
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return false
}

// Visible enumerates the tasks selected by f within the subtree rooted at
// position (""  meaning the forest root), down to depth levels, in
// pre-order.
func Visible(st *store.Store, position string, depth int, f Filters, localAuthor string) []*store.Task {
	var out []*store.Task
	var walk func(parentID string, level int)
	walk = func(parentID string, level int) {
		if level > depth {
			return
		}
		for _, t := range st.ChildrenOf(parentID) {
			if f.Matches(t, localAuthor) {
				out = append(out, t)
			}
			walk(t.ID, level+1)
		}
	}
	walk(position, 1)
	return out
}

// Context is the subset of active filters that inject default attributes
// into newly created tasks ("context propagation").
type Context struct {
	Tags              []string
	StatusDescription string
	HasStatus         bool
}

func (f Filters) Context() Context {
	tags := make([]string, 0, len(f.TagInclude))
	for t := range f.TagInclude {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	ctx := Context{Tags: tags}
	if f.Status.Mode == StatusDescription {
		ctx.StatusDescription = f.Status.Description
		ctx.HasStatus = true
	}
	return ctx
}
