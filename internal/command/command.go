// Package command implements the interpreter: a pure-ish function from an
// input line plus the current store/view to the events it emits and the
// view mutations it performs, including the pending-action/undo buffer.
package command

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xeruf/mostr/internal/filter"
	"github.com/xeruf/mostr/internal/nostrevent"
	"github.com/xeruf/mostr/internal/store"
	"github.com/xeruf/mostr/internal/view"
)

// DefaultPendingWindow is how long a pending write waits for a `&` before it
// auto-confirms.
const DefaultPendingWindow = 60 * time.Second

// Result is what one Dispatch call produces: events ready for local apply
// and relay publish, a status line for the prompt, or an error belonging to
// one of two buckets: malformed input or semantic refusal.
type Result struct {
	Events   []nostrevent.Event
	Status   string
	Err      error
	RelayURL string // non-empty when the line was a relay control message
}

type pendingAction struct {
	event     nostrevent.Event
	expiresAt time.Time
	ascended  bool // true if confirming/cancelling this action must touch nav history
}

// Interpreter holds the mutable pending-action buffer; everything else it
// touches (store, view) is owned by the caller and passed in at
// construction, matching the single-threaded-core discipline of the rest
// of this module.
type Interpreter struct {
	store       *store.Store
	view        *view.State
	localAuthor string

	clock         func() int64      // event-timestamp clock (unix seconds)
	wallClock     func() time.Time  // wall clock for pending-window expiry
	pendingWindow time.Duration

	pending *pendingAction
}

func New(st *store.Store, vw *view.State, localAuthor string) *Interpreter {
	return &Interpreter{
		store:         st,
		view:          vw,
		localAuthor:   localAuthor,
		clock:         func() int64 { return time.Now().Unix() },
		wallClock:     time.Now,
		pendingWindow: DefaultPendingWindow,
	}
}

func (i *Interpreter) WithClock(clock func() int64) *Interpreter {
	i.clock = clock
	return i
}

func (i *Interpreter) WithWallClock(wallClock func() time.Time) *Interpreter {
	i.wallClock = wallClock
	return i
}

func (i *Interpreter) WithPendingWindow(d time.Duration) *Interpreter {
	i.pendingWindow = d
	return i
}

// HasPending reports whether a write is currently buffered awaiting
// confirmation or cancellation.
func (i *Interpreter) HasPending() bool {
	return i.pending != nil
}

// Tick is called at least once per ~1s of idle (and harmless to call more
// often). If the pending window has
// elapsed, it confirms the buffered write and returns it for local apply
// and relay publish.
func (i *Interpreter) Tick(now time.Time) []nostrevent.Event {
	if i.pending == nil || now.Before(i.pending.expiresAt) {
		return nil
	}
	return i.confirmPending()
}

// Dispatch processes one input line.
func (i *Interpreter) Dispatch(raw string) Result {
	line := strings.TrimRight(raw, "\r\n")
	if line == "" {
		return Result{}
	}
	if line == "&" {
		return i.undo()
	}
	if isRelayControl(line) {
		return Result{RelayURL: line}
	}

	escaped := strings.HasPrefix(line, " ")
	if escaped {
		line = line[1:]
	}

	var confirmed []nostrevent.Event
	if escaped || !isPureAscend(line) {
		confirmed = i.confirmPending()
	}

	var res Result
	if escaped {
		res = i.handleCreate(line, i.view.Position)
	} else {
		res = i.dispatchLine(line)
	}
	if len(confirmed) > 0 {
		res.Events = append(confirmed, res.Events...)
	}
	return res
}

func isRelayControl(line string) bool {
	return strings.HasPrefix(line, "ws://") || strings.HasPrefix(line, "wss://")
}

func isPureAscend(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c != '.' {
			return false
		}
	}
	return true
}

const sigilChars = ">,<!#+-?@:()/"

func startsWithSigil(s string) bool {
	return s != "" && strings.ContainsRune(sigilChars, rune(s[0]))
}

func (i *Interpreter) dispatchLine(line string) Result {
	ascends, rest := splitLeadingDots(line)

	if rest == "" {
		return i.handleDotsOnly(ascends)
	}
	if startsWithSigil(rest) {
		effective := ascendFrom(i.store, i.view.Position, ascends)
		return i.dispatchSigil(rest, effective)
	}
	if ascends > 0 {
		effective := ascendFrom(i.store, i.view.Position, ascends)
		return i.handleDotPrefix(rest, effective)
	}
	if n, err := strconv.Atoi(line); err == nil {
		i.view.SetDepth(n)
		return Result{Status: fmt.Sprintf("depth %d", n)}
	}
	return i.handleCreate(line, i.view.Position)
}

func splitLeadingDots(s string) (int, string) {
	n := 0
	for n < len(s) && s[n] == '.' {
		n++
	}
	return n, s[n:]
}

func ascendFrom(st *store.Store, pos string, n int) string {
	for j := 0; j < n; j++ {
		if pos == "" {
			break
		}
		t, ok := st.Get(pos)
		if !ok {
			break
		}
		pos = t.ParentID
	}
	return pos
}

func (i *Interpreter) dispatchSigil(rest, effective string) Result {
	switch rest[0] {
	case '>':
		return i.handleStatusAndAscend(rest[1:], effective, nostrevent.KindDone)
	case '<':
		return i.handleStatusAndAscend(rest[1:], effective, nostrevent.KindClosed)
	case '!':
		return i.handleBang(rest[1:], effective)
	case ',':
		return i.handleNote(rest[1:], effective)
	case '#':
		return i.handleTagSet(rest[1:])
	case '+':
		return i.handleTagAdd(rest[1:])
	case '-':
		return i.handleTagRemove(rest[1:])
	case '?':
		return i.handleStatusFilter(rest[1:])
	case '@':
		return i.handleAuthorFilter(rest[1:])
	case ':':
		return i.handleColumn(rest[1:])
	case '(':
		return i.handleTrackStart(rest[1:], effective)
	case ')':
		return i.handleTrackStop(rest[1:])
	case '/':
		return i.handleNameFilter(rest[1:])
	}
	return Result{Err: errMalformed("unrecognized command %q", rest)}
}

func (i *Interpreter) handleDotsOnly(ascends int) Result {
	if ascends == 1 {
		i.view.Filters = filter.Default()
		i.view.MoveTo("")
		return Result{Status: "cleared filters, moved to root"}
	}
	n := ascends - 1
	i.view.MoveTo(ascendFrom(i.store, i.view.Position, n))
	return Result{Status: fmt.Sprintf("ascended %d level(s)", n)}
}

func (i *Interpreter) handleDotPrefix(prefix, effective string) Result {
	visible := filter.Visible(i.store, effective, i.view.Depth, i.view.Filters, i.localAuthor)
	if t, ok := resolvePrefix(visible, prefix); ok {
		moved := i.view.Position != t.ID
		i.activate(t.ID)
		kind, _ := t.Status()
		var events []nostrevent.Event
		if ev, ok := i.autoTrack(t.ID, moved, kind == nostrevent.KindOpen); ok {
			events = append(events, ev)
		}
		return Result{Events: events, Status: fmt.Sprintf("activated %q", t.Name)}
	}
	if n, err := strconv.Atoi(prefix); err == nil {
		i.view.SetDepth(n)
		return Result{Status: fmt.Sprintf("depth %d", n)}
	}
	return i.handleCreate(prefix, effective)
}

func (i *Interpreter) activate(id string) {
	i.view.MoveTo(id)
}

func resolvePrefix(tasks []*store.Task, prefix string) (*store.Task, bool) {
	if prefix == "" {
		return nil, false
	}
	if t, ok := matchPrefix(tasks, prefix, hasUpper(prefix)); ok {
		return t, true
	}
	if hasUpper(prefix) {
		if t, ok := matchPrefix(tasks, prefix, false); ok {
			return t, true
		}
	}
	return nil, false
}

func matchPrefix(tasks []*store.Task, prefix string, caseSensitive bool) (*store.Task, bool) {
	p := prefix
	if !caseSensitive {
		p = strings.ToLower(p)
	}
	for _, t := range tasks {
		id, name := t.ID, t.Name
		if !caseSensitive {
			id = strings.ToLower(id)
			name = strings.ToLower(name)
		}
		if strings.HasPrefix(id, p) || strings.HasPrefix(name, p) {
			return t, true
		}
	}
	return nil, false
}

func hasUpper(s string) bool {
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return false
}

// handleCreate implements the "printable text" row: split on the first ':'
// into name and explicit hashtags, union in the filter context's tags,
// parent from the given position, then activate the new task.
func (i *Interpreter) handleCreate(content, parent string) Result {
	name := content
	tagsPart := ""
	if idx := strings.IndexByte(content, ':'); idx >= 0 {
		name = content[:idx]
		tagsPart = content[idx+1:]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Result{Err: errMalformed("empty task name")}
	}

	ctx := i.view.Filters.Context()
	tagSet := make(map[string]struct{})
	for _, t := range strings.Fields(tagsPart) {
		tagSet[t] = struct{}{}
	}
	for _, t := range ctx.Tags {
		tagSet[t] = struct{}{}
	}

	var tags nostrevent.Tags
	if parent != "" {
		tags = append(tags, nostrevent.Tag{"e", parent})
	}
	for _, t := range sortedKeys(tagSet) {
		tags = append(tags, nostrevent.Tag{"t", t})
	}

	taskEv := i.buildEvent(nostrevent.KindTask, name, tags)
	events := []nostrevent.Event{taskEv}

	if ctx.HasStatus {
		statusEv := i.buildEvent(nostrevent.KindPending, ctx.StatusDescription, nostrevent.Tags{{"e", taskEv.ID}})
		events = append(events, statusEv)
	}

	moved := i.view.Position != taskEv.ID
	i.activate(taskEv.ID)
	if ev, ok := i.autoTrack(taskEv.ID, moved, !ctx.HasStatus); ok {
		events = append(events, ev)
	}

	return Result{Events: events, Status: fmt.Sprintf("created %q", name)}
}

// autoTrack builds the kind-1650 event that follows a move onto a task,
// the way tasks.rs::move_to auto-activates tracking on entry. It only
// fires when the move actually changed position and the target's status
// is Open; re-selecting the current task, or selecting a non-Open task,
// leaves tracking untouched.
func (i *Interpreter) autoTrack(id string, moved, statusOpen bool) (nostrevent.Event, bool) {
	if !moved || !statusOpen {
		return nostrevent.Event{}, false
	}
	return i.buildEvent(nostrevent.KindTracking, "", nostrevent.Tags{{"e", id}}), true
}

// SeedArg creates a root task named name, tagged "arg", the way the
// original REPL seeded one task per CLI argument before its first prompt.
// It neither activates nor auto-tracks the new task.
func (i *Interpreter) SeedArg(name string) nostrevent.Event {
	return i.buildEvent(nostrevent.KindTask, name, nostrevent.Tags{{"t", "arg"}})
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// handleStatusAndAscend implements `>TEXT` / `<TEXT`: buffer a Done/Closed
// status event on the effective position as a pending action and ascend
// immediately (the ascend is what "reverts" if `&` cancels before the
// write confirms).
func (i *Interpreter) handleStatusAndAscend(text, effective string, kind nostrevent.Kind) Result {
	if effective == "" {
		return Result{Err: errSemantic("no current task to mark %s", statusVerb(kind))}
	}
	ev := i.buildEvent(kind, text, nostrevent.Tags{{"e", effective}})

	parent := ""
	if t, ok := i.store.Get(effective); ok {
		parent = t.ParentID
	}
	i.view.MoveTo(parent)

	i.pending = &pendingAction{event: ev, expiresAt: i.wallClock().Add(i.pendingWindow), ascended: true}
	return Result{Status: fmt.Sprintf("pending: %s (%s)", statusVerb(kind), text)}
}

func statusVerb(k nostrevent.Kind) string {
	switch k {
	case nostrevent.KindDone:
		return "done"
	case nostrevent.KindClosed:
		return "closed"
	case nostrevent.KindPending:
		return "pending"
	default:
		return "open"
	}
}

// handleBang implements `!TEXT`: a status event on the current task without
// an ascend. Empty text reopens it; non-empty text flags it Pending with
// that description.
func (i *Interpreter) handleBang(text, effective string) Result {
	if effective == "" {
		return Result{Err: errSemantic("no current task to update")}
	}
	kind := nostrevent.KindPending
	if text == "" {
		kind = nostrevent.KindOpen
	}
	ev := i.buildEvent(kind, text, nostrevent.Tags{{"e", effective}})
	i.pending = &pendingAction{event: ev, expiresAt: i.wallClock().Add(i.pendingWindow)}
	return Result{Status: fmt.Sprintf("pending: %s", statusVerb(kind))}
}

func (i *Interpreter) handleNote(text, effective string) Result {
	var tags nostrevent.Tags
	if effective != "" {
		tags = nostrevent.Tags{{"e", effective}}
	}
	ev := i.buildEvent(nostrevent.KindNote, text, tags)
	return Result{Events: []nostrevent.Event{ev}, Status: "note added"}
}

func (i *Interpreter) handleTagSet(text string) Result {
	tags := strings.Fields(text)
	if len(tags) == 0 {
		i.view.Filters.TagInclude = nil
		i.view.Filters.TagExclude = nil
		return Result{Status: "tag filter cleared"}
	}
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	i.view.Filters.TagInclude = set
	i.view.Filters.TagExclude = nil
	return Result{Status: "tag filter: " + text}
}

func (i *Interpreter) handleTagAdd(text string) Result {
	tags := strings.Fields(text)
	if len(tags) == 0 {
		return Result{}
	}
	if i.view.Filters.TagInclude == nil {
		i.view.Filters.TagInclude = make(map[string]struct{})
	}
	for _, t := range tags {
		i.view.Filters.TagInclude[t] = struct{}{}
		delete(i.view.Filters.TagExclude, t)
	}
	return Result{Status: "tag filter now includes " + text}
}

func (i *Interpreter) handleTagRemove(text string) Result {
	tags := strings.Fields(text)
	if len(tags) == 0 {
		return Result{}
	}
	if i.view.Filters.TagExclude == nil {
		i.view.Filters.TagExclude = make(map[string]struct{})
	}
	for _, t := range tags {
		i.view.Filters.TagExclude[t] = struct{}{}
		delete(i.view.Filters.TagInclude, t)
	}
	return Result{Status: "tag filter now excludes " + text}
}

func (i *Interpreter) handleStatusFilter(text string) Result {
	switch text {
	case "":
		i.view.Filters.Status = filter.StatusFilter{Mode: filter.StatusDefault}
		return Result{Status: "status filter reset"}
	case "?":
		i.view.Filters.Status = filter.StatusFilter{Mode: filter.StatusAll}
		return Result{Status: "showing all statuses"}
	}
	if k, ok := kindByName(text); ok {
		i.view.Filters.Status = filter.StatusFilter{Mode: filter.StatusKind, Kind: k}
		return Result{Status: "status filter: " + text}
	}
	i.view.Filters.Status = filter.StatusFilter{Mode: filter.StatusDescription, Description: text}
	return Result{Status: "status filter: " + text}
}

func kindByName(s string) (nostrevent.Kind, bool) {
	switch strings.ToLower(s) {
	case "open":
		return nostrevent.KindOpen, true
	case "done":
		return nostrevent.KindDone, true
	case "closed":
		return nostrevent.KindClosed, true
	case "pending":
		return nostrevent.KindPending, true
	}
	return 0, false
}

func (i *Interpreter) handleAuthorFilter(text string) Result {
	if text == "" {
		i.view.Filters.Author = filter.AuthorFilter{Mode: filter.AuthorLocal}
		return Result{Status: "author filter: local"}
	}
	mode := filter.AuthorPrefix
	if len(text) == 64 {
		mode = filter.AuthorExact
	}
	i.view.Filters.Author = filter.AuthorFilter{Mode: mode, Value: text}
	return Result{Status: "author filter: " + text}
}

func (i *Interpreter) handleNameFilter(text string) Result {
	i.view.Filters.NameQuery = text
	if text == "" {
		return Result{Status: "name filter cleared"}
	}
	return Result{Status: "name filter: " + text}
}

func (i *Interpreter) handleColumn(text string) Result {
	if strings.HasPrefix(text, ":") {
		names := strings.Fields(text[1:])
		i.view.SetSortKey(names)
		return Result{Status: "sort key: " + i.view.SortKeyString()}
	}

	j := 0
	for j < len(text) && text[j] >= '0' && text[j] <= '9' {
		j++
	}
	if j > 0 {
		idx, _ := strconv.Atoi(text[:j])
		name := strings.TrimSpace(text[j:])
		if name == "" {
			i.view.RemoveColumnAt(idx)
			return Result{Status: "column removed"}
		}
		if !view.ValidColumn(name) {
			return Result{Err: errMalformed("unknown column %q", name)}
		}
		i.view.InsertColumnAt(idx, name)
		return Result{Status: "column inserted"}
	}

	name := strings.TrimSpace(text)
	if name == "" {
		return Result{}
	}
	if !view.ValidColumn(name) {
		return Result{Err: errMalformed("unknown column %q", name)}
	}
	i.view.ToggleColumnByName(name)
	return Result{Status: "columns: " + strings.Join(i.view.Columns, " ")}
}

func (i *Interpreter) handleTrackStart(text, effective string) Result {
	if effective == "" {
		return Result{Err: errSemantic("no current task to track")}
	}
	ts, err := parseTimeOffset(text, i.clock())
	if err != nil {
		return Result{Err: err}
	}
	ev := i.buildEventAt(nostrevent.KindTracking, "", nostrevent.Tags{{"e", effective}}, ts)
	return Result{Events: []nostrevent.Event{ev}, Status: "tracking started"}
}

func (i *Interpreter) handleTrackStop(text string) Result {
	ts, err := parseTimeOffset(text, i.clock())
	if err != nil {
		return Result{Err: err}
	}
	ev := i.buildEventAt(nostrevent.KindTracking, "", nostrevent.Tags{{"e", "root"}}, ts)
	return Result{Events: []nostrevent.Event{ev}, Status: "tracking stopped"}
}

func (i *Interpreter) undo() Result {
	if i.pending != nil {
		ascended := i.pending.ascended
		i.pending = nil
		if ascended {
			i.view.UndoMove()
		}
		return Result{Status: "undone"}
	}
	if i.view.UndoMove() {
		return Result{Status: "moved back"}
	}
	return Result{Err: errSemantic("nothing to undo")}
}

func (i *Interpreter) confirmPending() []nostrevent.Event {
	if i.pending == nil {
		return nil
	}
	ev := i.pending.event
	i.pending = nil
	i.view.ClearHistory()
	return []nostrevent.Event{ev}
}

func (i *Interpreter) buildEvent(kind nostrevent.Kind, content string, tags nostrevent.Tags) nostrevent.Event {
	return i.buildEventAt(kind, content, tags, i.clock())
}

// buildEventAt precomputes the event's content-addressed id using the local
// author's known pubkey, so the caller can apply it to the store
// immediately (optimistic apply) before the real signature comes
// back from internal/signer.
func (i *Interpreter) buildEventAt(kind nostrevent.Kind, content string, tags nostrevent.Tags, createdAt int64) nostrevent.Event {
	ev := nostrevent.Event{Author: i.localAuthor, CreatedAt: createdAt, Kind: kind, Content: content, Tags: tags}
	ev.ID = nostrevent.ComputeID(ev.Author, ev.CreatedAt, ev.Kind, ev.Tags, ev.Content)
	return ev
}

func errSemantic(format string, args ...any) error {
	return fmt.Errorf("semantic refusal: "+format, args...)
}

func errMalformed(format string, args ...any) error {
	return fmt.Errorf("malformed input: "+format, args...)
}
