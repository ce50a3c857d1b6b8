package command

import (
	"testing"
	"time"

	"github.com/xeruf/mostr/internal/nostrevent"
	"github.com/xeruf/mostr/internal/store"
	"github.com/xeruf/mostr/internal/tracking"
	"github.com/xeruf/mostr/internal/view"
)

const localAuthor = "alice"

func newInterpreter(t *testing.T, unixNow int64) (*Interpreter, *store.Store) {
	t.Helper()
	ledger := tracking.NewLedger()
	st := store.New(ledger)
	vw := view.New()
	interp := New(st, vw, localAuthor).
		WithClock(func() int64 { return unixNow }).
		WithWallClock(func() time.Time { return time.Unix(unixNow, 0) })
	return interp, st
}

// applyAll feeds every emitted event back into the store, the way the main
// loop's optimistic-apply would.
func applyAll(st *store.Store, res Result) {
	for _, e := range res.Events {
		st.Apply(e)
	}
}

func TestCreateAndActivateMatchesS1(t *testing.T) {
	interp, st := newInterpreter(t, 1000)

	res := interp.Dispatch("groceries: shop errand")
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Events) != 2 {
		t.Fatalf("expected task-create + auto-track events, got %d", len(res.Events))
	}
	applyAll(st, res)
	groceriesID := res.Events[0].ID

	res = interp.Dispatch(".groc")
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	applyAll(st, res)
	if len(res.Events) != 0 {
		t.Fatalf("expected no further tracking event for re-selecting the already-active task, got %d", len(res.Events))
	}

	vw := interp.view
	if vw.Position != groceriesID {
		t.Fatalf("expected position to resolve to groceries task, got %q want %q", vw.Position, groceriesID)
	}
}

func TestSelectingAlreadyOpenTaskElsewhereStillAutoTracks(t *testing.T) {
	interp, st := newInterpreter(t, 1000)
	res := interp.Dispatch("groceries: shop errand")
	applyAll(st, res)
	groceriesID := res.Events[0].ID

	res = interp.Dispatch("laundry: wash errand")
	applyAll(st, res)

	interp.view.MoveTo("")
	res = interp.Dispatch(".groc")
	if len(res.Events) != 1 || res.Events[0].Kind != nostrevent.KindTracking {
		t.Fatalf("expected a single auto-track event when moving onto a different Open task, got %v", res.Events)
	}
	if interp.view.Position != groceriesID {
		t.Fatalf("expected position to move to groceries, got %q", interp.view.Position)
	}
}

func TestSelectingNonOpenTaskDoesNotAutoTrack(t *testing.T) {
	interp, st := newInterpreter(t, 1000)
	res := interp.Dispatch("groceries: shop errand")
	applyAll(st, res)
	groceriesID := res.Events[0].ID
	interp.view.MoveTo(groceriesID)

	interp.Dispatch(">done")
	confirmed := interp.Tick(time.Unix(1000, 0).Add(2 * DefaultPendingWindow))
	applyAll(st, Result{Events: confirmed})

	interp.Dispatch("??")
	interp.view.MoveTo("")
	res = interp.Dispatch(".groc")
	if len(res.Events) != 0 {
		t.Fatalf("expected no auto-track event for a Done task, got %v", res.Events)
	}
	if interp.view.Position != groceriesID {
		t.Fatalf("expected position to still move to groceries, got %q", interp.view.Position)
	}
}

func TestSubdivideAndCompleteMatchesS2(t *testing.T) {
	interp, st := newInterpreter(t, 1000)
	res := interp.Dispatch("groceries: shop errand")
	applyAll(st, res)
	groceriesID := res.Events[0].ID
	interp.view.MoveTo(groceriesID)

	res = interp.Dispatch("buy milk")
	if len(res.Events) != 2 {
		t.Fatalf("expected task-create + auto-track, got %d", len(res.Events))
	}
	milkID := res.Events[0].ID
	if parent, _ := res.Events[0].Tags.ETag(); parent != groceriesID {
		t.Fatalf("expected buy milk's parent to be groceries, got %q", parent)
	}
	applyAll(st, res)
	if interp.view.Position != milkID {
		t.Fatalf("expected position to move to buy milk, got %q", interp.view.Position)
	}

	res = interp.Dispatch(">bought")
	if len(res.Events) != 0 {
		t.Fatalf("expected the Done event to be pending, not emitted immediately, got %d", len(res.Events))
	}
	if interp.view.Position != groceriesID {
		t.Fatalf("expected immediate ascend to groceries, got %q", interp.view.Position)
	}
	if !interp.HasPending() {
		t.Fatalf("expected a pending action after >bought")
	}

	confirmed := interp.Tick(time.Unix(1000, 0).Add(2 * DefaultPendingWindow))
	if len(confirmed) != 1 || confirmed[0].Kind != 1631 {
		t.Fatalf("expected the pending Done event to confirm on tick, got %v", confirmed)
	}
}

func TestUndoWithinWindowMatchesS5(t *testing.T) {
	interp, st := newInterpreter(t, 1000)
	res := interp.Dispatch("groceries: shop errand")
	applyAll(st, res)
	groceriesID := res.Events[0].ID
	interp.view.MoveTo(groceriesID)

	interp.Dispatch(">done")
	if !interp.HasPending() {
		t.Fatalf("expected pending action")
	}

	undoRes := interp.Dispatch("&")
	if len(undoRes.Events) != 0 {
		t.Fatalf("expected no events emitted after undo, got %d", len(undoRes.Events))
	}
	if interp.HasPending() {
		t.Fatalf("expected pending action cleared after undo")
	}
	if interp.view.Position != groceriesID {
		t.Fatalf("expected position reverted to groceries, got %q", interp.view.Position)
	}
}

func TestPendingConfirmsOnNextCommand(t *testing.T) {
	interp, st := newInterpreter(t, 1000)
	res := interp.Dispatch("groceries: shop errand")
	applyAll(st, res)
	groceriesID := res.Events[0].ID
	interp.view.MoveTo(groceriesID)

	interp.Dispatch(">done")
	if !interp.HasPending() {
		t.Fatalf("expected pending action")
	}

	res = interp.Dispatch(",a note")
	if len(res.Events) != 2 {
		t.Fatalf("expected confirmed status event plus the new note event, got %d", len(res.Events))
	}
	if interp.HasPending() {
		t.Fatalf("expected pending action cleared by the next command")
	}
}

func TestPureAscendDoesNotConfirmPending(t *testing.T) {
	interp, st := newInterpreter(t, 1000)
	res := interp.Dispatch("groceries: shop errand")
	applyAll(st, res)
	groceriesID := res.Events[0].ID
	interp.view.MoveTo(groceriesID)

	interp.Dispatch(">done")
	res = interp.Dispatch(".")
	if len(res.Events) != 0 {
		t.Fatalf("expected ascend-only input not to confirm the pending write")
	}
	if !interp.HasPending() {
		t.Fatalf("expected pending action to survive a pure ascend command")
	}
}

func TestStatusCommandAtRootIsSemanticRefusal(t *testing.T) {
	interp, _ := newInterpreter(t, 1000)
	res := interp.Dispatch(">done")
	if res.Err == nil {
		t.Fatalf("expected a semantic refusal at root")
	}
}

func TestBareNumberSetsDepth(t *testing.T) {
	interp, _ := newInterpreter(t, 1000)
	interp.Dispatch("3")
	if interp.view.Depth != 3 {
		t.Fatalf("expected depth 3, got %d", interp.view.Depth)
	}
}

func TestTagFilterSetAddRemove(t *testing.T) {
	interp, _ := newInterpreter(t, 1000)
	interp.Dispatch("#work urgent")
	if _, ok := interp.view.Filters.TagInclude["work"]; !ok {
		t.Fatalf("expected work in tag include set")
	}
	interp.Dispatch("-urgent")
	if _, ok := interp.view.Filters.TagExclude["urgent"]; !ok {
		t.Fatalf("expected urgent moved to exclude set")
	}
	if _, ok := interp.view.Filters.TagInclude["urgent"]; ok {
		t.Fatalf("expected urgent removed from include set")
	}
	interp.Dispatch("+home")
	if _, ok := interp.view.Filters.TagInclude["home"]; !ok {
		t.Fatalf("expected home added to include set")
	}
}

func TestStatusFilterModes(t *testing.T) {
	interp, _ := newInterpreter(t, 1000)
	interp.Dispatch("??")
	if interp.view.Filters.Status.Mode != 1 { // StatusAll
		t.Fatalf("expected StatusAll")
	}
	interp.Dispatch("?")
	if interp.view.Filters.Status.Mode != 0 { // StatusDefault
		t.Fatalf("expected StatusDefault reset")
	}
	interp.Dispatch("?done")
	if interp.view.Filters.Status.Mode != 2 { // StatusKind
		t.Fatalf("expected StatusKind for a recognized status word")
	}
	interp.Dispatch("?in review")
	if interp.view.Filters.Status.Mode != 3 || interp.view.Filters.Status.Description != "in review" {
		t.Fatalf("expected StatusDescription for free text")
	}
}

func TestColumnToggleAndSortKey(t *testing.T) {
	interp, _ := newInterpreter(t, 1000)
	interp.Dispatch(":rtime")
	found := false
	for _, c := range interp.view.Columns {
		if c == "rtime" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected rtime column toggled on")
	}

	interp.Dispatch("::name rtime")
	if interp.view.SortKeyString() != "name rtime" {
		t.Fatalf("expected sort key 'name rtime', got %q", interp.view.SortKeyString())
	}
}

func TestRelayControlLineIsNotAnEvent(t *testing.T) {
	interp, _ := newInterpreter(t, 1000)
	res := interp.Dispatch("wss://relay.example.com")
	if res.RelayURL != "wss://relay.example.com" {
		t.Fatalf("expected relay control line echoed back, got %q", res.RelayURL)
	}
	if len(res.Events) != 0 {
		t.Fatalf("expected no task events for a relay control line")
	}
}

func TestEscapedLeadingSpaceForcesCreate(t *testing.T) {
	interp, _ := newInterpreter(t, 1000)
	res := interp.Dispatch(" >not a status command")
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Events) == 0 || res.Events[0].Content != ">not a status command" {
		t.Fatalf("expected the leading sigil to be treated as literal text, got %+v", res.Events)
	}
}

func TestSeedArgCreatesArgTaggedRootTask(t *testing.T) {
	interp, st := newInterpreter(t, 1000)
	ev := interp.SeedArg("groceries")
	if ev.Kind != nostrevent.KindTask {
		t.Fatalf("expected a kind-1621 task event, got %v", ev.Kind)
	}
	if _, ok := ev.Tags.ETag(); ok {
		t.Fatalf("expected a seeded arg task to have no parent, got tags %v", ev.Tags)
	}
	if vals := ev.Tags.All("t"); len(vals) != 1 || vals[0] != "arg" {
		t.Fatalf("expected the seeded task tagged %q, got %v", "arg", vals)
	}
	st.Apply(ev)
	if interp.view.Position != "" {
		t.Fatalf("expected SeedArg not to move the view position, got %q", interp.view.Position)
	}
	if task, ok := st.Get(ev.ID); !ok || task.Name != "groceries" {
		t.Fatalf("expected the seeded task to land in the store, got %+v ok=%v", task, ok)
	}
}

func TestTimeOffsetGrammar(t *testing.T) {
	now := int64(100000)
	cases := map[string]int64{
		"":                now,
		"now":             now,
		"-15":             now - 15*60,
		"15":              now + 15*60,
		"yesterday":       now - 86400,
		"yesterday 17:20": time.Date(1970, 1, 1, 17, 20, 0, 0, time.UTC).Unix(),
		"-1d":             now - 86400,
		"in 2 fortnights": now + 2*14*86400,
	}
	for input, want := range cases {
		got, err := parseTimeOffset(input, now)
		if err != nil {
			t.Fatalf("parseTimeOffset(%q) unexpected error: %v", input, err)
		}
		if got != want {
			t.Fatalf("parseTimeOffset(%q) = %d, want %d", input, got, want)
		}
	}
}

func TestTimeOffsetGrammarRejectsGarbage(t *testing.T) {
	if _, err := parseTimeOffset("sometime next week maybe", 0); err == nil {
		t.Fatalf("expected an error for an unparseable expression")
	}
}
