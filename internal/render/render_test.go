package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/xeruf/mostr/internal/aggregate"
	"github.com/xeruf/mostr/internal/nostrevent"
	"github.com/xeruf/mostr/internal/store"
	"github.com/xeruf/mostr/internal/tracking"
	"github.com/xeruf/mostr/internal/view"
)

func setup(t *testing.T) (*store.Store, *Renderer, *view.State) {
	t.Helper()
	ledger := tracking.NewLedger()
	st := store.New(ledger)
	agg := aggregate.New(st, ledger, "a1")
	var buf bytes.Buffer
	r := New(st, agg, ledger, "a1", &buf, false)
	return st, r, view.New()
}

func taskEvent(id, content string, createdAt int64, parent string) nostrevent.Event {
	var tags nostrevent.Tags
	if parent != "" {
		tags = nostrevent.Tags{{"e", parent}}
	}
	return nostrevent.Event{ID: id, Author: "a1", CreatedAt: createdAt, Kind: nostrevent.KindTask, Content: content, Tags: tags}
}

func TestTableRendersVisibleTasksIndented(t *testing.T) {
	st, r, vw := setup(t)
	st.Apply(taskEvent("root", "groceries", 100, ""))
	st.Apply(taskEvent("child", "buy milk", 200, "root"))

	var buf bytes.Buffer
	r.out = &buf
	vw.Depth = 5
	r.Table(vw)

	out := buf.String()
	if !strings.Contains(out, "groceries") || !strings.Contains(out, "buy milk") {
		t.Fatalf("expected both tasks rendered, got %q", out)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), out)
	}
	if !strings.HasPrefix(lines[1], "  ") {
		t.Fatalf("expected child line indented, got %q", lines[1])
	}
}

func TestFormatDurationBuckets(t *testing.T) {
	if got := formatDuration(0); got != "-" {
		t.Fatalf("expected zero duration to render as '-', got %q", got)
	}
	if got := formatDuration(90 * time.Minute); got != "1h30m" {
		t.Fatalf("expected 1h30m, got %q", got)
	}
	if got := formatDuration(45 * time.Second); got != "-" {
		t.Fatalf("expected sub-minute duration rounded down to '-', got %q", got)
	}
}

func TestPendingLineReportsRemainingTime(t *testing.T) {
	_, r, _ := setup(t)
	now := time.Unix(1000, 0)
	line := r.PendingLine(now, now.Add(30*time.Second))
	if line == "" {
		t.Fatalf("expected a non-empty pending line")
	}
	if got := r.PendingLine(now, now); got != "confirming now" {
		t.Fatalf("expected 'confirming now' once expired, got %q", got)
	}
}

func TestPropsCellReflectsRawPoolForTarget(t *testing.T) {
	st, r, vw := setup(t)
	st.Apply(taskEvent("t1", "groceries", 100, ""))
	st.Apply(nostrevent.Event{ID: "raw1", Author: "a1", CreatedAt: 200, Kind: 9999, Content: "custom", Tags: nostrevent.Tags{{"e", "t1"}}})

	vw.Columns = []string{"name", "props"}
	var buf bytes.Buffer
	r.out = &buf
	r.Table(vw)

	if !strings.Contains(buf.String(), "custom") {
		t.Fatalf("expected props column to surface the raw-pool event, got %q", buf.String())
	}
}
