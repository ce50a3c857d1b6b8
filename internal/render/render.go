// Package render turns the tree filter.Visible walks over into the plain
// text table the REPL prints: indent + selection marker + one row per
// visible task, across the fixed property catalog, with color laid on top
// when the output is a terminal.
package render

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/xeruf/mostr/internal/aggregate"
	"github.com/xeruf/mostr/internal/store"
	"github.com/xeruf/mostr/internal/tracking"
	"github.com/xeruf/mostr/internal/view"
)

// Renderer prints the current view of the task forest plus status lines.
type Renderer struct {
	store       *store.Store
	agg         *aggregate.Aggregator
	ledger      *tracking.Ledger
	localAuthor string
	out         io.Writer
	palette     *palette
}

func New(st *store.Store, agg *aggregate.Aggregator, ledger *tracking.Ledger, localAuthor string, out io.Writer, color bool) *Renderer {
	return &Renderer{
		store:       st,
		agg:         agg,
		ledger:      ledger,
		localAuthor: localAuthor,
		out:         out,
		palette:     newPalette(color),
	}
}

// row is one visible task plus its depth relative to the view's position.
type row struct {
	task  *store.Task
	depth int
}

// Table prints every task visible under vw's position/depth/filters, one
// line per task, columns in vw.Columns order, sorted per vw.SortKey (or
// creation order if unset).
func (r *Renderer) Table(vw *view.State) {
	rows := r.visibleRows(vw)
	r.sortRows(rows, vw.SortKeyString())

	for _, rr := range rows {
		indent := strings.Repeat("  ", rr.depth-1)
		marker := "-"
		if rr.depth == 1 {
			marker = "*"
		}
		if active, ok := r.ledger.ActiveTask(r.localAuthor); ok && active == rr.task.ID {
			marker = ">"
		}

		cells := make([]string, 0, len(vw.Columns))
		for _, col := range vw.Columns {
			cells = append(cells, r.cell(col, rr.task, vw.Position))
		}
		fmt.Fprintf(r.out, "%s%s %s\n", indent, marker, strings.Join(cells, " | "))
	}
}

func (r *Renderer) visibleRows(vw *view.State) []row {
	var out []row
	var walk func(parentID string, depth int)
	walk = func(parentID string, depth int) {
		if depth > vw.Depth {
			return
		}
		for _, t := range r.store.ChildrenOf(parentID) {
			if vw.Filters.Matches(t, r.localAuthor) {
				out = append(out, row{task: t, depth: depth})
			}
			walk(t.ID, depth+1)
		}
	}
	walk(vw.Position, 1)
	return out
}

func (r *Renderer) sortRows(rows []row, sortKey string) {
	if sortKey == "" {
		return
	}
	keys := strings.Fields(sortKey)
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			col := strings.TrimPrefix(k, "-")
			descending := strings.HasPrefix(k, "-")
			a := r.cell(col, rows[i].task, "")
			b := r.cell(col, rows[j].task, "")
			if a == b {
				continue
			}
			if descending {
				return a > b
			}
			return a < b
		}
		return false
	})
}

func (r *Renderer) cell(col string, t *store.Task, position string) string {
	switch col {
	case "id":
		return shortID(t.ID)
	case "parentid":
		if t.ParentID == "" {
			return "-"
		}
		return shortID(t.ParentID)
	case "name":
		return t.Name
	case "state":
		return r.stateCell(t)
	case "hashtags":
		return joinSorted(t.Hashtags, "")
	case "tags":
		return joinSorted(t.Hashtags, "#")
	case "desc":
		return r.agg.Desc(t.ID)
	case "description", "descriptions":
		return r.agg.Description(t.ID)
	case "path":
		return r.agg.Path(t.ID)
	case "rpath":
		return r.agg.RPath(t.ID, position)
	case "time":
		return formatDuration(r.agg.Time(t.ID))
	case "rtime":
		return formatDuration(r.agg.RTime(t.ID))
	case "progress":
		return r.palette.progress(r.agg.Progress(t.ID))
	case "subtasks":
		return humanize.Comma(int64(r.agg.Subtasks(t.ID)))
	case "alltags":
		return joinSorted(t.Hashtags, "t:")
	case "props":
		return r.propsCell(t.ID)
	default:
		return ""
	}
}

func (r *Renderer) stateCell(t *store.Task) string {
	kind, desc := t.Status()
	label := kind.String()
	if desc != "" {
		label = fmt.Sprintf("%s (%s)", label, desc)
	}
	return r.palette.state(kind, label)
}

func (r *Renderer) propsCell(id string) string {
	events := r.store.RawPoolForTarget(id)
	if len(events) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(events))
	for _, e := range events {
		parts = append(parts, fmt.Sprintf("%s:%s", e.Kind.String(), e.Content))
	}
	return strings.Join(parts, ",")
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func joinSorted(set map[string]struct{}, prefix string) string {
	if len(set) == 0 {
		return "-"
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, prefix+n)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// formatDuration renders a duration as e.g. "1h05m", truncated to whole
// minutes; anything under a minute renders as "-". go-humanize has no
// pure duration formatter, so this is plain time.Duration math (see
// DESIGN.md).
func formatDuration(d time.Duration) string {
	d = d.Truncate(time.Minute)
	if d <= 0 {
		return "-"
	}
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// StatusLine prints a command Result's status or error, and PendingLine
// formats the remaining time on the pending buffer using go-humanize's
// relative-time phrasing.
func (r *Renderer) StatusLine(status string, err error) {
	if err != nil {
		fmt.Fprintln(r.out, r.palette.errorText(err.Error()))
		return
	}
	if status != "" {
		fmt.Fprintln(r.out, status)
	}
}

func (r *Renderer) PendingLine(now, expiresAt time.Time) string {
	if !expiresAt.After(now) {
		return "confirming now"
	}
	return humanize.RelTime(now, expiresAt, "", "until confirm")
}
