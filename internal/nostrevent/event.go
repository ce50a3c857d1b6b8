// Package nostrevent holds the canonical event envelope and the fixed kind
// catalog that every other package in this module builds on.
package nostrevent

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
)

// Kind is the integer tag identifying an event's semantic role.
type Kind int64

const (
	KindNote  Kind = 1    // generic note; a description when it e-tags a task
	KindTask  Kind = 1621 // task creation
	KindReply Kind = 1622 // task comment, aggregated identically to KindNote

	KindOpen    Kind = 1630
	KindDone    Kind = 1631
	KindClosed  Kind = 1632
	KindPending Kind = 1633

	KindTracking Kind = 1650
)

// StatusKinds lists the kinds that represent a status transition, in the
// order ties are never expected to matter (recomputation always looks at
// CreatedAt/ID, never at this ordering).
var StatusKinds = [...]Kind{KindOpen, KindDone, KindClosed, KindPending}

func (k Kind) IsStatus() bool {
	switch k {
	case KindOpen, KindDone, KindClosed, KindPending:
		return true
	}
	return false
}

func (k Kind) IsNote() bool {
	return k == KindNote || k == KindReply
}

// String renders a status kind as the label the "state" render column and
// the ?-filter's kind-name matching use; non-status kinds fall back to
// their numeric form.
func (k Kind) String() string {
	switch k {
	case KindOpen:
		return "Open"
	case KindDone:
		return "Done"
	case KindClosed:
		return "Closed"
	case KindPending:
		return "Pending"
	case KindTask:
		return "Task"
	case KindNote:
		return "Note"
	case KindReply:
		return "Reply"
	case KindTracking:
		return "Tracking"
	default:
		return strconv.FormatInt(int64(k), 10)
	}
}

// Tag is an ordered, non-empty sequence of strings; Tag[0] is the tag name.
type Tag []string

func (t Tag) Name() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

func (t Tag) Value() string {
	if len(t) < 2 {
		return ""
	}
	return t[1]
}

// Tags is an ordered sequence of tag-tuples.
type Tags []Tag

// First returns the value of the first tag with the given name.
func (ts Tags) First(name string) (string, bool) {
	for _, t := range ts {
		if t.Name() == name {
			return t.Value(), true
		}
	}
	return "", false
}

// All returns the values of every tag with the given name, in order.
func (ts Tags) All(name string) []string {
	var out []string
	for _, t := range ts {
		if t.Name() == name {
			out = append(out, t.Value())
		}
	}
	return out
}

// ETag returns the event-id of the first "e" tag, if any.
func (ts Tags) ETag() (string, bool) {
	return ts.First("e")
}

// Hashtags returns the frozen set of "t" tag values.
func (ts Tags) Hashtags() map[string]struct{} {
	set := make(map[string]struct{})
	for _, v := range ts.All("t") {
		set[v] = struct{}{}
	}
	return set
}

// Event is the immutable, content-addressed record this module reasons
// about. It is intentionally narrower than the wire nostr.Event: no
// signature lives here, because signature verification happens at the
// transport boundary before an Event ever reaches this type (see
// internal/relay and internal/signer).
type Event struct {
	ID        string
	Author    string
	CreatedAt int64
	Kind      Kind
	Content   string
	Tags      Tags
}

// canonicalPayload mirrors NIP-01's serialization for id computation:
// [0, pubkey, created_at, kind, tags, content].
type canonicalPayload struct {
	zero      int
	pubkey    string
	createdAt int64
	kind      Kind
	tags      Tags
	content   string
}

func (p canonicalPayload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// NIP-01 writes <, > and & literally; encoding/json escapes them by default.
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]any{p.zero, p.pubkey, p.createdAt, int64(p.kind), p.tags, p.content}); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// ComputeID derives the content-addressed id for an event, given its
// signed fields. This is the same algorithm NIP-01 relays and nbd-wtf/go-nostr
// use, which lets the local session precompute an id for optimistic apply
// before the real sign/publish round trip completes.
func ComputeID(author string, createdAt int64, kind Kind, tags Tags, content string) string {
	if tags == nil {
		tags = Tags{} // serialized as [], never null
	}
	payload := canonicalPayload{0, author, createdAt, kind, tags, content}
	// Called directly: json.Marshal would re-escape the method's output.
	raw, err := payload.MarshalJSON()
	if err != nil {
		// json.Marshal only fails here on unsupported types, which canonicalPayload
		// never contains; treat as unreachable rather than threading an error
		// through every caller.
		panic(err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// SortKey orders events by CreatedAt ascending, ID ascending as tiebreak -
// the order used throughout this module for "latest wins" and "stable
// enumeration" semantics.
func SortKey(a, b Event) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt < b.CreatedAt
	}
	return a.ID < b.ID
}

// SortEvents sorts a slice of events in place using SortKey.
func SortEvents(events []Event) {
	sort.Slice(events, func(i, j int) bool { return SortKey(events[i], events[j]) })
}

// Latest returns the event with the greatest (CreatedAt, ID), or false if
// events is empty. Used to resolve "last writer wins" projections such as
// task status.
func Latest(events []Event) (Event, bool) {
	if len(events) == 0 {
		return Event{}, false
	}
	best := events[0]
	for _, e := range events[1:] {
		if SortKey(best, e) {
			best = e
		}
	}
	return best, true
}
