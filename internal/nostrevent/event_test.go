package nostrevent

import "testing"

func TestComputeIDDeterministic(t *testing.T) {
	tags := Tags{{"e", "parent123"}, {"t", "shop"}}
	id1 := ComputeID("author1", 1000, KindTask, tags, "groceries")
	id2 := ComputeID("author1", 1000, KindTask, tags, "groceries")
	if id1 != id2 {
		t.Fatalf("expected deterministic id, got %q and %q", id1, id2)
	}
	if len(id1) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(id1))
	}
}

func TestComputeIDChangesWithContent(t *testing.T) {
	tags := Tags{}
	id1 := ComputeID("author1", 1000, KindTask, tags, "groceries")
	id2 := ComputeID("author1", 1000, KindTask, tags, "laundry")
	if id1 == id2 {
		t.Fatalf("expected different ids for different content")
	}
}

func TestTagsETagAndHashtags(t *testing.T) {
	tags := Tags{{"e", "parent123"}, {"t", "shop"}, {"t", "errand"}}
	parent, ok := tags.ETag()
	if !ok || parent != "parent123" {
		t.Fatalf("expected ETag parent123, got %q ok=%v", parent, ok)
	}
	hashtags := tags.Hashtags()
	if len(hashtags) != 2 {
		t.Fatalf("expected 2 hashtags, got %d", len(hashtags))
	}
	if _, ok := hashtags["shop"]; !ok {
		t.Fatalf("expected hashtag 'shop'")
	}
}

func TestLatestPicksGreatestCreatedAtThenID(t *testing.T) {
	events := []Event{
		{ID: "b", CreatedAt: 100},
		{ID: "a", CreatedAt: 100},
		{ID: "z", CreatedAt: 50},
	}
	latest, ok := Latest(events)
	if !ok || latest.ID != "b" {
		t.Fatalf("expected tiebreak winner 'b', got %q", latest.ID)
	}
}

func TestLatestEmpty(t *testing.T) {
	if _, ok := Latest(nil); ok {
		t.Fatalf("expected ok=false for empty slice")
	}
}

func TestKindClassification(t *testing.T) {
	if !KindDone.IsStatus() {
		t.Fatalf("expected KindDone to be a status kind")
	}
	if KindTask.IsStatus() {
		t.Fatalf("did not expect KindTask to be a status kind")
	}
	if !KindReply.IsNote() {
		t.Fatalf("expected KindReply to be a note kind")
	}
}
