package store

import "github.com/xeruf/mostr/internal/nostrevent"

// Task is the derived entity keyed by the id of its creating kind-1621
// event. Everything but the StatusEvents/Notes slices is fixed at creation
// time; those two slices grow as further events arrive.
type Task struct {
	ID        string
	Name      string
	ParentID  string // "" means no parent (root, or a rejected cyclic edge)
	Hashtags  map[string]struct{}
	CreatedAt int64
	Author    string

	StatusEvents []nostrevent.Event
	Notes        []nostrevent.Event
}

// Status returns the winning status event's kind and description, or
// (KindOpen, "") if no status event has ever targeted this task.
func (t *Task) Status() (nostrevent.Kind, string) {
	winner, ok := nostrevent.Latest(t.StatusEvents)
	if !ok {
		return nostrevent.KindOpen, ""
	}
	return winner.Kind, winner.Content
}

// HasHashtag reports whether the task carries the given hashtag.
func (t *Task) HasHashtag(tag string) bool {
	_, ok := t.Hashtags[tag]
	return ok
}

func newTask(e nostrevent.Event, parentID string) *Task {
	return &Task{
		ID:        e.ID,
		Name:      e.Content,
		ParentID:  parentID,
		Hashtags:  e.Tags.Hashtags(),
		CreatedAt: e.CreatedAt,
		Author:    e.Author,
	}
}
