// Package checklist tracks the fixed set of closing-gate items a session
// must satisfy before it can succeed. The item set is defined once at
// session creation and never grows or shrinks mid-session.
package checklist

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotFound indicates an unknown item id.
	ErrNotFound = errors.New("checklist item not found")

	// ErrDuplicateItem indicates the item set contains a repeated id.
	ErrDuplicateItem = errors.New("duplicate checklist item")
)

// Item is one closing-gate requirement.
type Item struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Done        bool   `json:"done"`
}

// DefaultItems is the standard closing gate for a debugging session.
func DefaultItems() []Item {
	return []Item{
		{ID: "root-cause-documented", Description: "Root cause of the bug is documented"},
		{ID: "fix-verified", Description: "Fix verified by the external check"},
		{ID: "report-generated", Description: "Session report generated"},
		{ID: "commit-message-ready", Description: "Commit message drafted and valid"},
		{ID: "no-debug-artifacts", Description: "No stray debug output or temporary code left behind"},
	}
}

// Tracker holds checklist state for one session.
type Tracker struct {
	mu    sync.Mutex
	items []Item
	index map[string]int
}

// NewTracker creates a tracker over a fixed item set. Items keep the order
// they are supplied in; Done flags are honored, so a tracker can be
// rebuilt from persisted state.
func NewTracker(items []Item) (*Tracker, error) {
	if len(items) == 0 {
		return nil, errors.New("checklist requires at least one item")
	}

	t := &Tracker{
		items: make([]Item, len(items)),
		index: make(map[string]int, len(items)),
	}
	for i, item := range items {
		if item.ID == "" {
			return nil, fmt.Errorf("checklist item %d has no id", i)
		}
		if _, ok := t.index[item.ID]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateItem, item.ID)
		}
		t.items[i] = item
		t.index[item.ID] = i
	}
	return t, nil
}

// Mark sets an item done. Marking an already-done item is a no-op.
func (t *Tracker) Mark(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.index[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	t.items[i].Done = true
	return nil
}

// AllDone reports whether every item is done.
func (t *Tracker) AllDone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, item := range t.items {
		if !item.Done {
			return false
		}
	}
	return true
}

// Pending returns unmet items in their original enumeration order.
func (t *Tracker) Pending() []Item {
	t.mu.Lock()
	defer t.mu.Unlock()

	pending := make([]Item, 0)
	for _, item := range t.items {
		if !item.Done {
			pending = append(pending, item)
		}
	}
	return pending
}

// Items returns a copy of the full item set in enumeration order.
func (t *Tracker) Items() []Item {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Item, len(t.items))
	copy(out, t.items)
	return out
}
