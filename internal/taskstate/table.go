// Package taskstate implements TaskStateTable: for the active topology,
// the authoritative mapping taskId -> {lastState, currentState,
// subscribed, ignored, expendable, collectionId}.
// It is mutated only by the coordinator in response to state-change
// events, using a mutex-guarded map of per-task state.
package taskstate

import (
	"sync"

	"github.com/o2control/odc/internal/model"
)

// Entry is one row of the task state table.
type Entry struct {
	TaskID       model.TaskID
	CollectionID model.CollectionID
	State        model.DeviceState
	LastState    model.DeviceState
	Subscribed   bool
	Ignored      bool
	Expendable   bool
}

func (e Entry) clone() *Entry {
	cp := e
	return &cp
}

// Table is a concurrency-safe taskId -> Entry map.
type Table struct {
	mu      sync.Mutex
	entries map[model.TaskID]*Entry
}

// New returns an empty table.
func New() *Table {
	return &Table{entries: map[model.TaskID]*Entry{}}
}

// BuildFromTopology (re)initializes the table with one entry per task in
// the model, all starting in the given initial state (Idle after
// Activate).
func BuildFromTopology(m *model.TopoModel, initial model.DeviceState) *Table {
	t := New()
	for id, task := range m.Tasks {
		t.entries[id] = &Entry{
			TaskID:       id,
			CollectionID: task.CollectionID,
			State:        initial,
			LastState:    model.Undefined,
			Subscribed:   true,
			Expendable:   task.Expendable,
		}
	}
	return t
}

// Clear empties the table (Reset/Shutdown).
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = map[model.TaskID]*Entry{}
}

// Size returns the number of tracked tasks.
func (t *Table) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Get returns a copy of the entry for id, or nil if untracked.
func (t *Table) Get(id model.TaskID) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return nil
	}
	return e.clone()
}

// All returns a copy of every entry, in no particular order.
func (t *Table) All() []*Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.clone())
	}
	return out
}

// ApplyStateChange records that a task moved to newState, shifting the
// previous current state into lastState. It is the only mutation path
// used while a synchronized transition is in flight. Returns false if id
// is not tracked.
func (t *Table) ApplyStateChange(id model.TaskID, newState model.DeviceState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return false
	}
	e.LastState = e.State
	e.State = newState
	return true
}

// MarkIgnored flags a task as ignored, excluding it from future failed
// sets and aggregation. nMin recovery does not call it; it rebuilds the
// table from the shrunk topology instead.
func (t *Table) MarkIgnored(id model.TaskID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[id]; ok {
		e.Ignored = true
	}
}

// SetSubscribed toggles whether a task is subscribed to state-change
// events.
func (t *Table) SetSubscribed(id model.TaskID, subscribed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[id]; ok {
		e.Subscribed = subscribed
	}
}

// RemoveCollections drops every entry belonging to one of the given
// collections. Recovery normally rebuilds the table from the new
// topology instead; this helper supports incremental bookkeeping in
// tests and diagnostics.
func (t *Table) RemoveCollections(ids map[model.CollectionID]bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for tid, e := range t.entries {
		if ids[e.CollectionID] {
			delete(t.entries, tid)
		}
	}
}
