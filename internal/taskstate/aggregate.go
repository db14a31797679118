package taskstate

import (
	"fmt"

	"github.com/o2control/odc/internal/model"
)

// DetailedEntry is one row of a detailed state report.
type DetailedEntry struct {
	TaskID     model.TaskID
	State      model.DeviceState
	Ignored    bool
	Expendable bool
	Host       string
	Path       string
}

// Detailed builds the ordered detailed-state list for the given task ids,
// one entry per non-ignored task. hostAndPath supplies host/path lookups
// since the table itself does not carry them.
func (t *Table) Detailed(ids map[model.TaskID]bool, hostAndPath func(model.TaskID) (host, path string)) []DetailedEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]DetailedEntry, 0, len(ids))
	for id := range ids {
		e, ok := t.entries[id]
		if !ok || e.Ignored {
			continue
		}
		host, path := "", ""
		if hostAndPath != nil {
			host, path = hostAndPath(id)
		}
		out = append(out, DetailedEntry{
			TaskID: id, State: e.State, Ignored: e.Ignored,
			Expendable: e.Expendable, Host: host, Path: path,
		})
	}
	return out
}

// Aggregate computes the aggregated state over the given task ids: a
// single task's own state if the selection is a singleton, the shared
// state of all non-ignored tasks if they agree, or Mixed. An empty
// selection returns an error ("No tasks found").
func (t *Table) Aggregate(ids map[model.TaskID]bool) (model.AggregatedState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(ids) == 0 {
		return model.AggregatedUndefined, fmt.Errorf("no tasks found")
	}
	if len(ids) == 1 {
		for id := range ids {
			e, ok := t.entries[id]
			if !ok {
				return model.AggregatedUndefined, fmt.Errorf("no tasks found")
			}
			return model.FromDeviceState(e.State), nil
		}
	}

	var common *model.DeviceState
	seen := 0
	for id := range ids {
		e, ok := t.entries[id]
		if !ok || e.Ignored {
			continue
		}
		seen++
		if common == nil {
			s := e.State
			common = &s
		} else if *common != e.State {
			return model.AggregatedMixed, nil
		}
	}
	if seen == 0 {
		return model.AggregatedUndefined, fmt.Errorf("no tasks found")
	}
	return model.FromDeviceState(*common), nil
}
