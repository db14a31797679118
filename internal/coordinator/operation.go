// Package coordinator implements the TopologyCoordinator: the heart of
// the controller. It drives synchronized transitions across a task set,
// runs property gathers, aggregates state, detects and classifies
// failures, and orchestrates nMin recovery.
package coordinator

import (
	"sync"

	"github.com/o2control/odc/internal/model"
)

// operation tracks one in-flight synchronized transition: its deadline,
// expected target state, target task set, and the reached/failed/ignored
// classification maps.
type operation struct {
	mu sync.Mutex

	target       model.DeviceState
	pending      map[model.TaskID]bool
	reached      map[model.TaskID]bool
	failed       map[model.TaskID]string // taskId -> failure reason
	ignoredTasks map[model.TaskID]bool
}

func newOperation(target model.DeviceState, tasks map[model.TaskID]bool) *operation {
	pending := make(map[model.TaskID]bool, len(tasks))
	for id := range tasks {
		pending[id] = true
	}
	return &operation{
		target:       target,
		pending:      pending,
		reached:      map[model.TaskID]bool{},
		failed:       map[model.TaskID]string{},
		ignoredTasks: map[model.TaskID]bool{},
	}
}

// done reports whether every target task has been classified.
func (op *operation) done() bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	return len(op.pending) == 0
}

// classify applies one state-change event to the operation. It is a
// no-op if the task is not pending (either
// untracked or already classified — events arriving after completion
// still update the task state table but don't reopen the operation, see
// caller).
func (op *operation) classify(id model.TaskID, newState model.DeviceState, ignored bool) {
	op.mu.Lock()
	defer op.mu.Unlock()

	if !op.pending[id] {
		return
	}

	if ignored {
		delete(op.pending, id)
		op.ignoredTasks[id] = true
		return
	}
	if newState == op.target {
		delete(op.pending, id)
		op.reached[id] = true
		return
	}
	if model.IsUnexpectedTerminal(newState, op.target) {
		delete(op.pending, id)
		op.failed[id] = "unexpected state " + string(newState)
	}
}

// timeoutRemaining marks every still-pending task as failed(timeout) and
// returns their ids.
func (op *operation) timeoutRemaining() []model.TaskID {
	op.mu.Lock()
	defer op.mu.Unlock()
	out := make([]model.TaskID, 0, len(op.pending))
	for id := range op.pending {
		op.failed[id] = "timeout"
		out = append(out, id)
	}
	op.pending = map[model.TaskID]bool{}
	return out
}

func (op *operation) snapshot() (reached, failed, ignored map[model.TaskID]bool, failReasons map[model.TaskID]string) {
	op.mu.Lock()
	defer op.mu.Unlock()
	r := make(map[model.TaskID]bool, len(op.reached))
	for k := range op.reached {
		r[k] = true
	}
	f := make(map[model.TaskID]bool, len(op.failed))
	reasons := make(map[model.TaskID]string, len(op.failed))
	for k, v := range op.failed {
		f[k] = true
		reasons[k] = v
	}
	ig := make(map[model.TaskID]bool, len(op.ignoredTasks))
	for k := range op.ignoredTasks {
		ig[k] = true
	}
	return r, f, ig, reasons
}
