package coordinator

import (
	"fmt"

	"github.com/google/uuid"

	occerrors "github.com/o2control/odc/internal/errors"
	"github.com/o2control/odc/internal/model"
	"github.com/o2control/odc/internal/occontext"
	"github.com/o2control/odc/internal/scheduler"
	"github.com/o2control/odc/internal/session"
	"github.com/o2control/odc/internal/taskstate"
	"github.com/o2control/odc/internal/transport"
)

// TaskSummary is one row of the per-task failure report produced when a
// transition fails.
type TaskSummary struct {
	TaskID       model.TaskID
	State        model.DeviceState
	LastState    model.DeviceState
	CollectionID model.CollectionID
	Path         string
	Host         string
	AgentID      string
}

// StateSummary is the failure report itself: per-task rows plus a
// per-collection aggregated state, grouped by collection id.
type StateSummary struct {
	Tasks               []TaskSummary
	AggregatedByCollection map[model.CollectionID]model.AggregatedState
}

// TransitionResult is what RunTransition returns.
type TransitionResult struct {
	Aggregated model.AggregatedState
	Detailed   []taskstate.DetailedEntry
	Summary    *StateSummary
	Failed     map[model.TaskID]string
}

// Coordinator drives synchronized transitions, property gathers,
// subscribe/unsubscribe bookkeeping, and nMin recovery for a single
// Session's active topology. One Coordinator instance is bound to one
// Session and is only ever driven by one goroutine at a time — the
// caller (PartitionController) enforces that via the partition mutex.
type Coordinator struct {
	sess      *session.Session
	transport transport.CommandTransport
	sched     scheduler.AgentScheduler
}

// New returns a Coordinator bound to sess, using transport to talk to
// tasks and sched to talk to the agent scheduler (used by recovery).
func New(sess *session.Session, tr transport.CommandTransport, sched scheduler.AgentScheduler) *Coordinator {
	return &Coordinator{sess: sess, transport: tr, sched: sched}
}

// Subscribe registers targets as recipients of future state-change
// events and marks them subscribed in the task state table. Called once
// a topology has been activated and its tasks are ready to report state.
func (c *Coordinator) Subscribe(targets map[model.TaskID]bool) error {
	if len(targets) == 0 {
		return nil
	}
	if err := c.transport.Subscribe(targets); err != nil {
		return occerrors.Newf(occerrors.SessionSubscribeFailed, "%v", err)
	}
	for id := range targets {
		c.sess.States.SetSubscribed(id, true)
	}
	return nil
}

// unsubscribe stops delivery of state-change events for targets, used
// when tasks are being dropped from the topology (nMin recovery).
func (c *Coordinator) unsubscribe(targets map[model.TaskID]bool) {
	if len(targets) == 0 {
		return
	}
	if err := c.transport.Unsubscribe(targets); err != nil {
		return
	}
	for id := range targets {
		c.sess.States.SetSubscribed(id, false)
	}
}

// RunTransition drives every task matching pathFilter through transition,
// waits for them all to reach the expected target state or for the
// context's deadline, and returns the final aggregated state plus a
// per-task detail list.
func (c *Coordinator) RunTransition(ctx *occontext.Context, transition model.Transition, pathFilter string) (*TransitionResult, error) {
	target, ok := model.ExpectedState[transition]
	if !ok {
		return nil, occerrors.Newf(occerrors.RuntimeError, "unknown transition %q", transition)
	}
	if c.sess.Model == nil {
		return nil, occerrors.New(occerrors.ChangeStateFailed, "no active topology")
	}

	targets := c.sess.ResolvePath(pathFilter)
	if len(targets) == 0 {
		// Empty target set is a valid no-op.
		return &TransitionResult{Aggregated: model.AggregatedUndefined}, nil
	}

	op := newOperation(target, targets)
	requestID := uuid.NewString()

	if err := c.transport.ChangeState(requestID, transition, targets); err != nil {
		return nil, occerrors.Newf(occerrors.ChangeStateFailed, "broadcasting %s: %v", transition, err)
	}

	timedOut := c.consumeUntilDone(ctx, op)

	_, failed, _, reasons := op.snapshot()

	result := &TransitionResult{Detailed: c.sess.States.Detailed(targets, c.sess.HostAndPath), Failed: reasons}

	if len(failed) == 0 {
		agg, err := c.sess.States.Aggregate(targets)
		if err != nil {
			return nil, occerrors.Newf(occerrors.ChangeStateFailed, "%v", err)
		}
		result.Aggregated = agg
		return result, nil
	}

	result.Summary = c.buildSummary(targets)
	agg, aggErr := c.sess.States.Aggregate(targets)
	if aggErr == nil {
		result.Aggregated = agg
	} else {
		result.Aggregated = model.AggregatedUndefined
	}

	if timedOut {
		return result, occerrors.New(occerrors.RequestTimeout, "transition timed out waiting for tasks").WithDetails(summaryDetails(reasons))
	}
	return result, occerrors.New(occerrors.ChangeStateFailed, "one or more tasks failed to reach target state").WithDetails(summaryDetails(reasons))
}

// consumeUntilDone reads events off the transport's state-change stream,
// applying each to the task state table and to the operation, until every
// target task is classified or the context deadline elapses. Only one
// operation runs at a time per Coordinator. Returns true iff the deadline
// elapsed before every task was classified.
func (c *Coordinator) consumeUntilDone(ctx *occontext.Context, op *operation) bool {
	events := c.transport.StateChanges()
	for {
		if op.done() {
			return false
		}
		select {
		case <-ctx.Done():
			op.timeoutRemaining()
			return true
		case ev, ok := <-events:
			if !ok {
				op.timeoutRemaining()
				return true
			}
			// Events for a task are applied in arrival order; the
			// table itself serializes concurrent writers.
			c.sess.States.ApplyStateChange(ev.TaskID, ev.NewState)
			entry := c.sess.States.Get(ev.TaskID)
			ignored := entry != nil && entry.Ignored
			op.classify(ev.TaskID, ev.NewState, ignored)
		}
	}
}

func (c *Coordinator) buildSummary(targets map[model.TaskID]bool) *StateSummary {
	summary := &StateSummary{AggregatedByCollection: map[model.CollectionID]model.AggregatedState{}}
	byCollection := map[model.CollectionID]map[model.TaskID]bool{}

	for id := range targets {
		entry := c.sess.States.Get(id)
		if entry == nil {
			continue
		}
		task, _ := c.sess.TaskByID(id)
		row := TaskSummary{TaskID: id, State: entry.State, LastState: entry.LastState, CollectionID: entry.CollectionID}
		if task != nil {
			row.Path = task.Path
			row.Host = task.Host
			row.AgentID = task.AgentID
		}
		summary.Tasks = append(summary.Tasks, row)

		if entry.CollectionID != "" {
			if byCollection[entry.CollectionID] == nil {
				byCollection[entry.CollectionID] = map[model.TaskID]bool{}
			}
			byCollection[entry.CollectionID][id] = true
		}
	}

	for cid, ids := range byCollection {
		if agg, err := c.sess.States.Aggregate(ids); err == nil {
			summary.AggregatedByCollection[cid] = agg
		}
	}
	return summary
}

func summaryDetails(reasons map[model.TaskID]string) string {
	if len(reasons) == 0 {
		return ""
	}
	s := ""
	for id, reason := range reasons {
		if s != "" {
			s += "; "
		}
		s += fmt.Sprintf("%s: %s", id, reason)
	}
	return s
}
