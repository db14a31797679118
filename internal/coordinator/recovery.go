package coordinator

import (
	"time"

	occerrors "github.com/o2control/odc/internal/errors"
	"github.com/o2control/odc/internal/model"
	"github.com/o2control/odc/internal/occontext"
	"github.com/o2control/odc/internal/scheduler"
	"github.com/o2control/odc/internal/topology"
)

// recoveryPollBound is the fixed best-effort bound for waiting on agent
// count to drop after shutdown.
const recoveryPollBound = 20 * time.Second

// RecoveryOutcome reports which groups were shrunk and to what size.
type RecoveryOutcome struct {
	NewTopoFilePath string
	ShrunkGroups    map[string]int // group name -> new N
}

// Recover takes the failed-task set from a just-failed transition and
// attempts to reduce the topology to its surviving subset via nMin. It
// is invoked explicitly by the controller, never automatically retried.
func (c *Coordinator) Recover(ctx *occontext.Context, reader topology.Reader, failed map[model.TaskID]string) (*RecoveryOutcome, error) {
	if len(failed) == 0 {
		return nil, occerrors.New(occerrors.TopologyFailed, "recovery invoked with no failed tasks")
	}
	if c.sess.Model == nil {
		return nil, occerrors.New(occerrors.TopologyFailed, "no active topology")
	}

	// failedInstances is keyed by collection-instance id, not definition
	// id, so that two replicas of the same collection definition count
	// as two distinct failures rather than collapsing to one.
	failedInstances := map[model.CollectionID]bool{}
	agentsToShutdown := map[string]bool{}
	for id := range failed {
		entry := c.sess.States.Get(id)
		if entry == nil || entry.CollectionID == "" {
			return nil, occerrors.New(occerrors.TopologyFailed, "failed task has no collection; not recoverable")
		}
		failedInstances[entry.CollectionID] = true

		if task, ok := c.sess.Model.Tasks[id]; ok && task.AgentID != "" {
			agentsToShutdown[task.AgentID] = true
		}
	}

	failedCountByGroup := map[string]int{}
	groupByName := map[string]*model.Group{}

	for instID := range failedInstances {
		group, err := c.sess.Model.CollectionEnclosingGroup(instID)
		if err != nil {
			return nil, occerrors.Newf(occerrors.TopologyFailed, "%v; recovery aborted", err)
		}
		if group.NMin == nil {
			return nil, occerrors.Newf(occerrors.TopologyFailed, "group %q has no nMin configured; recovery aborted", group.Name)
		}
		groupByName[group.Name] = group
		failedCountByGroup[group.Name]++
	}

	remainingByGroup := map[string]int{}
	for name, group := range groupByName {
		remaining := group.N - failedCountByGroup[name]
		if remaining < *group.NMin {
			return nil, occerrors.Newf(occerrors.TopologyFailed, "group %q would drop below nMin (%d remaining, nMin %d); recovery aborted", name, remaining, *group.NMin)
		}
		remainingByGroup[name] = remaining
	}

	if err := c.shutdownFailedAgents(agentsToShutdown); err != nil {
		return nil, occerrors.Newf(occerrors.TopologyFailed, "shutting down failed agents: %v", err)
	}

	failedTasks := make(map[model.TaskID]bool, len(failed))
	for id := range failed {
		failedTasks[id] = true
	}
	c.unsubscribe(failedTasks)

	newPath := c.sess.TopoFilePath
	for name, remaining := range remainingByGroup {
		p, err := topology.RewriteGroupMultiplicity(newPath, name, remaining)
		if err != nil {
			return nil, occerrors.Newf(occerrors.TopologyFailed, "rewriting topology for group %q: %v", name, err)
		}
		newPath = p
	}

	events, err := c.sched.ActivateTopology(newPath, scheduler.UpdateUpdate)
	if err != nil {
		return nil, occerrors.Newf(occerrors.TopologyFailed, "re-activating shrunk topology: %v", err)
	}
	for ev := range events {
		if ev.Err != nil {
			return nil, occerrors.Newf(occerrors.TopologyFailed, "activation error: %v", ev.Err)
		}
	}

	newModel, err := reader.Read(newPath)
	if err != nil {
		return nil, occerrors.Newf(occerrors.TopologyFailed, "rebuilding topology model: %v", err)
	}
	c.sess.Activate(newPath, newModel, model.Idle)

	return &RecoveryOutcome{NewTopoFilePath: newPath, ShrunkGroups: remainingByGroup}, nil
}

// shutdownFailedAgents instructs the scheduler to shut down every failed
// collection's owning agent, then polls agent count until it drops by the
// expected amount or recoveryPollBound elapses. It is best-effort: if
// the count has not dropped by then it still returns nil, and the
// mismatch is neither logged nor reported to the caller.
func (c *Coordinator) shutdownFailedAgents(agents map[string]bool) error {
	if len(agents) == 0 {
		return nil
	}
	before, err := c.sched.AgentInfo()
	if err != nil {
		return err
	}
	for agentID := range agents {
		if err := c.sched.ShutdownAgent(agentID); err != nil {
			return err
		}
	}

	deadline := time.Now().Add(recoveryPollBound)
	target := len(before) - len(agents)
	for time.Now().Before(deadline) {
		current, err := c.sched.AgentInfo()
		if err != nil {
			return err
		}
		if len(current) <= target {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	// Best-effort: proceed regardless of whether the count converged.
	return nil
}
