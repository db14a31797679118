package controller

import (
	"github.com/hashicorp/go-multierror"

	occerrors "github.com/o2control/odc/internal/errors"
	"github.com/o2control/odc/internal/model"
	"github.com/o2control/odc/internal/occontext"
	"github.com/o2control/odc/pkg/api"
)

// Shutdown shuts down the scheduler session and removes the partition,
// best-effort: the partition is removed from the map regardless of
// whether the scheduler shutdown call itself succeeded.
func (c *PartitionController) Shutdown(ctx *occontext.Context, req api.ShutdownRequest) *api.RequestResult {
	result := c.dispatch(ctx, "Shutdown", req.Common, func(ctx *occontext.Context, p *Partition) (*api.RequestResult, error) {
		var errs *multierror.Error
		if p.Session.IsRunning() {
			if err := p.Scheduler.ShutdownSession(); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		p.Session.ClearTopology()
		p.Session.ClearSchedulerSession()

		if c.restoreEnabled {
			if err := c.restoreStore.Remove(p.ID); err != nil {
				errs = multierror.Append(errs, err)
			}
		}

		if errs != nil {
			return &api.RequestResult{}, occerrors.Newf(occerrors.SessionShutdownFailed, "%v", errs)
		}
		return &api.RequestResult{}, nil
	})
	c.remove(req.Common.PartitionID)
	return result
}

// Status returns a read-only snapshot of every known partition (spec
// section 4.1/8: "Idempotence: Status is read-only (no mutation of
// partitions or sessions)").
func (c *PartitionController) Status(req api.StatusRequest) *api.StatusReply {
	c.mu.RLock()
	defer c.mu.RUnlock()

	reply := &api.StatusReply{}
	for id, p := range c.partitions {
		running := p.Session.IsRunning()
		if req.RunningOnly && !running {
			continue
		}
		status := api.SessionStopped
		if running {
			status = api.SessionRunning
		}

		agg := model.AggregatedUndefined
		if p.Session.Model != nil {
			if a, err := p.Session.States.Aggregate(p.Session.ResolvePath("")); err == nil {
				agg = a
			}
		}

		reply.Partitions = append(reply.Partitions, &api.PartitionStatus{
			PartitionID:     id,
			SessionID:       p.Session.SchedulerSess,
			SessionStatus:   status,
			AggregatedState: string(agg),
		})
	}
	return reply
}
