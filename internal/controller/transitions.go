package controller

import (
	"fmt"

	"github.com/o2control/odc/internal/coordinator"
	occerrors "github.com/o2control/odc/internal/errors"
	"github.com/o2control/odc/internal/model"
	"github.com/o2control/odc/internal/occontext"
	"github.com/o2control/odc/pkg/api"
)

var configureSequence = []model.Transition{
	model.TransitionInitDevice,
	model.TransitionCompleteInit,
	model.TransitionBind,
	model.TransitionConnect,
	model.TransitionInitTask,
}

var resetSequence = []model.Transition{
	model.TransitionResetTask,
	model.TransitionResetDevice,
}

// runTransition drives one synchronized transition and, on failure,
// attempts nMin recovery if allowRecovery is set and at least one
// failed collection's group has nMin configured.
//
// Recovery either fails outright (surfaced as TopologyFailed, overriding
// the original failure) or succeeds, in which case this returns a
// synthetic success result at the shrunk topology's Idle state rather
// than re-driving the rest of the caller's transition sequence — the
// caller must reissue its request to proceed past Idle.
func (c *PartitionController) runTransition(ctx *occontext.Context, p *Partition, transition model.Transition, path string, allowRecovery bool) (*coordinator.TransitionResult, error) {
	result, err := p.Coord.RunTransition(ctx, transition, path)
	if err == nil {
		return result, nil
	}
	if !allowRecovery || result == nil || len(result.Failed) == 0 {
		return result, err
	}
	hasNMin := false
	for id := range result.Failed {
		entry := p.Session.States.Get(id)
		if entry == nil || p.Session.Model == nil {
			continue
		}
		if g, gErr := p.Session.Model.CollectionEnclosingGroup(entry.CollectionID); gErr == nil && g.NMin != nil {
			hasNMin = true
			break
		}
	}
	if !hasNMin {
		return result, err
	}

	outcome, recErr := p.Coord.Recover(ctx, c.reader, result.Failed)
	if recErr != nil {
		return result, occerrors.Newf(occerrors.TopologyFailed, "recovery could not salvage the partition: %v", recErr)
	}

	ctx.Log.WithField("shrunkGroups", fmt.Sprintf("%v", outcome.ShrunkGroups)).Info("nMin recovery succeeded, partition reduced")

	targets := p.Session.ResolvePath(path)
	recovered := &coordinator.TransitionResult{
		Aggregated: model.FromDeviceState(model.Idle),
		Detailed:   p.Session.States.Detailed(targets, p.Session.HostAndPath),
	}
	return recovered, nil
}

// doConfigure drives InitDevice through InitTask in order, short
// circuiting on the first failed step.
func (c *PartitionController) doConfigure(ctx *occontext.Context, p *Partition, path string, allowRecovery bool) (*coordinator.TransitionResult, error) {
	var result *coordinator.TransitionResult
	var err error
	for _, t := range configureSequence {
		result, err = c.runTransition(ctx, p, t, path, allowRecovery)
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

func (c *PartitionController) doReset(ctx *occontext.Context, p *Partition, path string, allowRecovery bool) (*coordinator.TransitionResult, error) {
	var result *coordinator.TransitionResult
	var err error
	for _, t := range resetSequence {
		result, err = c.runTransition(ctx, p, t, path, allowRecovery)
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

// finishTransition builds a RequestResult from a coordinator transition
// outcome, whether it succeeded or failed. The per-task state summary is
// surfaced through Detailed.
func finishTransition(result *coordinator.TransitionResult, detailed bool) *api.RequestResult {
	r := &api.RequestResult{}
	if result == nil {
		return r
	}
	r.TopologyState = buildTopologyState(result.Aggregated, result.Detailed, detailed)
	r.Hosts = hostsOf(result.Detailed)
	if result.Summary != nil {
		r.Message = fmt.Sprintf("%d task(s) failed to reach target state", len(result.Summary.Tasks))
	}
	return r
}

// Configure drives every task matching req.Path from Idle to Ready.
func (c *PartitionController) Configure(ctx *occontext.Context, req api.PathRequest) *api.RequestResult {
	return c.dispatch(ctx, "Configure", req.Common, func(ctx *occontext.Context, p *Partition) (*api.RequestResult, error) {
		if p.Session.Model == nil {
			return &api.RequestResult{}, occerrors.New(occerrors.ChangeStateFailed, "no active topology")
		}
		result, err := c.doConfigure(ctx, p, req.Path, req.Common.AllowRecovery)
		return finishTransition(result, req.Detailed), err
	})
}

// Start drives every task matching req.Path to Running.
func (c *PartitionController) Start(ctx *occontext.Context, req api.PathRequest) *api.RequestResult {
	return c.dispatch(ctx, "Start", req.Common, func(ctx *occontext.Context, p *Partition) (*api.RequestResult, error) {
		if p.Session.Model == nil {
			return &api.RequestResult{}, occerrors.New(occerrors.ChangeStateFailed, "no active topology")
		}
		result, err := c.runTransition(ctx, p, model.TransitionRun, req.Path, req.Common.AllowRecovery)
		return finishTransition(result, req.Detailed), err
	})
}

// Stop drives every task matching req.Path back to Ready.
func (c *PartitionController) Stop(ctx *occontext.Context, req api.PathRequest) *api.RequestResult {
	return c.dispatch(ctx, "Stop", req.Common, func(ctx *occontext.Context, p *Partition) (*api.RequestResult, error) {
		if p.Session.Model == nil {
			return &api.RequestResult{}, occerrors.New(occerrors.ChangeStateFailed, "no active topology")
		}
		result, err := c.runTransition(ctx, p, model.TransitionStop, req.Path, req.Common.AllowRecovery)
		return finishTransition(result, req.Detailed), err
	})
}

// Reset drives every task matching req.Path through ResetTask then
// ResetDevice, back to Idle.
func (c *PartitionController) Reset(ctx *occontext.Context, req api.PathRequest) *api.RequestResult {
	return c.dispatch(ctx, "Reset", req.Common, func(ctx *occontext.Context, p *Partition) (*api.RequestResult, error) {
		if p.Session.Model == nil {
			return &api.RequestResult{}, occerrors.New(occerrors.ChangeStateFailed, "no active topology")
		}
		result, err := c.doReset(ctx, p, req.Path, req.Common.AllowRecovery)
		return finishTransition(result, req.Detailed), err
	})
}

// Terminate drives every task matching req.Path to Exiting.
func (c *PartitionController) Terminate(ctx *occontext.Context, req api.PathRequest) *api.RequestResult {
	return c.dispatch(ctx, "Terminate", req.Common, func(ctx *occontext.Context, p *Partition) (*api.RequestResult, error) {
		if p.Session.Model == nil {
			return &api.RequestResult{}, occerrors.New(occerrors.ChangeStateFailed, "no active topology")
		}
		result, err := c.runTransition(ctx, p, model.TransitionEnd, req.Path, req.Common.AllowRecovery)
		return finishTransition(result, req.Detailed), err
	})
}
