package controller

import (
	occerrors "github.com/o2control/odc/internal/errors"
	"github.com/o2control/odc/internal/model"
	"github.com/o2control/odc/internal/occontext"
	"github.com/o2control/odc/internal/restore"
	"github.com/o2control/odc/internal/scheduler"
	"github.com/o2control/odc/internal/topology"
	"github.com/o2control/odc/pkg/api"
)

// Initialize creates or attaches a scheduler session. If req.SessionID
// is empty a fresh session is created; otherwise the controller attaches
// to an existing one and best-effort rebuilds local topology state from
// the last known history record.
func (c *PartitionController) Initialize(ctx *occontext.Context, req api.InitializeRequest) *api.RequestResult {
	return c.dispatch(ctx, "Initialize", req.Common, func(ctx *occontext.Context, p *Partition) (*api.RequestResult, error) {
		if p.Session.IsRunning() {
			_ = p.Scheduler.ShutdownSession()
			p.Session.ClearTopology()
			p.Session.ClearSchedulerSession()
		}

		var sessionID string
		var err error
		if req.SessionID == "" {
			sessionID, err = p.Scheduler.CreateSession()
			if err != nil {
				return &api.RequestResult{}, occerrors.Newf(occerrors.SessionCreateFailed, "%v", err)
			}
		} else {
			if err := p.Scheduler.AttachSession(req.SessionID); err != nil {
				return &api.RequestResult{}, occerrors.Newf(occerrors.SessionAttachFailed, "%v", err)
			}
			sessionID = req.SessionID
		}
		p.Session.SetSchedulerSession(sessionID)

		if _, err := p.Scheduler.SubscribeTaskDone(); err != nil {
			return &api.RequestResult{}, occerrors.Newf(occerrors.SessionSubscribeFailed, "%v", err)
		}

		if req.SessionID != "" {
			if err := c.rebuildFromHistory(ctx, p); err != nil {
				// Session stays attached; only the local-state rebuild
				// failed.
				return &api.RequestResult{SessionID: sessionID}, err
			}
		}

		result := &api.RequestResult{SessionID: sessionID}
		if c.restoreEnabled {
			if err := c.restoreStore.Put(p.ID, sessionID); err != nil {
				ctx.Log.WithError(err).Warn("failed to update restore file")
			}
		}
		return result, nil
	})
}

// rebuildFromHistory looks up the last topology this partition was
// activated against and rebuilds local state from it. A missing or
// unreadable topology is reported but does not undo the attach.
func (c *PartitionController) rebuildFromHistory(ctx *occontext.Context, p *Partition) error {
	if c.history == nil {
		return nil
	}
	rec, found, err := c.history.Latest(p.ID)
	if err != nil || !found {
		return nil
	}
	m, err := c.reader.Read(rec.TopologyPath)
	if err != nil {
		return occerrors.Newf(occerrors.CreateTopologyFailed, "remote active topology %q unreachable: %v", rec.TopologyPath, err)
	}
	p.Session.Activate(rec.TopologyPath, m, model.Idle)
	return nil
}

// Submit resolves a resource plugin into submission parameters,
// submits agents for each, and waits for the accumulated slot count to
// become active.
func (c *PartitionController) Submit(ctx *occontext.Context, req api.SubmitRequest) *api.RequestResult {
	return c.dispatch(ctx, "Submit", req.Common, func(ctx *occontext.Context, p *Partition) (*api.RequestResult, error) {
		return c.doSubmit(ctx, p, req.Plugin, req.Resources)
	})
}

func (c *PartitionController) doSubmit(ctx *occontext.Context, p *Partition, plugin, resources string) (*api.RequestResult, error) {
	if !p.Session.IsRunning() {
		return &api.RequestResult{}, occerrors.New(occerrors.SessionNotRunning, "no scheduler session")
	}

	paramSets, err := resolvePlugin(ctx, c.pluginDir, plugin, resources, c.scriptTimeout)
	if err != nil {
		return &api.RequestResult{}, err
	}

	requiredSlots := 0
	for _, params := range paramSets {
		events, err := p.Scheduler.Submit(params)
		if err != nil {
			return &api.RequestResult{}, occerrors.Newf(occerrors.SubmitAgentsFailed, "%v", err)
		}
		for ev := range events {
			if ev.Err != nil {
				return &api.RequestResult{}, occerrors.Newf(occerrors.SubmitAgentsFailed, "%v", ev.Err)
			}
			if ev.Done {
				break
			}
		}
		requiredSlots += params.Instances * params.Slots
	}

	remaining := int(occontext.Remaining(ctx, c.defaultTimeout).Seconds())
	if err := p.Scheduler.WaitForAgents(requiredSlots, remaining); err != nil {
		return &api.RequestResult{}, occerrors.Newf(occerrors.SubmitAgentsFailed, "waiting for %d slots: %v", requiredSlots, err)
	}
	return &api.RequestResult{}, nil
}

// Activate materializes a topology source, activates it at the
// scheduler, and builds the local TopoModel and TaskStateTable.
func (c *PartitionController) Activate(ctx *occontext.Context, req api.ActivateRequest) *api.RequestResult {
	return c.dispatch(ctx, "Activate", req.Common, func(ctx *occontext.Context, p *Partition) (*api.RequestResult, error) {
		return c.doActivate(ctx, p, req.Topology)
	})
}

func (c *PartitionController) doActivate(ctx *occontext.Context, p *Partition, src api.TopologySource) (*api.RequestResult, error) {
	if !p.Session.IsRunning() {
		return &api.RequestResult{}, occerrors.New(occerrors.SessionNotRunning, "no scheduler session")
	}

	path, err := topology.Materialize(ctx, toTopologySource(src), c.scriptTimeout)
	if err != nil {
		return &api.RequestResult{}, err
	}

	events, err := p.Scheduler.ActivateTopology(path, scheduler.UpdateActivate)
	if err != nil {
		return &api.RequestResult{}, occerrors.Newf(occerrors.ActivateTopologyFailed, "%v", err)
	}
	for ev := range events {
		if ev.Err != nil {
			return &api.RequestResult{}, occerrors.Newf(occerrors.ActivateTopologyFailed, "%v", ev.Err)
		}
	}

	m, err := c.reader.Read(path)
	if err != nil {
		return &api.RequestResult{}, occerrors.Newf(occerrors.CreateTopologyFailed, "%v", err)
	}
	p.Session.Activate(path, m, model.Idle)

	if err := p.Coord.Subscribe(p.Session.ResolvePath("")); err != nil {
		return &api.RequestResult{}, err
	}

	if c.history != nil {
		_ = c.history.Append(restore.HistoryRecord{PartitionID: p.ID, SessionID: p.Session.SchedulerSess, TopologyPath: path})
	}

	return &api.RequestResult{}, nil
}

// Run always creates a fresh session, then chains Initialize, Submit,
// and Activate; it rejects a request that supplies a target session id
// since Run always creates a new one.
func (c *PartitionController) Run(ctx *occontext.Context, req api.RunRequest) *api.RequestResult {
	return c.dispatch(ctx, "Run", req.Common, func(ctx *occontext.Context, p *Partition) (*api.RequestResult, error) {
		if req.SessionID != "" {
			return &api.RequestResult{}, occerrors.New(occerrors.RequestNotSupported, "Run does not accept a target session id")
		}
		if p.Session.IsRunning() {
			_ = p.Scheduler.ShutdownSession()
			p.Session.ClearTopology()
			p.Session.ClearSchedulerSession()
		}

		sessionID, err := p.Scheduler.CreateSession()
		if err != nil {
			return &api.RequestResult{}, occerrors.Newf(occerrors.SessionCreateFailed, "%v", err)
		}
		p.Session.SetSchedulerSession(sessionID)
		if _, err := p.Scheduler.SubscribeTaskDone(); err != nil {
			return &api.RequestResult{}, occerrors.Newf(occerrors.SessionSubscribeFailed, "%v", err)
		}

		if result, err := c.doSubmit(ctx, p, req.Plugin, req.Resources); err != nil {
			return result, err
		}
		return c.doActivate(ctx, p, req.Topology)
	})
}

// Update re-materializes a topology, resets the running one to Idle,
// re-activates in UPDATE mode, rebuilds local state, and drives back to
// Ready. Recovery is not attempted on the inner reset/configure steps:
// Update already performs its own topology rewrite, so an inner nMin
// recovery pass would be redundant.
func (c *PartitionController) Update(ctx *occontext.Context, req api.UpdateRequest) *api.RequestResult {
	return c.dispatch(ctx, "Update", req.Common, func(ctx *occontext.Context, p *Partition) (*api.RequestResult, error) {
		if !p.Session.IsRunning() {
			return &api.RequestResult{}, occerrors.New(occerrors.SessionNotRunning, "no scheduler session")
		}

		path, err := topology.Materialize(ctx, toTopologySource(req.Topology), c.scriptTimeout)
		if err != nil {
			return &api.RequestResult{}, err
		}

		if result, err := c.doReset(ctx, p, "", false); err != nil {
			return finishTransition(result, false), err
		}

		events, err := p.Scheduler.ActivateTopology(path, scheduler.UpdateUpdate)
		if err != nil {
			return &api.RequestResult{}, occerrors.Newf(occerrors.ActivateTopologyFailed, "%v", err)
		}
		for ev := range events {
			if ev.Err != nil {
				return &api.RequestResult{}, occerrors.Newf(occerrors.ActivateTopologyFailed, "%v", ev.Err)
			}
		}

		m, err := c.reader.Read(path)
		if err != nil {
			return &api.RequestResult{}, occerrors.Newf(occerrors.CreateTopologyFailed, "%v", err)
		}
		p.Session.Activate(path, m, model.Idle)

		if err := p.Coord.Subscribe(p.Session.ResolvePath("")); err != nil {
			return &api.RequestResult{}, err
		}

		if c.history != nil {
			_ = c.history.Append(restore.HistoryRecord{PartitionID: p.ID, SessionID: p.Session.SchedulerSess, TopologyPath: path})
		}

		result, err := c.doConfigure(ctx, p, "", false)
		return finishTransition(result, false), err
	})
}
