package controller

import (
	occerrors "github.com/o2control/odc/internal/errors"
	"github.com/o2control/odc/internal/occontext"
	"github.com/o2control/odc/pkg/api"
)

// SetProperties gathers a Set across every task matching req.Path.
func (c *PartitionController) SetProperties(ctx *occontext.Context, req api.SetPropertiesRequest) *api.RequestResult {
	return c.dispatch(ctx, "SetProperties", req.Common, func(ctx *occontext.Context, p *Partition) (*api.RequestResult, error) {
		if p.Session.Model == nil {
			return &api.RequestResult{}, occerrors.New(occerrors.SetPropertiesFailed, "no active topology")
		}
		values := make(map[string]string, len(req.Values))
		for _, kv := range req.Values {
			values[kv.Key] = kv.Value
		}
		if err := p.Coord.SetProperties(ctx, req.Path, values); err != nil {
			return &api.RequestResult{}, err
		}
		return &api.RequestResult{}, nil
	})
}

// GetProperties gathers a Get across every task matching req.Path,
// returning a gather-specific reply shape keyed by device rather than
// the generic RequestResult.
func (c *PartitionController) GetProperties(parent *occontext.Context, req api.GetPropertiesRequest) *api.GetPropertiesReply {
	ctx, cancel := c.deadlineCtx(parent, req.Common)
	defer cancel()

	p := c.getOrCreate(req.Common.PartitionID)
	p.mu.Lock()
	defer p.mu.Unlock()

	reply := &api.GetPropertiesReply{}
	if p.Session.Model == nil {
		reply.StatusCode = api.StatusError
		reply.Error = &api.ErrorInfo{Code: string(occerrors.GetPropertiesFailed), Details: "no active topology"}
		return reply
	}

	result, err := p.Coord.GetProperties(ctx, req.Path, req.Query)
	if err != nil {
		reply.StatusCode = api.StatusError
		reply.Error = errToInfo(err)
	} else {
		reply.StatusCode = api.StatusOK
	}
	if result != nil {
		reply.Devices = make(map[string]map[string]string, len(result.Devices))
		for id, props := range result.Devices {
			reply.Devices[string(id)] = props
		}
		for id := range result.Failed {
			reply.Failed = append(reply.Failed, string(id))
		}
	}
	return reply
}

// GetState computes the aggregated (and optionally detailed) state of
// every task matching req.Path.
func (c *PartitionController) GetState(ctx *occontext.Context, req api.PathRequest) *api.RequestResult {
	return c.dispatch(ctx, "GetState", req.Common, func(ctx *occontext.Context, p *Partition) (*api.RequestResult, error) {
		if p.Session.Model == nil {
			return &api.RequestResult{}, occerrors.New(occerrors.GetStateFailed, "no active topology")
		}
		targets := p.Session.ResolvePath(req.Path)
		agg, err := p.Session.States.Aggregate(targets)
		if err != nil {
			return &api.RequestResult{}, occerrors.Newf(occerrors.GetStateFailed, "%v", err)
		}
		detailed := p.Session.States.Detailed(targets, p.Session.HostAndPath)
		return &api.RequestResult{
			TopologyState: buildTopologyState(agg, detailed, req.Detailed),
			Hosts:         hostsOf(detailed),
		}, nil
	})
}
