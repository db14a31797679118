package controller

import (
	"sync"
	"time"

	"github.com/o2control/odc/internal/model"
	occerrors "github.com/o2control/odc/internal/errors"
	"github.com/o2control/odc/internal/occontext"
	"github.com/o2control/odc/internal/restore"
	"github.com/o2control/odc/internal/scheduler"
	"github.com/o2control/odc/internal/taskstate"
	"github.com/o2control/odc/internal/topology"
	"github.com/o2control/odc/internal/transport"
	"github.com/o2control/odc/internal/trigger"
	"github.com/o2control/odc/pkg/api"
)

// SchedulerFactory builds a fresh AgentScheduler for a newly created
// partition. TransportFactory does the same for the command transport.
// Both collaborators are interfaces; the binaries under cmd/ and the
// tests all supply factories returning the in-memory fakes.
type SchedulerFactory func() scheduler.AgentScheduler
type TransportFactory func() transport.CommandTransport

// PartitionController owns the partition map and dispatches every
// lifecycle request to the right partition.
type PartitionController struct {
	mu         sync.RWMutex
	partitions map[string]*Partition

	reader           topology.Reader
	schedFactory     SchedulerFactory
	transportFactory TransportFactory

	restoreStore   *restore.Store
	restoreEnabled bool
	history        *restore.History
	triggers       *trigger.Runner

	defaultTimeout time.Duration
	scriptTimeout  time.Duration
	pluginDir      string
}

// New returns an empty PartitionController.
func New(
	reader topology.Reader,
	schedFactory SchedulerFactory,
	transportFactory TransportFactory,
	restoreStore *restore.Store,
	restoreEnabled bool,
	history *restore.History,
	triggers *trigger.Runner,
	defaultTimeout, scriptTimeout time.Duration,
	pluginDir string,
) *PartitionController {
	return &PartitionController{
		partitions:       map[string]*Partition{},
		reader:           reader,
		schedFactory:     schedFactory,
		transportFactory: transportFactory,
		restoreStore:     restoreStore,
		restoreEnabled:   restoreEnabled,
		history:          history,
		triggers:         triggers,
		defaultTimeout:   defaultTimeout,
		scriptTimeout:    scriptTimeout,
		pluginDir:        pluginDir,
	}
}

// getOrCreate returns the partition for id, creating it (and its
// collaborators) the first time a request mentions that id.
func (c *PartitionController) getOrCreate(id string) *Partition {
	c.mu.RLock()
	p, ok := c.partitions[id]
	c.mu.RUnlock()
	if ok {
		return p
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.partitions[id]; ok {
		return p
	}
	p = newPartition(id, c.schedFactory(), c.transportFactory())
	c.partitions[id] = p
	return p
}

func (c *PartitionController) lookup(id string) (*Partition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.partitions[id]
	return p, ok
}

func (c *PartitionController) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.partitions, id)
}

// deadlineCtx builds a request-scoped context bounded by common's
// timeout, or the controller's default.
func (c *PartitionController) deadlineCtx(parent *occontext.Context, common api.CommonParams) (*occontext.Context, func()) {
	timeout := c.defaultTimeout
	if common.TimeoutSeconds > 0 {
		timeout = time.Duration(common.TimeoutSeconds) * time.Second
	}
	ctx, cancel := occontext.WithTimeout(parent, timeout)
	return ctx, cancel
}

// dispatch runs fn under the partition's mutex, converts a returned
// error into a populated RequestResult, stamps execTimeMs, and fires
// the request trigger.
func (c *PartitionController) dispatch(
	parent *occontext.Context,
	requestName string,
	common api.CommonParams,
	fn func(ctx *occontext.Context, p *Partition) (*api.RequestResult, error),
) *api.RequestResult {
	start := time.Now()
	ctx, cancel := c.deadlineCtx(parent, common)
	defer cancel()

	p := c.getOrCreate(common.PartitionID)
	p.mu.Lock()
	defer p.mu.Unlock()

	result, err := c.runGuarded(ctx, fn, p)
	result.PartitionID = common.PartitionID
	result.RunNumber = common.RunNumber
	result.ExecTimeMs = time.Since(start).Milliseconds()
	if err == nil {
		result.StatusCode = api.StatusOK
	} else {
		result.StatusCode = api.StatusError
		result.Error = errToInfo(err)
		result.Message = err.Error()
	}

	sessID := ""
	if p.Session != nil {
		sessID = p.Session.SchedulerSess
	}
	if result.SessionID == "" {
		result.SessionID = sessID
	}

	msg := "ok"
	if err != nil {
		msg = err.Error()
	}
	c.triggers.Fire(ctx, requestName, common.PartitionID, string(result.StatusCode), msg)

	return result
}

// runGuarded calls fn, converting a panic into a RuntimeError result
// instead of letting it escape the request goroutine.
func (c *PartitionController) runGuarded(ctx *occontext.Context, fn func(*occontext.Context, *Partition) (*api.RequestResult, error), p *Partition) (result *api.RequestResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = &api.RequestResult{}
			err = occerrors.Newf(occerrors.RuntimeError, "panic: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return &api.RequestResult{}, occerrors.New(occerrors.RequestTimeout, "request deadline already elapsed")
	}
	return fn(ctx, p)
}

func errToInfo(err error) *api.ErrorInfo {
	if e, ok := occerrors.AsError(err); ok {
		return &api.ErrorInfo{Code: string(e.Kind), Details: e.Message + orEmpty(e.Details)}
	}
	return &api.ErrorInfo{Code: string(occerrors.RuntimeError), Details: err.Error()}
}

func orEmpty(details string) string {
	if details == "" {
		return ""
	}
	return ": " + details
}

func toTopologySource(ts api.TopologySource) topology.Source {
	return topology.Source{File: ts.TopoFile, InlineContent: ts.TopoContent, GeneratorScript: ts.TopoScript}
}

// buildTopologyState converts an aggregation result (and optional
// detail list) into the wire shape.
func buildTopologyState(aggregated model.AggregatedState, detailed []taskstate.DetailedEntry, includeDetailed bool) *api.TopologyState {
	ts := &api.TopologyState{Aggregated: string(aggregated)}
	if includeDetailed {
		for _, d := range detailed {
			ts.Detailed = append(ts.Detailed, api.DetailedTask{
				TaskID: string(d.TaskID), State: string(d.State),
				Ignored: d.Ignored, Expendable: d.Expendable, Host: d.Host, Path: d.Path,
			})
		}
	}
	return ts
}

func hostsOf(detailed []taskstate.DetailedEntry) []string {
	seen := map[string]bool{}
	var hosts []string
	for _, d := range detailed {
		if d.Host == "" || seen[d.Host] {
			continue
		}
		seen[d.Host] = true
		hosts = append(hosts, d.Host)
	}
	return hosts
}
