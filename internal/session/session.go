// Package session implements Session: the per-partition record holding
// the scheduler session handle, TopoModel, task/collection caches,
// zone/agent-group info, and the current topology file path.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/o2control/odc/internal/model"
	"github.com/o2control/odc/internal/taskstate"
)

// resolveCacheTTL bounds how long a wildcarded-path resolution is
// reused before ResolvePath re-scans the model; short enough that a
// transition issued immediately after Activate never observes a stale
// answer in practice, long enough to matter for repeated Status/GetState
// polling against the same path.
const resolveCacheTTL = 2 * time.Second

// Session holds everything the coordinator and controller need to drive
// one partition's active topology. There is exactly one Session per
// partition; cross-references between the model, the task state table,
// and the caches below are by id, never by pointer cycle.
type Session struct {
	mu sync.RWMutex

	PartitionID    string
	SchedulerSess  string // scheduler-session id; empty until created
	TopoFilePath   string
	Model          *model.TopoModel
	States         *taskstate.Table

	taskByID       map[model.TaskID]*model.Task
	collectionByID map[model.CollectionID]*model.Collection
	taskByPath     map[string][]model.TaskID

	Zones           map[string][]model.ZoneGroup
	CollectionNMin  map[string]NMinInfo // collection name -> nMin info
	AgentGroups     map[string]*model.AgentGroupInfo

	// resolveCache holds ResolvePath results keyed by path filter (spec
	// section 3's taskByPath reverse lookup), a short-TTL go-cache
	// instance flushed whenever the topology is rebuilt.
	resolveCache *cache.Cache
}

// NMinInfo is the per-collection nMin bookkeeping described in spec
// section 3.
type NMinInfo struct {
	NOriginal  int
	NMin       *int
	AgentGroup string
}

// New returns a fresh, un-activated Session for the given partition id.
func New(partitionID string) *Session {
	return &Session{
		PartitionID:    partitionID,
		taskByID:       map[model.TaskID]*model.Task{},
		collectionByID: map[model.CollectionID]*model.Collection{},
		taskByPath:     map[string][]model.TaskID{},
		Zones:          map[string][]model.ZoneGroup{},
		CollectionNMin: map[string]NMinInfo{},
		AgentGroups:    map[string]*model.AgentGroupInfo{},
		resolveCache:   cache.New(resolveCacheTTL, 2*resolveCacheTTL),
	}
}

// IsRunning reports whether a scheduler session has been created or
// attached.
func (s *Session) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.SchedulerSess != ""
}

// SetSchedulerSession records the scheduler session id (Initialize).
func (s *Session) SetSchedulerSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SchedulerSess = id
}

// ClearSchedulerSession reverts the session id to empty (Shutdown, spec
// section 8: "session id reverts to nil").
func (s *Session) ClearSchedulerSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SchedulerSess = ""
}

// Activate rebuilds the model, caches, and task state table from a
// freshly parsed topology, also refreshing Zones/AgentGroups.
func (s *Session) Activate(topoFilePath string, m *model.TopoModel, initial model.DeviceState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TopoFilePath = topoFilePath
	s.Model = m
	s.States = taskstate.BuildFromTopology(m, initial)

	s.taskByID = map[model.TaskID]*model.Task{}
	s.collectionByID = map[model.CollectionID]*model.Collection{}
	s.taskByPath = map[string][]model.TaskID{}
	for id, t := range m.Tasks {
		s.taskByID[id] = t
		s.taskByPath[t.Path] = append(s.taskByPath[t.Path], id)
	}
	for id, c := range m.Collections {
		s.collectionByID[id] = c
	}

	s.Zones = m.Zones
	s.CollectionNMin = map[string]NMinInfo{}
	for _, c := range m.Collections {
		s.CollectionNMin[c.Name] = NMinInfo{NOriginal: c.NOriginal, NMin: c.NMin, AgentGroup: c.AgentGroup}
	}
	s.AgentGroups = model.ExtractRequirements(m)
	s.resolveCache.Flush()
}

// ClearTopology clears caches, the model, and the task state table
// (Reset/shutdown).
func (s *Session) ClearTopology() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Model = nil
	if s.States != nil {
		s.States.Clear()
	}
	s.taskByID = map[model.TaskID]*model.Task{}
	s.collectionByID = map[model.CollectionID]*model.Collection{}
	s.taskByPath = map[string][]model.TaskID{}
	s.TopoFilePath = ""
	s.resolveCache.Flush()
}

// TaskByID looks up a task by id.
func (s *Session) TaskByID(id model.TaskID) (*model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.taskByID[id]
	return t, ok
}

// CollectionByID looks up a collection by id.
func (s *Session) CollectionByID(id model.CollectionID) (*model.Collection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collectionByID[id]
	return c, ok
}

// ResolvePath resolves a path filter against the current model, caching
// the result for resolveCacheTTL so a hot path (e.g. Status polling
// against "*") does not re-scan the model on every call.
func (s *Session) ResolvePath(path string) map[model.TaskID]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Model == nil {
		return map[model.TaskID]bool{}
	}

	key := fmt.Sprintf("resolve:%s", path)
	if cached, ok := s.resolveCache.Get(key); ok {
		hit := cached.(map[model.TaskID]bool)
		out := make(map[model.TaskID]bool, len(hit))
		for id := range hit {
			out[id] = true
		}
		return out
	}

	resolved := s.Model.ResolvePath(path)
	s.resolveCache.SetDefault(key, resolved)
	out := make(map[model.TaskID]bool, len(resolved))
	for id := range resolved {
		out[id] = true
	}
	return out
}

// HostAndPath is a convenience lookup used by taskstate.Table.Detailed.
func (s *Session) HostAndPath(id model.TaskID) (host, path string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.taskByID[id]
	if !ok {
		return "", ""
	}
	return t.Host, t.Path
}
