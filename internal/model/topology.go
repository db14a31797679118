package model

import "fmt"

// TaskID uniquely identifies a task within an activated topology.
type TaskID string

// CollectionID uniquely identifies a collection within an activated topology.
type CollectionID string

// Task is the immutable-for-the-life-of-an-activation description of a
// single running worker process.
type Task struct {
	ID           TaskID
	CollectionID CollectionID // empty if the task does not belong to a collection
	Path         string       // DDS-style topology path, e.g. "main/Processors_0/task"
	Host         string
	WorkDir      string
	AgentID      string
	SlotID       string
	Expendable   bool
}

// Collection is the static definition of a replicated bundle of
// co-located tasks: one entry per collection *definition*, describing
// its resource shape and the group-wide NOriginal/NMin an agent-group
// requirements rollup needs. It is not itself a failure unit — each of
// its NOriginal replicas is a separate CollectionInstance.
type Collection struct {
	ID         CollectionID
	Name       string
	Path       string
	Zone       string
	AgentGroup string
	NOriginal  int
	NMin       *int // nil means "no nMin configured"
	NCores     int
	NumTasks   int // tasks per collection instance
}

// TotalTasks is NOriginal * NumTasks.
func (c Collection) TotalTasks() int {
	return c.NOriginal * c.NumTasks
}

// CollectionInstance is one running replica of a Collection definition —
// the atomic failure unit nMin recovery counts and shrinks against.
// Tasks reference their enclosing instance, not the definition, so that
// two replicas of the same collection are distinguishable failures.
type CollectionInstance struct {
	ID           CollectionID
	DefinitionID CollectionID
	Index        int
}

// Group is a replicated subtree with multiplicity N and an optional nMin.
type Group struct {
	Name       string
	N          int
	NMin       *int
	AgentGroup string
	Collections []CollectionID
}

// ZoneGroup is one member of a zone's agent-group list.
type ZoneGroup struct {
	N          int
	NCores     int
	AgentGroup string
}

// AgentGroupInfo aggregates the resource requirements of every collection
// assigned to a given agent group, produced by requirements extraction.
type AgentGroupInfo struct {
	Name      string
	Zone      string
	NumAgents int
	MinAgents *int
	NumSlots  int
	NumCores  int
}

// TopoModel is the in-memory, read-only-after-build representation of a
// parsed topology: tasks, collection definitions and their runtime
// instances, groups, zones, nMin annotations, and agent-group
// assignments.
type TopoModel struct {
	Tasks       map[TaskID]*Task
	Collections map[CollectionID]*Collection
	Instances   map[CollectionID]*CollectionInstance
	Groups      map[string]*Group
	Zones       map[string][]ZoneGroup // zone name -> zone groups

	tasksByPath map[string][]TaskID // additive cache, built alongside Tasks
}

// NewTopoModel returns an empty, ready-to-populate model.
func NewTopoModel() *TopoModel {
	return &TopoModel{
		Tasks:       map[TaskID]*Task{},
		Collections: map[CollectionID]*Collection{},
		Instances:   map[CollectionID]*CollectionInstance{},
		Groups:      map[string]*Group{},
		Zones:       map[string][]ZoneGroup{},
		tasksByPath: map[string][]TaskID{},
	}
}

// AddTask registers a task and indexes it by path.
func (m *TopoModel) AddTask(t *Task) {
	m.Tasks[t.ID] = t
	m.tasksByPath[t.Path] = append(m.tasksByPath[t.Path], t.ID)
}

// AddCollection registers a collection definition.
func (m *TopoModel) AddCollection(c *Collection) {
	m.Collections[c.ID] = c
}

// AddInstance registers a collection replica instance.
func (m *TopoModel) AddInstance(inst *CollectionInstance) {
	m.Instances[inst.ID] = inst
}

// AddGroup registers a group.
func (m *TopoModel) AddGroup(g *Group) {
	m.Groups[g.Name] = g
}

// TaskCount returns the number of tasks in the model.
func (m *TopoModel) TaskCount() int {
	return len(m.Tasks)
}

// ResolvePath resolves a path filter (an exact path or a "/"-terminated
// prefix meaning "everything under here") into the set of matching task
// ids. An empty filter matches every task. Returns an empty, non-nil set
// (never an error) when nothing matches; callers decide whether that is
// itself an error condition.
func (m *TopoModel) ResolvePath(path string) map[TaskID]bool {
	out := map[TaskID]bool{}
	if path == "" || path == "*" {
		for id := range m.Tasks {
			out[id] = true
		}
		return out
	}
	if ids, ok := m.tasksByPath[path]; ok {
		for _, id := range ids {
			out[id] = true
		}
	}
	prefix := path
	if prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	for p, ids := range m.tasksByPath {
		if len(p) > len(prefix) && p[:len(prefix)] == prefix {
			for _, id := range ids {
				out[id] = true
			}
		}
	}
	return out
}

// CollectionEnclosingGroup returns the group that owns cid, or an error
// if no group claims it. cid may name either a collection definition or
// one of its runtime instances; an instance resolves to its definition
// first.
func (m *TopoModel) CollectionEnclosingGroup(cid CollectionID) (*Group, error) {
	defID := cid
	if inst, ok := m.Instances[cid]; ok {
		defID = inst.DefinitionID
	}
	for _, g := range m.Groups {
		for _, id := range g.Collections {
			if id == defID {
				return g, nil
			}
		}
	}
	return nil, fmt.Errorf("collection %q is not a member of any group", cid)
}
