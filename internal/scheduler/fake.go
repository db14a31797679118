package scheduler

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/o2control/odc/internal/model"
)

// FakeScheduler is an in-memory AgentScheduler used by tests and as the
// scheduler that odcctl and odc-controller are wired with; this module
// has no real scheduling backend.
type FakeScheduler struct {
	mu sync.Mutex

	sessionID string
	running   bool
	agents    map[string]AgentInfo

	// Topology is the fixture the fake activates against; tests populate
	// it before calling ActivateTopology.
	Topology *model.TopoModel

	taskDoneCh chan TaskDoneEvent
}

func NewFakeScheduler() *FakeScheduler {
	return &FakeScheduler{
		agents:     map[string]AgentInfo{},
		taskDoneCh: make(chan TaskDoneEvent, 64),
	}
}

func (f *FakeScheduler) CreateSession() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionID = uuid.NewString()
	f.running = true
	return f.sessionID, nil
}

func (f *FakeScheduler) AttachSession(sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionID = sessionID
	f.running = true
	return nil
}

func (f *FakeScheduler) ShutdownSession() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	f.sessionID = ""
	f.agents = map[string]AgentInfo{}
	return nil
}

func (f *FakeScheduler) Submit(params SubmitParams) (<-chan SubmitEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return nil, fmt.Errorf("session not running")
	}
	ch := make(chan SubmitEvent, params.Instances+1)
	for i := 0; i < params.Instances; i++ {
		id := uuid.NewString()
		f.agents[id] = AgentInfo{AgentID: id, GroupName: params.GroupName, Host: "fake-host", Slots: params.Slots}
		ch <- SubmitEvent{Severity: "info", Message: "agent submitted"}
	}
	ch <- SubmitEvent{Done: true}
	close(ch)
	return ch, nil
}

func (f *FakeScheduler) WaitForAgents(count int, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.agents) < count {
		return fmt.Errorf("only %d of %d requested agents active", len(f.agents), count)
	}
	return nil
}

func (f *FakeScheduler) AgentInfo() ([]AgentInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]AgentInfo, 0, len(f.agents))
	for _, a := range f.agents {
		out = append(out, a)
	}
	return out, nil
}

func (f *FakeScheduler) ActivateTopology(_ string, _ UpdateType) (<-chan ActivateEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Topology == nil {
		return nil, fmt.Errorf("fake scheduler has no fixture topology loaded")
	}
	total := f.Topology.TaskCount()
	ch := make(chan ActivateEvent, total+2)
	i := 0
	for id, task := range f.Topology.Tasks {
		i++
		ch <- ActivateEvent{Activated: &TaskActivated{
			AgentID: task.AgentID, SlotID: task.SlotID, TaskID: id,
			CollectionID: task.CollectionID, Path: task.Path,
			Host: task.Host, WorkDir: task.WorkDir,
		}}
		ch <- ActivateEvent{Progress: &ActivateProgress{Completed: i, Total: total}}
	}
	ch <- ActivateEvent{Done: true}
	close(ch)
	return ch, nil
}

func (f *FakeScheduler) ShutdownAgent(agentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.agents, agentID)
	return nil
}

func (f *FakeScheduler) SubscribeTaskDone() (<-chan TaskDoneEvent, error) {
	return f.taskDoneCh, nil
}

func (f *FakeScheduler) SendCustomCommand(_ string, _ []byte) error {
	return nil
}
