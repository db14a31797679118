// Package scheduler defines the AgentScheduler collaborator: the
// out-of-scope low-level task-scheduling session that submits/shuts down
// worker agents, reports agent/slot info, and activates topologies (spec
// section 1/6). The real implementation talks to a DDS-style commander
// service outside this module.
package scheduler

import (
	"github.com/o2control/odc/internal/model"
)

// UpdateType selects which mode ActivateTopology runs in.
type UpdateType string

const (
	UpdateActivate UpdateType = "ACTIVATE"
	UpdateUpdate   UpdateType = "UPDATE"
	UpdateStop     UpdateType = "STOP"
)

// AgentInfo describes one scheduler-managed worker host/slot container.
type AgentInfo struct {
	AgentID   string
	GroupName string
	Host      string
	Slots     int
}

// SubmitParams describes one resource-plugin-resolved submission request.
type SubmitParams struct {
	RMS       string
	Instances int
	Slots     int
	Config    string
	GroupName string
}

// SubmitEvent reports progress of an in-flight agent submission.
type SubmitEvent struct {
	Severity string
	Message  string
	Done     bool
	Err      error
}

// ActivateProgress reports progress of an in-flight topology activation.
type ActivateProgress struct {
	Completed int
	Errors    int
	Total     int
}

// TaskActivated is emitted once per task as the scheduler places it.
type TaskActivated struct {
	AgentID      string
	SlotID       string
	TaskID       model.TaskID
	CollectionID model.CollectionID // empty if the task is not collection-owned
	Path         string
	Host         string
	WorkDir      string
}

// ActivateEvent is one item from the ActivateTopology event stream.
type ActivateEvent struct {
	Message   string
	Progress  *ActivateProgress
	Activated *TaskActivated
	Done      bool
	Err       error
}

// TaskDoneEvent reports a task process exit, delivered to subscribers of
// task-exit notifications.
type TaskDoneEvent struct {
	TaskID   model.TaskID
	Path     string
	ExitCode int
	Signal   int
	Host     string
	WorkDir  string
}

// AgentScheduler is the interface the core consumes for everything
// related to submitting and activating remote scheduling sessions (spec
// section 6).
type AgentScheduler interface {
	CreateSession() (sessionID string, err error)
	AttachSession(sessionID string) error
	ShutdownSession() error

	Submit(params SubmitParams) (<-chan SubmitEvent, error)
	WaitForAgents(count int, deadlineSeconds int) error
	AgentInfo() ([]AgentInfo, error)

	ActivateTopology(file string, updateType UpdateType) (<-chan ActivateEvent, error)
	ShutdownAgent(agentID string) error

	SubscribeTaskDone() (<-chan TaskDoneEvent, error)

	SendCustomCommand(targetPath string, cmd []byte) error
}
