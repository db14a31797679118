// Package transport defines the CommandTransport collaborator: the
// out-of-scope command delivery layer that carries typed command
// messages to tasks and typed replies back. The core only depends on
// this interface; the real implementation talks to FairMQ devices over
// the wire and lives outside this module.
package transport

import (
	"github.com/o2control/odc/internal/model"
)

// StateChangeEvent is delivered whenever a task reports a new device
// state, independent of any particular in-flight transition operation.
type StateChangeEvent struct {
	TaskID   model.TaskID
	NewState model.DeviceState
}

// PropertyReply is one task's answer to a GetProperties/SetProperties
// gather.
type PropertyReply struct {
	TaskID     model.TaskID
	OK         bool
	Properties map[string]string // populated for GetProperties replies
	Error      string
}

// CommandTransport is the interface the coordinator uses to broadcast
// commands to tasks and to consume their replies. A single transport
// instance is shared by a Session; each broadcast call is independent
// and callers correlate replies via RequestID.
type CommandTransport interface {
	// ChangeState broadcasts a state transition to every task in target.
	ChangeState(requestID string, transition model.Transition, target map[model.TaskID]bool) error

	// GetProperties broadcasts a property-get query to every task in
	// target with the given key filter (empty means "all properties").
	GetProperties(requestID string, target map[model.TaskID]bool, query []string) error

	// SetProperties broadcasts a property-set command to every task in
	// target.
	SetProperties(requestID string, target map[model.TaskID]bool, values map[string]string) error

	// StateChanges returns a channel of state-change events for every
	// subscribed task, for the life of the transport.
	StateChanges() <-chan StateChangeEvent

	// PropertyReplies returns the channel carrying the replies to the
	// gather broadcast under requestID; each requestID has its own
	// channel, so replies need no further filtering.
	PropertyReplies(requestID string) <-chan PropertyReply

	// Subscribe marks the given tasks as recipients of future state
	// change events.
	Subscribe(target map[model.TaskID]bool) error

	// Unsubscribe stops delivering state-change events for the given
	// tasks.
	Unsubscribe(target map[model.TaskID]bool) error
}
