// Package model holds the in-memory representation of a parsed topology
// (TopoModel) and the device/aggregated state enumerations shared across
// the coordinator and controller packages.
package model

// DeviceState is a value from the FairMQ-style device state machine that
// every task in a topology moves through.
type DeviceState string

const (
	Undefined          DeviceState = "UNDEFINED"
	Ok                 DeviceState = "OK"
	Error              DeviceState = "ERROR"
	Idle               DeviceState = "IDLE"
	InitializingDevice DeviceState = "INITIALIZING_DEVICE"
	Initialized        DeviceState = "INITIALIZED"
	Binding            DeviceState = "BINDING"
	Bound              DeviceState = "BOUND"
	Connecting         DeviceState = "CONNECTING"
	DeviceReady        DeviceState = "DEVICE_READY"
	InitializingTask   DeviceState = "INITIALIZING_TASK"
	ResettingTask      DeviceState = "RESETTING_TASK"
	ResettingDevice    DeviceState = "RESETTING_DEVICE"
	Ready              DeviceState = "READY"
	Running            DeviceState = "RUNNING"
	Exiting            DeviceState = "EXITING"
)

// AggregatedState is Undefined, Mixed, or a single DeviceState shared by
// every non-ignored task in a selection.
type AggregatedState string

const (
	AggregatedUndefined AggregatedState = "UNDEFINED"
	AggregatedMixed     AggregatedState = "MIXED"
)

// FromDeviceState lifts a single DeviceState into an AggregatedState.
func FromDeviceState(s DeviceState) AggregatedState {
	return AggregatedState(s)
}

func (a AggregatedState) String() string {
	return string(a)
}

// Transition is a value from the tagged enumeration of synchronized
// topology transitions the coordinator can drive.
type Transition string

const (
	TransitionInitDevice  Transition = "INIT_DEVICE"
	TransitionCompleteInit Transition = "COMPLETE_INIT"
	TransitionBind        Transition = "BIND"
	TransitionConnect     Transition = "CONNECT"
	TransitionInitTask    Transition = "INIT_TASK"
	TransitionRun         Transition = "RUN"
	TransitionStop        Transition = "STOP"
	TransitionResetTask   Transition = "RESET_TASK"
	TransitionResetDevice Transition = "RESET_DEVICE"
	TransitionEnd         Transition = "END"
)

// ExpectedState is the constant transition -> target device state table.
var ExpectedState = map[Transition]DeviceState{
	TransitionInitDevice:   InitializingDevice,
	TransitionCompleteInit: Initialized,
	TransitionBind:         Bound,
	TransitionConnect:      DeviceReady,
	TransitionInitTask:     Ready,
	TransitionRun:          Running,
	TransitionStop:         Ready,
	TransitionResetTask:    DeviceReady,
	TransitionResetDevice:  Idle,
	TransitionEnd:          Exiting,
}

// terminalStates are stable states a task can settle in that are never a
// valid target for any transition; reaching one of these while pending a
// different target classifies the task as failed.
var terminalStates = map[DeviceState]bool{
	Error: true,
}

// IsUnexpectedTerminal reports whether reaching `got` while waiting for
// `target` should classify the owning task as failed.
func IsUnexpectedTerminal(got, target DeviceState) bool {
	if got == target {
		return false
	}
	if terminalStates[got] {
		return true
	}
	// A device settling into any other "stable" state that is not the
	// target and not a state this transition could still be in flight
	// through is also an unexpected terminal outcome.
	switch got {
	case Idle, Initialized, Bound, DeviceReady, Ready, Running, Exiting:
		return true
	default:
		return false
	}
}
