// Package api defines the wire-level request and reply types used by
// internal/controller and internal/cliserver: the Go-level contract of
// the request surface, independent of whichever transport frames it
// (gRPC, dot-command REPL). Message types satisfy the old-style
// proto.Message trio (Reset/String/ProtoMessage) so they slot into the
// same generated-code shape the rest of the stack expects, without a
// protoc run.
package api

import "fmt"

// CommonParams carries the fields present on every request kind (spec
// section 3/6).
type CommonParams struct {
	PartitionID     string
	RunNumber       int64
	TimeoutSeconds  int32
	AllowRecovery   bool
}

// StatusCode is the top-level outcome of a request.
type StatusCode string

const (
	StatusOK    StatusCode = "OK"
	StatusError StatusCode = "ERROR"
)

// SessionStatus classifies whether a partition's scheduler session is
// alive.
type SessionStatus string

const (
	SessionRunning SessionStatus = "RUNNING"
	SessionStopped SessionStatus = "STOPPED"
)

// ErrorInfo is the {code, details} pair carried by a failed RequestResult.
type ErrorInfo struct {
	Code    string
	Details string
}

// TopologyState is the aggregated (and optionally detailed) state
// snapshot attached to a RequestResult.
type TopologyState struct {
	Aggregated string
	Detailed   []DetailedTask
}

// DetailedTask is one row of a detailed topology state report.
type DetailedTask struct {
	TaskID     string
	State      string
	Ignored    bool
	Expendable bool
	Host       string
	Path       string
}

// RequestResult is the reply to every lifecycle request.
type RequestResult struct {
	StatusCode    StatusCode
	Message       string
	ExecTimeMs    int64
	Error         *ErrorInfo
	PartitionID   string
	RunNumber     int64
	SessionID     string
	TopologyState *TopologyState
	Hosts         []string
}

func (m *RequestResult) Reset()         { *m = RequestResult{} }
func (m *RequestResult) String() string { return fmt.Sprintf("%+v", *m) }
func (m *RequestResult) ProtoMessage()  {}

// PartitionStatus is one row of a Status reply.
type PartitionStatus struct {
	PartitionID    string
	SessionID      string
	SessionStatus  SessionStatus
	AggregatedState string
}

func (m *PartitionStatus) Reset()         { *m = PartitionStatus{} }
func (m *PartitionStatus) String() string { return fmt.Sprintf("%+v", *m) }
func (m *PartitionStatus) ProtoMessage()  {}

// StatusReply wraps the list returned by Status.
type StatusReply struct {
	Partitions []*PartitionStatus
}

func (m *StatusReply) Reset()         { *m = StatusReply{} }
func (m *StatusReply) String() string { return fmt.Sprintf("%+v", *m) }
func (m *StatusReply) ProtoMessage()  {}

// InitializeRequest attaches to an existing scheduler session when
// SessionID is non-empty, otherwise creates a new one.
type InitializeRequest struct {
	Common    CommonParams
	SessionID string
}

// TopologySource names exactly one of file/content/generator-script.
type TopologySource struct {
	TopoFile        string
	TopoContent     string
	TopoScript      string
}

// SubmitRequest resolves resources via a named resource plugin.
type SubmitRequest struct {
	Common    CommonParams
	Plugin    string
	Resources string
}

// ActivateRequest supplies a topology source to build against a
// running scheduler session.
type ActivateRequest struct {
	Common   CommonParams
	Topology TopologySource
}

// RunRequest always creates a fresh session; a caller-supplied
// SessionID is rejected rather than attached to.
type RunRequest struct {
	Common               CommonParams
	SessionID            string // must be empty; present only so a caller-supplied value can be rejected
	Plugin               string
	Resources            string
	Topology             TopologySource
	ExtractTopoResources bool
}

// UpdateRequest re-materializes the topology and drives it through
// Idle back to Ready.
type UpdateRequest struct {
	Common   CommonParams
	Topology TopologySource
}

// PathRequest is the shape shared by Configure/Start/Stop/Reset/
// Terminate/GetState.
type PathRequest struct {
	Common   CommonParams
	Path     string
	Detailed bool
}

// PropertyKV is one key/value pair for SetProperties.
type PropertyKV struct {
	Key   string
	Value string
}

// SetPropertiesRequest gathers a Set across every task matching Path.
type SetPropertiesRequest struct {
	Common CommonParams
	Path   string
	Values []PropertyKV
}

// GetPropertiesRequest gathers a Get across every task matching Path.
type GetPropertiesRequest struct {
	Common CommonParams
	Path   string
	Query  []string
}

// GetPropertiesReply is the Get-gather result.
type GetPropertiesReply struct {
	StatusCode StatusCode
	Error      *ErrorInfo
	Devices    map[string]map[string]string
	Failed     []string
}

// ShutdownRequest carries only the common fields.
type ShutdownRequest struct {
	Common CommonParams
}

// StatusRequest optionally filters the snapshot to running partitions.
type StatusRequest struct {
	RunningOnly bool
}
