// Package occerrors contains the stable error kinds returned by the
// partition controller. gRPC interceptors in internal/rpcserver look
// for the *Error type defined here and set the gRPC status code
// accordingly.
package occerrors

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind is a stable identifier for a class of failure. The concrete string
// value is what callers see in RequestResult.Error.Code.
type Kind string

const (
	RequestTimeout             Kind = "REQUEST_TIMEOUT"
	RequestNotSupported        Kind = "REQUEST_NOT_SUPPORTED"
	SessionCreateFailed        Kind = "SESSION_CREATE_FAILED"
	SessionAttachFailed        Kind = "SESSION_ATTACH_FAILED"
	SessionShutdownFailed      Kind = "SESSION_SHUTDOWN_FAILED"
	SessionSubscribeFailed     Kind = "SESSION_SUBSCRIBE_FAILED"
	SessionCommanderInfoFailed Kind = "SESSION_COMMANDER_INFO_FAILED"
	SessionNotRunning          Kind = "SESSION_NOT_RUNNING"
	SubmitAgentsFailed         Kind = "SUBMIT_AGENTS_FAILED"
	ResourcePluginFailed       Kind = "RESOURCE_PLUGIN_FAILED"
	ActivateTopologyFailed     Kind = "ACTIVATE_TOPOLOGY_FAILED"
	CreateTopologyFailed       Kind = "CREATE_TOPOLOGY_FAILED"
	ChangeStateFailed          Kind = "CHANGE_STATE_FAILED"
	GetStateFailed             Kind = "GET_STATE_FAILED"
	SetPropertiesFailed        Kind = "SET_PROPERTIES_FAILED"
	GetPropertiesFailed        Kind = "GET_PROPERTIES_FAILED"
	TopologyFailed             Kind = "TOPOLOGY_FAILED"
	RuntimeError               Kind = "RUNTIME_ERROR"
)

// Error is the error type every partition-controller operation returns on
// failure. Details holds a human-readable list of partial per-task
// failures where applicable.
type Error struct {
	Kind    Kind
	Message string
	Details string
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// WithDetails returns a copy of e with Details set.
func (e *Error) WithDetails(details string) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// AsError extracts an *Error from err's chain, if present.
func AsError(err error) (*Error, bool) {
	var oe *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return oe, false
}

// CodeFromError maps a partition-controller error to a gRPC status code.
func CodeFromError(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}
	e, ok := AsError(err)
	if !ok {
		return codes.Unknown
	}
	switch e.Kind {
	case RequestTimeout:
		return codes.DeadlineExceeded
	case RequestNotSupported:
		return codes.InvalidArgument
	case SessionNotRunning:
		return codes.FailedPrecondition
	case SessionCreateFailed, SessionAttachFailed, SessionShutdownFailed,
		SessionSubscribeFailed, SessionCommanderInfoFailed, SubmitAgentsFailed,
		ResourcePluginFailed, ActivateTopologyFailed, CreateTopologyFailed,
		ChangeStateFailed, GetStateFailed, SetPropertiesFailed,
		GetPropertiesFailed, TopologyFailed:
		return codes.Internal
	default:
		return codes.Unknown
	}
}

// The unary error-code interceptor (errorCodeUnaryInterceptor) lives in
// internal/rpcserver, which also knows about the gRPC framing; this
// package only classifies errors so it stays importable from plain
// (non-gRPC) code such as the CLI adapter.
