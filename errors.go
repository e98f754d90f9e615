package mqttflow

import (
	"errors"
	"fmt"
)

// Sentinel errors for misuse of the engine - check with errors.Is().
var (
	// ErrAlreadyConnected is returned by Connect while a connection exists or is being established.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrNotConnected is returned when an operation requires an active connection.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyDisconnecting is returned by Disconnect while a disconnect is in progress.
	ErrAlreadyDisconnecting = errors.New("already disconnecting")

	// ErrClientClosed is returned when an operation is attempted on a closed engine.
	ErrClientClosed = errors.New("client closed")

	// ErrInvalidTopic is returned when a topic name or filter is invalid.
	ErrInvalidTopic = errors.New("invalid topic")

	// ErrRateLimited is returned by Publish when the outbound rate limit is exceeded.
	ErrRateLimited = errors.New("publish rate limit exceeded")

	// ErrMessageDropped is returned by Publish when a producer interceptor drops the message.
	ErrMessageDropped = errors.New("message dropped by interceptor")
)

// Sentinel errors for runtime failures - check with errors.Is().
var (
	// ErrConnectTimeout is returned when the transport does not open in time.
	ErrConnectTimeout = errors.New("connect timeout")

	// ErrResponseTimeout is returned when the broker does not answer in time.
	ErrResponseTimeout = errors.New("response timeout")

	// ErrConnectionClosed is returned for operations pending when the transport closed.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrFlowFailed is wrapped by every FlowError.
	ErrFlowFailed = errors.New("flow failed")

	// ErrUnexpectedPacket is wrapped by UnexpectedPacketError.
	ErrUnexpectedPacket = errors.New("unexpected packet")

	// ErrUnhandledPacket is reported for inbound packet types a client never handles.
	ErrUnhandledPacket = errors.New("cannot handle packet")

	// ErrAuthFailed is wrapped by ConnectError for credential related refusals.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrConnectRefused is wrapped by ConnectError for other refusals.
	ErrConnectRefused = errors.New("connection refused")
)

// LogicError reports a call made in a state that does not allow it.
// No network action is taken for such calls.
// Extract with errors.As().
type LogicError struct {
	Op  string
	err error
}

func (e *LogicError) Error() string { return "mqttflow: " + e.Op + ": " + e.err.Error() }
func (e *LogicError) Unwrap() error { return e.err }

// NewLogicError creates a new LogicError for the named operation.
func NewLogicError(op string, err error) *LogicError {
	return &LogicError{Op: op, err: err}
}

// FlowError contains details about a flow that finished unsuccessfully.
// Extract with errors.As().
type FlowError struct {
	Code    FlowCode
	Message string
	cause   error
}

func (e *FlowError) Error() string {
	return string(e.Code) + " flow failed: " + e.Message
}

// Unwrap exposes ErrFlowFailed and the underlying cause, if any.
func (e *FlowError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrFlowFailed}
	}
	return []error{ErrFlowFailed, e.cause}
}

// NewFlowError creates a new FlowError. Cause may be nil.
func NewFlowError(code FlowCode, message string, cause error) *FlowError {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &FlowError{Code: code, Message: message, cause: cause}
}

// ConnectError contains details about a connection refused by the broker.
// Extract with errors.As().
type ConnectError struct {
	err        error
	ReturnCode ConnAckCode
}

func (e *ConnectError) Error() string {
	return "connect failed: " + e.ReturnCode.String()
}

func (e *ConnectError) Unwrap() error { return e.err }

// NewConnectError creates a new ConnectError from a CONNACK return code.
func NewConnectError(code ConnAckCode) *ConnectError {
	baseErr := ErrConnectRefused
	if code == ConnRefusedBadAuth || code == ConnRefusedNotAuth {
		baseErr = ErrAuthFailed
	}
	return &ConnectError{err: baseErr, ReturnCode: code}
}

// UnexpectedPacketError reports an acknowledgement that no pending flow accepted.
// Extract with errors.As().
type UnexpectedPacketError struct {
	PacketType PacketType
	PacketID   uint16
}

func (e *UnexpectedPacketError) Error() string {
	if e.PacketID != 0 {
		return fmt.Sprintf("unexpected packet: %s (id %d)", e.PacketType, e.PacketID)
	}
	return "unexpected packet: " + e.PacketType.String()
}

func (e *UnexpectedPacketError) Unwrap() error { return ErrUnexpectedPacket }

// newUnexpectedPacketError builds an UnexpectedPacketError for pkt.
func newUnexpectedPacketError(pkt Packet) *UnexpectedPacketError {
	e := &UnexpectedPacketError{PacketType: pkt.Type()}
	if withID, ok := pkt.(PacketWithID); ok {
		e.PacketID = withID.GetPacketID()
	}
	return e
}
