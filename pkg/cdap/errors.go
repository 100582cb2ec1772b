package cdap

import "fmt"

// ProtocolErrorKind categorizes violations of the CDAP protocol rules.
type ProtocolErrorKind int

const (
	// BadState indicates an operation not permitted in the current
	// connection state.
	BadState ProtocolErrorKind = iota + 1

	// DuplicateInvokeID indicates a request reusing an invoke id that is
	// still pending in the same direction.
	DuplicateInvokeID

	// OrphanResponse indicates a response for which no pending request
	// exists.
	OrphanResponse

	// OpcodeMismatch indicates a response whose opcode does not answer the
	// pending request it names.
	OpcodeMismatch

	// FieldMissing indicates a message missing a field its opcode requires.
	FieldMissing

	// FieldForbidden indicates a message carrying a field its opcode
	// forbids.
	FieldForbidden

	// NoSession indicates an operation on a port id with no session.
	NoSession
)

// String returns a human-readable name for the kind.
func (k ProtocolErrorKind) String() string {
	switch k {
	case BadState:
		return "BadState"
	case DuplicateInvokeID:
		return "DuplicateInvokeId"
	case OrphanResponse:
		return "OrphanResponse"
	case OpcodeMismatch:
		return "OpcodeMismatch"
	case FieldMissing:
		return "FieldMissing"
	case FieldForbidden:
		return "FieldForbidden"
	case NoSession:
		return "NoSession"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// ProtocolError represents a CDAP protocol violation. Protocol errors are
// recovered locally: the session state is left unchanged by the offending
// message.
type ProtocolError struct {
	Kind    ProtocolErrorKind
	Message string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewBadStateError creates a BadState error for an operation attempted in
// the wrong connection state.
func NewBadStateError(state, op string) *ProtocolError {
	return &ProtocolError{
		Kind:    BadState,
		Message: fmt.Sprintf("cannot process %s in state %s", op, state),
	}
}

// NewDuplicateInvokeIDError creates a DuplicateInvokeId error.
func NewDuplicateInvokeIDError(op Opcode, invokeID int32) *ProtocolError {
	return &ProtocolError{
		Kind:    DuplicateInvokeID,
		Message: fmt.Sprintf("%s reuses pending invoke id %d", op, invokeID),
	}
}

// NewOrphanResponseError creates an OrphanResponse error.
func NewOrphanResponseError(op Opcode, invokeID int32) *ProtocolError {
	return &ProtocolError{
		Kind:    OrphanResponse,
		Message: fmt.Sprintf("%s with invoke id %d matches no pending request", op, invokeID),
	}
}

// NewOpcodeMismatchError creates an OpcodeMismatch error.
func NewOpcodeMismatchError(pending, got Opcode, invokeID int32) *ProtocolError {
	return &ProtocolError{
		Kind:    OpcodeMismatch,
		Message: fmt.Sprintf("invoke id %d is pending for %s, got %s", invokeID, pending, got),
	}
}

// NewFieldMissingError creates a FieldMissing error.
func NewFieldMissingError(op Opcode, field string) *ProtocolError {
	return &ProtocolError{
		Kind:    FieldMissing,
		Message: fmt.Sprintf("%s requires %s", op, field),
	}
}

// NewFieldForbiddenError creates a FieldForbidden error.
func NewFieldForbiddenError(op Opcode, field string) *ProtocolError {
	return &ProtocolError{
		Kind:    FieldForbidden,
		Message: fmt.Sprintf("%s must not carry %s", op, field),
	}
}

// NewNoSessionError creates a NoSession error.
func NewNoSessionError(portID int) *ProtocolError {
	return &ProtocolError{
		Kind:    NoSession,
		Message: fmt.Sprintf("no session for port id %d", portID),
	}
}

// IsProtocolError reports whether err is a ProtocolError of the given kind.
func IsProtocolError(err error, kind ProtocolErrorKind) bool {
	pe, ok := err.(*ProtocolError)
	return ok && pe.Kind == kind
}

// WireError represents malformed bytes, an unknown opcode or an oversize
// buffer. The offending bytes are discarded; the session is unchanged.
type WireError struct {
	Cause string
}

// Error implements the error interface.
func (e *WireError) Error() string {
	return "wire: " + e.Cause
}

// NewWireError creates a WireError with a formatted cause.
func NewWireError(format string, args ...any) *WireError {
	return &WireError{Cause: fmt.Sprintf(format, args...)}
}

// IsWireError reports whether err is a WireError.
func IsWireError(err error) bool {
	_, ok := err.(*WireError)
	return ok
}

// SessionAbortedError is delivered to outstanding callbacks when a timer
// expiry or transport failure tears a session down.
type SessionAbortedError struct {
	PortID int
	Reason string
}

// Error implements the error interface.
func (e *SessionAbortedError) Error() string {
	return fmt.Sprintf("session on port id %d aborted: %s", e.PortID, e.Reason)
}

// IsSessionAborted reports whether err is a SessionAbortedError.
func IsSessionAborted(err error) bool {
	_, ok := err.(*SessionAbortedError)
	return ok
}

// ResourceExhaustedError indicates the invoke-id space or memory is
// exhausted. It is fatal for the operation that hit it.
type ResourceExhaustedError struct {
	Resource string
}

// Error implements the error interface.
func (e *ResourceExhaustedError) Error() string {
	return "resource exhausted: " + e.Resource
}
