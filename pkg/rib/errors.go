// Package rib implements the Resource Information Base: a per-schema
// hierarchical store of named managed objects accessed over CDAP, with
// parent/child invariants, class callbacks, prefix-delegated subtrees and a
// daemon multiplexing CDAP events across RIB instances.
package rib

import "fmt"

// ErrorCode represents the category of a RIB error.
type ErrorCode int

const (
	// ErrObjectExists indicates the FQN or the object is already in the RIB.
	ErrObjectExists ErrorCode = iota + 1

	// ErrObjectDoesNotExist indicates no object matches the query.
	ErrObjectDoesNotExist

	// ErrObjectHasChildren indicates a removal refused because the object
	// still has children.
	ErrObjectHasChildren

	// ErrObjectInvalid indicates an invalid object or FQN, including any
	// attempt to remove the root.
	ErrObjectInvalid

	// ErrObjectClassMismatch indicates the object exists but its class does
	// not match the one the caller specified.
	ErrObjectClassMismatch

	// ErrSchemaNotFound indicates no schema is registered for the version.
	ErrSchemaNotFound

	// ErrSchemaExists indicates a schema is already registered for the
	// version.
	ErrSchemaExists

	// ErrCallbackAlreadyRegistered indicates a create callback is already
	// registered for the (class, path) pair.
	ErrCallbackAlreadyRegistered

	// ErrOperationNotSupported indicates the target object does not
	// implement the requested operation, or no target exists for it.
	ErrOperationNotSupported

	// ErrRIBAlreadyRegistered indicates the RIB is already associated with
	// a (version, AE name) pair, or the pair is taken.
	ErrRIBAlreadyRegistered

	// ErrRIBNotFound indicates no RIB matches the (version, AE name) pair
	// or port id.
	ErrRIBNotFound
)

// String returns a human-readable name for the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrObjectExists:
		return "ObjectExists"
	case ErrObjectDoesNotExist:
		return "ObjectDoesNotExist"
	case ErrObjectHasChildren:
		return "ObjectHasChildren"
	case ErrObjectInvalid:
		return "ObjectInvalid"
	case ErrObjectClassMismatch:
		return "ObjectClassMismatch"
	case ErrSchemaNotFound:
		return "SchemaNotFound"
	case ErrSchemaExists:
		return "SchemaExists"
	case ErrCallbackAlreadyRegistered:
		return "CallbackAlreadyRegistered"
	case ErrOperationNotSupported:
		return "OperationNotSupported"
	case ErrRIBAlreadyRegistered:
		return "RIBAlreadyRegistered"
	case ErrRIBNotFound:
		return "RIBNotFound"
	default:
		return fmt.Sprintf("Unknown(%d)", int(e))
	}
}

// Error represents a RIB error with an error code. RIB errors surfaced
// while serving a remote operation are mapped to response result codes and
// returned to the peer.
type Error struct {
	Code    ErrorCode
	Message string
	FQN     string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.FQN != "" {
		return fmt.Sprintf("%s: %s (fqn: %s)", e.Code, e.Message, e.FQN)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ============================================================================
// Factory Functions
// ============================================================================

// NewObjectExistsError creates an ObjectExists error.
func NewObjectExistsError(fqn string) *Error {
	return &Error{Code: ErrObjectExists, Message: "object already in the RIB", FQN: fqn}
}

// NewObjectDoesNotExistError creates an ObjectDoesNotExist error.
func NewObjectDoesNotExistError(fqn string) *Error {
	return &Error{Code: ErrObjectDoesNotExist, Message: "object is not in the RIB", FQN: fqn}
}

// NewObjectHasChildrenError creates an ObjectHasChildren error.
func NewObjectHasChildrenError(fqn string) *Error {
	return &Error{Code: ErrObjectHasChildren, Message: "object still has children", FQN: fqn}
}

// NewObjectInvalidError creates an ObjectInvalid error.
func NewObjectInvalidError(message, fqn string) *Error {
	return &Error{Code: ErrObjectInvalid, Message: message, FQN: fqn}
}

// NewObjectClassMismatchError creates an ObjectClassMismatch error.
func NewObjectClassMismatchError(want, got, fqn string) *Error {
	return &Error{
		Code:    ErrObjectClassMismatch,
		Message: fmt.Sprintf("object class is %q, caller specified %q", got, want),
		FQN:     fqn,
	}
}

// NewSchemaNotFoundError creates a SchemaNotFound error.
func NewSchemaNotFoundError(version int64) *Error {
	return &Error{Code: ErrSchemaNotFound, Message: fmt.Sprintf("no schema for version %d", version)}
}

// NewSchemaExistsError creates a SchemaExists error.
func NewSchemaExistsError(version int64) *Error {
	return &Error{Code: ErrSchemaExists, Message: fmt.Sprintf("schema for version %d already exists", version)}
}

// NewCallbackAlreadyRegisteredError creates a CallbackAlreadyRegistered error.
func NewCallbackAlreadyRegisteredError(class, path string) *Error {
	return &Error{
		Code:    ErrCallbackAlreadyRegistered,
		Message: fmt.Sprintf("create callback for class %q already registered", class),
		FQN:     path,
	}
}

// NewOperationNotSupportedError creates an OperationNotSupported error.
func NewOperationNotSupportedError(op, fqn string) *Error {
	return &Error{
		Code:    ErrOperationNotSupported,
		Message: op + " is not supported",
		FQN:     fqn,
	}
}

// NewRIBAlreadyRegisteredError creates a RIBAlreadyRegistered error.
func NewRIBAlreadyRegisteredError(version int64, aeName string) *Error {
	return &Error{
		Code:    ErrRIBAlreadyRegistered,
		Message: fmt.Sprintf("a RIB is already registered for version %d, AE %q", version, aeName),
	}
}

// NewRIBNotFoundError creates a RIBNotFound error.
func NewRIBNotFoundError(message string) *Error {
	return &Error{Code: ErrRIBNotFound, Message: message}
}

// ============================================================================
// Error Type Checking Helpers
// ============================================================================

// IsError reports whether err is a RIB Error of the given code.
func IsError(err error, code ErrorCode) bool {
	re, ok := err.(*Error)
	return ok && re.Code == code
}

// IsObjectDoesNotExist reports whether err is an ObjectDoesNotExist error.
func IsObjectDoesNotExist(err error) bool {
	return IsError(err, ErrObjectDoesNotExist)
}

// IsOperationNotSupported reports whether err is an OperationNotSupported
// error.
func IsOperationNotSupported(err error) bool {
	return IsError(err, ErrOperationNotSupported)
}
