// Package cdap implements the CDAP session layer: the message model and wire
// codec, per-port-id session state machines, invoke-id allocation, pending
// operation tracking, and the public provider facade used to operate on
// managed objects of remote peers.
package cdap

import "fmt"

// AbstractSyntax is the fixed abstract-syntax identifier stamped on
// M_CONNECT and M_CONNECT_R messages.
const AbstractSyntax int32 = 0x0073

// Opcode identifies a CDAP operation. Request opcodes are even, their
// responses are the following odd value.
type Opcode int32

const (
	OpConnect Opcode = iota
	OpConnectR
	OpRelease
	OpReleaseR
	OpCreate
	OpCreateR
	OpDelete
	OpDeleteR
	OpRead
	OpReadR
	OpCancelRead
	OpCancelReadR
	OpWrite
	OpWriteR
	OpStart
	OpStartR
	OpStop
	OpStopR

	// opInvalid marks a decoded opcode outside the defined range.
	opInvalid
)

// String returns the protocol name of the opcode.
func (o Opcode) String() string {
	switch o {
	case OpConnect:
		return "M_CONNECT"
	case OpConnectR:
		return "M_CONNECT_R"
	case OpRelease:
		return "M_RELEASE"
	case OpReleaseR:
		return "M_RELEASE_R"
	case OpCreate:
		return "M_CREATE"
	case OpCreateR:
		return "M_CREATE_R"
	case OpDelete:
		return "M_DELETE"
	case OpDeleteR:
		return "M_DELETE_R"
	case OpRead:
		return "M_READ"
	case OpReadR:
		return "M_READ_R"
	case OpCancelRead:
		return "M_CANCELREAD"
	case OpCancelReadR:
		return "M_CANCELREAD_R"
	case OpWrite:
		return "M_WRITE"
	case OpWriteR:
		return "M_WRITE_R"
	case OpStart:
		return "M_START"
	case OpStartR:
		return "M_START_R"
	case OpStop:
		return "M_STOP"
	case OpStopR:
		return "M_STOP_R"
	default:
		return fmt.Sprintf("M_UNKNOWN(%d)", int32(o))
	}
}

// IsResponse reports whether the opcode is a response to a request.
func (o Opcode) IsResponse() bool {
	return o == OpConnectR || o == OpReleaseR || o == OpCreateR ||
		o == OpDeleteR || o == OpReadR || o == OpCancelReadR ||
		o == OpWriteR || o == OpStartR || o == OpStopR
}

// Request returns the request opcode a response answers. It is only
// meaningful when IsResponse is true.
func (o Opcode) Request() Opcode {
	return o - 1
}

// Flags modify the meaning of a message in a uniform way.
type Flags int32

const (
	FlagsNone Flags = iota

	// FSync is carried opaquely end to end; the session layer never
	// interprets it.
	FSync

	// FRdIncomplete marks an M_READ_R as a partial result: more responses
	// for the same invoke id will follow.
	FRdIncomplete
)

// String returns the protocol name of the flags value.
func (f Flags) String() string {
	switch f {
	case FlagsNone:
		return "NONE"
	case FSync:
		return "F_SYNC"
	case FRdIncomplete:
		return "F_RD_INCOMPLETE"
	default:
		return fmt.Sprintf("FLAGS(%d)", int32(f))
	}
}

// EndpointInfo names one side of a CDAP connection: the application process
// and the application entity within it.
type EndpointInfo struct {
	AEInst string
	AEName string
	APInst string
	APName string
}

// AuthPolicy carries the authentication policy agreed during connection
// establishment. Options are opaque to the session layer.
type AuthPolicy struct {
	Name     string
	Versions []string
	Options  []byte
}

// ObjInfo names a managed object and optionally carries its serialized value.
type ObjInfo struct {
	Class string
	Inst  int64
	Name  string
	Value []byte
}

// FiltInfo carries the filter predicate and scope of an object operation.
type FiltInfo struct {
	Filter []byte
	Scope  int32
}

// ResInfo carries the outcome of an operation on a response message.
// A zero Code means success.
type ResInfo struct {
	Code   int32
	Reason string
}

// ConnHandle describes one established CDAP connection. It is populated from
// the M_CONNECT exchange and immutable afterwards; callbacks receive it by
// value.
type ConnHandle struct {
	PortID  int
	Version int64
	Src     EndpointInfo
	Dest    EndpointInfo
	Auth    AuthPolicy
}

// Message is one CDAP message. All fields are optional on the wire; which
// fields must or must not be present depends on the opcode (see Validate).
// Zero values are not transmitted: decoding an absent field yields the
// field's zero value.
type Message struct {
	AbsSyntax    int32
	Opcode       Opcode
	InvokeID     int32
	Flags        Flags
	ObjClass     string
	ObjName      string
	ObjInst      int64
	ObjValue     []byte
	Result       int32
	ResultReason string
	Scope        int32
	Filter       []byte
	Dest         EndpointInfo
	Src          EndpointInfo
	Auth         AuthPolicy
	Version      int64
}

// IsRequest reports whether the message carries a request opcode. The invoke
// id is not looked at: a request with invoke id 0 is fire-and-forget.
func (m *Message) IsRequest() bool {
	return !m.Opcode.IsResponse()
}
