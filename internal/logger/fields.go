package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so that logs from the
// session layer, the RIB and the control plane can be aggregated and queried
// together.
const (
	// ========================================================================
	// Session & Connection
	// ========================================================================
	KeyPortID   = "port_id"  // Flow port id identifying one byte stream
	KeyState    = "state"    // Connection state machine state
	KeyVersion  = "version"  // Negotiated RIB version
	KeyAEName   = "ae_name"  // Application entity name
	KeyAPName   = "ap_name"  // Application process name
	KeyInstance = "instance" // Daemon instance id
	KeyClient   = "client"   // Remote transport address

	// ========================================================================
	// Protocol & Operation
	// ========================================================================
	KeyOpcode   = "opcode"    // CDAP opcode (M_CONNECT, M_READ_R, ...)
	KeyInvokeID = "invoke_id" // Invoke id correlating request and response
	KeyResult   = "result"    // Result code carried on responses
	KeyReason   = "reason"    // Result reason carried on responses
	KeyFlags    = "flags"     // Message flags

	// ========================================================================
	// RIB objects
	// ========================================================================
	KeyFQN     = "fqn"      // Fully qualified object name
	KeyClass   = "class"    // Object class name
	KeyObjInst = "obj_inst" // Object instance id
	KeyRIB     = "rib"      // RIB handle

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyBytes      = "bytes"       // Payload size in bytes
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// PortID returns a slog.Attr for a flow port id.
func PortID(id int) slog.Attr {
	return slog.Int(KeyPortID, id)
}

// Opcode returns a slog.Attr for a CDAP opcode name.
func Opcode(op string) slog.Attr {
	return slog.String(KeyOpcode, op)
}

// InvokeID returns a slog.Attr for an invoke id.
func InvokeID(id int32) slog.Attr {
	return slog.Int(KeyInvokeID, int(id))
}

// FQN returns a slog.Attr for a fully qualified object name.
func FQN(name string) slog.Attr {
	return slog.String(KeyFQN, name)
}

// Class returns a slog.Attr for an object class name.
func Class(name string) slog.Attr {
	return slog.String(KeyClass, name)
}

// ObjInst returns a slog.Attr for an object instance id.
func ObjInst(id int64) slog.Attr {
	return slog.Int64(KeyObjInst, id)
}

// State returns a slog.Attr for a connection state name.
func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}

// Version returns a slog.Attr for a RIB version.
func Version(v int64) slog.Attr {
	return slog.Int64(KeyVersion, v)
}

// Result returns a slog.Attr for a response result code.
func Result(code int32) slog.Attr {
	return slog.Int(KeyResult, int(code))
}

// Client returns a slog.Attr for a remote transport address.
func Client(addr string) slog.Attr {
	return slog.String(KeyClient, addr)
}

// Bytes returns a slog.Attr for a payload size.
func Bytes(n int) slog.Attr {
	return slog.Int(KeyBytes, n)
}

// DurationMs returns a slog.Attr for duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// HexBytes returns a slog.Attr rendering a byte slice as hex.
func HexBytes(key string, b []byte) slog.Attr {
	return slog.String(key, fmt.Sprintf("%x", b))
}
