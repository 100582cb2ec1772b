package cdap

// opcodeSet is a bitmask over Opcode used to express field-presence rules.
type opcodeSet uint32

func opcodes(ops ...Opcode) opcodeSet {
	var s opcodeSet
	for _, op := range ops {
		s |= 1 << uint(op)
	}
	return s
}

func (s opcodeSet) contains(op Opcode) bool {
	return s&(1<<uint(op)) != 0
}

// Field-presence sets per §6.1. A field present on the wire must belong to an
// opcode in its "allowed" set; a field in a "required" set must be present.
var (
	connectOpcodes = opcodes(OpConnect, OpConnectR)

	objectOpcodes = opcodes(
		OpCreate, OpCreateR,
		OpDelete, OpDeleteR,
		OpRead, OpReadR,
		OpWrite, OpWriteR,
		OpStart, OpStartR,
		OpStop, OpStopR,
	)

	// objValue may additionally ride on M_DELETE and M_READ, and is the one
	// field mandatory on M_WRITE.
	objValueOpcodes = objectOpcodes

	filterOpcodes = opcodes(OpCreate, OpDelete, OpRead, OpWrite, OpStart, OpStop)

	resultReasonOpcodes = opcodes(
		OpConnectR, OpReleaseR,
		OpCreateR, OpDeleteR, OpReadR, OpWriteR, OpStartR, OpStopR,
		OpCancelRead, OpCancelReadR,
	)

	// Opcodes for which a zero invoke id is a violation: every response plus
	// M_CANCELREAD and M_CONNECT.
	invokeIDRequired = opcodes(
		OpConnect, OpConnectR,
		OpReleaseR,
		OpCreateR, OpDeleteR, OpReadR, OpWriteR, OpStartR, OpStopR,
		OpCancelRead, OpCancelReadR,
	)
)

// Validate checks the opcode/field-presence matrix. It runs on every send
// and receive; violations surface as ProtocolError with kind FieldMissing or
// FieldForbidden and leave all session state untouched.
func (m *Message) Validate() error {
	op := m.Opcode
	if op < OpConnect || op >= opInvalid {
		return NewWireError("unknown opcode %d", int32(op))
	}

	// abs_syntax: required on connect messages, forbidden elsewhere.
	if m.AbsSyntax == 0 {
		if connectOpcodes.contains(op) {
			return NewFieldMissingError(op, "abs_syntax")
		}
	} else if !connectOpcodes.contains(op) {
		return NewFieldForbiddenError(op, "abs_syntax")
	}

	// invoke_id: required on responses, M_CONNECT and M_CANCELREAD.
	if m.InvokeID == 0 && invokeIDRequired.contains(op) {
		return NewFieldMissingError(op, "invoke_id")
	}

	// Endpoint quadruples: connect messages only; the process names are
	// mandatory on the request.
	if err := m.validateEndpoints(); err != nil {
		return err
	}

	// Object triple: obj_name requires obj_class.
	if m.ObjClass != "" && !objectOpcodes.contains(op) {
		return NewFieldForbiddenError(op, "obj_class")
	}
	if m.ObjName != "" {
		if m.ObjClass == "" {
			return NewFieldMissingError(op, "obj_class (obj_name is set)")
		}
		if !objectOpcodes.contains(op) {
			return NewFieldForbiddenError(op, "obj_name")
		}
	}
	if m.ObjInst != 0 && !objectOpcodes.contains(op) {
		return NewFieldForbiddenError(op, "obj_inst")
	}

	// obj_value: mandatory on M_WRITE, allowed on object-bearing opcodes.
	if len(m.ObjValue) == 0 {
		if op == OpWrite {
			return NewFieldMissingError(op, "obj_value")
		}
	} else if !objValueOpcodes.contains(op) {
		return NewFieldForbiddenError(op, "obj_value")
	}

	// result_reason: responses and the cancel-read pair only.
	if m.ResultReason != "" && !resultReasonOpcodes.contains(op) {
		return NewFieldForbiddenError(op, "result_reason")
	}

	// scope and filter: object requests only.
	if m.Scope != 0 && !filterOpcodes.contains(op) {
		return NewFieldForbiddenError(op, "scope")
	}
	if len(m.Filter) != 0 && !filterOpcodes.contains(op) {
		return NewFieldForbiddenError(op, "filter")
	}

	// version: connect messages only.
	if m.Version == 0 {
		if connectOpcodes.contains(op) {
			return NewFieldMissingError(op, "version")
		}
	} else if !connectOpcodes.contains(op) {
		return NewFieldForbiddenError(op, "version")
	}

	return nil
}

func (m *Message) validateEndpoints() error {
	op := m.Opcode
	onConnect := connectOpcodes.contains(op)

	if !onConnect {
		if m.Dest != (EndpointInfo{}) {
			return NewFieldForbiddenError(op, "dest endpoint")
		}
		if m.Src != (EndpointInfo{}) {
			return NewFieldForbiddenError(op, "src endpoint")
		}
		return nil
	}

	if op == OpConnect {
		if m.Dest.APName == "" {
			return NewFieldMissingError(op, "dest_ap_name")
		}
		if m.Src.APName == "" {
			return NewFieldMissingError(op, "src_ap_name")
		}
	}
	return nil
}
