package cdap

// Message builders. They stamp the fields each opcode requires; invoke ids
// for outgoing requests are assigned separately by the session manager.

// OpenConnectionRequestMessage builds an M_CONNECT.
func OpenConnectionRequestMessage(version int64, src, dest EndpointInfo, auth AuthPolicy) *Message {
	return &Message{
		AbsSyntax: AbstractSyntax,
		Opcode:    OpConnect,
		Src:       src,
		Dest:      dest,
		Auth:      auth,
		Version:   version,
	}
}

// OpenConnectionResponseMessage builds an M_CONNECT_R answering the connect
// recorded in the session's handle.
func OpenConnectionResponseMessage(h ConnHandle, res ResInfo, invokeID int32) *Message {
	return &Message{
		AbsSyntax:    AbstractSyntax,
		Opcode:       OpConnectR,
		InvokeID:     invokeID,
		Result:       res.Code,
		ResultReason: res.Reason,
		Src:          h.Src,
		Dest:         h.Dest,
		Auth:         h.Auth,
		Version:      h.Version,
	}
}

// ReleaseConnectionRequestMessage builds an M_RELEASE.
func ReleaseConnectionRequestMessage(flags Flags) *Message {
	return &Message{
		Opcode: OpRelease,
		Flags:  flags,
	}
}

// ReleaseConnectionResponseMessage builds an M_RELEASE_R.
func ReleaseConnectionResponseMessage(flags Flags, res ResInfo, invokeID int32) *Message {
	return &Message{
		Opcode:       OpReleaseR,
		Flags:        flags,
		InvokeID:     invokeID,
		Result:       res.Code,
		ResultReason: res.Reason,
	}
}

// RequestMessage builds an object operation request (M_CREATE, M_DELETE,
// M_READ, M_WRITE, M_START or M_STOP).
func RequestMessage(op Opcode, obj ObjInfo, flags Flags, filt FiltInfo) *Message {
	return &Message{
		Opcode:   op,
		Flags:    flags,
		ObjClass: obj.Class,
		ObjInst:  obj.Inst,
		ObjName:  obj.Name,
		ObjValue: obj.Value,
		Filter:   filt.Filter,
		Scope:    filt.Scope,
	}
}

// ResponseMessage builds an object operation response carrying the named
// object back to the requester.
func ResponseMessage(op Opcode, obj ObjInfo, flags Flags, res ResInfo, invokeID int32) *Message {
	return &Message{
		Opcode:       op,
		Flags:        flags,
		InvokeID:     invokeID,
		ObjClass:     obj.Class,
		ObjInst:      obj.Inst,
		ObjName:      obj.Name,
		ObjValue:     obj.Value,
		Result:       res.Code,
		ResultReason: res.Reason,
	}
}

// ResultMessage builds an object operation response without an object
// payload (M_WRITE_R, M_STOP_R).
func ResultMessage(op Opcode, flags Flags, res ResInfo, invokeID int32) *Message {
	return &Message{
		Opcode:       op,
		Flags:        flags,
		InvokeID:     invokeID,
		Result:       res.Code,
		ResultReason: res.Reason,
	}
}

// CancelReadRequestMessage builds an M_CANCELREAD for the read identified by
// invokeID.
func CancelReadRequestMessage(flags Flags, invokeID int32) *Message {
	return &Message{
		Opcode:   OpCancelRead,
		Flags:    flags,
		InvokeID: invokeID,
	}
}

// CancelReadResponseMessage builds an M_CANCELREAD_R.
func CancelReadResponseMessage(flags Flags, res ResInfo, invokeID int32) *Message {
	return &Message{
		Opcode:       OpCancelReadR,
		Flags:        flags,
		InvokeID:     invokeID,
		Result:       res.Code,
		ResultReason: res.Reason,
	}
}
