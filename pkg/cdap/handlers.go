package cdap

// Transport is the byte stream abstraction the I/O handler writes to. One
// transport multiplexes many port ids; reads arrive at the I/O handler via
// an externally driven dispatch (the transport owns its read goroutines and
// calls IOHandler.OnBytes).
type Transport interface {
	Write(portID int, data []byte) (int, error)
}

// SDUProtection transforms SDUs on their way to and from the transport.
// The identity policy is the default; see NewAEADProtection for a sealing
// implementation.
type SDUProtection interface {
	Protect(sdu []byte) ([]byte, error)
	Unprotect(sdu []byte) ([]byte, error)
}

// AppConnHandler receives connection lifecycle events: inbound M_CONNECT,
// M_CONNECT_R, M_RELEASE and M_RELEASE_R. The connect/release decision
// (enrollment policy) lives behind this interface, outside the session
// layer.
type AppConnHandler interface {
	// Connect reports a remote connect request. The handler answers via
	// Provider.SendOpenConnectionResult with the given invoke id.
	Connect(invokeID int32, con ConnHandle)

	// ConnectResult reports the answer to a locally initiated connect.
	ConnectResult(res ResInfo, con ConnHandle)

	// Release reports a remote release request. An invoke id of zero means
	// the peer does not expect a response.
	Release(invokeID int32, con ConnHandle)

	// ReleaseResult reports the answer to a locally initiated release.
	ReleaseResult(res ResInfo, con ConnHandle)
}

// OpsReqHandler receives inbound object operation requests. The RIB daemon
// implements it to dispatch onto named objects.
type OpsReqHandler interface {
	CreateRequest(con ConnHandle, obj ObjInfo, filt FiltInfo, invokeID int32)
	DeleteRequest(con ConnHandle, obj ObjInfo, filt FiltInfo, invokeID int32)
	ReadRequest(con ConnHandle, obj ObjInfo, filt FiltInfo, invokeID int32)
	CancelReadRequest(con ConnHandle, invokeID int32)
	WriteRequest(con ConnHandle, obj ObjInfo, filt FiltInfo, invokeID int32)
	StartRequest(con ConnHandle, obj ObjInfo, filt FiltInfo, invokeID int32)
	StopRequest(con ConnHandle, obj ObjInfo, filt FiltInfo, invokeID int32)
}

// OpsRespHandler receives responses to locally initiated remote operations,
// one method per opcode family.
type OpsRespHandler interface {
	RemoteCreateResult(con ConnHandle, obj ObjInfo, res ResInfo)
	RemoteDeleteResult(con ConnHandle, res ResInfo)
	RemoteReadResult(con ConnHandle, obj ObjInfo, res ResInfo, flags Flags)
	RemoteCancelReadResult(con ConnHandle, res ResInfo)
	RemoteWriteResult(con ConnHandle, obj ObjInfo, res ResInfo)
	RemoteStartResult(con ConnHandle, obj ObjInfo, res ResInfo)
	RemoteStopResult(con ConnHandle, obj ObjInfo, res ResInfo)
}

// AuthHandler receives messages that arrive while the session is still in
// AWAITCON: any non-connect opcode there belongs to the authentication
// exchange and is delivered without further classification.
type AuthHandler interface {
	AuthMessage(con ConnHandle, m *Message)
}
