package cdap

// Provider is the public request/response facade of the CDAP runtime. Each
// remote operation builds a message, allocates an invoke id, hands it to
// the I/O handler and returns the invoke id so the caller can correlate the
// eventual callback. The exceptions are RemoteCancelRead, which reuses the
// id of the read it cancels and returns only an error, and
// RemoteCloseConnection without an invoke id, which allocates none and
// returns 0. Each local response reuses the invoke id the original request
// carried.
//
// Provider is safe for concurrent use.
type Provider struct {
	mgr *SessionManager
	io  *IOHandler
}

// NewProvider creates a provider over a session manager and I/O handler.
func NewProvider(mgr *SessionManager, io *IOHandler) *Provider {
	return &Provider{mgr: mgr, io: io}
}

// SessionManager returns the underlying session manager.
func (p *Provider) SessionManager() *SessionManager {
	return p.mgr
}

// IOHandler returns the underlying I/O handler.
func (p *Provider) IOHandler() *IOHandler {
	return p.io
}

// sendRequest stamps a fresh invoke id on a request and sends it. The id is
// released again if the message never made it onto the wire.
func (p *Provider) sendRequest(portID int, m *Message) (int32, error) {
	if err := p.mgr.AssignInvokeID(m, true); err != nil {
		return 0, err
	}
	if err := p.io.Send(portID, m); err != nil {
		p.mgr.InvokeIDs().FreeInvokeID(m.InvokeID, Sent)
		return 0, err
	}
	return m.InvokeID, nil
}

// RemoteOpenConnection establishes a CDAP connection on portID. Repeating
// it on the same port id while a session exists fails with BadState once
// the first connect was sent; a fresh port id gets a fresh session.
func (p *Provider) RemoteOpenConnection(version int64, src, dest EndpointInfo,
	auth AuthPolicy, portID int) (int32, error) {

	m := OpenConnectionRequestMessage(version, src, dest, auth)
	return p.sendRequest(portID, m)
}

// RemoteCloseConnection initiates an orderly release. With wantInvokeID the
// release expects an M_RELEASE_R; without, the session closes immediately.
func (p *Provider) RemoteCloseConnection(portID int, wantInvokeID bool) (int32, error) {
	m := ReleaseConnectionRequestMessage(FlagsNone)
	if !wantInvokeID {
		return 0, p.io.Send(portID, m)
	}
	return p.sendRequest(portID, m)
}

// RemoteCreate performs a create operation on an object of the remote RIB.
func (p *Provider) RemoteCreate(portID int, obj ObjInfo, flags Flags, filt FiltInfo) (int32, error) {
	return p.sendRequest(portID, RequestMessage(OpCreate, obj, flags, filt))
}

// RemoteDelete performs a delete operation on an object of the remote RIB.
func (p *Provider) RemoteDelete(portID int, obj ObjInfo, flags Flags, filt FiltInfo) (int32, error) {
	return p.sendRequest(portID, RequestMessage(OpDelete, obj, flags, filt))
}

// RemoteRead performs a read operation on an object of the remote RIB.
func (p *Provider) RemoteRead(portID int, obj ObjInfo, flags Flags, filt FiltInfo) (int32, error) {
	return p.sendRequest(portID, RequestMessage(OpRead, obj, flags, filt))
}

// RemoteCancelRead cancels the outstanding read identified by invokeID.
func (p *Provider) RemoteCancelRead(portID int, flags Flags, invokeID int32) error {
	return p.io.Send(portID, CancelReadRequestMessage(flags, invokeID))
}

// RemoteWrite performs a write operation on an object of the remote RIB.
func (p *Provider) RemoteWrite(portID int, obj ObjInfo, flags Flags, filt FiltInfo) (int32, error) {
	return p.sendRequest(portID, RequestMessage(OpWrite, obj, flags, filt))
}

// RemoteStart performs a start operation on an object of the remote RIB.
func (p *Provider) RemoteStart(portID int, obj ObjInfo, flags Flags, filt FiltInfo) (int32, error) {
	return p.sendRequest(portID, RequestMessage(OpStart, obj, flags, filt))
}

// RemoteStop performs a stop operation on an object of the remote RIB.
func (p *Provider) RemoteStop(portID int, obj ObjInfo, flags Flags, filt FiltInfo) (int32, error) {
	return p.sendRequest(portID, RequestMessage(OpStop, obj, flags, filt))
}

// SendOpenConnectionResult answers a remote connect request. The endpoints,
// version and auth policy are taken from the session handle populated by
// the M_CONNECT.
func (p *Provider) SendOpenConnectionResult(portID int, res ResInfo, invokeID int32) error {
	s, ok := p.mgr.GetSession(portID)
	if !ok {
		return NewNoSessionError(portID)
	}
	return p.io.Send(portID, OpenConnectionResponseMessage(s.Handle(), res, invokeID))
}

// SendReleaseConnectionResult answers a remote release request.
func (p *Provider) SendReleaseConnectionResult(portID int, res ResInfo, invokeID int32) error {
	return p.io.Send(portID, ReleaseConnectionResponseMessage(FlagsNone, res, invokeID))
}

// SendCreateResult answers a remote create request.
func (p *Provider) SendCreateResult(portID int, obj ObjInfo, res ResInfo, invokeID int32) error {
	return p.io.Send(portID, ResponseMessage(OpCreateR, obj, FlagsNone, res, invokeID))
}

// SendDeleteResult answers a remote delete request.
func (p *Provider) SendDeleteResult(portID int, obj ObjInfo, res ResInfo, invokeID int32) error {
	return p.io.Send(portID, ResponseMessage(OpDeleteR, obj, FlagsNone, res, invokeID))
}

// SendReadResult answers a remote read request. Flag the response
// FRdIncomplete to keep the read open for further partial results.
func (p *Provider) SendReadResult(portID int, obj ObjInfo, res ResInfo, flags Flags, invokeID int32) error {
	return p.io.Send(portID, ResponseMessage(OpReadR, obj, flags, res, invokeID))
}

// SendCancelReadResult answers a remote cancel-read request.
func (p *Provider) SendCancelReadResult(portID int, res ResInfo, invokeID int32) error {
	return p.io.Send(portID, CancelReadResponseMessage(FlagsNone, res, invokeID))
}

// SendWriteResult answers a remote write request.
func (p *Provider) SendWriteResult(portID int, res ResInfo, invokeID int32) error {
	return p.io.Send(portID, ResultMessage(OpWriteR, FlagsNone, res, invokeID))
}

// SendStartResult answers a remote start request.
func (p *Provider) SendStartResult(portID int, obj ObjInfo, res ResInfo, invokeID int32) error {
	return p.io.Send(portID, ResponseMessage(OpStartR, obj, FlagsNone, res, invokeID))
}

// SendStopResult answers a remote stop request.
func (p *Provider) SendStopResult(portID int, res ResInfo, invokeID int32) error {
	return p.io.Send(portID, ResultMessage(OpStopR, FlagsNone, res, invokeID))
}
