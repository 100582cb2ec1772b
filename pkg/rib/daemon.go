package rib

import (
	"fmt"
	"sort"
	"sync"

	"github.com/marmos91/cdapd/internal/logger"
	"github.com/marmos91/cdapd/pkg/cdap"
	"github.com/marmos91/cdapd/pkg/metrics"
)

type assocKey struct {
	version int64
	aeName  string
}

// Daemon owns every schema and RIB instance and multiplexes CDAP events
// across them: inbound requests and responses on a port id are forwarded to
// the RIB the port was opened against, and outgoing events from any RIB go
// through the shared CDAP provider.
//
// The daemon implements the session layer's AppConnHandler, OpsReqHandler
// and OpsRespHandler, so it plugs directly into an IOHandler's Handlers.
// Creation and destruction of schemas and RIBs is protected by a single
// daemon-wide read-write lock.
type Daemon struct {
	mu          sync.RWMutex
	schemas     map[int64]*Schema
	ribs        map[int64]*RIB
	byVersionAE map[assocKey]*RIB
	byPort      map[int]*RIB
	nextHandle  int64

	provider   *cdap.Provider
	appConn    cdap.AppConnHandler
	abort      cdap.AbortHandler
	ribMetrics metrics.RIBMetrics
}

// NewDaemon creates an empty daemon. appConn receives connection lifecycle
// events after the daemon has updated its port associations; it may be nil.
func NewDaemon(appConn cdap.AppConnHandler) *Daemon {
	return &Daemon{
		schemas:     make(map[int64]*Schema),
		ribs:        make(map[int64]*RIB),
		byVersionAE: make(map[assocKey]*RIB),
		byPort:      make(map[int]*RIB),
		appConn:     appConn,
	}
}

// SetProvider wires the shared CDAP provider. It must be called before any
// remote operation or inbound dispatch.
func (d *Daemon) SetProvider(p *cdap.Provider) {
	d.mu.Lock()
	d.provider = p
	d.mu.Unlock()
}

// SetRIBMetrics enables metrics on RIBs created afterwards.
func (d *Daemon) SetRIBMetrics(m metrics.RIBMetrics) {
	d.mu.Lock()
	d.ribMetrics = m
	d.mu.Unlock()
}

// SetAbortHandler installs a callback forwarded session-abort events after
// the daemon has dropped the port association. Register the daemon's
// SessionAborted with the session manager, not this handler.
func (d *Daemon) SetAbortHandler(h cdap.AbortHandler) {
	d.mu.Lock()
	d.abort = h
	d.mu.Unlock()
}

func (d *Daemon) getProvider() (*cdap.Provider, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.provider == nil {
		return nil, fmt.Errorf("cdap provider not configured")
	}
	return d.provider, nil
}

// ============================================================================
// Schema and RIB lifecycle
// ============================================================================

// CreateSchema registers an empty schema for a version.
func (d *Daemon) CreateSchema(version int64) (*Schema, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, dup := d.schemas[version]; dup {
		return nil, NewSchemaExistsError(version)
	}
	s := newSchema(version)
	d.schemas[version] = s
	logger.Info("RIB schema created", logger.KeyVersion, version)
	return s, nil
}

// GetSchema returns the schema registered for a version.
func (d *Daemon) GetSchema(version int64) (*Schema, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.schemas[version]
	if !ok {
		return nil, NewSchemaNotFoundError(version)
	}
	return s, nil
}

// Versions lists the registered schema versions, sorted.
func (d *Daemon) Versions() []int64 {
	d.mu.RLock()
	versions := make([]int64, 0, len(d.schemas))
	for v := range d.schemas {
		versions = append(versions, v)
	}
	d.mu.RUnlock()
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions
}

// CreateRIB instantiates a RIB against the schema for version. respHandler
// receives responses to operations this RIB initiates; it may be nil. The
// new RIB contains only the root object.
func (d *Daemon) CreateRIB(version int64, respHandler cdap.OpsRespHandler) (*RIB, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	schema, ok := d.schemas[version]
	if !ok {
		return nil, NewSchemaNotFoundError(version)
	}
	d.nextHandle++
	r := newRIB(d.nextHandle, schema, d, respHandler, d.ribMetrics)
	d.ribs[r.Handle()] = r
	logger.Info("RIB created",
		logger.KeyRIB, r.Handle(), logger.KeyVersion, version)
	return r, nil
}

// RIBs returns all RIB instances, sorted by handle.
func (d *Daemon) RIBs() []*RIB {
	d.mu.RLock()
	out := make([]*RIB, 0, len(d.ribs))
	for _, r := range d.ribs {
		out = append(out, r)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Handle() < out[j].Handle() })
	return out
}

// GetRIBByHandle returns the RIB with the given handle.
func (d *Daemon) GetRIBByHandle(handle int64) (*RIB, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.ribs[handle]
	if !ok {
		return nil, NewRIBNotFoundError(fmt.Sprintf("no RIB with handle %d", handle))
	}
	return r, nil
}

// AssociateRIBToAE binds a RIB to an application entity. A RIB holds at
// most one (version, AE name) association at a time, and each pair maps to
// at most one RIB.
func (d *Daemon) AssociateRIBToAE(r *RIB, aeName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if r.AEName() != "" {
		return NewRIBAlreadyRegisteredError(r.Version(), r.AEName())
	}
	key := assocKey{version: r.Version(), aeName: aeName}
	if _, taken := d.byVersionAE[key]; taken {
		return NewRIBAlreadyRegisteredError(r.Version(), aeName)
	}
	d.byVersionAE[key] = r
	r.setAEName(aeName)
	logger.Info("RIB associated",
		logger.KeyRIB, r.Handle(),
		logger.KeyVersion, r.Version(),
		logger.KeyAEName, aeName)
	return nil
}

// DeassociateRIB releases a RIB's (version, AE name) association. The RIB
// instance itself stays alive.
func (d *Daemon) DeassociateRIB(r *RIB) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	aeName := r.AEName()
	if aeName == "" {
		return NewRIBNotFoundError(fmt.Sprintf("RIB %d is not associated", r.Handle()))
	}
	delete(d.byVersionAE, assocKey{version: r.Version(), aeName: aeName})
	r.setAEName("")
	return nil
}

// GetRIB returns the RIB associated to a (version, AE name) pair.
func (d *Daemon) GetRIB(version int64, aeName string) (*RIB, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.byVersionAE[assocKey{version: version, aeName: aeName}]
	if !ok {
		return nil, NewRIBNotFoundError(
			fmt.Sprintf("no RIB for version %d, AE %q", version, aeName))
	}
	return r, nil
}

// RIBForPort returns the RIB bound to a port id, if any.
func (d *Daemon) RIBForPort(portID int) (*RIB, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.byPort[portID]
	return r, ok
}

func (d *Daemon) bindPort(portID int, r *RIB) {
	d.mu.Lock()
	// A repeated open on the same port id overwrites the association.
	d.byPort[portID] = r
	d.mu.Unlock()
}

func (d *Daemon) unbindPort(portID int) {
	d.mu.Lock()
	delete(d.byPort, portID)
	d.mu.Unlock()
}

// ============================================================================
// Client side: remote operations
// ============================================================================

// RemoteOpenConnection establishes a CDAP connection for the RIB associated
// to (version, src AE name) and binds the port id to it.
func (d *Daemon) RemoteOpenConnection(version int64, src, dest cdap.EndpointInfo,
	auth cdap.AuthPolicy, portID int) (int32, error) {

	r, err := d.GetRIB(version, src.AEName)
	if err != nil {
		return 0, err
	}
	p, err := d.getProvider()
	if err != nil {
		return 0, err
	}
	invokeID, err := p.RemoteOpenConnection(version, src, dest, auth, portID)
	if err != nil {
		return 0, err
	}
	d.bindPort(portID, r)
	return invokeID, nil
}

// RemoteCloseConnection initiates an orderly release on a port id.
func (d *Daemon) RemoteCloseConnection(portID int, wantInvokeID bool) (int32, error) {
	p, err := d.getProvider()
	if err != nil {
		return 0, err
	}
	invokeID, err := p.RemoteCloseConnection(portID, wantInvokeID)
	if err != nil {
		return 0, err
	}
	if !wantInvokeID {
		d.unbindPort(portID)
	}
	return invokeID, nil
}

// RemoteCreate performs a create operation on an object of the remote RIB.
func (d *Daemon) RemoteCreate(portID int, obj cdap.ObjInfo, flags cdap.Flags, filt cdap.FiltInfo) (int32, error) {
	p, err := d.getProvider()
	if err != nil {
		return 0, err
	}
	return p.RemoteCreate(portID, obj, flags, filt)
}

// RemoteDelete performs a delete operation on an object of the remote RIB.
func (d *Daemon) RemoteDelete(portID int, obj cdap.ObjInfo, flags cdap.Flags, filt cdap.FiltInfo) (int32, error) {
	p, err := d.getProvider()
	if err != nil {
		return 0, err
	}
	return p.RemoteDelete(portID, obj, flags, filt)
}

// RemoteRead performs a read operation on an object of the remote RIB.
func (d *Daemon) RemoteRead(portID int, obj cdap.ObjInfo, flags cdap.Flags, filt cdap.FiltInfo) (int32, error) {
	p, err := d.getProvider()
	if err != nil {
		return 0, err
	}
	return p.RemoteRead(portID, obj, flags, filt)
}

// RemoteCancelRead cancels an outstanding read on a port id.
func (d *Daemon) RemoteCancelRead(portID int, flags cdap.Flags, invokeID int32) error {
	p, err := d.getProvider()
	if err != nil {
		return err
	}
	return p.RemoteCancelRead(portID, flags, invokeID)
}

// RemoteWrite performs a write operation on an object of the remote RIB.
func (d *Daemon) RemoteWrite(portID int, obj cdap.ObjInfo, flags cdap.Flags, filt cdap.FiltInfo) (int32, error) {
	p, err := d.getProvider()
	if err != nil {
		return 0, err
	}
	return p.RemoteWrite(portID, obj, flags, filt)
}

// RemoteStart performs a start operation on an object of the remote RIB.
func (d *Daemon) RemoteStart(portID int, obj cdap.ObjInfo, flags cdap.Flags, filt cdap.FiltInfo) (int32, error) {
	p, err := d.getProvider()
	if err != nil {
		return 0, err
	}
	return p.RemoteStart(portID, obj, flags, filt)
}

// RemoteStop performs a stop operation on an object of the remote RIB.
func (d *Daemon) RemoteStop(portID int, obj cdap.ObjInfo, flags cdap.Flags, filt cdap.FiltInfo) (int32, error) {
	p, err := d.getProvider()
	if err != nil {
		return 0, err
	}
	return p.RemoteStop(portID, obj, flags, filt)
}

// ============================================================================
// Responder: responses RIBs send through the shared provider
// ============================================================================

// SendCreateResult implements Responder.
func (d *Daemon) SendCreateResult(portID int, obj cdap.ObjInfo, res cdap.ResInfo, invokeID int32) error {
	p, err := d.getProvider()
	if err != nil {
		return err
	}
	return p.SendCreateResult(portID, obj, res, invokeID)
}

// SendDeleteResult implements Responder.
func (d *Daemon) SendDeleteResult(portID int, obj cdap.ObjInfo, res cdap.ResInfo, invokeID int32) error {
	p, err := d.getProvider()
	if err != nil {
		return err
	}
	return p.SendDeleteResult(portID, obj, res, invokeID)
}

// SendReadResult implements Responder.
func (d *Daemon) SendReadResult(portID int, obj cdap.ObjInfo, res cdap.ResInfo, flags cdap.Flags, invokeID int32) error {
	p, err := d.getProvider()
	if err != nil {
		return err
	}
	return p.SendReadResult(portID, obj, res, flags, invokeID)
}

// SendCancelReadResult implements Responder.
func (d *Daemon) SendCancelReadResult(portID int, res cdap.ResInfo, invokeID int32) error {
	p, err := d.getProvider()
	if err != nil {
		return err
	}
	return p.SendCancelReadResult(portID, res, invokeID)
}

// SendWriteResult implements Responder.
func (d *Daemon) SendWriteResult(portID int, res cdap.ResInfo, invokeID int32) error {
	p, err := d.getProvider()
	if err != nil {
		return err
	}
	return p.SendWriteResult(portID, res, invokeID)
}

// SendStartResult implements Responder.
func (d *Daemon) SendStartResult(portID int, obj cdap.ObjInfo, res cdap.ResInfo, invokeID int32) error {
	p, err := d.getProvider()
	if err != nil {
		return err
	}
	return p.SendStartResult(portID, obj, res, invokeID)
}

// SendStopResult implements Responder.
func (d *Daemon) SendStopResult(portID int, res cdap.ResInfo, invokeID int32) error {
	p, err := d.getProvider()
	if err != nil {
		return err
	}
	return p.SendStopResult(portID, res, invokeID)
}

// ============================================================================
// Inbound dispatch: connection lifecycle
// ============================================================================

// Connect implements cdap.AppConnHandler: an inbound M_CONNECT binds the
// port id to the RIB associated to the requested (version, AE name), then
// hands the accept/refuse decision to the application handler.
func (d *Daemon) Connect(invokeID int32, con cdap.ConnHandle) {
	if r, err := d.GetRIB(con.Version, con.Src.AEName); err == nil {
		d.bindPort(con.PortID, r)
	} else {
		logger.Warn("connect for unknown RIB",
			logger.KeyPortID, con.PortID,
			logger.KeyVersion, con.Version,
			logger.KeyAEName, con.Src.AEName)
	}
	if d.appConn != nil {
		d.appConn.Connect(invokeID, con)
	}
}

// ConnectResult implements cdap.AppConnHandler.
func (d *Daemon) ConnectResult(res cdap.ResInfo, con cdap.ConnHandle) {
	if d.appConn != nil {
		d.appConn.ConnectResult(res, con)
	}
}

// Release implements cdap.AppConnHandler. A release without an invoke id
// closes the session immediately, so the port association is dropped here.
func (d *Daemon) Release(invokeID int32, con cdap.ConnHandle) {
	if invokeID == 0 {
		d.unbindPort(con.PortID)
	}
	if d.appConn != nil {
		d.appConn.Release(invokeID, con)
	}
}

// ReleaseResult implements cdap.AppConnHandler.
func (d *Daemon) ReleaseResult(res cdap.ResInfo, con cdap.ConnHandle) {
	d.unbindPort(con.PortID)
	if d.appConn != nil {
		d.appConn.ReleaseResult(res, con)
	}
}

// SessionAborted is the daemon's cdap.AbortHandler: register it with the
// session manager. It drops the port association before forwarding.
func (d *Daemon) SessionAborted(err *cdap.SessionAbortedError, pendingSent []int32) {
	d.unbindPort(err.PortID)

	d.mu.RLock()
	h := d.abort
	d.mu.RUnlock()
	if h != nil {
		h(err, pendingSent)
	}
}

// ============================================================================
// Inbound dispatch: object operations
// ============================================================================

// noRIBResult answers a request that arrived on a port id with no RIB
// bound.
func noRIBResult(portID int) cdap.ResInfo {
	return resultFrom(NewRIBNotFoundError(
		fmt.Sprintf("no RIB bound to port id %d", portID)))
}

// CreateRequest implements cdap.OpsReqHandler.
func (d *Daemon) CreateRequest(con cdap.ConnHandle, obj cdap.ObjInfo, filt cdap.FiltInfo, invokeID int32) {
	r, ok := d.RIBForPort(con.PortID)
	if !ok {
		if p, err := d.getProvider(); err == nil && invokeID != 0 {
			sendFailed("M_CREATE_R", con.PortID,
				p.SendCreateResult(con.PortID, obj, noRIBResult(con.PortID), invokeID))
		}
		return
	}
	r.CreateRequest(con, obj, filt, invokeID)
}

// DeleteRequest implements cdap.OpsReqHandler.
func (d *Daemon) DeleteRequest(con cdap.ConnHandle, obj cdap.ObjInfo, filt cdap.FiltInfo, invokeID int32) {
	r, ok := d.RIBForPort(con.PortID)
	if !ok {
		if p, err := d.getProvider(); err == nil && invokeID != 0 {
			sendFailed("M_DELETE_R", con.PortID,
				p.SendDeleteResult(con.PortID, obj, noRIBResult(con.PortID), invokeID))
		}
		return
	}
	r.DeleteRequest(con, obj, filt, invokeID)
}

// ReadRequest implements cdap.OpsReqHandler.
func (d *Daemon) ReadRequest(con cdap.ConnHandle, obj cdap.ObjInfo, filt cdap.FiltInfo, invokeID int32) {
	r, ok := d.RIBForPort(con.PortID)
	if !ok {
		if p, err := d.getProvider(); err == nil && invokeID != 0 {
			sendFailed("M_READ_R", con.PortID,
				p.SendReadResult(con.PortID, obj, noRIBResult(con.PortID), cdap.FlagsNone, invokeID))
		}
		return
	}
	r.ReadRequest(con, obj, filt, invokeID)
}

// CancelReadRequest implements cdap.OpsReqHandler.
func (d *Daemon) CancelReadRequest(con cdap.ConnHandle, invokeID int32) {
	r, ok := d.RIBForPort(con.PortID)
	if !ok {
		if p, err := d.getProvider(); err == nil {
			sendFailed("M_CANCELREAD_R", con.PortID,
				p.SendCancelReadResult(con.PortID, noRIBResult(con.PortID), invokeID))
		}
		return
	}
	r.CancelReadRequest(con, invokeID)
}

// WriteRequest implements cdap.OpsReqHandler.
func (d *Daemon) WriteRequest(con cdap.ConnHandle, obj cdap.ObjInfo, filt cdap.FiltInfo, invokeID int32) {
	r, ok := d.RIBForPort(con.PortID)
	if !ok {
		if p, err := d.getProvider(); err == nil && invokeID != 0 {
			sendFailed("M_WRITE_R", con.PortID,
				p.SendWriteResult(con.PortID, noRIBResult(con.PortID), invokeID))
		}
		return
	}
	r.WriteRequest(con, obj, filt, invokeID)
}

// StartRequest implements cdap.OpsReqHandler.
func (d *Daemon) StartRequest(con cdap.ConnHandle, obj cdap.ObjInfo, filt cdap.FiltInfo, invokeID int32) {
	r, ok := d.RIBForPort(con.PortID)
	if !ok {
		if p, err := d.getProvider(); err == nil && invokeID != 0 {
			sendFailed("M_START_R", con.PortID,
				p.SendStartResult(con.PortID, obj, noRIBResult(con.PortID), invokeID))
		}
		return
	}
	r.StartRequest(con, obj, filt, invokeID)
}

// StopRequest implements cdap.OpsReqHandler.
func (d *Daemon) StopRequest(con cdap.ConnHandle, obj cdap.ObjInfo, filt cdap.FiltInfo, invokeID int32) {
	r, ok := d.RIBForPort(con.PortID)
	if !ok {
		if p, err := d.getProvider(); err == nil && invokeID != 0 {
			sendFailed("M_STOP_R", con.PortID,
				p.SendStopResult(con.PortID, noRIBResult(con.PortID), invokeID))
		}
		return
	}
	r.StopRequest(con, obj, filt, invokeID)
}

// ============================================================================
// Inbound dispatch: responses to locally initiated operations
// ============================================================================

// RemoteCreateResult implements cdap.OpsRespHandler.
func (d *Daemon) RemoteCreateResult(con cdap.ConnHandle, obj cdap.ObjInfo, res cdap.ResInfo) {
	if r, ok := d.RIBForPort(con.PortID); ok {
		r.RemoteCreateResult(con, obj, res)
	}
}

// RemoteDeleteResult implements cdap.OpsRespHandler.
func (d *Daemon) RemoteDeleteResult(con cdap.ConnHandle, res cdap.ResInfo) {
	if r, ok := d.RIBForPort(con.PortID); ok {
		r.RemoteDeleteResult(con, res)
	}
}

// RemoteReadResult implements cdap.OpsRespHandler.
func (d *Daemon) RemoteReadResult(con cdap.ConnHandle, obj cdap.ObjInfo, res cdap.ResInfo, flags cdap.Flags) {
	if r, ok := d.RIBForPort(con.PortID); ok {
		r.RemoteReadResult(con, obj, res, flags)
	}
}

// RemoteCancelReadResult implements cdap.OpsRespHandler.
func (d *Daemon) RemoteCancelReadResult(con cdap.ConnHandle, res cdap.ResInfo) {
	if r, ok := d.RIBForPort(con.PortID); ok {
		r.RemoteCancelReadResult(con, res)
	}
}

// RemoteWriteResult implements cdap.OpsRespHandler.
func (d *Daemon) RemoteWriteResult(con cdap.ConnHandle, obj cdap.ObjInfo, res cdap.ResInfo) {
	if r, ok := d.RIBForPort(con.PortID); ok {
		r.RemoteWriteResult(con, obj, res)
	}
}

// RemoteStartResult implements cdap.OpsRespHandler.
func (d *Daemon) RemoteStartResult(con cdap.ConnHandle, obj cdap.ObjInfo, res cdap.ResInfo) {
	if r, ok := d.RIBForPort(con.PortID); ok {
		r.RemoteStartResult(con, obj, res)
	}
}

// RemoteStopResult implements cdap.OpsRespHandler.
func (d *Daemon) RemoteStopResult(con cdap.ConnHandle, obj cdap.ObjInfo, res cdap.ResInfo) {
	if r, ok := d.RIBForPort(con.PortID); ok {
		r.RemoteStopResult(con, obj, res)
	}
}
