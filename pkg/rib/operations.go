package rib

import (
	"github.com/marmos91/cdapd/internal/logger"
	"github.com/marmos91/cdapd/pkg/cdap"
)

// ResultSuccess is the result code reported on successful operations.
const ResultSuccess int32 = 0

// resultFrom maps an operation outcome to the result carried on the
// response. RIB errors map to the negated error code so the peer can
// distinguish them; anything else maps to a generic failure.
func resultFrom(err error) cdap.ResInfo {
	if err == nil {
		return cdap.ResInfo{Code: ResultSuccess}
	}
	if re, ok := err.(*Error); ok {
		return cdap.ResInfo{Code: -int32(re.Code), Reason: re.Error()}
	}
	return cdap.ResInfo{Code: -1, Reason: err.Error()}
}

// recordOp reports an operation outcome to the metrics sink.
func (r *RIB) recordOp(op string, err error) {
	if r.metrics != nil {
		r.metrics.RecordOperation(op, err == nil)
	}
}

// sendFailed logs a response the provider could not put on the wire. The
// peer's request stays unanswered; its own timeout machinery recovers.
func sendFailed(op string, portID int, err error) {
	if err != nil {
		logger.Error("unable to send RIB response",
			logger.KeyOpcode, op,
			logger.KeyPortID, portID,
			logger.KeyError, err.Error())
	}
}

// CreateRequest dispatches a remote create. If no stored object or
// delegation covers the FQN, the schema's create-callback registry is
// consulted before giving up.
func (r *RIB) CreateRequest(con cdap.ConnHandle, obj cdap.ObjInfo, filt cdap.FiltInfo, invokeID int32) {
	reply := cdap.ObjInfo{Class: obj.Class, Inst: obj.Inst, Name: obj.Name}

	target, err := r.findTarget(obj.Class, obj.Name)
	switch {
	case err == nil:
		reply.Value, err = target.Create(obj.Name, obj.Class, obj.Value)
	case IsObjectDoesNotExist(err):
		if cb, ok := r.schema.lookupCreateCallback(obj.Class, obj.Name); ok {
			reply.Value, err = cb(r, con, obj)
		} else {
			err = NewOperationNotSupportedError("create", obj.Name)
		}
	}
	r.recordOp("create", err)

	if invokeID == 0 {
		return
	}
	sendFailed("M_CREATE_R", con.PortID,
		r.responder.SendCreateResult(con.PortID, reply, resultFrom(err), invokeID))
}

// DeleteRequest dispatches a remote delete.
func (r *RIB) DeleteRequest(con cdap.ConnHandle, obj cdap.ObjInfo, filt cdap.FiltInfo, invokeID int32) {
	reply := cdap.ObjInfo{Class: obj.Class, Inst: obj.Inst, Name: obj.Name}

	target, err := r.findTarget(obj.Class, obj.Name)
	if err == nil {
		err = target.Delete(obj.Name)
	} else if IsObjectDoesNotExist(err) {
		err = NewOperationNotSupportedError("delete", obj.Name)
	}
	r.recordOp("delete", err)

	if invokeID == 0 {
		return
	}
	sendFailed("M_DELETE_R", con.PortID,
		r.responder.SendDeleteResult(con.PortID, reply, resultFrom(err), invokeID))
}

// ReadRequest dispatches a remote read. Objects whose class does not
// override read answer with their own serialized value.
func (r *RIB) ReadRequest(con cdap.ConnHandle, obj cdap.ObjInfo, filt cdap.FiltInfo, invokeID int32) {
	reply := cdap.ObjInfo{Class: obj.Class, Inst: obj.Inst, Name: obj.Name}

	target, err := r.findTarget(obj.Class, obj.Name)
	if err == nil {
		reply.Value, err = target.Read(obj.Name)
	} else if IsObjectDoesNotExist(err) {
		err = NewOperationNotSupportedError("read", obj.Name)
	}
	r.recordOp("read", err)

	if invokeID == 0 {
		return
	}
	sendFailed("M_READ_R", con.PortID,
		r.responder.SendReadResult(con.PortID, reply, resultFrom(err), cdap.FlagsNone, invokeID))
}

// CancelReadRequest dispatches a cancellation of an outstanding read. The
// invoke id names the read, not an object, so no lookup happens here; the
// response always goes back.
func (r *RIB) CancelReadRequest(con cdap.ConnHandle, invokeID int32) {
	r.recordOp("cancel_read", nil)
	sendFailed("M_CANCELREAD_R", con.PortID,
		r.responder.SendCancelReadResult(con.PortID, cdap.ResInfo{Code: ResultSuccess}, invokeID))
}

// WriteRequest dispatches a remote write.
func (r *RIB) WriteRequest(con cdap.ConnHandle, obj cdap.ObjInfo, filt cdap.FiltInfo, invokeID int32) {
	target, err := r.findTarget(obj.Class, obj.Name)
	if err == nil {
		_, err = target.Write(obj.Name, obj.Value)
	} else if IsObjectDoesNotExist(err) {
		err = NewOperationNotSupportedError("write", obj.Name)
	}
	r.recordOp("write", err)

	if invokeID == 0 {
		return
	}
	sendFailed("M_WRITE_R", con.PortID,
		r.responder.SendWriteResult(con.PortID, resultFrom(err), invokeID))
}

// StartRequest dispatches a remote start.
func (r *RIB) StartRequest(con cdap.ConnHandle, obj cdap.ObjInfo, filt cdap.FiltInfo, invokeID int32) {
	reply := cdap.ObjInfo{Class: obj.Class, Inst: obj.Inst, Name: obj.Name}

	target, err := r.findTarget(obj.Class, obj.Name)
	if err == nil {
		reply.Value, err = target.Start(obj.Name, obj.Value)
	} else if IsObjectDoesNotExist(err) {
		err = NewOperationNotSupportedError("start", obj.Name)
	}
	r.recordOp("start", err)

	if invokeID == 0 {
		return
	}
	sendFailed("M_START_R", con.PortID,
		r.responder.SendStartResult(con.PortID, reply, resultFrom(err), invokeID))
}

// StopRequest dispatches a remote stop.
func (r *RIB) StopRequest(con cdap.ConnHandle, obj cdap.ObjInfo, filt cdap.FiltInfo, invokeID int32) {
	target, err := r.findTarget(obj.Class, obj.Name)
	if err == nil {
		_, err = target.Stop(obj.Name, obj.Value)
	} else if IsObjectDoesNotExist(err) {
		err = NewOperationNotSupportedError("stop", obj.Name)
	}
	r.recordOp("stop", err)

	if invokeID == 0 {
		return
	}
	sendFailed("M_STOP_R", con.PortID,
		r.responder.SendStopResult(con.PortID, resultFrom(err), invokeID))
}

// ============================================================================
// Responses to locally initiated operations
// ============================================================================

// RemoteCreateResult forwards a create response to the application handler.
func (r *RIB) RemoteCreateResult(con cdap.ConnHandle, obj cdap.ObjInfo, res cdap.ResInfo) {
	if r.respHandler != nil {
		r.respHandler.RemoteCreateResult(con, obj, res)
	}
}

// RemoteDeleteResult forwards a delete response to the application handler.
func (r *RIB) RemoteDeleteResult(con cdap.ConnHandle, res cdap.ResInfo) {
	if r.respHandler != nil {
		r.respHandler.RemoteDeleteResult(con, res)
	}
}

// RemoteReadResult forwards a read response to the application handler.
func (r *RIB) RemoteReadResult(con cdap.ConnHandle, obj cdap.ObjInfo, res cdap.ResInfo, flags cdap.Flags) {
	if r.respHandler != nil {
		r.respHandler.RemoteReadResult(con, obj, res, flags)
	}
}

// RemoteCancelReadResult forwards a cancel-read response to the application
// handler.
func (r *RIB) RemoteCancelReadResult(con cdap.ConnHandle, res cdap.ResInfo) {
	if r.respHandler != nil {
		r.respHandler.RemoteCancelReadResult(con, res)
	}
}

// RemoteWriteResult forwards a write response to the application handler.
func (r *RIB) RemoteWriteResult(con cdap.ConnHandle, obj cdap.ObjInfo, res cdap.ResInfo) {
	if r.respHandler != nil {
		r.respHandler.RemoteWriteResult(con, obj, res)
	}
}

// RemoteStartResult forwards a start response to the application handler.
func (r *RIB) RemoteStartResult(con cdap.ConnHandle, obj cdap.ObjInfo, res cdap.ResInfo) {
	if r.respHandler != nil {
		r.respHandler.RemoteStartResult(con, obj, res)
	}
}

// RemoteStopResult forwards a stop response to the application handler.
func (r *RIB) RemoteStopResult(con cdap.ConnHandle, obj cdap.ObjInfo, res cdap.ResInfo) {
	if r.respHandler != nil {
		r.respHandler.RemoteStopResult(con, obj, res)
	}
}
