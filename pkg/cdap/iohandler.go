package cdap

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/marmos91/cdapd/internal/logger"
	"github.com/marmos91/cdapd/pkg/metrics"
)

// Handlers bundles the user-supplied callbacks invoked by inbound dispatch.
// Any handler may be nil; events without a handler are logged and dropped.
type Handlers struct {
	AppConn   AppConnHandler
	Requests  OpsReqHandler
	Responses OpsRespHandler
	Auth      AuthHandler
}

// IOHandlerOption customizes an IOHandler.
type IOHandlerOption func(*IOHandler)

// WithSDUProtection replaces the identity SDU protection policy.
func WithSDUProtection(p SDUProtection) IOHandlerOption {
	return func(h *IOHandler) { h.sdu = p }
}

// WithMetrics enables metrics collection. A nil value keeps collection
// disabled.
func WithMetrics(m metrics.CDAPMetrics) IOHandlerOption {
	return func(h *IOHandler) { h.metrics = m }
}

// IOHandler bridges the session manager and an opaque transport.
//
// Outbound, it encodes via the session (registering the pending entry),
// applies SDU protection and writes to the transport; the whole sequence is
// serialized by a send mutex so no peer can observe a response to a request
// before that request's pending entry exists locally.
//
// Inbound, it unprotects and decodes, then dispatches to the user callback
// for the opcode. No session-layer lock is held across a callback, so
// handlers are free to call back into the provider.
type IOHandler struct {
	mgr       *SessionManager
	transport Transport
	sdu       SDUProtection
	handlers  Handlers
	metrics   metrics.CDAPMetrics

	sendMu sync.Mutex
}

// NewIOHandler creates an I/O handler over an established transport.
func NewIOHandler(mgr *SessionManager, transport Transport, handlers Handlers,
	opts ...IOHandlerOption) *IOHandler {

	h := &IOHandler{
		mgr:       mgr,
		transport: transport,
		sdu:       IdentityProtection{},
		handlers:  handlers,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SessionManager returns the session manager the handler routes through.
func (h *IOHandler) SessionManager() *SessionManager {
	return h.mgr
}

// retryableWriteError reports whether a transport write failure leaves the
// session usable.
func retryableWriteError(err error) bool {
	return errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EINTR) ||
		errors.Is(err, syscall.EMSGSIZE)
}

// Send encodes a message on the session for portID and writes it to the
// transport. A non-retryable write failure tears the session down.
func (h *IOHandler) Send(portID int, m *Message) error {
	h.sendMu.Lock()

	data, err := h.mgr.EncodeNextMessage(m, portID)
	if err != nil {
		h.sendMu.Unlock()
		h.recordError(err)
		return err
	}

	protected, err := h.sdu.Protect(data)
	if err != nil {
		h.sendMu.Unlock()
		return fmt.Errorf("sdu protection: %w", err)
	}

	_, werr := h.transport.Write(portID, protected)
	h.sendMu.Unlock()

	if werr != nil {
		if retryableWriteError(werr) {
			return fmt.Errorf("transport busy on port id %d: %w", portID, werr)
		}
		// Abort outside the send mutex: the abort handler may call back
		// into Send.
		h.mgr.AbortSession(portID, fmt.Sprintf("transport write failed: %v", werr))
		return fmt.Errorf("transport write on port id %d: %w", portID, werr)
	}

	if h.metrics != nil {
		h.metrics.RecordMessageSent(m.Opcode.String())
		h.metrics.SetActiveSessions(h.mgr.SessionCount())
	}
	logger.Debug("CDAP message sent",
		logger.KeyPortID, portID,
		logger.KeyOpcode, m.Opcode.String(),
		logger.KeyInvokeID, m.InvokeID,
		logger.KeyBytes, len(protected))
	return nil
}

// OnBytes is the externally driven inbound entry point: the transport calls
// it with each SDU read for a port id.
func (h *IOHandler) OnBytes(portID int, data []byte) error {
	start := time.Now()

	raw, err := h.sdu.Unprotect(data)
	if err != nil {
		return NewWireError("sdu unprotection: %v", err)
	}

	m, err := h.mgr.MessageReceived(raw, portID)
	if err != nil {
		h.recordError(err)
		return err
	}

	if h.metrics != nil {
		h.metrics.RecordMessageReceived(m.Opcode.String())
		h.metrics.SetActiveSessions(h.mgr.SessionCount())
	}

	h.dispatch(portID, m)

	if h.metrics != nil {
		h.metrics.RecordDispatch(m.Opcode.String(), time.Since(start))
	}
	return nil
}

// dispatch routes a validated inbound message to the user callback for its
// opcode. A non-connect message on a session still in AWAITCON belongs to
// the authentication exchange and goes to the auth handler unclassified.
func (h *IOHandler) dispatch(portID int, m *Message) {
	con := ConnHandle{PortID: portID}
	if s, ok := h.mgr.GetSession(portID); ok {
		con = s.Handle()

		if s.State() == StateAwaitCon && m.Opcode != OpConnect {
			if h.handlers.Auth == nil {
				logger.Warn("authentication message dropped: no auth handler",
					logger.KeyPortID, portID,
					logger.KeyOpcode, m.Opcode.String())
				return
			}
			h.handlers.Auth.AuthMessage(con, m)
			return
		}
	}

	obj := ObjInfo{Class: m.ObjClass, Inst: m.ObjInst, Name: m.ObjName, Value: m.ObjValue}
	filt := FiltInfo{Filter: m.Filter, Scope: m.Scope}
	res := ResInfo{Code: m.Result, Reason: m.ResultReason}

	switch m.Opcode {
	case OpConnect:
		if h.handlers.AppConn != nil {
			h.handlers.AppConn.Connect(m.InvokeID, con)
			return
		}
	case OpConnectR:
		if h.handlers.AppConn != nil {
			h.handlers.AppConn.ConnectResult(res, con)
			return
		}
	case OpRelease:
		if h.handlers.AppConn != nil {
			h.handlers.AppConn.Release(m.InvokeID, con)
			return
		}
	case OpReleaseR:
		if h.handlers.AppConn != nil {
			h.handlers.AppConn.ReleaseResult(res, con)
			return
		}

	case OpCreate:
		if h.handlers.Requests != nil {
			h.handlers.Requests.CreateRequest(con, obj, filt, m.InvokeID)
			return
		}
	case OpDelete:
		if h.handlers.Requests != nil {
			h.handlers.Requests.DeleteRequest(con, obj, filt, m.InvokeID)
			return
		}
	case OpRead:
		if h.handlers.Requests != nil {
			h.handlers.Requests.ReadRequest(con, obj, filt, m.InvokeID)
			return
		}
	case OpCancelRead:
		if h.handlers.Requests != nil {
			h.handlers.Requests.CancelReadRequest(con, m.InvokeID)
			return
		}
	case OpWrite:
		if h.handlers.Requests != nil {
			h.handlers.Requests.WriteRequest(con, obj, filt, m.InvokeID)
			return
		}
	case OpStart:
		if h.handlers.Requests != nil {
			h.handlers.Requests.StartRequest(con, obj, filt, m.InvokeID)
			return
		}
	case OpStop:
		if h.handlers.Requests != nil {
			h.handlers.Requests.StopRequest(con, obj, filt, m.InvokeID)
			return
		}

	case OpCreateR:
		if h.handlers.Responses != nil {
			h.handlers.Responses.RemoteCreateResult(con, obj, res)
			return
		}
	case OpDeleteR:
		if h.handlers.Responses != nil {
			h.handlers.Responses.RemoteDeleteResult(con, res)
			return
		}
	case OpReadR:
		if h.handlers.Responses != nil {
			h.handlers.Responses.RemoteReadResult(con, obj, res, m.Flags)
			return
		}
	case OpCancelReadR:
		if h.handlers.Responses != nil {
			h.handlers.Responses.RemoteCancelReadResult(con, res)
			return
		}
	case OpWriteR:
		if h.handlers.Responses != nil {
			h.handlers.Responses.RemoteWriteResult(con, obj, res)
			return
		}
	case OpStartR:
		if h.handlers.Responses != nil {
			h.handlers.Responses.RemoteStartResult(con, obj, res)
			return
		}
	case OpStopR:
		if h.handlers.Responses != nil {
			h.handlers.Responses.RemoteStopResult(con, obj, res)
			return
		}
	}

	logger.Warn("CDAP message dropped: no handler",
		logger.KeyPortID, portID,
		logger.KeyOpcode, m.Opcode.String())
}

func (h *IOHandler) recordError(err error) {
	if h.metrics == nil {
		return
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		h.metrics.RecordProtocolError(pe.Kind.String())
	} else if IsWireError(err) {
		h.metrics.RecordWireError()
	}
}
