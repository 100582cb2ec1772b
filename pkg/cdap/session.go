package cdap

import (
	"sync"
	"time"
)

// abortFunc is invoked, outside the session lock, when a connect or release
// timer expires. It receives the invoke ids of requests that were still
// awaiting responses.
type abortFunc func(portID int, pendingSent []int32, reason string)

// Session drives the CDAP protocol for a single port id: it validates every
// message against the opcode/field matrix, runs the connection state
// machine, tracks pending operations and invoke-id lifetimes, and owns the
// connection handle populated from the connect exchange.
//
// The two public operations mirror the two data directions:
// EncodeNext validates and encodes an outgoing message, ProcessIncoming
// decodes and validates an incoming buffer. Both update state atomically
// under the session mutex: no other goroutine can observe a half-applied
// send.
type Session struct {
	mu sync.Mutex

	portID    int
	codec     *Codec
	invokeIDs *InvokeIDAllocator
	scheduler TimerScheduler
	timeout   time.Duration

	pending pendingTables
	sm      stateMachine
	handle  ConnHandle

	onAbort abortFunc
}

func newSession(portID int, codec *Codec, invokeIDs *InvokeIDAllocator,
	scheduler TimerScheduler, timeout time.Duration, onAbort abortFunc) *Session {

	s := &Session{
		portID:    portID,
		codec:     codec,
		invokeIDs: invokeIDs,
		scheduler: scheduler,
		timeout:   timeout,
		pending:   newPendingTables(),
		onAbort:   onAbort,
	}
	s.sm.s = s
	s.handle.PortID = portID
	return s
}

// PortID returns the port id this session operates over.
func (s *Session) PortID() int {
	return s.portID
}

// State returns the current connection state.
func (s *Session) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sm.state
}

// Handle returns a copy of the connection handle. It is fully populated
// once the connect exchange has been seen.
func (s *Session) Handle() ConnHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// IsClosed reports whether the release exchange completed and the session
// awaits destruction.
func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sm.isClosed()
}

// PendingCounts returns the sizes of the pending-sent, pending-received and
// cancel-read tables.
func (s *Session) PendingCounts() (sent, recv, cancelRead int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending.sent), len(s.pending.recv), len(s.pending.cancelRead)
}

// EncodeNext validates an outgoing message, applies the state transition it
// implies, and returns its wire encoding. On any error the session state is
// unchanged and nothing must be written to the transport.
func (s *Session) EncodeNext(m *Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkTransition(m, true); err != nil {
		return nil, err
	}
	data, err := s.codec.Encode(m)
	if err != nil {
		return nil, err
	}
	s.applyTransition(m, true)
	return data, nil
}

// ProcessIncoming decodes an incoming buffer, validates the message, and
// applies the state transition it implies. On any error the bytes are
// discarded and the session state is unchanged.
func (s *Session) ProcessIncoming(buf []byte) (*Message, error) {
	m, err := s.codec.Decode(buf)
	if err != nil {
		return nil, err
	}
	if err := s.MessageReceived(m); err != nil {
		return nil, err
	}
	return m, nil
}

// MessageReceived validates an already-decoded incoming message and applies
// the state transition it implies.
func (s *Session) MessageReceived(m *Message) error {
	if err := m.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkTransition(m, false); err != nil {
		return err
	}
	s.applyTransition(m, false)
	return nil
}

// checkTransition verifies the message is legal in the current state and
// against the pending tables. It performs no mutation, so a violation
// leaves the session exactly as it was.
func (s *Session) checkTransition(m *Message, sent bool) error {
	switch m.Opcode {
	case OpConnect:
		if s.sm.state != StateNone {
			return NewBadStateError(s.sm.state.String(), m.Opcode.String())
		}
		return s.pending.checkRequest(m, sent)

	case OpConnectR:
		if s.sm.state != StateAwaitCon {
			return NewBadStateError(s.sm.state.String(), m.Opcode.String())
		}
		return s.pending.checkResponse(m, sent)

	case OpRelease:
		if sent {
			if s.sm.state != StateConnected && s.sm.state != StateAwaitCon {
				return NewBadStateError(s.sm.state.String(), m.Opcode.String())
			}
		} else if s.sm.state != StateConnected && s.sm.state != StateAwaitCon &&
			s.sm.state != StateAwaitClose {
			return NewBadStateError(s.sm.state.String(), m.Opcode.String())
		}
		return s.pending.checkRequest(m, sent)

	case OpReleaseR:
		if s.sm.state != StateAwaitClose {
			return NewBadStateError(s.sm.state.String(), m.Opcode.String())
		}
		return s.pending.checkResponse(m, sent)

	case OpCreate, OpDelete, OpRead, OpWrite, OpStart, OpStop:
		if !s.sm.canSendOrReceiveMessages() {
			return NewBadStateError(s.sm.state.String(), m.Opcode.String())
		}
		return s.pending.checkRequest(m, sent)

	case OpCreateR, OpDeleteR, OpReadR, OpWriteR, OpStartR, OpStopR:
		if !s.sm.canSendOrReceiveMessages() {
			return NewBadStateError(s.sm.state.String(), m.Opcode.String())
		}
		return s.pending.checkResponse(m, sent)

	case OpCancelRead:
		if !s.sm.canSendOrReceiveMessages() {
			return NewBadStateError(s.sm.state.String(), m.Opcode.String())
		}
		return s.pending.checkCancelRead(m, sent)

	case OpCancelReadR:
		if !s.sm.canSendOrReceiveMessages() {
			return NewBadStateError(s.sm.state.String(), m.Opcode.String())
		}
		return s.pending.checkCancelReadResponse(m, sent)

	default:
		return NewWireError("unknown opcode %d", int32(m.Opcode))
	}
}

// applyTransition mutates state machine, pending tables and invoke-id sets
// for a message that already passed checkTransition.
func (s *Session) applyTransition(m *Message, sent bool) {
	switch m.Opcode {
	case OpConnect:
		s.sm.connectSentOrReceived(sent)
		s.pending.requestSentOrReceived(m, sent)
		s.invokeIDs.ReserveInvokeID(m.InvokeID, direction(sent))
		s.populateHandle(m, sent)

	case OpConnectR:
		s.sm.connectResponseSentOrReceived(sent)
		s.completeResponse(m, sent)
		s.negotiateHandle(m)

	case OpRelease:
		s.sm.releaseSentOrReceived(m, sent)
		if m.InvokeID != 0 {
			s.pending.requestSentOrReceived(m, sent)
			s.invokeIDs.ReserveInvokeID(m.InvokeID, direction(sent))
		}

	case OpReleaseR:
		s.sm.releaseResponseSentOrReceived(sent)
		s.completeResponse(m, sent)

	case OpCreate, OpDelete, OpRead, OpWrite, OpStart, OpStop:
		if m.InvokeID != 0 {
			s.pending.requestSentOrReceived(m, sent)
			s.invokeIDs.ReserveInvokeID(m.InvokeID, direction(sent))
		}

	case OpCreateR, OpDeleteR, OpReadR, OpWriteR, OpStartR, OpStopR:
		s.completeResponse(m, sent)

	case OpCancelRead:
		s.pending.cancelReadSentOrReceived(m, sent)

	case OpCancelReadR:
		s.pending.cancelReadResponseSentOrReceived(m, sent)
	}
}

// completeResponse retires the pending entry a response answers and frees
// its invoke id, unless an incomplete read keeps the entry open.
func (s *Session) completeResponse(m *Message, sent bool) {
	if s.pending.responseSentOrReceived(m, sent) {
		// A response we sent answers a request the peer sent, and the other
		// way around.
		s.invokeIDs.FreeInvokeID(m.InvokeID, direction(!sent))
	}
}

func direction(sent bool) Direction {
	if sent {
		return Sent
	}
	return Received
}

// populateHandle records the endpoints, version and auth policy from an
// M_CONNECT into the connection handle. On a received connect the peer's
// source is our destination.
func (s *Session) populateHandle(m *Message, sent bool) {
	if sent {
		s.handle.Src = m.Src
		s.handle.Dest = m.Dest
	} else {
		s.handle.Src = m.Dest
		s.handle.Dest = m.Src
	}
	s.handle.Version = m.Version
	s.handle.Auth = m.Auth
}

// negotiateHandle folds the negotiated version and auth policy from an
// M_CONNECT_R into the handle.
func (s *Session) negotiateHandle(m *Message) {
	if m.Version != 0 {
		s.handle.Version = m.Version
	}
	if m.Auth.Name != "" || len(m.Auth.Versions) != 0 || len(m.Auth.Options) != 0 {
		s.handle.Auth = m.Auth
	}
}

// timerExpired is the connect/release timer task. A stale generation means
// the timer was cancelled or re-armed after this task was scheduled.
func (s *Session) timerExpired(gen uint64, reason string) {
	s.mu.Lock()
	if gen != s.sm.timerGen {
		s.mu.Unlock()
		return
	}
	s.teardownLocked(reason)
}

// abort tears the session down outside the timer path, e.g. on a
// non-retryable transport failure.
func (s *Session) abort(reason string) {
	s.mu.Lock()
	s.teardownLocked(reason)
}

// teardownLocked resets the state machine, releases every pending invoke id
// and notifies the abort hook. It unlocks s.mu: the hook runs outside the
// session lock so it can reach back into the manager.
func (s *Session) teardownLocked(reason string) {
	s.sm.reset()
	sentIDs, recvIDs := s.pending.drain()
	for _, id := range sentIDs {
		s.invokeIDs.FreeInvokeID(id, Sent)
	}
	for _, id := range recvIDs {
		s.invokeIDs.FreeInvokeID(id, Received)
	}
	onAbort := s.onAbort
	s.mu.Unlock()

	if onAbort != nil {
		onAbort(s.portID, sentIDs, reason)
	}
}

// destroy cancels any armed timer and drops pending state. Called by the
// session manager when the session is removed.
func (s *Session) destroy() {
	s.mu.Lock()
	s.sm.cancelTimer()
	sentIDs, recvIDs := s.pending.drain()
	for _, id := range sentIDs {
		s.invokeIDs.FreeInvokeID(id, Sent)
	}
	for _, id := range recvIDs {
		s.invokeIDs.FreeInvokeID(id, Received)
	}
	s.mu.Unlock()
}
