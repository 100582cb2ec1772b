package cdap

import (
	"sort"
	"sync"
	"time"

	"github.com/marmos91/cdapd/internal/logger"
)

// DefaultTimeout is the maximum time a session waits for a connect or
// release response before aborting.
const DefaultTimeout = 10 * time.Second

// sessionReapDelay defers actual session destruction after a removal, so
// that dispatch already in flight on the port id completes first.
const sessionReapDelay = 100 * time.Millisecond

// AbortHandler is notified, outside all session-layer locks, when a session
// is torn down by a timer expiry or a transport failure. pendingSent holds
// the invoke ids of locally originated requests that will never complete.
type AbortHandler func(err *SessionAbortedError, pendingSent []int32)

// SessionManagerConfig configures a SessionManager.
type SessionManagerConfig struct {
	// Timeout governs both the connect and the release timers.
	// Zero means DefaultTimeout.
	Timeout time.Duration

	// MaxMessageSize bounds encoded messages. Zero means
	// DefaultMaxMessageSize.
	MaxMessageSize int

	// Scheduler runs the session timers. Nil means the default scheduler
	// backed by time.AfterFunc.
	Scheduler TimerScheduler
}

// SessionManager maps port ids to sessions and routes messages between
// callers and the wire codec. It owns the shared invoke-id allocator.
//
// All methods are safe for concurrent use. A failure on one session never
// affects another.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[int]*Session

	codec     Codec
	invokeIDs *InvokeIDAllocator
	scheduler TimerScheduler
	timeout   time.Duration

	abortMu      sync.RWMutex
	abortHandler AbortHandler
}

// NewSessionManager creates an empty session manager.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	scheduler := cfg.Scheduler
	if scheduler == nil {
		scheduler = NewTimerScheduler()
	}
	return &SessionManager{
		sessions:  make(map[int]*Session),
		codec:     Codec{MaxMessageSize: cfg.MaxMessageSize},
		invokeIDs: NewInvokeIDAllocator(),
		scheduler: scheduler,
		timeout:   timeout,
	}
}

// SetAbortHandler installs the callback notified when a session aborts.
func (mgr *SessionManager) SetAbortHandler(h AbortHandler) {
	mgr.abortMu.Lock()
	mgr.abortHandler = h
	mgr.abortMu.Unlock()
}

// InvokeIDs returns the shared invoke-id allocator.
func (mgr *SessionManager) InvokeIDs() *InvokeIDAllocator {
	return mgr.invokeIDs
}

// EnsureSession returns the session for portID, creating it if absent.
func (mgr *SessionManager) EnsureSession(portID int) *Session {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	return mgr.ensureLocked(portID)
}

func (mgr *SessionManager) ensureLocked(portID int) *Session {
	if s, ok := mgr.sessions[portID]; ok {
		return s
	}
	s := newSession(portID, &mgr.codec, mgr.invokeIDs, mgr.scheduler,
		mgr.timeout, mgr.sessionAborted)
	mgr.sessions[portID] = s
	logger.Debug("CDAP session created", logger.KeyPortID, portID)
	return s
}

// GetSession returns the session for portID.
func (mgr *SessionManager) GetSession(portID int) (*Session, bool) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	s, ok := mgr.sessions[portID]
	return s, ok
}

// PortIDs returns the port ids of all live sessions, sorted.
func (mgr *SessionManager) PortIDs() []int {
	mgr.mu.RLock()
	ids := make([]int, 0, len(mgr.sessions))
	for id := range mgr.sessions {
		ids = append(ids, id)
	}
	mgr.mu.RUnlock()
	sort.Ints(ids)
	return ids
}

// SessionCount returns the number of live sessions.
func (mgr *SessionManager) SessionCount() int {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	return len(mgr.sessions)
}

// EncodeNextMessage validates and encodes an outgoing message on a port id.
// A session is auto-created for an outbound M_CONNECT; any other opcode on
// an unknown port id is refused with NoSession.
func (mgr *SessionManager) EncodeNextMessage(m *Message, portID int) ([]byte, error) {
	s, ok := mgr.GetSession(portID)
	if !ok {
		if m.Opcode != OpConnect {
			return nil, NewNoSessionError(portID)
		}
		s = mgr.EnsureSession(portID)
	}
	data, err := s.EncodeNext(m)
	if err != nil {
		return nil, err
	}
	if s.IsClosed() {
		mgr.RemoveSession(portID)
	}
	return data, nil
}

// MessageReceived decodes and applies an incoming buffer on a port id. A
// session is auto-created for an inbound M_CONNECT; any other opcode on an
// unknown port id is refused with NoSession.
func (mgr *SessionManager) MessageReceived(buf []byte, portID int) (*Message, error) {
	m, err := mgr.codec.Decode(buf)
	if err != nil {
		return nil, err
	}
	s, ok := mgr.GetSession(portID)
	if !ok {
		if m.Opcode != OpConnect {
			return nil, NewNoSessionError(portID)
		}
		s = mgr.EnsureSession(portID)
	}
	if err := s.MessageReceived(m); err != nil {
		return nil, err
	}
	if s.IsClosed() {
		mgr.RemoveSession(portID)
	}
	return m, nil
}

// EncodeMessage serializes a message without touching any session state.
func (mgr *SessionManager) EncodeMessage(m *Message) ([]byte, error) {
	return mgr.codec.Encode(m)
}

// DecodeMessage parses a message without touching any session state.
func (mgr *SessionManager) DecodeMessage(buf []byte) (*Message, error) {
	return mgr.codec.Decode(buf)
}

// AssignInvokeID stamps a fresh invoke id onto an outgoing request when one
// is wanted. Requests sent without an invoke id are fire-and-forget.
func (mgr *SessionManager) AssignInvokeID(m *Message, wantInvokeID bool) error {
	if !wantInvokeID {
		return nil
	}
	id, err := mgr.invokeIDs.NewInvokeID(Sent)
	if err != nil {
		return err
	}
	m.InvokeID = id
	return nil
}

// RemoveSession schedules the session's destruction after a short delay so
// that in-flight dispatch on the port id completes first.
func (mgr *SessionManager) RemoveSession(portID int) {
	mgr.scheduler.Schedule(sessionReapDelay, func() {
		mgr.RemoveSessionNow(portID)
	})
}

// RemoveSessionNow removes and destroys the session immediately. It is used
// on timer aborts and non-retryable transport failures, where no further
// dispatch can arrive.
func (mgr *SessionManager) RemoveSessionNow(portID int) {
	mgr.mu.Lock()
	s, ok := mgr.sessions[portID]
	if ok {
		delete(mgr.sessions, portID)
	}
	mgr.mu.Unlock()

	if ok {
		s.destroy()
		logger.Debug("CDAP session removed", logger.KeyPortID, portID)
	}
}

// AbortSession tears down the session on portID as if its timer had
// expired: state reset, pending invoke ids released, abort handler
// notified. Used by the I/O handler on non-retryable transport failures.
func (mgr *SessionManager) AbortSession(portID int, reason string) {
	if s, ok := mgr.GetSession(portID); ok {
		s.abort(reason)
	}
}

// sessionAborted is the per-session abort hook: the session already reset
// itself to NONE; drop it from the map and notify the abort handler.
func (mgr *SessionManager) sessionAborted(portID int, pendingSent []int32, reason string) {
	mgr.RemoveSessionNow(portID)
	logger.Warn("CDAP session aborted",
		logger.KeyPortID, portID, logger.KeyError, reason)

	mgr.abortMu.RLock()
	h := mgr.abortHandler
	mgr.abortMu.RUnlock()
	if h != nil {
		h(&SessionAbortedError{PortID: portID, Reason: reason}, pendingSent)
	}
}
