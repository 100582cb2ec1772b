package cdap

// ConnState is one state of the per-session connection state machine. The
// state machine is the sole arbiter of whether non-connect messages may be
// exchanged on a session.
type ConnState int

const (
	// StateNone is the initial state: no connect message seen.
	StateNone ConnState = iota
	// StateAwaitCon means an M_CONNECT was sent or received and the
	// M_CONNECT_R is outstanding. Authentication exchanges happen here.
	StateAwaitCon
	// StateConnected means the connect exchange completed.
	StateConnected
	// StateAwaitClose means an M_RELEASE with a non-zero invoke id was sent
	// or received and the M_RELEASE_R is outstanding.
	StateAwaitClose
	// StateClosed means the release exchange completed. The session is
	// scheduled for destruction.
	StateClosed
)

// String returns the state name.
func (s ConnState) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateAwaitCon:
		return "AWAITCON"
	case StateConnected:
		return "CONNECTED"
	case StateAwaitClose:
		return "AWAITCLOSE"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// stateMachine drives the NONE → AWAITCON → CONNECTED → AWAITCLOSE → CLOSED
// transitions for one session, including the connect and release timers.
// Legality of each transition is checked by Session.checkTransition before
// any of the mutators below runs; all methods except the timer task body run
// with the owning session's mutex held.
type stateMachine struct {
	s     *Session
	state ConnState

	// timer is the pending connect or release timer, nil when none is
	// armed. timerGen invalidates stale fires after a cancel or re-arm.
	timer    TaskHandle
	timerGen uint64
}

func (sm *stateMachine) canSendOrReceiveMessages() bool {
	return sm.state == StateAwaitCon || sm.state == StateConnected
}

func (sm *stateMachine) isClosed() bool {
	return sm.state == StateClosed
}

// armTimer schedules an abort unless the matching response arrives within
// the session timeout.
func (sm *stateMachine) armTimer(reason string) {
	sm.cancelTimer()
	gen := sm.timerGen
	sm.timer = sm.s.scheduler.Schedule(sm.s.timeout, func() {
		sm.s.timerExpired(gen, reason)
	})
}

func (sm *stateMachine) cancelTimer() {
	if sm.timer != nil {
		sm.timer.Cancel()
		sm.timer = nil
	}
	sm.timerGen++
}

func (sm *stateMachine) connectSentOrReceived(sent bool) {
	sm.state = StateAwaitCon
	if sent {
		sm.armTimer("no M_CONNECT_R received")
	}
}

func (sm *stateMachine) connectResponseSentOrReceived(sent bool) {
	sm.state = StateConnected
	if !sent {
		sm.cancelTimer()
	}
}

func (sm *stateMachine) releaseSentOrReceived(m *Message, sent bool) {
	if m.InvokeID == 0 {
		// Fire-and-forget release: no response will follow.
		sm.cancelTimer()
		sm.state = StateClosed
		return
	}

	sm.state = StateAwaitClose
	if sent {
		sm.armTimer("no M_RELEASE_R received")
	}
}

func (sm *stateMachine) releaseResponseSentOrReceived(sent bool) {
	sm.cancelTimer()
	sm.state = StateClosed
}

// reset returns the machine to NONE, used when a timer expires.
func (sm *stateMachine) reset() {
	sm.cancelTimer()
	sm.state = StateNone
}
