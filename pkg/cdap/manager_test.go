package cdap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManager_AutoCreateOnConnect(t *testing.T) {
	mgr := NewSessionManager(SessionManagerConfig{Scheduler: &fakeScheduler{}})

	// A non-connect opcode on an unknown port id is refused.
	_, err := mgr.EncodeNextMessage(&Message{Opcode: OpRead, InvokeID: 1,
		ObjClass: "C", ObjName: "/c"}, 3)
	require.Error(t, err)
	assert.True(t, IsProtocolError(err, NoSession))
	assert.Zero(t, mgr.SessionCount())

	// An outbound connect creates the session.
	_, err = mgr.EncodeNextMessage(&Message{
		AbsSyntax: AbstractSyntax, Opcode: OpConnect, InvokeID: 1,
		Src: EndpointInfo{APName: "A"}, Dest: EndpointInfo{APName: "B"},
		Version: 1,
	}, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, mgr.SessionCount())
	assert.Equal(t, []int{3}, mgr.PortIDs())
}

func TestSessionManager_InboundAutoCreate(t *testing.T) {
	mgr := NewSessionManager(SessionManagerConfig{Scheduler: &fakeScheduler{}})
	codec := &Codec{}

	// Inbound non-connect on an unknown port id is refused.
	data, err := codec.Encode(&Message{Opcode: OpWrite, InvokeID: 1,
		ObjClass: "C", ObjName: "/c", ObjValue: []byte{1}})
	require.NoError(t, err)
	_, err = mgr.MessageReceived(data, 9)
	require.Error(t, err)
	assert.True(t, IsProtocolError(err, NoSession))

	// Inbound connect creates the session.
	data, err = codec.Encode(&Message{
		AbsSyntax: AbstractSyntax, Opcode: OpConnect, InvokeID: 1,
		Src: EndpointInfo{APName: "A"}, Dest: EndpointInfo{APName: "B"},
		Version: 1,
	})
	require.NoError(t, err)
	m, err := mgr.MessageReceived(data, 9)
	require.NoError(t, err)
	assert.Equal(t, OpConnect, m.Opcode)

	s, ok := mgr.GetSession(9)
	require.True(t, ok)
	assert.Equal(t, StateAwaitCon, s.State())
	// The handle sees the exchange from our side: the peer's source is our
	// destination.
	assert.Equal(t, "A", s.Handle().Dest.APName)
}

// TestSessionManager_ConnectTimeout is the S4 scenario: the connect timer
// fires, the session is removed, and subsequent outbound calls get
// NoSession.
func TestSessionManager_ConnectTimeout(t *testing.T) {
	sched := &fakeScheduler{}
	mgr := NewSessionManager(SessionManagerConfig{Scheduler: sched})

	var aborted []*SessionAbortedError
	mgr.SetAbortHandler(func(err *SessionAbortedError, pendingSent []int32) {
		aborted = append(aborted, err)
		assert.Equal(t, []int32{1}, pendingSent)
	})

	_, err := mgr.EncodeNextMessage(&Message{
		AbsSyntax: AbstractSyntax, Opcode: OpConnect, InvokeID: 1,
		Src: EndpointInfo{APName: "A"}, Dest: EndpointInfo{APName: "B"},
		Version: 1,
	}, 4)
	require.NoError(t, err)
	assert.True(t, mgr.InvokeIDs().InUse(1, Sent))

	// The server never answers; the connect timer fires.
	sched.fireAll()

	assert.Zero(t, mgr.SessionCount())
	require.Len(t, aborted, 1)
	assert.Equal(t, 4, aborted[0].PortID)
	assert.False(t, mgr.InvokeIDs().InUse(1, Sent))

	_, err = mgr.EncodeNextMessage(&Message{Opcode: OpRead, InvokeID: 2,
		ObjClass: "C", ObjName: "/c"}, 4)
	require.Error(t, err)
	assert.True(t, IsProtocolError(err, NoSession))
}

func TestSessionManager_ReleaseTimerCancelledByResponse(t *testing.T) {
	p := newPeerPair(t)
	p.connect()

	p.clientToServer(&Message{Opcode: OpRelease, InvokeID: 2})
	p.serverToClient(&Message{Opcode: OpReleaseR, InvokeID: 2})

	// The release timer was cancelled; firing leftovers must not abort
	// anything.
	var aborted bool
	p.client.SetAbortHandler(func(*SessionAbortedError, []int32) {
		aborted = true
	})
	cliSched := p.client.scheduler.(*fakeScheduler)
	cliSched.fireAll()
	assert.False(t, aborted)

	// The reap task ran: the closed session is gone now.
	assert.Zero(t, p.client.SessionCount())
}

func TestSessionManager_RemoveSessionNow(t *testing.T) {
	mgr := NewSessionManager(SessionManagerConfig{Scheduler: &fakeScheduler{}})
	mgr.EnsureSession(12)
	require.Equal(t, 1, mgr.SessionCount())

	mgr.RemoveSessionNow(12)
	assert.Zero(t, mgr.SessionCount())

	// Removing twice is harmless.
	mgr.RemoveSessionNow(12)
}

func TestSessionManager_FailureIsolation(t *testing.T) {
	p := newPeerPair(t)
	p.connect()

	other := 99
	_, err := p.client.EncodeNextMessage(&Message{
		AbsSyntax: AbstractSyntax, Opcode: OpConnect, InvokeID: 5,
		Src: EndpointInfo{APName: "A"}, Dest: EndpointInfo{APName: "C"},
		Version: 1,
	}, other)
	require.NoError(t, err)

	// Abort the second session; the first keeps working.
	p.client.AbortSession(other, "test")
	assert.Equal(t, 1, p.client.SessionCount())

	_, err = p.client.EncodeNextMessage(&Message{Opcode: OpRead, InvokeID: 6,
		ObjClass: "C", ObjName: "/c"}, p.portID)
	require.NoError(t, err)
}
