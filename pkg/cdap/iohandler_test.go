package cdap

import (
	"sync"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopbackTransport delivers every written SDU straight into the peer's
// I/O handler.
type loopbackTransport struct {
	mu   sync.Mutex
	peer *IOHandler
}

func (l *loopbackTransport) setPeer(h *IOHandler) {
	l.mu.Lock()
	l.peer = h
	l.mu.Unlock()
}

func (l *loopbackTransport) Write(portID int, data []byte) (int, error) {
	l.mu.Lock()
	peer := l.peer
	l.mu.Unlock()
	if peer == nil {
		return 0, syscall.EPIPE
	}
	// Delivery errors belong to the receiving side; the write succeeded.
	_ = peer.OnBytes(portID, data)
	return len(data), nil
}

// failTransport always fails writes with a fixed errno.
type failTransport struct {
	errno syscall.Errno
}

func (f *failTransport) Write(portID int, data []byte) (int, error) {
	return 0, f.errno
}

// recordingHandlers captures every callback invocation.
type recordingHandlers struct {
	mu sync.Mutex

	connects       []int32
	connectResults []ResInfo
	releases       []int32
	releaseResults []ResInfo
	reads          []ObjInfo
	readResults    []ObjInfo
	writeResults   []ResInfo
	authMessages   []Opcode
}

func (r *recordingHandlers) Connect(invokeID int32, con ConnHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connects = append(r.connects, invokeID)
}

func (r *recordingHandlers) ConnectResult(res ResInfo, con ConnHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectResults = append(r.connectResults, res)
}

func (r *recordingHandlers) Release(invokeID int32, con ConnHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releases = append(r.releases, invokeID)
}

func (r *recordingHandlers) ReleaseResult(res ResInfo, con ConnHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseResults = append(r.releaseResults, res)
}

func (r *recordingHandlers) CreateRequest(con ConnHandle, obj ObjInfo, filt FiltInfo, invokeID int32) {
}
func (r *recordingHandlers) DeleteRequest(con ConnHandle, obj ObjInfo, filt FiltInfo, invokeID int32) {
}

func (r *recordingHandlers) ReadRequest(con ConnHandle, obj ObjInfo, filt FiltInfo, invokeID int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads = append(r.reads, obj)
}

func (r *recordingHandlers) CancelReadRequest(con ConnHandle, invokeID int32) {}
func (r *recordingHandlers) WriteRequest(con ConnHandle, obj ObjInfo, filt FiltInfo, invokeID int32) {
}
func (r *recordingHandlers) StartRequest(con ConnHandle, obj ObjInfo, filt FiltInfo, invokeID int32) {
}
func (r *recordingHandlers) StopRequest(con ConnHandle, obj ObjInfo, filt FiltInfo, invokeID int32) {
}

func (r *recordingHandlers) RemoteCreateResult(con ConnHandle, obj ObjInfo, res ResInfo) {}
func (r *recordingHandlers) RemoteDeleteResult(con ConnHandle, res ResInfo)              {}

func (r *recordingHandlers) RemoteReadResult(con ConnHandle, obj ObjInfo, res ResInfo, flags Flags) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readResults = append(r.readResults, obj)
}

func (r *recordingHandlers) RemoteCancelReadResult(con ConnHandle, res ResInfo) {}

func (r *recordingHandlers) RemoteWriteResult(con ConnHandle, obj ObjInfo, res ResInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeResults = append(r.writeResults, res)
}

func (r *recordingHandlers) RemoteStartResult(con ConnHandle, obj ObjInfo, res ResInfo) {}
func (r *recordingHandlers) RemoteStopResult(con ConnHandle, obj ObjInfo, res ResInfo)  {}

func (r *recordingHandlers) AuthMessage(con ConnHandle, m *Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authMessages = append(r.authMessages, m.Opcode)
}

// ioPair builds two providers wired back to back over loopback transports.
type ioPair struct {
	clientProvider *Provider
	serverProvider *Provider
	clientRec      *recordingHandlers
	serverRec      *recordingHandlers
}

func newIOPair(t *testing.T) *ioPair {
	clientMgr := NewSessionManager(SessionManagerConfig{Scheduler: &fakeScheduler{}})
	serverMgr := NewSessionManager(SessionManagerConfig{Scheduler: &fakeScheduler{}})

	clientRec := &recordingHandlers{}
	serverRec := &recordingHandlers{}

	toServer := &loopbackTransport{}
	toClient := &loopbackTransport{}

	clientIO := NewIOHandler(clientMgr, toServer, Handlers{
		AppConn: clientRec, Requests: clientRec, Responses: clientRec, Auth: clientRec,
	})
	serverIO := NewIOHandler(serverMgr, toClient, Handlers{
		AppConn: serverRec, Requests: serverRec, Responses: serverRec, Auth: serverRec,
	})

	toServer.setPeer(serverIO)
	toClient.setPeer(clientIO)

	return &ioPair{
		clientProvider: NewProvider(clientMgr, clientIO),
		serverProvider: NewProvider(serverMgr, serverIO),
		clientRec:      clientRec,
		serverRec:      serverRec,
	}
}

func TestIOHandler_ConnectDispatch(t *testing.T) {
	p := newIOPair(t)

	invokeID, err := p.clientProvider.RemoteOpenConnection(1,
		EndpointInfo{APName: "A", AEName: "management"},
		EndpointInfo{APName: "B", AEName: "management"},
		AuthPolicy{}, 7)
	require.NoError(t, err)
	require.Len(t, p.serverRec.connects, 1)
	assert.Equal(t, invokeID, p.serverRec.connects[0])

	// The server answers; the client sees the result.
	require.NoError(t, p.serverProvider.SendOpenConnectionResult(7, ResInfo{}, invokeID))
	require.Len(t, p.clientRec.connectResults, 1)
	assert.Zero(t, p.clientRec.connectResults[0].Code)
}

func TestIOHandler_RequestResponseDispatch(t *testing.T) {
	p := newIOPair(t)

	invokeID, err := p.clientProvider.RemoteOpenConnection(1,
		EndpointInfo{APName: "A"}, EndpointInfo{APName: "B"}, AuthPolicy{}, 7)
	require.NoError(t, err)
	require.NoError(t, p.serverProvider.SendOpenConnectionResult(7, ResInfo{}, invokeID))

	readID, err := p.clientProvider.RemoteRead(7,
		ObjInfo{Class: "SysInfo", Name: "/sys/info"}, FlagsNone, FiltInfo{})
	require.NoError(t, err)
	require.Len(t, p.serverRec.reads, 1)
	assert.Equal(t, "/sys/info", p.serverRec.reads[0].Name)

	require.NoError(t, p.serverProvider.SendReadResult(7,
		ObjInfo{Class: "SysInfo", Name: "/sys/info", Value: []byte("v")},
		ResInfo{}, FlagsNone, readID))
	require.Len(t, p.clientRec.readResults, 1)
	assert.Equal(t, []byte("v"), p.clientRec.readResults[0].Value)
}

// TestIOHandler_AuthShortCircuit: a non-connect message arriving in
// AWAITCON goes to the auth handler, not the operation dispatch.
func TestIOHandler_AuthShortCircuit(t *testing.T) {
	p := newIOPair(t)

	_, err := p.clientProvider.RemoteOpenConnection(1,
		EndpointInfo{APName: "A"}, EndpointInfo{APName: "B"}, AuthPolicy{}, 7)
	require.NoError(t, err)

	// Both peers are in AWAITCON. An M_WRITE from the server is an
	// authentication message for the client.
	_, err = p.serverProvider.RemoteWrite(7,
		ObjInfo{Class: "Auth", Name: "/auth", Value: []byte("challenge")},
		FlagsNone, FiltInfo{})
	require.NoError(t, err)

	require.Len(t, p.clientRec.authMessages, 1)
	assert.Equal(t, OpWrite, p.clientRec.authMessages[0])
	assert.Empty(t, p.clientRec.writeResults)
}

// TestIOHandler_TransportFailure: a non-retryable write error
// tears the session down; a retryable one does not.
func TestIOHandler_TransportFailure(t *testing.T) {
	t.Run("non-retryable", func(t *testing.T) {
		mgr := NewSessionManager(SessionManagerConfig{Scheduler: &fakeScheduler{}})
		io := NewIOHandler(mgr, &failTransport{errno: syscall.EPIPE}, Handlers{})
		provider := NewProvider(mgr, io)

		var aborted bool
		mgr.SetAbortHandler(func(err *SessionAbortedError, _ []int32) {
			aborted = true
		})

		_, err := provider.RemoteOpenConnection(1,
			EndpointInfo{APName: "A"}, EndpointInfo{APName: "B"}, AuthPolicy{}, 3)
		require.Error(t, err)
		assert.Zero(t, mgr.SessionCount())
		assert.True(t, aborted)
	})

	t.Run("retryable", func(t *testing.T) {
		mgr := NewSessionManager(SessionManagerConfig{Scheduler: &fakeScheduler{}})
		io := NewIOHandler(mgr, &failTransport{errno: syscall.EAGAIN}, Handlers{})
		provider := NewProvider(mgr, io)

		_, err := provider.RemoteOpenConnection(1,
			EndpointInfo{APName: "A"}, EndpointInfo{APName: "B"}, AuthPolicy{}, 3)
		require.Error(t, err)
		// The session survives a transient transport condition.
		assert.Equal(t, 1, mgr.SessionCount())
	})
}

// TestIOHandler_SDUProtection runs a connect exchange through the
// AEAD policy on both sides.
func TestIOHandler_SDUProtection(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	clientSDU, err := NewAEADProtection(key)
	require.NoError(t, err)
	serverSDU, err := NewAEADProtection(key)
	require.NoError(t, err)

	clientMgr := NewSessionManager(SessionManagerConfig{Scheduler: &fakeScheduler{}})
	serverMgr := NewSessionManager(SessionManagerConfig{Scheduler: &fakeScheduler{}})
	serverRec := &recordingHandlers{}

	toServer := &loopbackTransport{}
	toClient := &loopbackTransport{}

	clientIO := NewIOHandler(clientMgr, toServer, Handlers{}, WithSDUProtection(clientSDU))
	serverIO := NewIOHandler(serverMgr, toClient, Handlers{
		AppConn: serverRec, Requests: serverRec, Responses: serverRec,
	}, WithSDUProtection(serverSDU))

	toServer.setPeer(serverIO)
	toClient.setPeer(clientIO)

	provider := NewProvider(clientMgr, clientIO)
	_, err = provider.RemoteOpenConnection(1,
		EndpointInfo{APName: "A"}, EndpointInfo{APName: "B"}, AuthPolicy{}, 5)
	require.NoError(t, err)
	require.Len(t, serverRec.connects, 1)
}
