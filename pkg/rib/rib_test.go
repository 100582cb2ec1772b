package rib

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cdapd/pkg/cdap"
)

// fakeResponder records every response a RIB sends.
type fakeResponder struct {
	mu sync.Mutex

	creates []responseRecord
	deletes []responseRecord
	reads   []responseRecord
	cancels []responseRecord
	writes  []responseRecord
	starts  []responseRecord
	stops   []responseRecord
}

type responseRecord struct {
	portID   int
	obj      cdap.ObjInfo
	res      cdap.ResInfo
	flags    cdap.Flags
	invokeID int32
}

func (f *fakeResponder) SendCreateResult(portID int, obj cdap.ObjInfo, res cdap.ResInfo, invokeID int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, responseRecord{portID: portID, obj: obj, res: res, invokeID: invokeID})
	return nil
}

func (f *fakeResponder) SendDeleteResult(portID int, obj cdap.ObjInfo, res cdap.ResInfo, invokeID int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, responseRecord{portID: portID, obj: obj, res: res, invokeID: invokeID})
	return nil
}

func (f *fakeResponder) SendReadResult(portID int, obj cdap.ObjInfo, res cdap.ResInfo, flags cdap.Flags, invokeID int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, responseRecord{portID: portID, obj: obj, res: res, flags: flags, invokeID: invokeID})
	return nil
}

func (f *fakeResponder) SendCancelReadResult(portID int, res cdap.ResInfo, invokeID int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, responseRecord{portID: portID, res: res, invokeID: invokeID})
	return nil
}

func (f *fakeResponder) SendWriteResult(portID int, res cdap.ResInfo, invokeID int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, responseRecord{portID: portID, res: res, invokeID: invokeID})
	return nil
}

func (f *fakeResponder) SendStartResult(portID int, obj cdap.ObjInfo, res cdap.ResInfo, invokeID int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, responseRecord{portID: portID, obj: obj, res: res, invokeID: invokeID})
	return nil
}

func (f *fakeResponder) SendStopResult(portID int, res cdap.ResInfo, invokeID int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, responseRecord{portID: portID, res: res, invokeID: invokeID})
	return nil
}

// testObject is an ordinary object overriding start to record invocations.
type testObject struct {
	BaseObject

	mu        sync.Mutex
	startFQNs []string
}

func (o *testObject) Start(fqn string, value []byte) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startFQNs = append(o.startFQNs, fqn)
	return nil, nil
}

func newTestRIB(t *testing.T) (*RIB, *fakeResponder) {
	responder := &fakeResponder{}
	r := newRIB(1, newSchema(1), responder, nil, nil)
	require.NotNil(t, r)
	return r, responder
}

func TestRIB_AddObject(t *testing.T) {
	r, _ := newTestRIB(t)

	obj := NewBaseObject("Dir", nil)
	id, err := r.AddObject("/a", &obj)
	require.NoError(t, err)
	assert.Equal(t, "/a", obj.FQN())
	assert.Equal(t, id, obj.InstanceID())

	child := NewBaseObject("Leaf", []byte("x"))
	childID, err := r.AddObject("/a/b", &child)
	require.NoError(t, err)
	assert.Greater(t, childID, id)

	// FQN => parent, and the instance id maps back to the same object.
	parentFQN, err := r.GetParentFQN("/a/b")
	require.NoError(t, err)
	assert.Equal(t, "/a", parentFQN)

	byInst, err := r.GetObjectByInstanceID(childID)
	require.NoError(t, err)
	assert.Equal(t, "/a/b", byInst.FQN())
}

func TestRIB_AddObjectValidation(t *testing.T) {
	r, _ := newTestRIB(t)

	cases := []struct {
		name string
		fqn  string
	}{
		{"empty", ""},
		{"relative", "a/b"},
		{"trailing separator", "/a/"},
		{"bare root", "/"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obj := NewBaseObject("X", nil)
			_, err := r.AddObject(tc.fqn, &obj)
			require.Error(t, err)
			assert.True(t, IsError(err, ErrObjectInvalid))
		})
	}

	t.Run("missing parent", func(t *testing.T) {
		obj := NewBaseObject("X", nil)
		_, err := r.AddObject("/no/parent", &obj)
		require.Error(t, err)
		assert.True(t, IsError(err, ErrObjectInvalid))
	})

	t.Run("duplicate fqn", func(t *testing.T) {
		a := NewBaseObject("X", nil)
		_, err := r.AddObject("/dup", &a)
		require.NoError(t, err)

		b := NewBaseObject("X", nil)
		_, err = r.AddObject("/dup", &b)
		require.Error(t, err)
		assert.True(t, IsError(err, ErrObjectExists))
	})

	t.Run("object added twice", func(t *testing.T) {
		a := NewBaseObject("X", nil)
		_, err := r.AddObject("/once", &a)
		require.NoError(t, err)

		_, err = r.AddObject("/twice", &a)
		require.Error(t, err)
		assert.True(t, IsError(err, ErrObjectExists))
	})
}

func TestRIB_RemoveObject(t *testing.T) {
	r, _ := newTestRIB(t)

	parent := NewBaseObject("Dir", nil)
	parentID, err := r.AddObject("/p", &parent)
	require.NoError(t, err)

	child := NewBaseObject("Leaf", nil)
	childID, err := r.AddObject("/p/c", &child)
	require.NoError(t, err)

	// A non-leaf refuses removal.
	err = r.RemoveObject(parentID)
	require.Error(t, err)
	assert.True(t, IsError(err, ErrObjectHasChildren))

	// Leaf first, then the parent.
	require.NoError(t, r.RemoveObject(childID))
	require.NoError(t, r.RemoveObject(parentID))

	_, err = r.GetObjectByFQN("/p")
	assert.True(t, IsObjectDoesNotExist(err))

	// Root is never removable.
	root, err := r.GetObjectByFQN(RootFQN)
	require.NoError(t, err)
	err = r.RemoveObject(root.InstanceID())
	require.Error(t, err)
	assert.True(t, IsError(err, ErrObjectInvalid))

	// Unknown instance id.
	err = r.RemoveObject(9999)
	assert.True(t, IsObjectDoesNotExist(err))
}

func TestRIB_ClassChecks(t *testing.T) {
	r, _ := newTestRIB(t)

	obj := NewBaseObject("SysInfo", []byte("v"))
	_, err := r.AddObject("/sys", &obj)
	require.NoError(t, err)

	got, err := r.GetObjectByClass("SysInfo", "/sys")
	require.NoError(t, err)
	assert.Same(t, &obj, got)

	_, err = r.GetObjectByClass("Other", "/sys")
	require.Error(t, err)
	assert.True(t, IsError(err, ErrObjectClassMismatch))

	class, err := r.GetObjectClass("/sys")
	require.NoError(t, err)
	assert.Equal(t, "SysInfo", class)
}

// TestRIB_SelfReadDefault: reading an object whose class does not override
// read returns its own value.
func TestRIB_SelfReadDefault(t *testing.T) {
	r, responder := newTestRIB(t)

	obj := NewBaseObject("SysInfo", []byte("sys info"))
	_, err := r.AddObject("/sys", &obj)
	require.NoError(t, err)

	con := cdap.ConnHandle{PortID: 7}
	r.ReadRequest(con, cdap.ObjInfo{Class: "SysInfo", Name: "/sys"}, cdap.FiltInfo{}, 2)

	require.Len(t, responder.reads, 1)
	rec := responder.reads[0]
	assert.Equal(t, int32(2), rec.invokeID)
	assert.Zero(t, rec.res.Code)
	assert.Equal(t, []byte("sys info"), rec.obj.Value)
}

// TestRIB_OperationNotSupported: writes to an object without an override
// answer with a failure result.
func TestRIB_OperationNotSupported(t *testing.T) {
	r, responder := newTestRIB(t)

	obj := NewBaseObject("SysInfo", nil)
	_, err := r.AddObject("/sys", &obj)
	require.NoError(t, err)

	con := cdap.ConnHandle{PortID: 7}
	r.WriteRequest(con, cdap.ObjInfo{Class: "SysInfo", Name: "/sys", Value: []byte("x")},
		cdap.FiltInfo{}, 3)

	require.Len(t, responder.writes, 1)
	assert.Equal(t, -int32(ErrOperationNotSupported), responder.writes[0].res.Code)
}

// TestRIB_DelegationCapture is property 7 and the S6 dispatch: operations
// on FQNs below a delegation object reach it exactly once with the full
// extended FQN.
func TestRIB_DelegationCapture(t *testing.T) {
	r, responder := newTestRIB(t)

	rootObj := NewBaseObject("MyObj", nil)
	_, err := r.AddObject("/root", &rootObj)
	require.NoError(t, err)

	deleg := &testObject{BaseObject: NewDelegationObject("DelegationObj", nil)}
	_, err = r.AddObject("/root/deleg", deleg)
	require.NoError(t, err)

	con := cdap.ConnHandle{PortID: 7}
	r.StartRequest(con,
		cdap.ObjInfo{Class: "DelegationObj", Name: "/root/deleg/foo/bar"},
		cdap.FiltInfo{}, 11)

	assert.Equal(t, []string{"/root/deleg/foo/bar"}, deleg.startFQNs)
	require.Len(t, responder.starts, 1)
	assert.Equal(t, ResultSuccess, responder.starts[0].res.Code)
	assert.Equal(t, int32(11), responder.starts[0].invokeID)

	// A non-delegating ancestor does not capture.
	r.StartRequest(con,
		cdap.ObjInfo{Name: "/root/other/x"}, cdap.FiltInfo{}, 12)
	require.Len(t, responder.starts, 2)
	assert.Equal(t, -int32(ErrOperationNotSupported), responder.starts[1].res.Code)
	assert.Len(t, deleg.startFQNs, 1)
}

func TestRIB_Objects(t *testing.T) {
	r, _ := newTestRIB(t)

	obj := NewBaseObject("Dir", nil)
	_, err := r.AddObject("/a", &obj)
	require.NoError(t, err)

	assert.Equal(t, 2, r.ObjectCount())
	infos := r.Objects()
	assert.Len(t, infos, 2)
}
