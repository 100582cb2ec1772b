package rib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cdapd/pkg/cdap"
)

func TestSchema_RegisterCreateCallback(t *testing.T) {
	s := newSchema(1)

	cb := func(r *RIB, con cdap.ConnHandle, obj cdap.ObjInfo) ([]byte, error) {
		return nil, nil
	}

	require.NoError(t, s.RegisterCreateCallback("Flow", "/flows", cb))
	require.NoError(t, s.RegisterCreateCallback("Flow", "", cb))

	err := s.RegisterCreateCallback("Flow", "/flows", cb)
	require.Error(t, err)
	assert.True(t, IsError(err, ErrCallbackAlreadyRegistered))
}

// TestSchema_CreateCallbackPrecedence is property 8: the path-specific
// callback wins over the generic one.
func TestSchema_CreateCallbackPrecedence(t *testing.T) {
	s := newSchema(1)

	var calls []string
	specific := func(r *RIB, con cdap.ConnHandle, obj cdap.ObjInfo) ([]byte, error) {
		calls = append(calls, "specific:"+obj.Name)
		return nil, nil
	}
	generic := func(r *RIB, con cdap.ConnHandle, obj cdap.ObjInfo) ([]byte, error) {
		calls = append(calls, "generic:"+obj.Name)
		return nil, nil
	}

	require.NoError(t, s.RegisterCreateCallback("Flow", "/x/y", specific))
	require.NoError(t, s.RegisterCreateCallback("Flow", "", generic))

	// A create below the registered path hits the specific callback.
	cb, ok := s.lookupCreateCallback("Flow", "/x/y/z")
	require.True(t, ok)
	cb(nil, cdap.ConnHandle{}, cdap.ObjInfo{Name: "/x/y/z"})

	// A create elsewhere falls back to the generic one.
	cb, ok = s.lookupCreateCallback("Flow", "/h")
	require.True(t, ok)
	cb(nil, cdap.ConnHandle{}, cdap.ObjInfo{Name: "/h"})

	assert.Equal(t, []string{"specific:/x/y/z", "generic:/h"}, calls)

	// An unknown class has no callback at all.
	_, ok = s.lookupCreateCallback("Other", "/x/y/z")
	assert.False(t, ok)
}

// TestRIB_CreateCallbackDispatch: an M_CREATE for an absent object runs the
// registry and the callback can populate the RIB.
func TestRIB_CreateCallbackDispatch(t *testing.T) {
	responder := &fakeResponder{}
	schema := newSchema(1)
	r := newRIB(1, schema, responder, nil, nil)

	require.NoError(t, schema.RegisterCreateCallback("Flow", "",
		func(r *RIB, con cdap.ConnHandle, obj cdap.ObjInfo) ([]byte, error) {
			flow := NewBaseObject("Flow", obj.Value)
			if _, err := r.AddObject(obj.Name, &flow); err != nil {
				return nil, err
			}
			return obj.Value, nil
		}))

	con := cdap.ConnHandle{PortID: 3}
	r.CreateRequest(con, cdap.ObjInfo{Class: "Flow", Name: "/f1", Value: []byte("cfg")},
		cdap.FiltInfo{}, 6)

	require.Len(t, responder.creates, 1)
	assert.Zero(t, responder.creates[0].res.Code)
	assert.Equal(t, []byte("cfg"), responder.creates[0].obj.Value)

	created, err := r.GetObjectByFQN("/f1")
	require.NoError(t, err)
	assert.Equal(t, "Flow", created.Class())

	// Without any callback for the class, the create is refused.
	r.CreateRequest(con, cdap.ObjInfo{Class: "Nope", Name: "/n1"}, cdap.FiltInfo{}, 7)
	require.Len(t, responder.creates, 2)
	assert.Equal(t, -int32(ErrOperationNotSupported), responder.creates[1].res.Code)
}
