package cdap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_Validate(t *testing.T) {
	connect := func() Message {
		return Message{
			AbsSyntax: AbstractSyntax,
			Opcode:    OpConnect,
			InvokeID:  1,
			Src:       EndpointInfo{APName: "A"},
			Dest:      EndpointInfo{APName: "B"},
			Version:   1,
		}
	}

	tests := []struct {
		name     string
		msg      Message
		wantKind ProtocolErrorKind // zero means valid
	}{
		{name: "valid connect", msg: connect()},
		{
			name: "connect without abs syntax",
			msg: func() Message {
				m := connect()
				m.AbsSyntax = 0
				return m
			}(),
			wantKind: FieldMissing,
		},
		{
			name: "connect without version",
			msg: func() Message {
				m := connect()
				m.Version = 0
				return m
			}(),
			wantKind: FieldMissing,
		},
		{
			name: "connect without dest ap name",
			msg: func() Message {
				m := connect()
				m.Dest = EndpointInfo{}
				return m
			}(),
			wantKind: FieldMissing,
		},
		{
			name: "connect without invoke id",
			msg: func() Message {
				m := connect()
				m.InvokeID = 0
				return m
			}(),
			wantKind: FieldMissing,
		},
		{
			name:     "abs syntax on read",
			msg:      Message{Opcode: OpRead, InvokeID: 2, AbsSyntax: AbstractSyntax, ObjClass: "C", ObjName: "/c"},
			wantKind: FieldForbidden,
		},
		{
			name:     "version on read",
			msg:      Message{Opcode: OpRead, InvokeID: 2, Version: 1, ObjClass: "C", ObjName: "/c"},
			wantKind: FieldForbidden,
		},
		{
			name:     "endpoints on write",
			msg:      Message{Opcode: OpWrite, InvokeID: 2, ObjClass: "C", ObjName: "/c", ObjValue: []byte{1}, Src: EndpointInfo{APName: "A"}},
			wantKind: FieldForbidden,
		},
		{
			name:     "obj name without obj class",
			msg:      Message{Opcode: OpRead, InvokeID: 2, ObjName: "/c"},
			wantKind: FieldMissing,
		},
		{
			name:     "obj class on release",
			msg:      Message{Opcode: OpRelease, ObjClass: "C"},
			wantKind: FieldForbidden,
		},
		{
			name:     "write without value",
			msg:      Message{Opcode: OpWrite, InvokeID: 2, ObjClass: "C", ObjName: "/c"},
			wantKind: FieldMissing,
		},
		{
			name: "value allowed on read request",
			msg:  Message{Opcode: OpRead, InvokeID: 2, ObjClass: "C", ObjName: "/c", ObjValue: []byte{1}},
		},
		{
			name:     "response without invoke id",
			msg:      Message{Opcode: OpWriteR},
			wantKind: FieldMissing,
		},
		{
			name:     "cancel read without invoke id",
			msg:      Message{Opcode: OpCancelRead},
			wantKind: FieldMissing,
		},
		{
			name:     "filter on response",
			msg:      Message{Opcode: OpReadR, InvokeID: 2, Filter: []byte("f")},
			wantKind: FieldForbidden,
		},
		{
			name:     "scope on response",
			msg:      Message{Opcode: OpStartR, InvokeID: 2, Scope: 1},
			wantKind: FieldForbidden,
		},
		{
			name:     "result reason on request",
			msg:      Message{Opcode: OpStart, InvokeID: 2, ObjClass: "C", ObjName: "/c", ResultReason: "no"},
			wantKind: FieldForbidden,
		},
		{
			name: "result reason on cancel read",
			msg:  Message{Opcode: OpCancelRead, InvokeID: 2, ResultReason: "cancelled"},
		},
		{
			name: "release without invoke id",
			msg:  Message{Opcode: OpRelease},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.wantKind == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsProtocolError(err, tt.wantKind),
				"want %s, got %v", tt.wantKind, err)
		})
	}
}
