package cdap

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/marmos91/cdapd/internal/protocol/gpb"
)

// DefaultMaxMessageSize bounds a single encoded CDAP message. It must stay
// comfortably above the largest object value a management operation carries.
const DefaultMaxMessageSize = 1 << 20 // 1MB

// Wire field numbers of the CDAP message. All fields are optional on the
// wire; an omitted tag means "absent" and decodes to the zero value.
const (
	fieldAbsSyntax    protowire.Number = 1
	fieldOpcode       protowire.Number = 2
	fieldInvokeID     protowire.Number = 3
	fieldFlags        protowire.Number = 4
	fieldObjClass     protowire.Number = 5
	fieldObjName      protowire.Number = 6
	fieldObjInst      protowire.Number = 7
	fieldObjValue     protowire.Number = 8
	fieldResult       protowire.Number = 9
	fieldResultReason protowire.Number = 10
	fieldScope        protowire.Number = 11
	fieldFilter       protowire.Number = 12
	fieldDest         protowire.Number = 13
	fieldSrc          protowire.Number = 14
	fieldAuthPolicy   protowire.Number = 15
	fieldVersion      protowire.Number = 16
)

// Subfields of the embedded endpoint message (fields 13 and 14).
const (
	fieldEPAEInst protowire.Number = 1
	fieldEPAEName protowire.Number = 2
	fieldEPAPInst protowire.Number = 3
	fieldEPAPName protowire.Number = 4
)

// Subfields of the embedded auth policy message (field 15).
const (
	fieldAuthName     protowire.Number = 1
	fieldAuthVersions protowire.Number = 2
	fieldAuthOptions  protowire.Number = 3
)

// Codec encodes and decodes single CDAP messages to and from contiguous
// byte buffers using the GPB tag-length-value concrete syntax.
//
// Encoding is deterministic for a given message (fields emitted in tag
// order) but not canonical. Codec is stateless and safe for concurrent use.
type Codec struct {
	// MaxMessageSize bounds the accepted buffer on both encode and decode.
	// Zero means DefaultMaxMessageSize.
	MaxMessageSize int
}

func (c *Codec) maxSize() int {
	if c.MaxMessageSize > 0 {
		return c.MaxMessageSize
	}
	return DefaultMaxMessageSize
}

// Encode serializes one message. The opcode is always emitted, even for
// M_CONNECT whose numeric value is zero, so that a decoder can distinguish
// "connect" from "no opcode".
func (c *Codec) Encode(m *Message) ([]byte, error) {
	b := make([]byte, 0, 64+len(m.ObjValue)+len(m.Filter))

	b = gpb.AppendInt32(b, fieldAbsSyntax, m.AbsSyntax)

	// Opcode zero is M_CONNECT; force its presence.
	b = protowire.AppendTag(b, fieldOpcode, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(uint32(m.Opcode)))

	b = gpb.AppendInt32(b, fieldInvokeID, m.InvokeID)
	b = gpb.AppendInt32(b, fieldFlags, int32(m.Flags))
	b = gpb.AppendString(b, fieldObjClass, m.ObjClass)
	b = gpb.AppendString(b, fieldObjName, m.ObjName)
	b = gpb.AppendInt64(b, fieldObjInst, m.ObjInst)
	b = gpb.AppendBytes(b, fieldObjValue, m.ObjValue)
	b = gpb.AppendInt32(b, fieldResult, m.Result)
	b = gpb.AppendString(b, fieldResultReason, m.ResultReason)
	b = gpb.AppendInt32(b, fieldScope, m.Scope)
	b = gpb.AppendBytes(b, fieldFilter, m.Filter)
	b = gpb.AppendMessage(b, fieldDest, encodeEndpoint(m.Dest))
	b = gpb.AppendMessage(b, fieldSrc, encodeEndpoint(m.Src))
	b = gpb.AppendMessage(b, fieldAuthPolicy, encodeAuthPolicy(m.Auth))
	b = gpb.AppendInt64(b, fieldVersion, m.Version)

	if len(b) > c.maxSize() {
		return nil, NewWireError("encoded message is %d bytes, limit %d", len(b), c.maxSize())
	}
	return b, nil
}

// Decode parses one message from buf. Unknown fields are skipped; absent
// optional fields map to their zero values.
func (c *Codec) Decode(buf []byte) (*Message, error) {
	if len(buf) > c.maxSize() {
		return nil, NewWireError("message is %d bytes, limit %d", len(buf), c.maxSize())
	}

	m := &Message{}
	sawOpcode := false

	d := gpb.NewDecoder(buf)
	for d.Next() {
		var err error
		switch d.FieldNumber() {
		case fieldAbsSyntax:
			m.AbsSyntax, err = d.Int32()
		case fieldOpcode:
			var v int32
			v, err = d.Int32()
			m.Opcode = Opcode(v)
			sawOpcode = true
		case fieldInvokeID:
			m.InvokeID, err = d.Int32()
		case fieldFlags:
			var v int32
			v, err = d.Int32()
			m.Flags = Flags(v)
		case fieldObjClass:
			m.ObjClass, err = d.String()
		case fieldObjName:
			m.ObjName, err = d.String()
		case fieldObjInst:
			m.ObjInst, err = d.Int64()
		case fieldObjValue:
			m.ObjValue, err = d.Bytes()
		case fieldResult:
			m.Result, err = d.Int32()
		case fieldResultReason:
			m.ResultReason, err = d.String()
		case fieldScope:
			m.Scope, err = d.Int32()
		case fieldFilter:
			m.Filter, err = d.Bytes()
		case fieldDest:
			var raw []byte
			raw, err = d.Message()
			if err == nil {
				m.Dest, err = decodeEndpoint(raw)
			}
		case fieldSrc:
			var raw []byte
			raw, err = d.Message()
			if err == nil {
				m.Src, err = decodeEndpoint(raw)
			}
		case fieldAuthPolicy:
			var raw []byte
			raw, err = d.Message()
			if err == nil {
				m.Auth, err = decodeAuthPolicy(raw)
			}
		case fieldVersion:
			m.Version, err = d.Int64()
		default:
			d.Skip()
		}
		if err != nil {
			return nil, NewWireError("decode %s: %v", m.Opcode, err)
		}
	}
	if err := d.Err(); err != nil {
		return nil, NewWireError("malformed message: %v", err)
	}
	if !sawOpcode {
		return nil, NewWireError("message without opcode")
	}
	if m.Opcode < OpConnect || m.Opcode >= opInvalid {
		return nil, NewWireError("unknown opcode %d", int32(m.Opcode))
	}
	return m, nil
}

func encodeEndpoint(ep EndpointInfo) []byte {
	if ep == (EndpointInfo{}) {
		return nil
	}
	var b []byte
	b = gpb.AppendString(b, fieldEPAEInst, ep.AEInst)
	b = gpb.AppendString(b, fieldEPAEName, ep.AEName)
	b = gpb.AppendString(b, fieldEPAPInst, ep.APInst)
	b = gpb.AppendString(b, fieldEPAPName, ep.APName)
	return b
}

func decodeEndpoint(buf []byte) (EndpointInfo, error) {
	var ep EndpointInfo
	d := gpb.NewDecoder(buf)
	for d.Next() {
		var err error
		switch d.FieldNumber() {
		case fieldEPAEInst:
			ep.AEInst, err = d.String()
		case fieldEPAEName:
			ep.AEName, err = d.String()
		case fieldEPAPInst:
			ep.APInst, err = d.String()
		case fieldEPAPName:
			ep.APName, err = d.String()
		default:
			d.Skip()
		}
		if err != nil {
			return ep, err
		}
	}
	return ep, d.Err()
}

func encodeAuthPolicy(a AuthPolicy) []byte {
	if a.Name == "" && len(a.Versions) == 0 && len(a.Options) == 0 {
		return nil
	}
	var b []byte
	b = gpb.AppendString(b, fieldAuthName, a.Name)
	for _, v := range a.Versions {
		b = gpb.AppendString(b, fieldAuthVersions, v)
	}
	b = gpb.AppendBytes(b, fieldAuthOptions, a.Options)
	return b
}

func decodeAuthPolicy(buf []byte) (AuthPolicy, error) {
	var a AuthPolicy
	d := gpb.NewDecoder(buf)
	for d.Next() {
		var err error
		switch d.FieldNumber() {
		case fieldAuthName:
			a.Name, err = d.String()
		case fieldAuthVersions:
			var v string
			v, err = d.String()
			if err == nil {
				a.Versions = append(a.Versions, v)
			}
		case fieldAuthOptions:
			a.Options, err = d.Bytes()
		default:
			d.Skip()
		}
		if err != nil {
			return a, err
		}
	}
	return a, d.Err()
}
