package gpb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ============================================================================
// GPB Decoding Helpers - Wire Format → Go Types
// ============================================================================

// Decoder walks the fields of a single GPB-encoded message.
//
// Usage:
//
//	d := gpb.NewDecoder(buf)
//	for d.Next() {
//		switch d.FieldNumber() {
//		case 1:
//			v, err := d.Int32()
//			...
//		default:
//			d.Skip()
//		}
//	}
//	if err := d.Err(); err != nil { ... }
//
// A field whose value is not consumed before the next call to Next is
// skipped by Next itself, so unknown fields need no explicit Skip.
type Decoder struct {
	buf []byte
	num protowire.Number
	typ protowire.Type
	// length of the pending value, set by Next, consumed by the readers
	pending int
	err     error
}

// NewDecoder creates a decoder over one encoded message.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Next advances to the next field. It returns false at end of input or on
// error; check Err afterwards.
func (d *Decoder) Next() bool {
	if d.err != nil || len(d.buf) == 0 {
		return false
	}
	if d.pending > 0 {
		// previous field value was never consumed
		d.Skip()
		if d.err != nil {
			return false
		}
	}
	num, typ, n := protowire.ConsumeTag(d.buf)
	if n < 0 {
		d.err = fmt.Errorf("malformed field tag: %w", protowire.ParseError(n))
		return false
	}
	d.buf = d.buf[n:]
	d.num = num
	d.typ = typ
	d.pending = 1
	return true
}

// FieldNumber returns the field number of the current field.
func (d *Decoder) FieldNumber() protowire.Number {
	return d.num
}

// Err returns the first error encountered while decoding.
func (d *Decoder) Err() error {
	return d.err
}

// Int32 consumes the current field as a signed 32-bit varint.
func (d *Decoder) Int32() (int32, error) {
	v, err := d.varint()
	return int32(uint32(v)), err
}

// Int64 consumes the current field as a signed 64-bit varint.
func (d *Decoder) Int64() (int64, error) {
	v, err := d.varint()
	return int64(v), err
}

// String consumes the current field as a string.
func (d *Decoder) String() (string, error) {
	b, err := d.lengthDelimited()
	return string(b), err
}

// Bytes consumes the current field as opaque bytes. The returned slice is a
// copy; it does not alias the decode buffer.
func (d *Decoder) Bytes() ([]byte, error) {
	b, err := d.lengthDelimited()
	if err != nil || len(b) == 0 {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Message consumes the current field as an embedded message and returns its
// raw bytes. The returned slice aliases the decode buffer.
func (d *Decoder) Message() ([]byte, error) {
	return d.lengthDelimited()
}

// Skip consumes and discards the current field regardless of wire type.
func (d *Decoder) Skip() {
	if d.err != nil || d.pending == 0 {
		return
	}
	n := protowire.ConsumeFieldValue(d.num, d.typ, d.buf)
	if n < 0 {
		d.err = fmt.Errorf("malformed field %d: %w", d.num, protowire.ParseError(n))
		return
	}
	d.buf = d.buf[n:]
	d.pending = 0
}

func (d *Decoder) varint() (uint64, error) {
	if d.err != nil {
		return 0, d.err
	}
	if d.typ != protowire.VarintType {
		d.err = fmt.Errorf("field %d: wire type %d, want varint", d.num, d.typ)
		return 0, d.err
	}
	v, n := protowire.ConsumeVarint(d.buf)
	if n < 0 {
		d.err = fmt.Errorf("field %d: malformed varint: %w", d.num, protowire.ParseError(n))
		return 0, d.err
	}
	d.buf = d.buf[n:]
	d.pending = 0
	return v, nil
}

func (d *Decoder) lengthDelimited() ([]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	if d.typ != protowire.BytesType {
		d.err = fmt.Errorf("field %d: wire type %d, want length-delimited", d.num, d.typ)
		return nil, d.err
	}
	b, n := protowire.ConsumeBytes(d.buf)
	if n < 0 {
		d.err = fmt.Errorf("field %d: malformed length-delimited value: %w", d.num, protowire.ParseError(n))
		return nil, d.err
	}
	d.buf = d.buf[n:]
	d.pending = 0
	return b, nil
}
