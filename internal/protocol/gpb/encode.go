package gpb

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// ============================================================================
// GPB Encoding Helpers - Go Types → Wire Format
// ============================================================================

// AppendInt32 appends a varint field holding a signed 32-bit value.
// Zero values are omitted: absence on the wire means "zero" to the decoder.
func AppendInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(uint32(v)))
}

// AppendInt64 appends a varint field holding a signed 64-bit value.
// Zero values are omitted.
func AppendInt64(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

// AppendString appends a length-delimited field holding a string.
// Empty strings are omitted.
func AppendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// AppendBytes appends a length-delimited field holding opaque bytes.
// Zero-length values are omitted: a zero-length buffer means "absent".
func AppendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// AppendMessage appends a length-delimited field holding an embedded message.
// Zero-length messages are omitted.
func AppendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	if len(msg) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
