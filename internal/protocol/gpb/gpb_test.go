package gpb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestEncodeDecodeFields(t *testing.T) {
	var b []byte
	b = AppendInt32(b, 1, -5)
	b = AppendInt64(b, 2, 1<<40)
	b = AppendString(b, 3, "hello")
	b = AppendBytes(b, 4, []byte{0xca, 0xfe})

	d := NewDecoder(b)

	require.True(t, d.Next())
	assert.Equal(t, protowire.Number(1), d.FieldNumber())
	v32, err := d.Int32()
	require.NoError(t, err)
	assert.Equal(t, int32(-5), v32)

	require.True(t, d.Next())
	v64, err := d.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(1<<40), v64)

	require.True(t, d.Next())
	s, err := d.String()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	require.True(t, d.Next())
	raw, err := d.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xca, 0xfe}, raw)

	assert.False(t, d.Next())
	assert.NoError(t, d.Err())
}

func TestZeroValuesAreOmitted(t *testing.T) {
	var b []byte
	b = AppendInt32(b, 1, 0)
	b = AppendInt64(b, 2, 0)
	b = AppendString(b, 3, "")
	b = AppendBytes(b, 4, nil)
	b = AppendMessage(b, 5, nil)
	assert.Empty(t, b)
}

func TestDecoderSkipsUnconsumedFields(t *testing.T) {
	var b []byte
	b = AppendString(b, 1, "skipped")
	b = AppendInt32(b, 2, 9)

	d := NewDecoder(b)
	require.True(t, d.Next())
	// Field 1 is never read; Next must skip it.
	require.True(t, d.Next())
	assert.Equal(t, protowire.Number(2), d.FieldNumber())
	v, err := d.Int32()
	require.NoError(t, err)
	assert.Equal(t, int32(9), v)
}

func TestDecoderWireTypeMismatch(t *testing.T) {
	var b []byte
	b = AppendString(b, 1, "text")

	d := NewDecoder(b)
	require.True(t, d.Next())
	_, err := d.Int32()
	assert.Error(t, err)
}

func TestDecoderMalformedInput(t *testing.T) {
	d := NewDecoder([]byte{0xff})
	assert.False(t, d.Next())
	assert.Error(t, d.Err())
}

func TestEmbeddedMessage(t *testing.T) {
	var inner []byte
	inner = AppendString(inner, 1, "nested")

	var outer []byte
	outer = AppendMessage(outer, 7, inner)

	d := NewDecoder(outer)
	require.True(t, d.Next())
	raw, err := d.Message()
	require.NoError(t, err)

	id := NewDecoder(raw)
	require.True(t, id.Next())
	s, err := id.String()
	require.NoError(t, err)
	assert.Equal(t, "nested", s)
}
