package tcp

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	payload := []byte("one cdap message")
	n, err := writeFrame(&buf, payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	got, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	_, err := writeFrame(&buf, nil)
	require.NoError(t, err)

	got, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadFrameTooLarge(t *testing.T) {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], MaxFrameSize+1)

	_, err := readFrame(bytes.NewReader(header[:]))
	assert.Error(t, err)
}

func TestReadFrameEOF(t *testing.T) {
	// EOF on the header is passed through for disconnect detection.
	_, err := readFrame(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)

	// A truncated payload is a real error.
	var buf bytes.Buffer
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], 10)
	buf.Write(header[:])
	buf.WriteString("short")
	_, err = readFrame(&buf)
	assert.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
}

func TestWriteFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	_, err := writeFrame(&buf, make([]byte, MaxFrameSize+1))
	assert.Error(t, err)
}
