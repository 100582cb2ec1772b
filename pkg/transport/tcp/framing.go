// Package tcp adapts TCP connections to the CDAP transport contract: each
// accepted or dialed connection becomes one port id, and SDUs travel as
// length-prefixed frames.
package tcp

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize is the maximum allowed frame payload. It stays above the
// session layer's message size limit to accommodate SDU protection
// overhead.
const MaxFrameSize = (1 << 20) + (1 << 18) // 1MB + 256KB headroom

// readFrame reads one length-prefixed frame from the reader.
//
// The frame header is 4 bytes, big-endian, holding the payload length. EOF
// errors on the header are returned directly (not wrapped) so callers can
// detect normal peer disconnect.
func readFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameSize {
		return nil, fmt.Errorf("frame too large: %d bytes", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return payload, nil
}

// writeFrame writes one length-prefixed frame to the writer.
func writeFrame(w io.Writer, payload []byte) (int, error) {
	if len(payload) > MaxFrameSize {
		return 0, fmt.Errorf("frame too large: %d bytes", len(payload))
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return 0, fmt.Errorf("write frame header: %w", err)
	}
	n, err := w.Write(payload)
	if err != nil {
		return n, fmt.Errorf("write frame payload: %w", err)
	}
	return n, nil
}
