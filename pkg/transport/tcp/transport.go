package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/cdapd/internal/logger"
	"github.com/marmos91/cdapd/pkg/cdap"
)

// flowConn is one TCP connection carrying a single flow. Writes are
// serialized per connection.
type flowConn struct {
	conn net.Conn
	wmu  sync.Mutex
}

// Transport multiplexes TCP connections into the port-id address space the
// session layer expects. Each accepted or dialed connection is assigned the
// next port id; its read goroutine pumps frames into the I/O handler.
//
// Transport implements cdap.Transport.
type Transport struct {
	mu       sync.Mutex
	conns    map[int]*flowConn
	nextPort int

	io *cdap.IOHandler
	ln net.Listener
}

// New creates an empty transport. Wire the I/O handler with SetIOHandler
// before serving or dialing.
func New() *Transport {
	return &Transport{conns: make(map[int]*flowConn)}
}

// SetIOHandler wires the inbound dispatch target.
func (t *Transport) SetIOHandler(h *cdap.IOHandler) {
	t.mu.Lock()
	t.io = h
	t.mu.Unlock()
}

func (t *Transport) handler() *cdap.IOHandler {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.io
}

// Write implements cdap.Transport: one frame per SDU, in call order per
// connection.
func (t *Transport) Write(portID int, data []byte) (int, error) {
	t.mu.Lock()
	fc, ok := t.conns[portID]
	t.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("no flow for port id %d", portID)
	}

	fc.wmu.Lock()
	defer fc.wmu.Unlock()
	return writeFrame(fc.conn, data)
}

// register assigns the next port id to a connection.
func (t *Transport) register(conn net.Conn) int {
	t.mu.Lock()
	t.nextPort++
	portID := t.nextPort
	t.conns[portID] = &flowConn{conn: conn}
	t.mu.Unlock()
	return portID
}

func (t *Transport) deregister(portID int) {
	t.mu.Lock()
	fc, ok := t.conns[portID]
	if ok {
		delete(t.conns, portID)
	}
	t.mu.Unlock()
	if ok {
		fc.conn.Close()
	}
}

// Dial opens a client flow to addr and returns its port id. The read pump
// runs until the connection closes.
func (t *Transport) Dial(addr string) (int, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", addr, err)
	}
	portID := t.register(conn)
	go t.readLoop(portID, conn)
	return portID, nil
}

// Serve accepts flows on addr until the context is cancelled.
func (t *Transport) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	t.mu.Lock()
	t.ln = ln
	t.mu.Unlock()

	logger.Info("flow listener up", "address", ln.Addr().String())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})
	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if errors.Is(err, net.ErrClosed) {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			portID := t.register(conn)
			logger.Info("flow accepted",
				logger.KeyPortID, portID,
				logger.KeyClient, conn.RemoteAddr().String())
			go t.readLoop(portID, conn)
		}
	})
	return g.Wait()
}

// readLoop pumps frames from one connection into the I/O handler until the
// peer disconnects. Dispatch errors are surfaced per message and do not
// tear the flow down; a broken connection aborts the session.
func (t *Transport) readLoop(portID int, conn net.Conn) {
	defer t.deregister(portID)

	for {
		frame, err := readFrame(conn)
		if err != nil {
			h := t.handler()
			if h != nil {
				h.SessionManager().AbortSession(portID, "flow closed")
			}
			logger.Debug("flow closed",
				logger.KeyPortID, portID,
				logger.KeyError, err.Error())
			return
		}

		h := t.handler()
		if h == nil {
			logger.Warn("frame dropped: no I/O handler", logger.KeyPortID, portID)
			continue
		}
		if err := h.OnBytes(portID, frame); err != nil {
			logger.Warn("inbound message rejected",
				logger.KeyPortID, portID,
				logger.KeyError, err.Error())
		}
	}
}

// Close shuts the listener and every flow.
func (t *Transport) Close() error {
	t.mu.Lock()
	ln := t.ln
	conns := t.conns
	t.conns = make(map[int]*flowConn)
	t.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for _, fc := range conns {
		fc.conn.Close()
	}
	return nil
}
