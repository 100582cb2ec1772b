package metrics

import "time"

// CDAPMetrics provides observability for the CDAP session layer.
//
// Implementations collect message counts by opcode, error counts by kind,
// the live session gauge and inbound dispatch latency. The interface is
// optional - pass nil to disable collection with zero overhead.
type CDAPMetrics interface {
	// RecordMessageSent counts one message put on the wire.
	RecordMessageSent(opcode string)

	// RecordMessageReceived counts one message accepted from the wire.
	RecordMessageReceived(opcode string)

	// RecordProtocolError counts one protocol violation by kind
	// (e.g. "BadState", "OrphanResponse").
	RecordProtocolError(kind string)

	// RecordWireError counts one discarded malformed buffer.
	RecordWireError()

	// RecordDispatch records the latency of one inbound dispatch, from
	// bytes-in to callback return.
	RecordDispatch(opcode string, duration time.Duration)

	// SetActiveSessions tracks the number of live sessions.
	SetActiveSessions(count int)
}

// RIBMetrics provides observability for the RIB layer.
type RIBMetrics interface {
	// SetObjectCount tracks the number of objects in one RIB.
	SetObjectCount(version int64, aeName string, count int)

	// RecordOperation counts one object operation by kind and outcome.
	RecordOperation(op string, ok bool)
}
