package cdap

// opState records one outstanding request: its opcode and whether we were
// the sender.
type opState struct {
	op     Opcode
	sender bool
}

// pendingTables tracks outstanding requests per session: requests we sent,
// requests we received, and in-flight cancel-reads. The three maps are
// disjoint; all access happens with the owning session's mutex held.
//
// An entry exists from the moment a request with a non-zero invoke id is
// sent or received until its response completes. Invoke id 0 means
// fire-and-forget and never creates an entry.
type pendingTables struct {
	sent       map[int32]opState
	recv       map[int32]opState
	cancelRead map[int32]opState
}

func newPendingTables() pendingTables {
	return pendingTables{
		sent:       make(map[int32]opState),
		recv:       make(map[int32]opState),
		cancelRead: make(map[int32]opState),
	}
}

func (p *pendingTables) requests(sent bool) map[int32]opState {
	if sent {
		return p.sent
	}
	return p.recv
}

// checkRequest verifies a request's invoke id is not already pending in its
// direction. It performs no mutation.
func (p *pendingTables) checkRequest(m *Message, sent bool) error {
	if m.InvokeID == 0 {
		return nil
	}
	if _, dup := p.requests(sent)[m.InvokeID]; dup {
		return NewDuplicateInvokeIDError(m.Opcode, m.InvokeID)
	}
	return nil
}

// requestSentOrReceived installs the pending entry for a request. The caller
// must have run checkRequest first.
func (p *pendingTables) requestSentOrReceived(m *Message, sent bool) {
	if m.InvokeID == 0 {
		return
	}
	p.requests(sent)[m.InvokeID] = opState{op: m.Opcode, sender: sent}
}

// checkResponse verifies that a response matches a pending request. A
// response we send answers a request we received, and vice versa.
func (p *pendingTables) checkResponse(m *Message, sent bool) error {
	entry, ok := p.requests(!sent)[m.InvokeID]
	if !ok {
		return NewOrphanResponseError(m.Opcode, m.InvokeID)
	}
	if entry.op != m.Opcode.Request() {
		return NewOpcodeMismatchError(entry.op, m.Opcode, m.InvokeID)
	}
	return nil
}

// responseSentOrReceived completes the pending request a response answers
// and reports whether the entry was removed. An M_READ_R flagged
// F_RD_INCOMPLETE leaves its entry open for the remaining responses.
func (p *pendingTables) responseSentOrReceived(m *Message, sent bool) bool {
	if m.Opcode == OpReadR && m.Flags == FRdIncomplete {
		return false
	}
	delete(p.requests(!sent), m.InvokeID)
	return true
}

// checkCancelRead verifies a cancel-read names an M_READ pending in the
// right direction: a cancel-read we send must target a read we sent.
func (p *pendingTables) checkCancelRead(m *Message, sent bool) error {
	entry, ok := p.requests(sent)[m.InvokeID]
	if !ok {
		return NewOrphanResponseError(m.Opcode, m.InvokeID)
	}
	if entry.op != OpRead {
		return NewOpcodeMismatchError(entry.op, m.Opcode, m.InvokeID)
	}
	if _, dup := p.cancelRead[m.InvokeID]; dup {
		return NewDuplicateInvokeIDError(m.Opcode, m.InvokeID)
	}
	return nil
}

func (p *pendingTables) cancelReadSentOrReceived(m *Message, sent bool) {
	p.cancelRead[m.InvokeID] = opState{op: m.Opcode, sender: sent}
}

// checkCancelReadResponse verifies a cancel-read response answers an
// in-flight cancel-read.
func (p *pendingTables) checkCancelReadResponse(m *Message, sent bool) error {
	if _, ok := p.cancelRead[m.InvokeID]; !ok {
		return NewOrphanResponseError(m.Opcode, m.InvokeID)
	}
	return nil
}

func (p *pendingTables) cancelReadResponseSentOrReceived(m *Message, sent bool) {
	delete(p.cancelRead, m.InvokeID)
}

// drain empties all three tables and returns the invoke ids that were
// outstanding per direction, used to release ids and fail callbacks when a
// session is torn down.
func (p *pendingTables) drain() (sentIDs, recvIDs []int32) {
	sentIDs = make([]int32, 0, len(p.sent))
	for id := range p.sent {
		sentIDs = append(sentIDs, id)
	}
	recvIDs = make([]int32, 0, len(p.recv))
	for id := range p.recv {
		recvIDs = append(recvIDs, id)
	}
	p.sent = make(map[int32]opState)
	p.recv = make(map[int32]opState)
	p.cancelRead = make(map[int32]opState)
	return sentIDs, recvIDs
}
