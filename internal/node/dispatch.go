package node

import "github.com/distribuidos-core/consensus-node/internal/wire"

// handle dispatches a decoded record to the appropriate engine by its
// op tag. Any record that names its sender's pid refreshes that pid's
// alive timestamp before the op-specific handler runs.
func (n *Node) handle(rec wire.Record) {
	if sender, ok := senderOf(rec); ok && sender != n.id {
		n.mu.Lock()
		n.markAliveLocked(sender)
		n.mu.Unlock()
	}

	switch rec.Op {
	case wire.OpHello:
		n.handleHello(*rec.PID)
	case wire.OpHelloAck:
		n.handleHelloAck(*rec.PID, *rec.Round, *rec.To)
	case wire.OpHB:
		// Liveness already recorded above; nothing else to do.
	case wire.OpElection:
		n.handleElection(*rec.Source)
	case wire.OpOK:
		n.handleOK(*rec.To)
	case wire.OpLeader:
		n.handleLeader(*rec.PID, *rec.Round)
	case wire.OpStartConsensus:
		n.handleStartConsensus(*rec.Round)
	case wire.OpValue:
		n.handleValue(*rec.PID, *rec.Value, *rec.Round)
	case wire.OpResponse:
		n.handleResponse(*rec.PID, *rec.Response, *rec.Round)
	case wire.OpRoundUpdate:
		n.handleRoundUpdate(*rec.Round)
	case wire.OpRoundQuery:
		n.handleRoundQuery()
	case wire.OpRoundResponse:
		n.handleRoundResponse(*rec.PID, *rec.Round)
	}
}

// senderOf extracts the originating pid from the records that carry
// one (HELLO, HELLO_ACK, HB, LEADER, VALUE, RESPONSE, ROUND_RESPONSE
// use "pid"; ELECTION uses "source"). OK carries only a "to" field, so
// it is not treated as a liveness signal.
func senderOf(rec wire.Record) (int32, bool) {
	switch rec.Op {
	case wire.OpHello, wire.OpHelloAck, wire.OpHB, wire.OpLeader, wire.OpValue, wire.OpResponse, wire.OpRoundResponse:
		if rec.PID != nil {
			return *rec.PID, true
		}
	case wire.OpElection:
		if rec.Source != nil {
			return *rec.Source, true
		}
	}
	return 0, false
}
