package node

import (
	"time"

	"github.com/distribuidos-core/consensus-node/internal/wire"
)

// bootstrap publishes HELLO and starts a campaign if no leader answers
// within HelloTimeout. Run once at startup.
func (n *Node) bootstrap() {
	defer n.wg.Done()
	n.discoverLeader()
}

// discoverLeader publishes HELLO, waits HelloTimeout for a reply, and
// starts a campaign if no leader is known by then. Runs at startup
// and again each time the transport recovers from a disconnection.
func (n *Node) discoverLeader() {
	n.logf(" ", "sending HELLO to discover the current leader")
	n.send(wire.Hello(n.id, n.instance))

	select {
	case <-n.stopCh:
		return
	case <-time.After(n.cfg.HelloTimeout.Duration()):
	}

	if n.isShutdown() {
		return
	}

	n.mu.Lock()
	noLeader := n.leader == nil
	inElection := n.inElection
	n.mu.Unlock()

	if noLeader && !inElection {
		n.logf(" ", "no HELLO_ACK within %v, starting election", n.cfg.HelloTimeout.Duration())
		n.StartElection()
	}
}

// handleHello implements the leader side of discovery: any HELLO
// updates the sender's alive timestamp, and if I am the leader I
// reply HELLO_ACK naming my round.
func (n *Node) handleHello(pid int32) {
	n.mu.Lock()
	n.markAliveLocked(pid)
	isLeader := n.leader != nil && *n.leader == n.id
	round := n.round
	n.mu.Unlock()

	n.logf(" ", "received HELLO from %d", pid)
	if isLeader {
		n.send(wire.HelloAck(n.id, round, pid))
	}
}

// handleHelloAck implements the joiner side of discovery: adopt
// (leader, round) and garbage-collect any per-round state for rounds
// other than the newly adopted one.
func (n *Node) handleHelloAck(pid int32, round int64, to int32) {
	if to != n.id {
		// HELLO_ACK to someone else; only useful as a liveness signal
		// for the acking leader.
		n.mu.Lock()
		n.markAliveLocked(pid)
		n.mu.Unlock()
		return
	}

	n.mu.Lock()
	leaderID := pid
	n.leader = &leaderID
	n.round = round
	n.markAliveLocked(pid)
	n.gcRoundsExceptLocked(round)
	n.mu.Unlock()

	n.logf(" ", "joined: leader=%d round=%d", pid, round)
}

// gcRoundsExceptLocked drops all per-round buffers and cancels their
// timers for every round other than keep. Caller must hold mu.
func (n *Node) gcRoundsExceptLocked(keep int64) {
	for r := range n.valuesReceived {
		if r != keep {
			delete(n.valuesReceived, r)
		}
	}
	for r := range n.responsesReceived {
		if r != keep {
			delete(n.responsesReceived, r)
		}
	}
	for r := range n.responsesSent {
		if r != keep {
			delete(n.responsesSent, r)
		}
	}
	for r, t := range n.valueTimers {
		if r != keep {
			t.Stop()
			delete(n.valueTimers, r)
		}
	}
}
