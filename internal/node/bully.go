package node

import (
	"time"

	"github.com/distribuidos-core/consensus-node/internal/wire"
)

// StartElection runs the Bully campaign procedure: publish ELECTION,
// poll for a received OK every BullyPollInterval up to BullyTimeout,
// and become leader if the timeout elapses with no higher process
// answering.
func (n *Node) StartElection() {
	n.mu.Lock()
	if n.shutdown {
		n.mu.Unlock()
		return
	}
	n.inElection = true
	n.receivedOK = false
	n.mu.Unlock()

	n.logf("?", "starting election")
	n.send(wire.Election(n.id))

	timeout := n.cfg.BullyTimeout.Duration()
	poll := n.cfg.BullyPollInterval.Duration()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if n.isShutdown() {
			return
		}
		n.mu.Lock()
		gotOK := n.receivedOK
		n.mu.Unlock()
		if gotOK {
			n.logf(" ", "received OK from a higher process, standing down")
			n.mu.Lock()
			n.inElection = false
			n.mu.Unlock()
			return
		}
		time.Sleep(poll)
	}

	if n.isShutdown() {
		return
	}
	n.logf(" ", "no higher process responded, claiming leadership")
	n.becomeLeader()
}

// becomeLeader claims leadership, publishes LEADER, and schedules a
// round query after LeaderQueryDelay before driving the first
// consensus round.
func (n *Node) becomeLeader() {
	n.mu.Lock()
	if n.leader != nil && *n.leader == n.id {
		n.inElection = false
		n.mu.Unlock()
		return
	}
	id := n.id
	n.leader = &id
	n.inElection = false
	round := n.round
	n.mu.Unlock()

	n.logf("*", "became leader (round %d)", round)
	n.send(wire.Leader(n.id, round))

	n.after(n.cfg.LeaderQueryDelay.Duration(), n.QueryCurrentRound)
}

// handleElection replies OK and starts my own campaign if source is
// smaller; ignores it if source is larger; ignores my own echo if
// source is me.
func (n *Node) handleElection(src int32) {
	switch {
	case n.id > src:
		n.logf("?", "received ELECTION from lower process %d, replying OK", src)
		n.send(wire.OK(src))
		n.after(n.cfg.ElectionStartDelay.Duration(), n.StartElection)
	case n.id < src:
		n.logf(" ", "received ELECTION from higher process %d, deferring", src)
	}
}

// handleOK stands a campaign down on a received OK, demoting self if
// it currently believes itself leader.
func (n *Node) handleOK(to int32) {
	if to != n.id {
		return
	}
	n.mu.Lock()
	n.receivedOK = true
	wasLeader := n.leader != nil && *n.leader == n.id
	if wasLeader {
		n.leader = nil
	}
	n.mu.Unlock()

	if wasLeader {
		n.logf(" ", "demoted after receiving OK while believing myself leader")
	} else {
		n.logf(" ", "received OK, standing down from campaign")
	}
}

// handleLeader accepts a LEADER announcement from a pid greater than
// or equal to the currently recognized leader unconditionally; a
// LEADER from a smaller pid is accepted only if the prior leader has
// been detector-confirmed dead (absent from alive).
func (n *Node) handleLeader(pid int32, round int64) {
	n.mu.Lock()
	defer func() { n.mu.Unlock() }()

	if n.leader != nil && pid < *n.leader {
		if _, stillAlive := n.alive[*n.leader]; stillAlive {
			n.log.Printf("[pid %d  ] ignoring LEADER %d: current leader %d not yet confirmed dead", n.id, pid, *n.leader)
			return
		}
	}

	n.inElection = false
	n.receivedOK = false
	leaderID := pid
	n.leader = &leaderID
	n.markAliveLocked(pid)
	if round > n.round {
		n.round = round
	}
	n.log.Printf("[pid %d %s] leader elected: %d (round %d)", n.id, n.roleGlyphLocked(), pid, n.round)
}
