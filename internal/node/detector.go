package node

import (
	"time"

	"github.com/distribuidos-core/consensus-node/internal/wire"
)

// heartbeatLoop periodically publishes HB.
func (n *Node) heartbeatLoop() {
	defer n.wg.Done()
	interval := n.cfg.HeartbeatInt.Duration()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-n.stopCh:
			return
		case <-ticker.C:
			if n.isShutdown() {
				return
			}
			n.send(wire.HB(n.id))
		}
	}
}

// monitorLoop ages out stale alive entries and triggers an election
// on leader death, holding off any sweep until MonitorStartupGrace has
// elapsed since the node started.
func (n *Node) monitorLoop() {
	defer n.wg.Done()
	startedAt := time.Now()
	interval := n.cfg.MonitorInterval.Duration()
	grace := n.cfg.MonitorStartupGrace.Duration()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-n.stopCh:
			return
		case <-ticker.C:
			if n.isShutdown() {
				return
			}
			if time.Since(startedAt) < grace {
				continue
			}
			n.sweepDeadMembers()
		}
	}
}

func (n *Node) sweepDeadMembers() {
	n.mu.Lock()
	now := time.Now()
	failTimeout := n.cfg.FailTimeout.Duration()

	var dead []int32
	leaderDied := false
	for pid, lastSeen := range n.alive {
		if pid == n.id {
			continue
		}
		if now.Sub(lastSeen) > failTimeout {
			dead = append(dead, pid)
			if n.leader != nil && *n.leader == pid {
				leaderDied = true
			}
		}
	}
	for _, pid := range dead {
		delete(n.alive, pid)
	}
	if leaderDied {
		n.leader = nil
	}
	glyph := n.roleGlyphLocked()
	n.mu.Unlock()

	for _, pid := range dead {
		n.logf(glyph, "process %d considered dead (no HB within %v)", pid, failTimeout)
	}
	if leaderDied {
		n.logf(glyph, "leader died, scheduling election after %v", n.cfg.LeaderDeathDelay.Duration())
		n.after(n.cfg.LeaderDeathDelay.Duration(), n.StartElection)
	}
}
