package node

import (
	"strconv"
	"time"

	"github.com/distribuidos-core/consensus-node/internal/wire"
)

// mainLoop checks, once per MainLoopInterval tick, a disconnected
// transport first, a missing leader second, and otherwise logs
// periodic status.
func (n *Node) mainLoop() {
	defer n.wg.Done()

	ticker := time.NewTicker(n.cfg.MainLoopInterval.Duration())
	defer ticker.Stop()

	wasConnected := n.tr.Connected()
	var lastDisconnectLog time.Time
	var lastHelloSearch time.Time
	var lastStatusLog time.Time

	for {
		select {
		case <-n.stopCh:
			return
		case <-ticker.C:
		}
		if n.isShutdown() {
			return
		}

		connected := n.tr.Connected()
		if !connected {
			if time.Since(lastDisconnectLog) >= n.cfg.NetworkLogInterval.Duration() {
				n.logf(" ", "transport disconnected, retrying")
				lastDisconnectLog = time.Now()
			}
			time.Sleep(n.cfg.NetworkRetryDelay.Duration())
			wasConnected = false
			continue
		}

		if !wasConnected {
			n.onReconnected()
			wasConnected = true
			continue
		}

		n.mu.Lock()
		noLeader := n.leader == nil
		inElection := n.inElection
		n.mu.Unlock()

		switch {
		case noLeader && !inElection:
			if time.Since(lastHelloSearch) >= n.cfg.LeaderSearchInterval.Duration() {
				n.logf(" ", "no leader known, re-publishing HELLO")
				n.send(wire.Hello(n.id, n.instance))
				lastHelloSearch = time.Now()
			}
		default:
			if time.Since(lastStatusLog) >= n.cfg.StatusLogInterval.Duration() {
				n.logStatus()
				lastStatusLog = time.Now()
			}
		}
	}
}

// onReconnected clears the leader, cancels the per-round value timers,
// flushes per-round buffers, and launches a fresh discovery-then-campaign
// attempt so the node doesn't sit leaderless forever waiting for a
// peer to speak first.
func (n *Node) onReconnected() {
	n.mu.Lock()
	n.leader = nil
	n.inElection = false
	n.cancelAllTimersLocked()
	n.valuesReceived = map[int64]map[int32]int64{}
	n.responsesReceived = map[int64]map[int32]int64{}
	n.responsesSent = map[int64]int64{}
	n.mu.Unlock()

	n.logf(" ", "transport reconnected, rediscovering the leader")
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.discoverLeader()
	}()
}

func (n *Node) logStatus() {
	n.mu.Lock()
	leader := n.leader
	round := n.round
	aliveCount := len(n.alive)
	glyph := n.roleGlyphLocked()
	n.mu.Unlock()

	leaderStr := "none"
	if leader != nil {
		leaderStr = strconv.Itoa(int(*leader))
	}
	n.logf(glyph, "status: leader=%s round=%d alive=%d", leaderStr, round, aliveCount)
}
