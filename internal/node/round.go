package node

import (
	"time"

	"github.com/distribuidos-core/consensus-node/internal/wire"
)

// QueryCurrentRound asks every live peer what round it is on and
// adopts the plurality answer, rather than trusting its own possibly
// stale counter right after a handover. Only the current leader runs
// this.
func (n *Node) QueryCurrentRound() {
	n.mu.Lock()
	if n.shutdown || n.leader == nil || *n.leader != n.id {
		n.mu.Unlock()
		return
	}
	n.roundQueryInProgress = true
	n.roundResponses = map[int32]int64{n.id: n.round}
	n.mu.Unlock()

	n.logf("*", "querying current round from all processes")
	n.send(wire.RoundQuery())

	n.after(n.cfg.RoundQueryTimeout.Duration(), n.ProcessRoundConsensus)
}

// handleRoundQuery implements the follower side of ROUND_QUERY: reply
// with my own round.
func (n *Node) handleRoundQuery() {
	n.mu.Lock()
	round := n.round
	n.mu.Unlock()
	n.send(wire.RoundResponse(n.id, round))
}

// handleRoundResponse accumulates a ROUND_RESPONSE into the leader's
// tally, ignored if no query is in flight or I am not the leader.
func (n *Node) handleRoundResponse(pid int32, round int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.roundQueryInProgress || n.leader == nil || *n.leader != n.id {
		return
	}
	n.roundResponses[pid] = round
}

// ProcessRoundConsensus computes the plurality round number reported
// by ROUND_RESPONSE and adopts it, then kicks off the first ordinary
// consensus round after LeaderStartupDelay.
func (n *Node) ProcessRoundConsensus() {
	n.mu.Lock()
	if n.shutdown || !n.roundQueryInProgress || n.leader == nil || *n.leader != n.id {
		n.mu.Unlock()
		return
	}
	responses := make([]int64, 0, len(n.roundResponses))
	for _, r := range n.roundResponses {
		responses = append(responses, r)
	}
	n.roundQueryInProgress = false
	if len(responses) == 0 {
		n.mu.Unlock()
		return
	}
	consensus := pluralityInt64(responses)
	n.round = consensus
	n.mu.Unlock()

	n.logf("*", "round reconciled to %d from %d reports", consensus, len(responses))
	n.send(wire.RoundUpdate(consensus))

	n.after(n.cfg.LeaderStartupDelay.Duration(), n.StartConsensusRound)
}

// StartConsensusRound initializes this round's buffers, contributes
// the leader's own value, publishes START_CONSENSUS, schedules the
// response-timeout processor, and unconditionally reschedules the
// next round after ConsensusInterval.
func (n *Node) StartConsensusRound() {
	n.mu.Lock()
	if n.shutdown || n.leader == nil || *n.leader != n.id {
		n.mu.Unlock()
		return
	}
	r := n.round
	n.valuesReceived[r] = map[int32]int64{}
	n.responsesReceived[r] = map[int32]int64{}
	v := n.randomValue()
	n.valuesReceived[r][n.id] = v
	n.mu.Unlock()

	n.logf("*", "initiating consensus for round %d (my value %d)", r, v)
	n.send(wire.StartConsensus(r))

	n.after(n.cfg.ConsensusResponseTimeout.Duration(), func() { n.ProcessConsensusResponses(r) })
	n.after(n.cfg.ConsensusInterval.Duration(), n.StartConsensusRound)
}

// handleStartConsensus implements the follower side of
// START_CONSENSUS(r): reset stale per-round bookkeeping, compute and
// publish my own value, and schedule the max-value processor if none
// is already pending for this round.
func (n *Node) handleStartConsensus(r int64) {
	n.mu.Lock()
	delete(n.responsesSent, r)
	if t, ok := n.valueTimers[r]; ok {
		t.Stop()
		delete(n.valueTimers, r)
	}
	n.valuesReceived[r] = map[int32]int64{}
	n.mu.Unlock()

	v := n.randomValue()

	n.mu.Lock()
	n.valuesReceived[r][n.id] = v
	_, alreadyScheduled := n.valueTimers[r]
	n.mu.Unlock()

	n.logf(" ", "leader started consensus for round %d, contributing %d", r, v)
	n.send(wire.Value(n.id, v, r))

	if !alreadyScheduled {
		n.scheduleProcessMaximumValue(r, n.cfg.StartConsensusDelay.Duration())
	}
}

// handleValue records a peer's contribution and, if no timer is
// already pending for this round, schedules the max-value processor
// after ValueProcessDelay.
func (n *Node) handleValue(pid int32, value int64, round int64) {
	n.mu.Lock()
	if _, ok := n.valuesReceived[round]; !ok {
		n.valuesReceived[round] = map[int32]int64{}
	}
	n.valuesReceived[round][pid] = value
	_, alreadyScheduled := n.valueTimers[round]
	n.mu.Unlock()

	if !alreadyScheduled {
		n.scheduleProcessMaximumValue(round, n.cfg.ValueProcessDelay.Duration())
	}
}

// scheduleProcessMaximumValue installs at most one pending timer per
// round.
func (n *Node) scheduleProcessMaximumValue(round int64, delay time.Duration) {
	n.mu.Lock()
	if n.shutdown {
		n.mu.Unlock()
		return
	}
	if _, exists := n.valueTimers[round]; exists {
		n.mu.Unlock()
		return
	}
	t := n.after(delay, func() { n.processMaximumValue(round) })
	n.valueTimers[round] = t
	n.mu.Unlock()
}

// processMaximumValue runs at most once per round (guarded by
// responsesSent presence), computes the max of all values seen for
// the round, and either records it locally (if I am leader) or
// publishes RESPONSE.
func (n *Node) processMaximumValue(round int64) {
	n.mu.Lock()
	if _, already := n.responsesSent[round]; already {
		n.mu.Unlock()
		return
	}
	values, ok := n.valuesReceived[round]
	if !ok || len(values) == 0 {
		n.mu.Unlock()
		return
	}
	var max int64
	first := true
	for _, v := range values {
		if first || v > max {
			max = v
			first = false
		}
	}
	n.responsesSent[round] = max
	isLeader := n.leader != nil && *n.leader == n.id
	if isLeader {
		if _, ok := n.responsesReceived[round]; !ok {
			n.responsesReceived[round] = map[int32]int64{}
		}
		n.responsesReceived[round][n.id] = max
	}
	n.mu.Unlock()

	if isLeader {
		n.logf("*", "round %d: computed response %d (kept locally)", round, max)
		return
	}
	n.logf(" ", "round %d: computed response %d, sending to leader", round, max)
	n.send(wire.Response(n.id, max, round))
}

// handleResponse records a peer's RESPONSE into the leader's tally
// for the round. The response-timeout timer that eventually calls
// ProcessConsensusResponses is scheduled once, from
// StartConsensusRound; this handler only records the contribution.
func (n *Node) handleResponse(pid int32, response int64, round int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.leader == nil || *n.leader != n.id {
		return
	}
	if _, ok := n.responsesReceived[round]; !ok {
		n.responsesReceived[round] = map[int32]int64{}
	}
	n.responsesReceived[round][pid] = response
}

// ProcessConsensusResponses computes the plurality response (ties
// broken by natural order), advances the round, and publishes
// ROUND_UPDATE. If no responses were collected, the round is silently
// abandoned.
func (n *Node) ProcessConsensusResponses(round int64) {
	n.mu.Lock()
	if n.shutdown || n.leader == nil || *n.leader != n.id {
		n.mu.Unlock()
		return
	}
	responses, ok := n.responsesReceived[round]
	if !ok || len(responses) == 0 {
		n.mu.Unlock()
		n.logf("*", "round %d abandoned: no responses collected", round)
		return
	}
	values := make([]int64, 0, len(responses))
	for _, v := range responses {
		values = append(values, v)
	}
	consensus := pluralityInt64(values)
	next := round + 1
	n.round = next
	n.gcRoundsBelowLocked(next)
	n.mu.Unlock()

	n.logf("*", "round %d committed: consensus=%d, advancing to round %d", round, consensus, next)
	n.send(wire.RoundUpdate(next))
}

// handleRoundUpdate implements the follower side of ROUND_UPDATE:
// adopt the new round and garbage-collect all per-round state below
// it.
func (n *Node) handleRoundUpdate(round int64) {
	n.mu.Lock()
	n.round = round
	n.gcRoundsBelowLocked(round)
	n.mu.Unlock()
	n.logf(n.roleGlyph(), "round updated to %d", round)
}

// gcRoundsBelowLocked drops all per-round buffers and cancels their
// timers for rounds strictly less than floor. Caller must hold mu.
func (n *Node) gcRoundsBelowLocked(floor int64) {
	for r := range n.valuesReceived {
		if r < floor {
			delete(n.valuesReceived, r)
		}
	}
	for r := range n.responsesReceived {
		if r < floor {
			delete(n.responsesReceived, r)
		}
	}
	for r := range n.responsesSent {
		if r < floor {
			delete(n.responsesSent, r)
		}
	}
	for r, t := range n.valueTimers {
		if r < floor {
			t.Stop()
			delete(n.valueTimers, r)
		}
	}
}

// pluralityInt64 returns the value with the highest occurrence count,
// ties broken by natural (ascending) order of the value.
func pluralityInt64(values []int64) int64 {
	counts := map[int64]int{}
	for _, v := range values {
		counts[v]++
	}
	var best int64
	bestCount := -1
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best = v
			bestCount = c
		}
	}
	return best
}
