package node

import (
	"testing"
	"time"

	"github.com/distribuidos-core/consensus-node/internal/transport"
)

func TestPluralityBreaksTiesByNaturalOrder(t *testing.T) {
	cases := []struct {
		name   string
		values []int64
		want   int64
	}{
		{"clear winner", []int64{4, 4, 4, 9, 1}, 4},
		{"two-way tie picks smaller", []int64{7, 7, 3, 3}, 3},
		{"single value", []int64{12}, 12},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := pluralityInt64(c.values); got != c.want {
				t.Fatalf("pluralityInt64(%v) = %d, want %d", c.values, got, c.want)
			}
		})
	}
}

func TestProcessMaximumValueRunsOnceSetsPerRoundResponse(t *testing.T) {
	bus := transport.NewBus()
	n := newTestNode(t, 1, bus)

	n.mu.Lock()
	n.valuesReceived[0] = map[int32]int64{1: 10, 2: 30, 3: 20}
	n.mu.Unlock()

	n.processMaximumValue(0)
	n.processMaximumValue(0)

	n.mu.Lock()
	resp, ok := n.responsesSent[0]
	n.mu.Unlock()
	if !ok || resp != 30 {
		t.Fatalf("expected responsesSent[0] = 30, got %d (ok=%v)", resp, ok)
	}
}

func TestHandleRoundUpdateGarbageCollectsOlderRounds(t *testing.T) {
	bus := transport.NewBus()
	n := newTestNode(t, 1, bus)

	n.mu.Lock()
	n.valuesReceived[3] = map[int32]int64{1: 1}
	n.valuesReceived[5] = map[int32]int64{1: 1}
	n.responsesReceived[3] = map[int32]int64{1: 1}
	n.responsesSent[3] = 1
	n.valueTimers[3] = time.AfterFunc(time.Hour, func() {})
	n.mu.Unlock()

	n.handleRoundUpdate(5)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.round != 5 {
		t.Fatalf("round = %d, want 5", n.round)
	}
	if _, ok := n.valuesReceived[3]; ok {
		t.Fatal("round 3 values should have been garbage collected")
	}
	if _, ok := n.valuesReceived[5]; !ok {
		t.Fatal("round 5 values should survive")
	}
	if _, ok := n.responsesSent[3]; ok {
		t.Fatal("round 3 responsesSent should have been garbage collected")
	}
	if _, ok := n.valueTimers[3]; ok {
		t.Fatal("round 3's timer should have been cancelled and dropped")
	}
}

func TestConsensusResponsesAbandonRoundWithNoReplies(t *testing.T) {
	bus := transport.NewBus()
	n := newTestNode(t, 1, bus)
	leaderID := int32(1)
	n.mu.Lock()
	n.leader = &leaderID
	n.round = 2
	n.mu.Unlock()

	n.ProcessConsensusResponses(2)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.round != 2 {
		t.Fatalf("round should stay at 2 when no responses were collected, got %d", n.round)
	}
}
