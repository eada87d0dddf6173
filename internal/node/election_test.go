package node

import (
	"testing"
	"time"

	"github.com/distribuidos-core/consensus-node/internal/transport"
)

func TestSingleNodeBecomesLeader(t *testing.T) {
	bus := transport.NewBus()
	n := newTestNode(t, 1, bus)
	n.Start()
	defer n.Stop()

	ok := waitFor(t, time.Second, func() bool {
		id, has := n.testLeader()
		return has && id == 1
	})
	if !ok {
		t.Fatal("lone node never became its own leader")
	}
}

func TestHigherPidWinsElection(t *testing.T) {
	bus := transport.NewBus()
	low := newTestNode(t, 1, bus)
	high := newTestNode(t, 2, bus)
	low.Start()
	high.Start()
	defer low.Stop()
	defer high.Stop()

	ok := waitFor(t, 2*time.Second, func() bool {
		lid, lok := low.testLeader()
		hid, hok := high.testLeader()
		return lok && hok && lid == 2 && hid == 2
	})
	if !ok {
		lid, _ := low.testLeader()
		hid, _ := high.testLeader()
		t.Fatalf("expected both nodes to agree leader=2, got low=%d high=%d", lid, hid)
	}
}

func TestLowerPidDefersToHigherLeader(t *testing.T) {
	bus := transport.NewBus()
	low := newTestNode(t, 5, bus)
	high := newTestNode(t, 9, bus)
	low.Start()
	high.Start()
	defer low.Stop()
	defer high.Stop()

	waitFor(t, 2*time.Second, func() bool {
		id, ok := low.testLeader()
		return ok && id == 9
	})

	id, ok := low.testLeader()
	if !ok || id != 9 {
		t.Fatalf("lower-pid node should recognize 9 as leader, got %d (ok=%v)", id, ok)
	}
}

func TestElectionRestartsAfterLeaderLeaves(t *testing.T) {
	bus := transport.NewBus()
	a := newTestNode(t, 3, bus)
	b := newTestNode(t, 7, bus)
	a.Start()
	b.Start()
	defer a.Stop()

	waitFor(t, 2*time.Second, func() bool {
		id, ok := a.testLeader()
		return ok && id == 7
	})

	b.Stop()

	ok := waitFor(t, 2*time.Second, func() bool {
		id, has := a.testLeader()
		return has && id == 3
	})
	if !ok {
		id, has := a.testLeader()
		t.Fatalf("survivor should elect itself after leader vanished, got leader=%d has=%v", id, has)
	}
}
