package node

import (
	"testing"
	"time"

	"github.com/distribuidos-core/consensus-node/internal/transport"
)

func TestThreeNodeClusterAgreesOnLeaderAndAdvancesRounds(t *testing.T) {
	bus := transport.NewBus()
	nodes := []*Node{
		newTestNode(t, 1, bus),
		newTestNode(t, 2, bus),
		newTestNode(t, 3, bus),
	}
	for _, n := range nodes {
		n.Start()
	}
	defer func() {
		for _, n := range nodes {
			n.Stop()
		}
	}()

	ok := waitFor(t, 3*time.Second, func() bool {
		for _, n := range nodes {
			id, has := n.testLeader()
			if !has || id != 3 {
				return false
			}
		}
		return true
	})
	if !ok {
		for _, n := range nodes {
			id, has := n.testLeader()
			t.Logf("node %d: leader=%d has=%v", n.ID(), id, has)
		}
		t.Fatal("cluster never converged on pid 3 as leader")
	}

	ok = waitFor(t, 3*time.Second, func() bool {
		for _, n := range nodes {
			if n.testRound() <= 0 {
				return false
			}
		}
		return true
	})
	if !ok {
		for _, n := range nodes {
			t.Logf("node %d: round=%d", n.ID(), n.testRound())
		}
		t.Fatal("cluster never committed a consensus round")
	}
}

func TestClusterReelectsAfterLeaderDeath(t *testing.T) {
	bus := transport.NewBus()
	nodes := []*Node{
		newTestNode(t, 1, bus),
		newTestNode(t, 2, bus),
		newTestNode(t, 3, bus),
	}
	for _, n := range nodes {
		n.Start()
	}
	survivors := nodes[:2]
	defer func() {
		for _, n := range survivors {
			n.Stop()
		}
	}()

	waitFor(t, 3*time.Second, func() bool {
		id, has := nodes[0].testLeader()
		return has && id == 3
	})

	nodes[2].Stop()

	ok := waitFor(t, 3*time.Second, func() bool {
		for _, n := range survivors {
			id, has := n.testLeader()
			if !has || id != 2 {
				return false
			}
		}
		return true
	})
	if !ok {
		for _, n := range survivors {
			id, has := n.testLeader()
			t.Logf("node %d: leader=%d has=%v", n.ID(), id, has)
		}
		t.Fatal("survivors never re-elected pid 2 after pid 3 died")
	}
}
