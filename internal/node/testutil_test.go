package node

import (
	"log"
	"testing"
	"time"

	"github.com/distribuidos-core/consensus-node/internal/config"
	"github.com/distribuidos-core/consensus-node/internal/transport"
)

// testConfig scales every timing parameter in config.Default down by
// roughly two orders of magnitude, preserving the inter-parameter
// relationships Config.Validate enforces, so the protocol's real
// timers drive these tests instead of a hand-rolled clock.
func testConfig() config.Config {
	return config.Config{
		HeartbeatInt:             0.01,
		FailTimeout:              0.05,
		HelloTimeout:             0.03,
		BullyTimeout:             0.05,
		ElectionStartDelay:       0.01,
		LeaderDeathDelay:         0.01,
		BullyPollInterval:        0.005,
		LeaderStartupDelay:       0.02,
		MonitorInterval:          0.01,
		MonitorStartupGrace:      0.04,
		ConsensusInterval:        0.1,
		ConsensusResponseTimeout: 0.05,
		ValueProcessDelay:        0.02,
		StartConsensusDelay:      0.03,
		RoundStart:               0,
		LeaderQueryDelay:         0.02,
		RoundQueryTimeout:        0.03,
		MainLoopInterval:         0.01,
		NetworkLogInterval:       0.05,
		NetworkRetryDelay:        0.01,
		LeaderSearchInterval:     0.05,
		StatusLogInterval:        0.2,
	}
}

func testLogger(t *testing.T) *log.Logger {
	return log.New(testWriter{t}, "", 0)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

func newTestNode(t *testing.T, id int32, bus *transport.Bus) *Node {
	tr := bus.Join()
	n := New(id, testConfig(), tr, testLogger(t))
	return n
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func (n *Node) testLeader() (int32, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.leader == nil {
		return 0, false
	}
	return *n.leader, true
}

func (n *Node) testRound() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.round
}
