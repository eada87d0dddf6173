// Package node implements the coordination core: the Bully election
// engine, the per-round agreement protocol, and the failure detector
// that drives both, all sharing one mutex-protected state object.
// Exported entry points lock once; internal cross-calls go through
// the already-locked "xxxLocked" helpers.
package node

import (
	"log"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/distribuidos-core/consensus-node/internal/config"
	"github.com/distribuidos-core/consensus-node/internal/transport"
	"github.com/distribuidos-core/consensus-node/internal/wire"
)

// Node is one member of the process group. All exported methods are
// safe for concurrent use; state mutation is always performed with mu
// held for the duration of the critical section.
type Node struct {
	id       int32
	instance string
	cfg      config.Config
	tr       transport.Transport
	log      *log.Logger

	mu sync.Mutex

	round      int64
	leader     *int32
	alive      map[int32]time.Time
	inElection bool
	receivedOK bool

	valuesReceived    map[int64]map[int32]int64
	responsesReceived map[int64]map[int32]int64
	responsesSent     map[int64]int64
	valueTimers       map[int64]*time.Timer

	roundQueryInProgress bool
	roundResponses       map[int32]int64

	shutdown bool
	stopCh   chan struct{}
	wg       sync.WaitGroup

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New constructs a Node. The node is not started until Start is
// called; it is always present in its own alive set from construction
// onward.
func New(id int32, cfg config.Config, tr transport.Transport, logger *log.Logger) *Node {
	if logger == nil {
		logger = log.New(os.Stdout, "", log.LstdFlags)
	}
	n := &Node{
		id:       id,
		instance: uuid.NewString(),
		cfg:      cfg,
		tr:       tr,
		log:      logger,

		round:             cfg.RoundStart,
		alive:             map[int32]time.Time{id: time.Now()},
		valuesReceived:    map[int64]map[int32]int64{},
		responsesReceived: map[int64]map[int32]int64{},
		responsesSent:     map[int64]int64{},
		valueTimers:       map[int64]*time.Timer{},
		roundResponses:    map[int32]int64{},
		stopCh:            make(chan struct{}),
		rng:               rand.New(rand.NewSource(time.Now().UnixNano() + int64(id))),
	}
	return n
}

// ID returns the node's immutable identifier.
func (n *Node) ID() int32 { return n.id }

func (n *Node) logf(glyph string, format string, args ...any) {
	n.log.Printf("[pid %d %s] "+format, append([]any{n.id, glyph}, args...)...)
}

func (n *Node) roleGlyph() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.roleGlyphLocked()
}

func (n *Node) roleGlyphLocked() string {
	if n.leader != nil && *n.leader == n.id {
		return "*"
	}
	return " "
}

// Start launches the node's concurrent activities (receiver, heartbeat
// emitter, failure detector, startup discovery, main loop) and returns
// immediately.
func (n *Node) Start() {
	n.logf(" ", "starting (instance %s)", n.instance)

	n.wg.Add(1)
	go n.receiveLoop()

	n.wg.Add(1)
	go n.heartbeatLoop()

	n.wg.Add(1)
	go n.monitorLoop()

	n.wg.Add(1)
	go n.bootstrap()

	n.wg.Add(1)
	go n.mainLoop()
}

// Stop sets the cooperative shutdown flag, cancels the pending
// per-round value timers, and waits for all loops to exit. Other
// callbacks scheduled through after (elections, round starts, round
// queries) are not cancelled: they still fire, but return without
// acting once shutdown is set.
func (n *Node) Stop() {
	n.mu.Lock()
	if n.shutdown {
		n.mu.Unlock()
		return
	}
	n.shutdown = true
	n.cancelAllTimersLocked()
	n.mu.Unlock()

	close(n.stopCh)
	n.wg.Wait()
	_ = n.tr.Close()
}

func (n *Node) cancelAllTimersLocked() {
	for r, t := range n.valueTimers {
		t.Stop()
		delete(n.valueTimers, r)
	}
}

// isShutdown is a convenience check for loop conditions in callers
// that hold no lock; it takes the lock itself.
func (n *Node) isShutdown() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.shutdown
}

// send marshals and publishes a record, logging failures. A transport
// failure here never mutates node state.
func (n *Node) send(r wire.Record) {
	data, err := wire.Pack(r)
	if err != nil {
		n.logf(n.roleGlyph(), "BUG: refused to send invalid record %+v: %v", r, err)
		return
	}
	if !n.tr.Send(data) {
		n.logf(" ", "send failed for op %s", r.Op)
	}
}

// after schedules f to run once after d, guarded so it becomes a
// no-op once the node has shut down.
func (n *Node) after(d time.Duration, f func()) *time.Timer {
	return time.AfterFunc(d, func() {
		if n.isShutdown() {
			return
		}
		f()
	})
}

func (n *Node) randomValue() int64 {
	n.rngMu.Lock()
	v := int64(n.rng.Intn(10) + 1)
	n.rngMu.Unlock()
	return v * v * int64(n.id)
}

// markAliveLocked records that pid was just observed, establishing the
// alive-set invariant used throughout the failure detector and round
// engine. Caller must hold mu.
func (n *Node) markAliveLocked(pid int32) {
	n.alive[pid] = time.Now()
}

// receiveLoop drains the transport and dispatches records by op tag.
func (n *Node) receiveLoop() {
	defer n.wg.Done()
	for {
		select {
		case <-n.stopCh:
			return
		default:
		}

		data, ok := n.tr.Receive(65536)
		if !ok {
			// The real UDP transport blocks for up to a second inside
			// Receive; the in-memory fake used by tests returns
			// immediately, so a short sleep here keeps this loop from
			// busy-spinning against it.
			time.Sleep(5 * time.Millisecond)
			continue
		}

		rec, err := wire.Unpack(data)
		if err != nil {
			n.logf(" ", "dropping malformed record: %v", err)
			continue
		}
		n.handle(rec)
	}
}
