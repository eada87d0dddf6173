package transport

import "sync"

// Bus is an in-memory multicast group shared by a set of Fake
// transports, used by internal/node's tests in place of a real UDP
// socket. Every Send on one Fake is delivered to every connected Fake
// on the same Bus, the sender included (mirroring real multicast loop
// back, filtered by record semantics rather than by the transport
// itself).
type Bus struct {
	mu      sync.Mutex
	members []*Fake
}

// NewBus creates an empty in-memory multicast group.
func NewBus() *Bus {
	return &Bus{}
}

// Join attaches a new Fake transport to the bus and returns it.
func (b *Bus) Join() *Fake {
	f := &Fake{bus: b, inbox: make(chan []byte, 256), connected: true}
	b.mu.Lock()
	b.members = append(b.members, f)
	b.mu.Unlock()
	return f
}

func (b *Bus) broadcast(from *Fake, data []byte) {
	b.mu.Lock()
	members := append([]*Fake(nil), b.members...)
	b.mu.Unlock()

	for _, m := range members {
		if !m.Connected() {
			continue
		}
		select {
		case m.inbox <- data:
		default:
			// Slow receiver drops the datagram, same as a real
			// socket buffer overrun would.
		}
	}
}

// Fake is an in-memory Transport backed by a Bus.
type Fake struct {
	bus   *Bus
	inbox chan []byte

	mu        sync.Mutex
	connected bool
}

// Send implements transport.Transport.
func (f *Fake) Send(data []byte) bool {
	if !f.Connected() {
		return false
	}
	f.bus.broadcast(f, data)
	return true
}

// Receive implements transport.Transport.
func (f *Fake) Receive(max int) ([]byte, bool) {
	select {
	case data := <-f.inbox:
		if len(data) > max {
			data = data[:max]
		}
		return data, true
	default:
		return nil, false
	}
}

// Connected implements transport.Transport.
func (f *Fake) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// SetConnected lets tests simulate a disconnection and later recovery.
func (f *Fake) SetConnected(v bool) {
	f.mu.Lock()
	f.connected = v
	f.mu.Unlock()
}

// Close implements transport.Transport.
func (f *Fake) Close() error {
	f.SetConnected(false)
	return nil
}
