package transport

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"golang.org/x/net/ipv4"
)

const (
	// MulticastGroup and MulticastPort identify the single multicast
	// group every member of the process group joins.
	MulticastGroup = "224.1.1.1"
	MulticastPort  = 50000
	multicastTTL   = 1
)

// UDP is the production Transport: a UDP multicast socket joined to
// MulticastGroup:MulticastPort with TTL 1, reconnected transparently
// on send/receive failure.
type UDP struct {
	logger *log.Logger
	iface  *net.Interface

	mu        sync.Mutex
	conn      net.PacketConn
	pconn     *ipv4.PacketConn
	dst       *net.UDPAddr
	connected bool
}

// NewUDP joins the multicast group immediately; callers that prefer to
// tolerate a down network at startup should ignore the error and rely
// on transparent reconnection from Send/Receive instead.
func NewUDP(logger *log.Logger) (*UDP, error) {
	if logger == nil {
		logger = log.Default()
	}
	t := &UDP{logger: logger}
	if err := t.reconnect(); err != nil {
		return t, err
	}
	return t, nil
}

func (t *UDP) reconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reconnectLocked()
}

func (t *UDP) reconnectLocked() error {
	if t.conn != nil {
		_ = t.conn.Close()
	}
	t.connected = false

	dst, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", MulticastGroup, MulticastPort))
	if err != nil {
		return fmt.Errorf("transport: resolve multicast addr: %w", err)
	}

	lc := net.ListenConfig{Control: reusePortControl}
	conn, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", MulticastPort))
	if err != nil {
		return fmt.Errorf("transport: listen: %w", err)
	}

	pconn := ipv4.NewPacketConn(conn)
	if err := pconn.JoinGroup(t.iface, &net.UDPAddr{IP: dst.IP}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("transport: join multicast group: %w", err)
	}
	if err := pconn.SetMulticastTTL(multicastTTL); err != nil {
		_ = conn.Close()
		return fmt.Errorf("transport: set multicast ttl: %w", err)
	}
	_ = pconn.SetMulticastLoopback(true)

	t.conn = conn
	t.pconn = pconn
	t.dst = dst
	t.connected = true
	t.logger.Printf("[transport] joined multicast group %s:%d", MulticastGroup, MulticastPort)
	return nil
}

// Send implements Transport.
func (t *UDP) Send(data []byte) bool {
	if !t.Connected() {
		if err := t.reconnect(); err != nil {
			t.logger.Printf("[transport] send: reconnect failed: %v", err)
			return false
		}
	}

	t.mu.Lock()
	conn, dst := t.conn, t.dst
	t.mu.Unlock()

	if _, err := conn.WriteTo(data, dst); err == nil {
		return true
	}

	t.logger.Printf("[transport] send failed, retrying once after reconnect")
	if err := t.reconnect(); err != nil {
		t.logger.Printf("[transport] reconnect failed: %v", err)
		return false
	}

	t.mu.Lock()
	conn, dst = t.conn, t.dst
	t.mu.Unlock()
	_, err := conn.WriteTo(data, dst)
	return err == nil
}

// Receive implements Transport. It blocks for up to one second so the
// caller's loop can observe shutdown without hanging forever.
func (t *UDP) Receive(max int) ([]byte, bool) {
	if !t.Connected() {
		if err := t.reconnect(); err != nil {
			time.Sleep(200 * time.Millisecond)
			return nil, false
		}
	}

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, max)
	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, false
		}
		t.logger.Printf("[transport] receive failed: %v", err)
		t.mu.Lock()
		t.connected = false
		t.mu.Unlock()
		return nil, false
	}
	return buf[:n], true
}

// Connected implements Transport.
func (t *UDP) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Close implements Transport.
func (t *UDP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.connected = false
	return err
}
