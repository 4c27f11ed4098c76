// Package shutdown implements C8: the self-poking socket trick that
// unblocks a goroutine parked in a blocking UDP Read so it can observe its
// owner's shutdown flag and exit. Grounded on the teacher's own blocking
// socket-listener shutdown path and on original_source's
// src/helpers/threadkiller.rs, which binds an ephemeral UDP socket and
// fires a harmless datagram at the instance being closed until its
// listener loop notices the running flag has gone false.
package shutdown

import (
	"context"
	"fmt"
	"net"
	"time"
)

// EphemeralPortLow and EphemeralPortHigh bound the port scan a Poker
// uses to find a free local socket to send wake-up datagrams from
// (threadkiller.rs: `for port in 49152..65535`).
const (
	EphemeralPortLow  = 49152
	EphemeralPortHigh = 65535
)

// Poker periodically sends a 5-byte all-zero datagram at target so a
// peer blocked in net.UDPConn.Read/ReadFromUDP wakes, re-checks its
// shutdown flag, and exits cleanly.
type Poker struct {
	conn   *net.UDPConn
	target *net.UDPAddr
}

// NewPoker binds an ephemeral UDP socket on the loopback/any interface.
// It tries ports EphemeralPortLow..EphemeralPortHigh, matching the
// original's linear scan for a free local port.
func NewPoker(target *net.UDPAddr) (*Poker, error) {
	var lastErr error
	for port := EphemeralPortLow; port < EphemeralPortHigh; port++ {
		conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
		if err != nil {
			lastErr = err
			continue
		}
		return &Poker{conn: conn, target: target}, nil
	}
	return nil, fmt.Errorf("shutdown: no free ephemeral port in [%d,%d): %w", EphemeralPortLow, EphemeralPortHigh, lastErr)
}

// Run sends a wake-up datagram to target every interval until ctx is
// cancelled, then closes its socket. It is meant to run in its own
// goroutine, started as the last worker torn down during shutdown.
func (p *Poker) Run(ctx context.Context, interval time.Duration) {
	defer p.conn.Close()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.poke()
			return
		case <-ticker.C:
			if err := p.poke(); err != nil {
				return
			}
		}
	}
}

func (p *Poker) poke() error {
	_, err := p.conn.WriteToUDP([]byte{0, 0, 0, 0, 0}, p.target)
	return err
}

// Close releases the poker's socket without waiting for Run's ticker.
func (p *Poker) Close() error {
	return p.conn.Close()
}
