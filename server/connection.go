package server

import (
	"net"
	"sync"

	"github.com/jurbbo/udp-multiplayer/protocol"
)

// Connection is a server-side session record (§3), keyed by remote
// socket address in Connections. Grounded on original_source's
// src/server/connection.rs Connection/Connections types.
type Connection struct {
	PlayerNumber  uint8
	PlayerName    string
	Addr          *net.UDPAddr
	BytesReceived int64
	BytesSent     int64
	RequestCount  int64
}

// Connections is the server's session table (I3, I4: unique
// player_number and player_name across all entries).
type Connections struct {
	mu  sync.Mutex
	byKey map[string]*Connection
}

// NewConnections builds an empty session table.
func NewConnections() *Connections {
	return &Connections{byKey: make(map[string]*Connection)}
}

func key(addr *net.UDPAddr) string { return addr.String() }

// Get returns the connection for addr, if any.
func (c *Connections) Get(addr *net.UDPAddr) (*Connection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.byKey[key(addr)]
	return conn, ok
}

// IsNameTaken reports whether name is already in use by any connection
// (I4).
func (c *Connections) IsNameTaken(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conn := range c.byKey {
		if conn.PlayerName == name {
			return true
		}
	}
	return false
}

// CreateNew allocates the smallest unused player_number in 1..=255 and
// inserts a new Connection (§4.7 step 3-4, I3). ok is false if the
// session is at capacity.
func (c *Connections) CreateNew(addr *net.UDPAddr, name string) (number uint8, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	used := make(map[uint8]bool, len(c.byKey))
	for _, conn := range c.byKey {
		used[conn.PlayerNumber] = true
	}
	for candidate := 1; candidate <= 255; candidate++ {
		if !used[uint8(candidate)] {
			c.byKey[key(addr)] = &Connection{
				PlayerNumber: uint8(candidate),
				PlayerName:   name,
				Addr:         addr,
			}
			return uint8(candidate), true
		}
	}
	return 0, false
}

// RecordReceived updates byte/request counters for addr's connection,
// a no-op if addr is unknown (§4.7: "no-op if unknown").
func (c *Connections) RecordReceived(addr *net.UDPAddr, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.byKey[key(addr)]
	if !ok {
		return
	}
	conn.BytesReceived += int64(n)
	conn.RequestCount++
}

// RecordSent updates the sent-byte counter for addr's connection.
func (c *Connections) RecordSent(addr *net.UDPAddr, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.byKey[key(addr)]
	if ok {
		conn.BytesSent += int64(n)
	}
}

// Others returns every connection other than the one at exclude.
func (c *Connections) Others(exclude *net.UDPAddr) []*Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	excludeKey := key(exclude)
	out := make([]*Connection, 0, len(c.byKey))
	for k, conn := range c.byKey {
		if k != excludeKey {
			out = append(out, conn)
		}
	}
	return out
}

// Snapshot returns every connection as a protocol.ConnectionView, in
// map iteration order. Per SPEC_FULL.md's resolution of the source's
// OtherPlayers ambiguity, this is called AFTER the new player has been
// inserted, so the returned slice includes it.
func (c *Connections) Snapshot() []protocol.ConnectionView {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.ConnectionView, 0, len(c.byKey))
	for _, conn := range c.byKey {
		out = append(out, protocol.ConnectionView{
			PlayerNumber: conn.PlayerNumber,
			PlayerName:   conn.PlayerName,
			Addr:         conn.Addr,
		})
	}
	return out
}

// Len returns the number of tracked sessions.
func (c *Connections) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byKey)
}

// ForEachReset iterates every connection invoking fn, then zeroes each
// connection's windowed request counter. Used by the status reporter
// (C11) to print per-interval activity; fn receives a copy of each
// connection and runs while the session lock is held.
func (c *Connections) ForEachReset(fn func(addr string, conn Connection)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, conn := range c.byKey {
		fn(k, *conn)
		conn.RequestCount = 0
	}
}
