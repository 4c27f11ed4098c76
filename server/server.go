// Package server implements C7 (server runtime) and C11 (session status
// reporter, a SPEC_FULL.md supplemental feature). It mirrors the
// client's two-phase Server/RunningServer shape: an unbound builder
// transitions into a running value with a bound socket, worker pool,
// and session table, on Bind/Start.
//
// Grounded on original_source's src/server/{server,socketlistener,
// connection}.rs for the worker-pool/dispatch shape and the fan-out
// and session-table semantics, and on the teacher's
// networking/server.Server for the Go worker-pool idiom (goroutines
// sharing one *net.UDPConn rather than OS threads sharing one
// UdpSocket).
package server

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jurbbo/udp-multiplayer/metrics"
	"github.com/jurbbo/udp-multiplayer/protocol"
	"github.com/jurbbo/udp-multiplayer/shutdown"
)

// receiveBufferSize is the server's datagram receive buffer (§6).
const receiveBufferSize = 100

// ioErrorBackoff mirrors the client's post-error sleep (§4.7 "mirrors
// the client receiver").
const ioErrorBackoff = 1 * time.Second

// Option configures a Server at construction time.
type Option func(*Server)

func WithLogger(l *zap.Logger) Option   { return func(s *Server) { s.logger = l } }
func WithMetrics(r *metrics.Recorder) Option { return func(s *Server) { s.metricsRec = r } }

// WithStatusInterval enables C11's periodic roster report at the given
// interval. Disabled (interval 0) by default, matching the base
// specification's scope (the reporter is a SPEC_FULL.md addition, not
// part of spec.md's core).
func WithStatusInterval(d time.Duration) Option {
	return func(s *Server) { s.statusInterval = d }
}

// Server is the unbound builder half of the two-phase type.
type Server struct {
	workerCount    int
	logger         *zap.Logger
	metricsRec     *metrics.Recorder
	statusInterval time.Duration
}

// New constructs an unbound Server with workerCount receive-loop
// goroutines.
func New(workerCount int, opts ...Option) *Server {
	s := &Server{workerCount: workerCount, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bind opens the UDP socket and produces the running half of the
// two-phase type.
func (s *Server) Bind(local *net.UDPAddr) (*RunningServer, error) {
	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		return nil, err
	}
	return &RunningServer{
		conn:           conn,
		cat:            protocol.NewCatalogue(),
		connections:    NewConnections(),
		logger:         s.logger,
		metrics:        s.metricsRec,
		workerCount:    s.workerCount,
		statusInterval: s.statusInterval,
	}, nil
}

// RunningServer is the bound, running half of the two-phase type.
type RunningServer struct {
	conn        *net.UDPConn
	cat         *protocol.Catalogue
	connections *Connections

	logger  *zap.Logger
	metrics *metrics.Recorder

	workerCount    int
	statusInterval time.Duration

	packagesFailed atomic.Uint64
	degraded       atomic.Bool
	running        atomic.Bool
	timeToDie      atomic.Bool

	cancel context.CancelFunc
	group  *errgroup.Group
	poker  *shutdown.Poker
}

// Start spawns workerCount receiver goroutines sharing the bound
// socket, plus the status reporter when enabled.
func (rs *RunningServer) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	rs.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	rs.group = g

	for i := 0; i < rs.workerCount; i++ {
		g.Go(func() error { rs.receiveLoop(gctx); return nil })
	}
	if rs.statusInterval > 0 {
		g.Go(func() error { rs.runStatusReporter(gctx); return nil })
	}

	rs.running.Store(true)
	return nil
}

// IsDegraded reports whether the most recent socket operation failed.
func (rs *RunningServer) IsDegraded() bool { return rs.degraded.Load() }

// IsRunning reports whether the server has been started and not yet
// stopped.
func (rs *RunningServer) IsRunning() bool { return rs.running.Load() }

// Connections exposes the session table (e.g. for metrics gauges).
func (rs *RunningServer) Connections() *Connections { return rs.connections }

func (rs *RunningServer) setDegraded(v bool) { rs.degraded.Store(v) }

func (rs *RunningServer) receiveLoop(ctx context.Context) {
	buf := make([]byte, receiveBufferSize)
	for {
		if rs.timeToDie.Load() {
			return
		}
		n, addr, err := rs.conn.ReadFromUDP(buf)
		if err != nil {
			rs.setDegraded(true)
			select {
			case <-ctx.Done():
				return
			case <-time.After(ioErrorBackoff):
			}
			continue
		}
		if rs.timeToDie.Load() {
			return
		}
		rs.setDegraded(false)
		raw := append([]byte(nil), buf[:n]...)
		rs.handleDatagram(raw, addr)
	}
}

func (rs *RunningServer) failPackage() {
	rs.packagesFailed.Add(1)
	if rs.metrics != nil {
		rs.metrics.IncPackagesFailed()
	}
}

func (rs *RunningServer) sendTo(addr *net.UDPAddr, data []byte) {
	n, err := rs.conn.WriteToUDP(data, addr)
	if err != nil {
		rs.setDegraded(true)
		return
	}
	rs.setDegraded(false)
	rs.connections.RecordSent(addr, n)
}

func (rs *RunningServer) handleDatagram(raw []byte, from *net.UDPAddr) {
	if len(raw) < 2 {
		rs.failPackage()
		return
	}
	handle := raw[0]
	_, clientAction := protocol.SplitKindByte(raw[1])
	body := raw[2:]

	rs.connections.RecordReceived(from, len(raw))

	switch clientAction {
	case protocol.ClientNone:
		// no-op
	case protocol.ClientDataPushRequest:
		rs.handleDataPush(handle, from, body)
	case protocol.ClientDataRequest:
		// accepted, not acted on in this revision (§4.7)
	case protocol.ClientPlayerEnterRequest:
		rs.handlePlayerEnter(handle, from, body)
	case protocol.ClientPlayerLeaveRequest:
		// accepted, not acted on in this revision (§4.7)
	case protocol.ClientPingRequest:
		rs.handlePing(handle, from)
	default:
		rs.failPackage()
	}
}

func (rs *RunningServer) handlePing(handle uint8, from *net.UDPAddr) {
	header := protocol.Header(handle, protocol.ServerPongResponse, protocol.ClientPingRequest)
	rs.sendTo(from, header[:])
}

func (rs *RunningServer) handleDataPush(handle uint8, from *net.UDPAddr, payload []byte) {
	conn, ok := rs.connections.Get(from)
	if !ok || conn.PlayerNumber == 0 {
		return // not a registered player: silently dropped (§4.7)
	}

	header := protocol.Header(handle, protocol.ServerDataPush, protocol.ClientDataPushRequest)
	forward := make([]byte, 0, len(header)+1+len(payload))
	forward = append(forward, header[:]...)
	forward = append(forward, conn.PlayerNumber)
	forward = append(forward, payload...)

	for _, peer := range rs.connections.Others(from) {
		rs.sendTo(peer.Addr, forward)
	}

	done := protocol.Header(handle, protocol.ServerDataPushDoneResponse, protocol.ClientDataPushRequest)
	rs.sendTo(from, done[:])
}

func (rs *RunningServer) handlePlayerEnter(handle uint8, from *net.UDPAddr, payload []byte) {
	reply := func(status protocol.ServerStatus) {
		header := protocol.Header(handle, protocol.ServerPlayerCreatedResponse, protocol.ClientPlayerEnterRequest)
		data := append(append([]byte{}, header[:]...), byte(status))
		rs.sendTo(from, data)
	}

	// §4.7 step 1, corrected per SPEC_FULL.md's resolution of the
	// source's swapped status codes: an empty name area is
	// InvalidRequest (100), not NameTaken (101). As in the source, a
	// malformed/under-length request counts as a failed package; an
	// outright capacity rejection does not (it is a valid request the
	// server cannot satisfy).
	if len(payload) == 0 {
		rs.failPackage()
		reply(protocol.StatusInvalidRequest)
		return
	}
	name, err := protocol.ParsePlayerEnterRequest(rs.cat, payload)
	if err != nil {
		rs.failPackage()
		reply(protocol.StatusInvalidRequest)
		return
	}

	if rs.connections.IsNameTaken(name) {
		rs.failPackage()
		reply(protocol.StatusNameTaken)
		return
	}

	number, ok := rs.connections.CreateNew(from, name)
	if !ok {
		reply(protocol.StatusCapacityExceeded)
		return
	}

	others := rs.connections.Snapshot()
	body, err := protocol.BuildPlayerCreatedResponse(rs.cat, protocol.StatusSuccess, name, number, others)
	if err != nil {
		rs.failPackage()
		reply(protocol.StatusInvalidRequest)
		return
	}
	header := protocol.Header(handle, protocol.ServerPlayerCreatedResponse, protocol.ClientPlayerEnterRequest)
	data := append(append([]byte{}, header[:]...), body...)
	rs.sendTo(from, data)

	if rs.metrics != nil {
		rs.metrics.IncPackagesHandled()
		rs.metrics.SetActiveConns(rs.connections.Len())
	}

	pushHeader := protocol.Header(handle, protocol.ServerPlayerEnterPush, protocol.ClientPlayerEnterRequest)
	for _, peer := range rs.connections.Others(from) {
		pushBody, err := protocol.BuildPlayerEnterPush(rs.cat, name, number, from)
		if err != nil {
			continue
		}
		data := append(append([]byte{}, pushHeader[:]...), pushBody...)
		rs.sendTo(peer.Addr, data)
	}
}

// Stop implements the §4.8 shutdown protocol for the server.
func (rs *RunningServer) Stop() bool {
	local, ok := rs.conn.LocalAddr().(*net.UDPAddr)
	if !ok || local == nil {
		return false
	}
	rs.timeToDie.Store(true)

	poker, err := shutdown.NewPoker(local)
	if err != nil {
		return false
	}
	rs.poker = poker
	pokeCtx, pokeCancel := context.WithCancel(context.Background())
	go poker.Run(pokeCtx, 50*time.Millisecond)

	if rs.cancel != nil {
		rs.cancel()
	}
	err = rs.group.Wait()

	pokeCancel()
	rs.poker.Close()
	rs.conn.Close()
	rs.running.Store(false)
	return err == nil
}
