// Package client implements C6 (client runtime) and C9 (event
// interface): a two-phase Client/RunningClient pair whose running form
// owns the UDP socket, job table, and worker goroutines, dispatching
// decoded datagrams to an application-supplied Events implementation.
// Grounded on the teacher's networking/client package for the overall
// connect/run/dispatch shape, redesigned per spec.md §9 around a
// two-phase type (eliminating Option<Socket>-style fields) and an
// actor-driven jobtable.Table instead of a coarse lock.
package client

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jurbbo/udp-multiplayer/jobtable"
	"github.com/jurbbo/udp-multiplayer/metrics"
	"github.com/jurbbo/udp-multiplayer/protocol"
	"github.com/jurbbo/udp-multiplayer/shutdown"
)

// receiveBufferSize is the client's datagram receive buffer (§6).
const receiveBufferSize = 10

// retrySweepInterval is the job table's retry-scan cadence (§4.6).
const retrySweepInterval = 10 * time.Millisecond

// metricsSampleInterval is how often the running client pushes its
// ping_ms and jobs_pending gauges when a metrics.Recorder is attached.
const metricsSampleInterval = 1 * time.Second

// ioErrorBackoff is how long the receiver sleeps after a read error
// before retrying (§4.6).
const ioErrorBackoff = 1 * time.Second

// Option configures a Client at construction time.
type Option func(*Client)

// WithLogger overrides the client's zap logger (default: a no-op
// logger, matching the base specification's "logging out of scope for
// the core" while still giving SPEC_FULL.md's ambient stack a home).
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics attaches a Prometheus recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Client) { c.metricsRec = r }
}

// Client is the unbound builder half of the two-phase type (§9): it
// holds configuration only, no socket or channels.
type Client struct {
	workerCount int
	logger      *zap.Logger
	metricsRec  *metrics.Recorder
}

// New constructs an unbound Client. workerCount is currently advisory
// (the receiver is single-threaded per connection; it is retained on
// the type to mirror the source's constructor signature and to leave
// room for a multi-socket client).
func New(workerCount int, opts ...Option) *Client {
	c := &Client{workerCount: workerCount, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect binds a local UDP socket and records the remote endpoint,
// producing the running half of the two-phase type. The socket is
// deliberately left unconnected (see RunningClient.receiveLoop) so the
// shutdown self-poke (C8) can wake a blocked Read regardless of source
// address.
func (c *Client) Connect(local, remote *net.UDPAddr) (*RunningClient, error) {
	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		return nil, err
	}
	return &RunningClient{
		conn:    conn,
		remote:  remote,
		cat:     protocol.NewCatalogue(),
		table:   jobtable.NewTable(),
		sendCh:  make(chan sendItem, 64),
		logger:  c.logger,
		metrics: c.metricsRec,
	}, nil
}

type sendItem struct {
	data []byte
	job  *jobtable.Job
}

// RunningClient is the bound, running half of the two-phase type: every
// field required to operate is present, so the public API below never
// deals in Option-equivalents.
type RunningClient struct {
	conn   *net.UDPConn
	remote *net.UDPAddr
	cat    *protocol.Catalogue
	table  *jobtable.Table
	sendCh chan sendItem

	logger  *zap.Logger
	metrics *metrics.Recorder

	events Events

	degraded  atomic.Bool
	running   atomic.Bool
	timeToDie atomic.Bool

	cancel context.CancelFunc
	group  *errgroup.Group
	poker  *shutdown.Poker
}

// Start spawns the client's workers and begins processing traffic.
// Ordering is mandatory (§4.6): channels already exist from Connect, so
// here it is sender, then retry sweeper, then job actor, then receiver.
func (rc *RunningClient) Start(events Events) error {
	rc.events = events
	ctx, cancel := context.WithCancel(context.Background())
	rc.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	rc.group = g

	g.Go(func() error { rc.senderLoop(gctx); return nil })
	g.Go(func() error { rc.table.RunRetrySweeper(gctx, retrySweepInterval, rc.resend); return nil })
	g.Go(func() error { rc.table.Run(gctx); return nil })
	g.Go(func() error { rc.receiveLoop(gctx); return nil })
	if rc.metrics != nil {
		g.Go(func() error { rc.sampleMetrics(gctx); return nil })
	}

	rc.running.Store(true)
	return nil
}

// sampleMetrics periodically pushes the job table's adaptive ping_ms
// estimate and pending-job count into the attached Recorder.
func (rc *RunningClient) sampleMetrics(ctx context.Context) {
	rc.metrics.SamplePingLoop(metricsSampleInterval, ctx.Done(), func() float64 {
		rc.metrics.SetJobsPending(rc.table.PendingCount())
		return rc.table.PingMS()
	})
}

// Send allocates a handle, builds the job record, and enqueues both the
// ADD action and the outbound bytes, in that order (§5: ADD must
// precede the send-channel push for a given handle).
func (rc *RunningClient) Send(kind protocol.ClientAction, payload []byte) error {
	if !rc.running.Load() {
		return ErrNotInitialized
	}
	handle := rc.table.NextHandle()
	header := protocol.Header(handle, protocol.ServerNone, kind)
	raw := make([]byte, 0, len(header)+len(payload))
	raw = append(raw, header[:]...)
	raw = append(raw, payload...)

	deadline := rc.table.DeadlineForNewJob()
	job := jobtable.NewJob(handle, raw, kind, deadline)

	select {
	case rc.table.Actions <- jobtable.Action{Kind: jobtable.ActionAdd, Job: job}:
	default:
		return ErrChannelClosed
	}
	select {
	case rc.sendCh <- sendItem{data: raw, job: job}:
	default:
		return ErrChannelClosed
	}
	return nil
}

// PingMS returns the current adaptive round-trip estimate.
func (rc *RunningClient) PingMS() float64 { return rc.table.PingMS() }

// IsDegraded reports whether the most recent socket operation failed.
func (rc *RunningClient) IsDegraded() bool { return rc.degraded.Load() }

// IsRunning reports whether the client has been started and not yet
// stopped.
func (rc *RunningClient) IsRunning() bool { return rc.running.Load() }

func (rc *RunningClient) setDegraded(v bool) {
	if rc.degraded.Swap(v) != v {
		if rc.events != nil {
			rc.events.OnConnectionStateChange(v)
		}
	}
}

func (rc *RunningClient) resend(job *jobtable.Job) {
	if rc.metrics != nil {
		rc.metrics.IncJobRetries()
	}
	select {
	case rc.sendCh <- sendItem{data: job.RawData, job: job}:
	default:
	}
}

func (rc *RunningClient) senderLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-rc.sendCh:
			_, err := rc.conn.WriteToUDP(item.data, rc.remote)
			if err != nil {
				rc.table.Actions <- jobtable.Action{Kind: jobtable.ActionRemove, Handle: item.job.Handle}
				rc.setDegraded(true)
				continue
			}
			if rc.degraded.Load() {
				rc.setDegraded(false)
			}
		}
	}
}

func (rc *RunningClient) receiveLoop(ctx context.Context) {
	buf := make([]byte, receiveBufferSize)
	for {
		if rc.timeToDie.Load() {
			return
		}
		n, addr, err := rc.conn.ReadFromUDP(buf)
		if err != nil {
			rc.setDegraded(true)
			select {
			case <-ctx.Done():
				return
			case <-time.After(ioErrorBackoff):
			}
			continue
		}
		if rc.timeToDie.Load() {
			return
		}
		rc.setDegraded(false)
		if addr == nil || !addr.IP.Equal(rc.remote.IP) || addr.Port != rc.remote.Port {
			// Either the shutdown self-poke or an unexpected sender;
			// either way it is not a protocol datagram.
			continue
		}
		rc.handleDatagram(append([]byte(nil), buf[:n]...))
	}
}

// pushServerActions are server-initiated messages not tied to a job.
var pushServerActions = map[protocol.ServerAction]bool{
	protocol.ServerDataPush:        true,
	protocol.ServerPlayerEnterPush: true,
	protocol.ServerPlayerLeavePush: true,
}

func (rc *RunningClient) handleDatagram(raw []byte) {
	if len(raw) < 2 {
		rc.table.Actions <- jobtable.Action{Kind: jobtable.ActionIncFailed}
		rc.raiseError(protocol.ErrInvalidRawData)
		return
	}
	handle := raw[0]
	server, _ := protocol.SplitKindByte(raw[1])
	body := raw[2:]

	if !pushServerActions[server] {
		rc.finishJob(handle, server, body)
		return
	}

	switch server {
	case protocol.ServerDataPush:
		// §4.7: the server prefixes the forwarded push with the
		// originating player's number.
		if len(body) < 1 {
			rc.table.Actions <- jobtable.Action{Kind: jobtable.ActionIncFailed}
			rc.raiseError(protocol.ErrInvalidRawData)
			return
		}
		rc.events.OnDataPushReceived(body[0], body[1:])
	case protocol.ServerPlayerEnterPush:
		info, err := protocol.ParsePlayerEnterPush(rc.cat, body)
		if err != nil {
			rc.table.Actions <- jobtable.Action{Kind: jobtable.ActionIncFailed}
			rc.raiseError(err)
			return
		}
		rc.events.OnPlayerEnterPush(info)
	case protocol.ServerPlayerLeavePush:
		rc.events.OnPlayerLeave(body)
	}
}

// finishJob handles the response kinds correlated to an outstanding
// request: it looks up the job's start time (for OnPong's duration),
// dispatches the decoded payload, then retires the job via the actor.
func (rc *RunningClient) finishJob(handle uint8, server protocol.ServerAction, body []byte) {
	start, known := rc.table.PeekStart(handle)

	switch server {
	case protocol.ServerPongResponse:
		var d time.Duration
		if known {
			d = time.Since(start)
		}
		rc.events.OnPong(d)
	case protocol.ServerDataResponse:
		rc.events.OnDataRequest(body)
	case protocol.ServerDataPushDoneResponse:
		rc.events.OnDataPushAction(body)
	case protocol.ServerPlayerLeaveResponse:
		rc.events.OnPlayerLeave(body)
	case protocol.ServerPlayerCreatedResponse:
		data, err := protocol.ParsePlayerCreatedResponse(rc.cat, body)
		rc.events.OnPlayerCreated(data, err)
	default:
		rc.table.Actions <- jobtable.Action{Kind: jobtable.ActionIncFailed}
		rc.raiseError(protocol.ErrWrongFieldKind)
		return
	}

	if rc.metrics != nil {
		rc.metrics.IncPackagesHandled()
	}
	rc.table.Actions <- jobtable.Action{Kind: jobtable.ActionIncHandled}
	rc.table.Actions <- jobtable.Action{Kind: jobtable.ActionRemove, Handle: handle, Finished: known}
}

func (rc *RunningClient) raiseError(err error) {
	if rc.metrics != nil {
		rc.metrics.IncPackagesFailed()
	}
	if rc.events != nil {
		rc.events.OnError(err)
	}
}

// Stop implements the shutdown protocol (§4.8): flip time_to_die, start
// the self-poking socket to unblock the receiver's blocking Read,
// cancel the channel-based workers, join everything, then mark not
// running.
func (rc *RunningClient) Stop() bool {
	local, ok := rc.conn.LocalAddr().(*net.UDPAddr)
	if !ok || local == nil {
		return false
	}
	rc.timeToDie.Store(true)

	poker, err := shutdown.NewPoker(local)
	if err != nil {
		return false
	}
	rc.poker = poker
	pokeCtx, pokeCancel := context.WithCancel(context.Background())
	go poker.Run(pokeCtx, 50*time.Millisecond)

	if rc.cancel != nil {
		rc.cancel()
	}
	err = rc.group.Wait()

	pokeCancel()
	rc.poker.Close()
	rc.conn.Close()
	rc.running.Store(false)
	return err == nil
}
