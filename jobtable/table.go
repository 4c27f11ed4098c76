package jobtable

import (
	"context"
	"sync"
	"time"
)

// ActionKind enumerates the job-action channel's message kinds (§9's
// redesign: a JobTable is driven by a single actor goroutine; the
// channel is the only path by which the jobs map is structurally
// mutated).
type ActionKind int

const (
	ActionAdd ActionKind = iota
	ActionRemove
	ActionIncFailed
	ActionIncHandled
)

// Action is a message sent on a Table's Actions channel.
type Action struct {
	Kind ActionKind
	Job  *Job  // ActionAdd
	Handle uint8 // ActionRemove
	Finished bool // ActionRemove: true if the job completed (feeds finish_time)
}

// Table is the actor-based JobTable (C4). Structural mutation
// (insert/remove) happens exclusively inside Run, which is the sole
// goroutine that inserts into or deletes from the jobs map (other
// goroutines read it, and the retry sweeper updates job fields in place,
// under jobsMu); counters and the ping_ms
// estimate are guarded by a dedicated mutex so PingMS/Stats can be
// read concurrently from other goroutines.
type Table struct {
	Actions chan Action

	jobsMu sync.Mutex // guards jobs: written by Run (apply), scanned/mutated in place by the retry sweeper
	jobs   map[uint8]*Job

	handleMu   sync.Mutex
	nextHandle uint8

	statsMu         sync.RWMutex
	recents         []float64
	pingMS          float64
	lastRecompute   time.Time
	packagesHandled uint64
	packagesFailed  uint64
}

// NewTable constructs an empty Table with default ping_ms (§4.4: fewer
// than 5 samples yields the default). The recompute gate starts at
// construction time.
func NewTable() *Table {
	return &Table{
		Actions:       make(chan Action, 64),
		jobs:          make(map[uint8]*Job),
		pingMS:        DefaultPingMS,
		lastRecompute: time.Now(),
	}
}

// NextHandle returns the next wrapping handle (P1: wraps 0..255). Safe
// for concurrent use; it does not touch the jobs map so it bypasses
// the actor loop.
func (t *Table) NextHandle() uint8 {
	t.handleMu.Lock()
	defer t.handleMu.Unlock()
	h := t.nextHandle
	t.nextHandle++
	return h
}

// Run is the job actor: it consumes Actions until ctx is cancelled.
func (t *Table) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-t.Actions:
			t.apply(a)
		}
	}
}

func (t *Table) apply(a Action) {
	switch a.Kind {
	case ActionAdd:
		t.jobsMu.Lock()
		t.jobs[a.Job.Handle] = a.Job
		t.jobsMu.Unlock()
	case ActionRemove:
		t.jobsMu.Lock()
		job, ok := t.jobs[a.Handle]
		var startInstant time.Time
		if ok {
			startInstant = job.StartInstant
			delete(t.jobs, a.Handle)
		}
		t.jobsMu.Unlock()
		if !ok {
			return
		}
		if a.Finished {
			t.observeDuration(time.Since(startInstant))
		}
	case ActionIncFailed:
		t.statsMu.Lock()
		t.packagesFailed++
		t.statsMu.Unlock()
	case ActionIncHandled:
		t.statsMu.Lock()
		t.packagesHandled++
		t.statsMu.Unlock()
	}
}

// observeDuration folds a completed round-trip duration into the
// bounded recents window and, subject to the 10s wall-clock gate,
// recomputes ping_ms as their mean: a mean at or below 1ms floors to
// 10, a mean at or above 500ms ceils to 500, anything in between
// passes through unclamped (§4.4, §9 Open Question 3, matching
// original_source's set_average_finish_time).
func (t *Table) observeDuration(d time.Duration) {
	ms := float64(d.Microseconds()) / 1000.0

	t.statsMu.Lock()
	defer t.statsMu.Unlock()

	t.recents = append(t.recents, ms)
	if len(t.recents) > RecentsCapacity {
		t.recents = t.recents[len(t.recents)-RecentsCapacity:]
	}

	if len(t.recents) < 5 {
		t.pingMS = DefaultPingMS
		return
	}

	// The wall-clock gate applies to every recompute, the first one
	// included: it is measured from the previous recompute, or from
	// NewTable when there has been none.
	now := time.Now()
	if now.Sub(t.lastRecompute) < PingRecomputeInterval {
		return
	}
	t.lastRecompute = now

	var sum float64
	for _, v := range t.recents {
		sum += v
	}
	mean := sum / float64(len(t.recents))
	switch {
	case mean <= 1:
		mean = 10
	case mean >= 500:
		mean = 500
	}
	t.pingMS = mean
}

// PingMS returns the current adaptive ping estimate.
func (t *Table) PingMS() float64 {
	t.statsMu.RLock()
	defer t.statsMu.RUnlock()
	return t.pingMS
}

// DeadlineForNewJob returns the per-job deadline, in milliseconds, a
// freshly sent request should use (§4.4, §5).
func (t *Table) DeadlineForNewJob() int64 {
	return int64(t.PingMS() * DeadlineMultiplier)
}

// PeekStart returns the start instant of the still-outstanding job with
// the given handle, for callers that need to report a duration (e.g.
// OnPong) before issuing the ActionRemove that retires the job.
func (t *Table) PeekStart(handle uint8) (time.Time, bool) {
	t.jobsMu.Lock()
	defer t.jobsMu.Unlock()
	job, ok := t.jobs[handle]
	if !ok {
		return time.Time{}, false
	}
	return job.StartInstant, true
}

// Stats returns the handled/failed counters (exposed to C10 metrics).
func (t *Table) Stats() (handled, failed uint64) {
	t.statsMu.RLock()
	defer t.statsMu.RUnlock()
	return t.packagesHandled, t.packagesFailed
}

// PendingCount returns the number of jobs currently awaiting a response
// (exposed to C10's jobs_pending gauge).
func (t *Table) PendingCount() int {
	t.jobsMu.Lock()
	defer t.jobsMu.Unlock()
	return len(t.jobs)
}

// RunRetrySweeper periodically scans for expired pending jobs, resending
// those under MaxRetries and removing (via the Actions channel) those at
// or beyond it. It reads/mutates Job fields in place for in-flight
// retries (not a structural map change) but defers all map deletions
// until after the scan completes, and performs them by sending
// ActionRemove so the job actor remains the sole structural mutator
// (§4.4, §4.6, §9).
func (t *Table) RunRetrySweeper(ctx context.Context, interval time.Duration, resend func(job *Job)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sweep(resend)
		}
	}
}

func (t *Table) sweep(resend func(job *Job)) {
	now := time.Now()

	t.jobsMu.Lock()
	var expired []*Job
	for _, job := range t.jobs {
		if job.Pending && job.Expired(now) {
			expired = append(expired, job)
		}
	}
	var toRemove []uint8
	var toResend []*Job
	for _, job := range expired {
		if job.RetryCount >= MaxRetries {
			job.Pending = false
			toRemove = append(toRemove, job.Handle)
			continue
		}
		job.RetryCount++
		job.StartInstant = now
		toResend = append(toResend, job)
	}
	t.jobsMu.Unlock()

	// Resends and removals happen outside the lock: resend may block on
	// a send channel, and removal goes through the actor rather than
	// mutating the map here directly (§9).
	if resend != nil {
		for _, job := range toResend {
			resend(job)
		}
	}
	for _, h := range toRemove {
		t.Actions <- Action{Kind: ActionRemove, Handle: h}
	}
}
