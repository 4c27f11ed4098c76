package jobtable

import (
	"context"
	"testing"
	"time"

	"github.com/jurbbo/udp-multiplayer/protocol"
)

// P1: handle allocation wraps at 256.
func TestNextHandleWraps(t *testing.T) {
	tbl := NewTable()
	var first uint8
	for i := 0; i < 256; i++ {
		h := tbl.NextHandle()
		if i == 0 {
			first = h
		}
		_ = h
	}
	wrapped := tbl.NextHandle()
	if wrapped != first {
		t.Fatalf("got %d after 257 calls, want wraparound back to %d", wrapped, first)
	}
}

// P2: fewer than 5 samples keeps the default ping_ms.
func TestPingMSDefaultUnderSampled(t *testing.T) {
	tbl := NewTable()
	if got := tbl.PingMS(); got != DefaultPingMS {
		t.Fatalf("got %v, want default %v", got, DefaultPingMS)
	}
	for i := 0; i < 3; i++ {
		tbl.observeDuration(20 * time.Millisecond)
	}
	if got := tbl.PingMS(); got != DefaultPingMS {
		t.Fatalf("got %v after 3 samples, want default %v unchanged", got, DefaultPingMS)
	}
}

// P2: the mean is clamped into [10, 500].
func TestPingMSClampsLow(t *testing.T) {
	tbl := NewTable()
	// Age the recompute gate so the fifth sample triggers a recompute.
	tbl.lastRecompute = time.Now().Add(-PingRecomputeInterval)
	for i := 0; i < 5; i++ {
		tbl.observeDuration(1 * time.Microsecond)
	}
	if got := tbl.PingMS(); got != 10 {
		t.Fatalf("got %v, want clamped floor 10", got)
	}
}

func TestPingMSClampsHigh(t *testing.T) {
	tbl := NewTable()
	tbl.lastRecompute = time.Now().Add(-PingRecomputeInterval)
	for i := 0; i < 5; i++ {
		tbl.observeDuration(2 * time.Second)
	}
	if got := tbl.PingMS(); got != 500 {
		t.Fatalf("got %v, want clamped ceiling 500", got)
	}
}

// P2: a mean strictly between the floor trigger (<=1ms) and the ceiling
// trigger (>=500ms) passes through unclamped.
func TestPingMSPassesThroughMidRange(t *testing.T) {
	tbl := NewTable()
	tbl.lastRecompute = time.Now().Add(-PingRecomputeInterval)
	for i := 0; i < 5; i++ {
		tbl.observeDuration(5 * time.Millisecond)
	}
	if got := tbl.PingMS(); got != 5 {
		t.Fatalf("got %v, want 5 (unclamped)", got)
	}
}

// P3: a job exceeding MaxRetries is removed rather than resent forever.
func TestRetrySweeperCapsRetriesThenRemoves(t *testing.T) {
	tbl := NewTable()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tbl.Run(ctx)

	job := NewJob(7, []byte("payload"), protocol.ClientPingRequest, 0) // deadline 0: always expired
	tbl.Actions <- Action{Kind: ActionAdd, Job: job}
	time.Sleep(10 * time.Millisecond)

	var resends int
	for i := 0; i < MaxRetries+2; i++ {
		tbl.sweep(func(j *Job) { resends++ })
	}
	time.Sleep(10 * time.Millisecond)

	if resends != MaxRetries {
		t.Fatalf("got %d resends, want %d (capped)", resends, MaxRetries)
	}

	tbl.jobsMu.Lock()
	_, stillPresent := tbl.jobs[7]
	tbl.jobsMu.Unlock()
	if stillPresent {
		t.Fatalf("job 7 should have been removed after exceeding MaxRetries")
	}
}

func TestIncHandledAndIncFailedCounters(t *testing.T) {
	tbl := NewTable()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tbl.Run(ctx)

	tbl.Actions <- Action{Kind: ActionIncHandled}
	tbl.Actions <- Action{Kind: ActionIncHandled}
	tbl.Actions <- Action{Kind: ActionIncFailed}
	time.Sleep(10 * time.Millisecond)

	handled, failed := tbl.Stats()
	if handled != 2 || failed != 1 {
		t.Fatalf("got handled=%d failed=%d, want 2/1", handled, failed)
	}
}
