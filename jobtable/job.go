// Package jobtable implements the per-request Job record and the
// actor-based JobTable (C4): handle allocation, retry bookkeeping, and the
// adaptive ping_ms estimate derived from recent round-trip durations.
package jobtable

import (
	"time"

	"github.com/jurbbo/udp-multiplayer/protocol"
)

// MaxRetries is the retry ceiling a Job is removed at (I2, P3).
const MaxRetries = 10

// RecentsCapacity bounds how many recent completion durations feed the
// ping_ms average (§3).
const RecentsCapacity = 200

// PingRecomputeInterval is the wall-clock gate §9's Open Question 3 keeps:
// ping_ms is only recomputed at most this often.
const PingRecomputeInterval = 10 * time.Second

// DefaultPingMS is the initial/under-sampled ping_ms value (§3, §4.4).
const DefaultPingMS = 500.0

// DeadlineMultiplier is the client-side per-job deadline factor (§4.4,
// §5): deadline = DeadlineMultiplier * ping_ms.
const DeadlineMultiplier = 5.0

// Job is a client-side record of an outstanding request awaiting a
// matching response (§3).
type Job struct {
	Handle       uint8
	RawData      []byte
	Kind         protocol.ClientAction
	StartInstant time.Time
	Pending      bool
	RetryCount   int8
	DeadlineMS   int64
}

// NewJob constructs a pending Job for a just-sent datagram.
func NewJob(handle uint8, rawData []byte, kind protocol.ClientAction, deadlineMS int64) *Job {
	return &Job{
		Handle:       handle,
		RawData:      rawData,
		Kind:         kind,
		StartInstant: time.Now(),
		Pending:      true,
		DeadlineMS:   deadlineMS,
	}
}

// Expired reports whether the job has been outstanding longer than its
// deadline, as of now.
func (j *Job) Expired(now time.Time) bool {
	return now.Sub(j.StartInstant) > time.Duration(j.DeadlineMS)*time.Millisecond
}
