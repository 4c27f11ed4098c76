// Package metrics implements C10, the observability surface SPEC_FULL.md
// §10/§11 add on top of the base specification: Prometheus counters/gauges
// for the job table and session state, plus the zap-based structured
// logger client and server runtimes log through instead of the teacher's
// fmt.Printf. Grounded on adred-codev-ws_poc's go-server-3 internal
// metrics/logging packages (NewMetrics/NewLogger) and go-server's
// Metrics struct, adapted from websocket/NATS concerns to job-table and
// session concerns.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Recorder holds the Prometheus collectors for a running Client or
// Server instance (§11 DOMAIN STACK).
type Recorder struct {
	registry *prometheus.Registry

	packagesHandled prometheus.Counter
	packagesFailed  prometheus.Counter
	jobRetries      prometheus.Counter
	pingMS          prometheus.Gauge
	activeConns     prometheus.Gauge
	jobsPending     prometheus.Gauge
}

// NewRecorder builds a Recorder on its own registry so multiple
// instances (e.g. in tests) never collide on global metric names.
func NewRecorder(namespace string) *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		packagesHandled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packages_handled_total",
			Help:      "Total number of datagrams handled successfully (client: responses dispatched; server: players admitted).",
		}),
		packagesFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packages_failed_total",
			Help:      "Total number of received datagrams that could not be handled (malformed, unknown kind, or rejected request).",
		}),
		jobRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_retries_total",
			Help:      "Total number of request retransmissions sent by the retry sweeper.",
		}),
		pingMS: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ping_ms",
			Help:      "Adaptive round-trip estimate used to size per-job deadlines.",
		}),
		activeConns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of sessions currently tracked by the server.",
		}),
		jobsPending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_pending",
			Help:      "Number of outstanding requests awaiting a response.",
		}),
	}
}

// Handler exposes the registry over HTTP for scraping.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) IncPackagesHandled()    { r.packagesHandled.Inc() }
func (r *Recorder) IncPackagesFailed()     { r.packagesFailed.Inc() }
func (r *Recorder) IncJobRetries()         { r.jobRetries.Inc() }
func (r *Recorder) SetPingMS(v float64)    { r.pingMS.Set(v) }
func (r *Recorder) SetActiveConns(v int)   { r.activeConns.Set(float64(v)) }
func (r *Recorder) SetJobsPending(v int)   { r.jobsPending.Set(float64(v)) }

// SamplePingLoop periodically pushes sample() into the ping_ms gauge
// until stop is closed. Used by Client to keep the gauge in sync with
// the jobtable's adaptive estimate without coupling metrics to
// jobtable directly.
func (r *Recorder) SamplePingLoop(interval time.Duration, stop <-chan struct{}, sample func() float64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.SetPingMS(sample())
		}
	}
}

// NewLogger builds a zap logger. dev selects the human-readable console
// encoder (development); false selects the JSON production encoder, as
// in go-server-3's internal/logging.NewLogger, minus the config-file
// wiring (the config package itself is out of scope per the base
// specification's Non-goals).
func NewLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}
