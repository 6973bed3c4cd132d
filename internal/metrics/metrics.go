// Package metrics exposes Prometheus collectors for the device and the
// document service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Bonus check outcomes.
const (
	BonusGranted        = "granted"
	BonusAlreadyApplied = "already_applied"
	BonusFirstRun       = "first_run"
	BonusNone           = "none"
	BonusFailed         = "failed"
)

// Remote snapshot decisions.
const (
	SnapshotAccepted          = "accepted"
	SnapshotIgnoredProcessing = "ignored_processing"
	SnapshotIgnoredStale      = "ignored_stale"
	SnapshotError             = "error"
)

// Recorder is what the application reports into. Collector implements it
// for Prometheus and Nop discards everything.
type Recorder interface {
	RecordBonusCheck(result string)
	RecordBonusMinutes(minutes int)
	RecordSnapshot(decision string)
	RecordRemoteWrite(err error)
}

// Collector holds the device's Prometheus metrics.
type Collector struct {
	bonusChecks  *prometheus.CounterVec
	bonusMinutes prometheus.Counter
	snapshots    *prometheus.CounterVec
	remoteWrites *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		bonusChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tvtime_bonus_checks_total",
			Help: "Daily bonus checks by outcome.",
		}, []string{"result"}),
		bonusMinutes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tvtime_bonus_minutes_granted_total",
			Help: "Minutes granted per person by the daily bonus.",
		}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tvtime_remote_snapshots_total",
			Help: "Remote snapshots received by reconcile decision.",
		}, []string{"decision"}),
		remoteWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tvtime_remote_writes_total",
			Help: "Remote document writes by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(c.bonusChecks, c.bonusMinutes, c.snapshots, c.remoteWrites)
	return c
}

func (c *Collector) RecordBonusCheck(result string) {
	c.bonusChecks.WithLabelValues(result).Inc()
}

func (c *Collector) RecordBonusMinutes(minutes int) {
	c.bonusMinutes.Add(float64(minutes))
}

func (c *Collector) RecordSnapshot(decision string) {
	c.snapshots.WithLabelValues(decision).Inc()
}

func (c *Collector) RecordRemoteWrite(err error) {
	if err != nil {
		c.remoteWrites.WithLabelValues("failed").Inc()
		return
	}
	c.remoteWrites.WithLabelValues("ok").Inc()
}

// Nop is a Recorder that discards everything.
type Nop struct{}

func (Nop) RecordBonusCheck(string) {}
func (Nop) RecordBonusMinutes(int)  {}
func (Nop) RecordSnapshot(string)   {}
func (Nop) RecordRemoteWrite(error) {}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
