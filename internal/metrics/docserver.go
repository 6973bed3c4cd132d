package metrics

import "github.com/prometheus/client_golang/prometheus"

// DocCollector holds the document service's Prometheus metrics.
type DocCollector struct {
	writes      prometheus.Counter
	reads       *prometheus.CounterVec
	subscribers prometheus.Gauge
	limited     prometheus.Counter
}

func NewDocCollector(reg prometheus.Registerer) *DocCollector {
	c := &DocCollector{
		writes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docserver_document_writes_total",
			Help: "Merged document writes.",
		}),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docserver_document_reads_total",
			Help: "Document reads by result.",
		}, []string{"result"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docserver_subscribers",
			Help: "Open document subscriptions.",
		}),
		limited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docserver_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
	}
	reg.MustRegister(c.writes, c.reads, c.subscribers, c.limited)
	return c
}

func (c *DocCollector) RecordWrite() { c.writes.Inc() }

func (c *DocCollector) RecordRead(found bool) {
	if found {
		c.reads.WithLabelValues("found").Inc()
		return
	}
	c.reads.WithLabelValues("not_found").Inc()
}

func (c *DocCollector) SubscriberAdded()   { c.subscribers.Inc() }
func (c *DocCollector) SubscriberRemoved() { c.subscribers.Dec() }
func (c *DocCollector) RecordRateLimited() { c.limited.Inc() }
