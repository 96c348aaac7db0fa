package sink

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// webdavMetrics mirrors the request counters the teacher registers for its
// HTTP middleware (cmd/livesim2/app/prometheus.go), repurposed here: there is
// no HTTP surface to scrape them from, so logPeriodically gathers the
// registry itself and logs the values instead.
type webdavMetrics struct {
	registry   *prometheus.Registry
	queueDepth prometheus.Gauge
	puts       prometheus.Counter
	deletes    prometheus.Counter
	errors     prometheus.Counter
}

// newWebdavMetrics registers into a private registry, not the global
// DefaultRegisterer: a daemon may run more than one WebDAV sink in a single
// process's test suite, and MustRegister panics on a duplicate name.
func newWebdavMetrics() *webdavMetrics {
	m := &webdavMetrics{
		registry: prometheus.NewRegistry(),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "loopcast_webdav_queue_depth",
			Help: "Number of pending WebDAV put/delete jobs.",
		}),
		puts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loopcast_webdav_puts_total",
			Help: "Number of WebDAV PUT operations completed.",
		}),
		deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loopcast_webdav_deletes_total",
			Help: "Number of WebDAV DELETE operations completed.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loopcast_webdav_errors_total",
			Help: "Number of WebDAV operations that failed.",
		}),
	}
	m.registry.MustRegister(m.queueDepth, m.puts, m.deletes, m.errors)
	return m
}

// logPeriodically gathers the registry and logs each metric's current value
// until done is closed, substituting for the HTTP scrape endpoint this
// daemon has no surface to expose (there is no chi/huma router here, unlike
// the teacher's cmd/livesim2/app/prometheus.go).
func (m *webdavMetrics) logPeriodically(log *slog.Logger, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.logOnce(log)
		}
	}
}

func (m *webdavMetrics) logOnce(log *slog.Logger) {
	families, err := m.registry.Gather()
	if err != nil {
		log.Warn("gather webdav metrics failed", "error", err)
		return
	}
	attrs := make([]any, 0, len(families)*2)
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			var v float64
			switch {
			case metric.Gauge != nil:
				v = metric.Gauge.GetValue()
			case metric.Counter != nil:
				v = metric.Counter.GetValue()
			}
			attrs = append(attrs, f.GetName(), v)
		}
	}
	log.Info("webdav metrics", attrs...)
}
