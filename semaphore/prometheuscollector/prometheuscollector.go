// Package prometheuscollector exposes the state of priority semaphores as
// Prometheus metrics.
//
// Using the provided collector, you can expose metrics for one or more
// semaphores in the Prometheus exposition format:
//
//	uploads := semaphore.NewWithOptions(8, semaphore.NewOptions("uploads"))
//	collector := prometheuscollector.New(uploads)
//	prometheus.MustRegister(collector)
//
// Every series carries a "semaphore" label holding the semaphore's name, so
// semaphores sharing a collector should have distinct names.
package prometheuscollector

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/notorious-go/sync/semaphore"
)

var (
	capacityDesc = prometheus.NewDesc(
		"semaphore_capacity",
		"Number of permits the semaphore was created with.",
		[]string{"semaphore"}, nil)
	availableDesc = prometheus.NewDesc(
		"semaphore_permits_available",
		"Number of permits currently available.",
		[]string{"semaphore"}, nil)
	queuedDesc = prometheus.NewDesc(
		"semaphore_waiters_queued",
		"Number of waiters currently queued for a permit.",
		[]string{"semaphore"}, nil)
	closedDesc = prometheus.NewDesc(
		"semaphore_closed",
		"Whether the semaphore has been closed (1) or not (0).",
		[]string{"semaphore"}, nil)
	acquiredDesc = prometheus.NewDesc(
		"semaphore_permits_acquired_total",
		"Total number of permits handed out.",
		[]string{"semaphore"}, nil)
	handedOffDesc = prometheus.NewDesc(
		"semaphore_permits_handed_off_total",
		"Total number of releases that passed the slot directly to a queued waiter.",
		[]string{"semaphore"}, nil)
	noPermitsDesc = prometheus.NewDesc(
		"semaphore_try_acquire_failures_total",
		"Total number of non-blocking acquire attempts that found no permit.",
		[]string{"semaphore"}, nil)
	rejectedDesc = prometheus.NewDesc(
		"semaphore_acquires_rejected_total",
		"Total number of acquire attempts rejected because the semaphore was closed.",
		[]string{"semaphore"}, nil)
	cancelledDesc = prometheus.NewDesc(
		"semaphore_acquires_cancelled_total",
		"Total number of queued acquire attempts that were abandoned.",
		[]string{"semaphore"}, nil)
	overReleasedDesc = prometheus.NewDesc(
		"semaphore_permits_over_released_total",
		"Total number of releases dropped because all permits were already available.",
		[]string{"semaphore"}, nil)
)

// Collector implements prometheus.Collector for a fixed set of semaphores.
type Collector struct {
	semaphores []*semaphore.Semaphore
}

// New creates a new collector which reads from the provided semaphores.
func New(semaphores ...*semaphore.Semaphore) Collector {
	return Collector{
		semaphores: semaphores,
	}
}

func (Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- capacityDesc
	descs <- availableDesc
	descs <- queuedDesc
	descs <- closedDesc
	descs <- acquiredDesc
	descs <- handedOffDesc
	descs <- noPermitsDesc
	descs <- rejectedDesc
	descs <- cancelledDesc
	descs <- overReleasedDesc
}

func (c Collector) Collect(metrics chan<- prometheus.Metric) {
	for _, sem := range c.semaphores {
		name := sem.Name()
		closed := 0.0
		if sem.Closed() {
			closed = 1
		}

		metrics <- prometheus.MustNewConstMetric(capacityDesc, prometheus.GaugeValue, float64(sem.Capacity()), name)
		metrics <- prometheus.MustNewConstMetric(availableDesc, prometheus.GaugeValue, float64(sem.Available()), name)
		metrics <- prometheus.MustNewConstMetric(queuedDesc, prometheus.GaugeValue, float64(sem.Queued()), name)
		metrics <- prometheus.MustNewConstMetric(closedDesc, prometheus.GaugeValue, closed, name)

		m := sem.Metrics()
		counters := []struct {
			desc  *prometheus.Desc
			value uint64
		}{
			{acquiredDesc, m.Acquired.Load()},
			{handedOffDesc, m.HandedOff.Load()},
			{noPermitsDesc, m.NoPermits.Load()},
			{rejectedDesc, m.Rejected.Load()},
			{cancelledDesc, m.Cancelled.Load()},
			{overReleasedDesc, m.OverReleased.Load()},
		}
		for _, counter := range counters {
			metrics <- prometheus.MustNewConstMetric(counter.desc, prometheus.CounterValue, float64(counter.value), name)
		}
	}
}
