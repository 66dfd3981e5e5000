package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// eventsTotal counts committed events.
	// Labels: kind (factor, sampling, end_of_chain, end_of_run, start_of_run)
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecmc",
		Subsystem: "engine",
		Name:      "events_total",
		Help:      "Total committed events by handler kind",
	}, []string{"kind"})

	// unconfirmedTotal counts candidates rejected by their handler.
	unconfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ecmc",
		Subsystem: "engine",
		Name:      "unconfirmed_total",
		Help:      "Total unconfirmed candidate events",
	})

	// samplesTotal counts samples handed to the sink and the recorder.
	samplesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ecmc",
		Subsystem: "engine",
		Name:      "samples_total",
		Help:      "Total samples taken",
	})

	// dispatchDuration measures the wall time of one dispatched event,
	// rescheduling included.
	// Labels: kind
	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ecmc",
		Subsystem: "engine",
		Name:      "dispatch_duration_seconds",
		Help:      "Wall time spent per dispatched event",
		Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
	}, []string{"kind"})
)
