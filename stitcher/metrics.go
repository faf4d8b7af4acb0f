package stitcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ncstitch_transitions_total",
		Help: "Lifecycle transitions by operation and result",
	}, []string{"operation", "result"})

	couplesPerConnect = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ncstitch_couples_per_connect",
		Help:    "Number of couples created by a connection",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	stabilisedFacesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ncstitch_stabilised_faces_total",
		Help: "Total original faces replaced by stabilisation geometry",
	})
)

func recordTransition(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	transitionsTotal.WithLabelValues(operation, result).Inc()
}
