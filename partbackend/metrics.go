package partbackend

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	partitionsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tablevet",
		Subsystem: "partitioned",
		Name:      "partitions_running",
		Help:      "Number of partition validations that are running.",
	})
	partitionsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tablevet",
		Subsystem: "partitioned",
		Name:      "partitions_processed_total",
		Help:      "Partitions put through validation or coercion.",
	})
)
