package rowscan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scannedRows = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tablevet",
		Subsystem: "rowscan",
		Name:      "rows_total",
		Help:      "Rows fetched from source databases.",
	})
	scannedBatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tablevet",
		Subsystem: "rowscan",
		Name:      "batches_total",
		Help:      "Row batches fetched from source databases.",
	})
)
