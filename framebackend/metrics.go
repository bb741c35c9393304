package framebackend

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	validationsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tablevet",
		Subsystem: "frame",
		Name:      "validations_total",
		Help:      "Validation runs against in-process frames, by outcome.",
	}, []string{"outcome"})
	rowsValidatedMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tablevet",
		Subsystem: "frame",
		Name:      "rows_validated_total",
		Help:      "Rows covered by frame validation runs.",
	})
)

func init() {
	// Initialise each metric by default.
	for _, s := range []string{"pass", "fail"} {
		validationsMetric.WithLabelValues(s)
	}
}

func observeRun(rows int, err error) {
	outcome := "pass"
	if err != nil {
		outcome = "fail"
	}
	validationsMetric.WithLabelValues(outcome).Inc()
	rowsValidatedMetric.Add(float64(rows))
}
