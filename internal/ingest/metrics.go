package ingest

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operations     *prometheus.CounterVec //nolint:gochecknoglobals
	operationsOnce sync.Once              //nolint:gochecknoglobals
)

func registerMetrics() {
	operationsOnce.Do(func() {
		operations = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_operations_total",
				Help: "Number of image create, update and delete operations, differentiated by result.",
			},
			[]string{"op", "result"},
		)
	})
}

func observe(op string, err error) {
	if operations == nil {
		return
	}

	result := "ok"

	switch {
	case err == nil:
	case IsValidation(err):
		result = "invalid"
	default:
		result = "error"
	}

	operations.WithLabelValues(op, result).Inc()
}
