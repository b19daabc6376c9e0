package archive

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	exportsTotal *prometheus.CounterVec //nolint:gochecknoglobals
	recordsTotal *prometheus.CounterVec //nolint:gochecknoglobals
	metricsOnce  sync.Once              //nolint:gochecknoglobals
)

func registerMetrics() {
	metricsOnce.Do(func() {
		exportsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_exports_total",
				Help: "Number of archive exports, differentiated by result.",
			},
			[]string{"result"},
		)
		recordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_import_records_total",
				Help: "Number of imported archive records, differentiated by outcome.",
			},
			[]string{"outcome"},
		)
	})
}
