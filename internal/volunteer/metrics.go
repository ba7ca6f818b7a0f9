package volunteer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decodeAnomalies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clubhours_decode_anomalies_total",
		Help: "Numeric cells that failed to parse and were coerced to zero.",
	}, []string{"sheet"})

	degradedReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clubhours_degraded_reads_total",
		Help: "List reads that returned empty because the backend was unreachable.",
	}, []string{"sheet"})

	submitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubhours_submits_total",
		Help: "Volunteer-hour requests accepted.",
	})

	approvalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubhours_approvals_total",
		Help: "Requests approved by an admin.",
	})

	rejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubhours_rejections_total",
		Help: "Requests rejected (deleted) by an admin.",
	})
)
