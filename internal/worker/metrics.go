package worker

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsOnce sync.Once

	tasksSucceeded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memoryreel_tasks_succeeded_total",
			Help: "Background tasks that reached a terminal success status.",
		},
		[]string{"class"},
	)

	tasksFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memoryreel_tasks_failed_total",
			Help: "Background tasks that reached a terminal failure status.",
		},
		[]string{"class"},
	)

	inFlightTasks = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "memoryreel_tasks_in_flight",
			Help: "Provider calls currently admitted through the limiter, per class.",
		},
		[]string{"class"},
	)
)

func registerMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(tasksSucceeded, tasksFailed, inFlightTasks)
	})
}

// MetricsHandler exposes the worker metrics for the /metrics route.
func MetricsHandler() http.Handler {
	registerMetrics()
	return promhttp.Handler()
}
