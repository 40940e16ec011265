package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	worksheetsBuilt = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "homeworkhero",
			Name:      "worksheets_built_total",
			Help:      "Worksheet builds by result (success, parse_error, shape_error, dataset_error, theme_error, error)",
		},
		[]string{"result"},
	)

	buildLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "homeworkhero",
			Name:      "worksheet_build_duration_seconds",
			Help:      "Duration of worksheet builds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	sectionsKept = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "homeworkhero",
			Name:      "sections_kept",
			Help:      "Number of sections left in a worksheet after filtering",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 15, 30},
		},
	)

	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "homeworkhero",
			Name:      "jobs_total",
			Help:      "Generation jobs by stage (enqueued, success, failed)",
		},
		[]string{"stage"},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "homeworkhero",
			Name:      "queue_depth",
			Help:      "Queue depth gauges for stream and dlq",
		},
		[]string{"type"},
	)

	initOnce sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(worksheetsBuilt, buildLatency, sectionsKept, jobsTotal, queueDepth)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveBuild(result string, dur time.Duration) {
	worksheetsBuilt.WithLabelValues(result).Inc()
	buildLatency.Observe(dur.Seconds())
}

func ObserveSectionsKept(n int) { sectionsKept.Observe(float64(n)) }

func IncJob(stage string) { jobsTotal.WithLabelValues(stage).Inc() }

func SetQueueDepth(kind string, v int64) { queueDepth.WithLabelValues(kind).Set(float64(v)) }
