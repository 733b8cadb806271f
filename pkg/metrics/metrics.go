package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	retinaDashboard = "retina_dashboard"

	uploadTransitionsTotal  = "upload_transitions_total"
	analysisTransitionTotal = "analysis_transitions_total"
	diagnosisTotal          = "diagnosis_total"
	sweptJobsTotal          = "swept_jobs_total"
	processedJobsTotal      = "processed_jobs_total"

	// Labels
	modalityLabel  = "modality"
	statusLabel    = "status"
	diagnosisLabel = "color_blindness_type"
	severityLabel  = "severity"
	kindLabel      = "kind"
	resultLabel    = "result"
)

/**
* Metrics definition
**/
var uploadTransitionsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: retinaDashboard,
		Name:      uploadTransitionsTotal,
		Help:      "number of upload record status transitions",
	},
	[]string{modalityLabel, statusLabel},
)

var analysisTransitionsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: retinaDashboard,
		Name:      analysisTransitionTotal,
		Help:      "number of multimodal analysis status transitions",
	},
	[]string{statusLabel},
)

var diagnosisTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: retinaDashboard,
		Name:      diagnosisTotal,
		Help:      "number of completed analyses per diagnosis and severity",
	},
	[]string{diagnosisLabel, severityLabel},
)

var sweptJobsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: retinaDashboard,
		Name:      sweptJobsTotal,
		Help:      "number of records failed by the stuck job sweeper",
	},
	[]string{kindLabel},
)

var processedJobsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: retinaDashboard,
		Name:      processedJobsTotal,
		Help:      "number of processing jobs run by the workers",
	},
	[]string{kindLabel, resultLabel},
)

func IncreaseUploadTransitionMetric(modality, status string) {
	uploadTransitionsTotalMetric.With(prometheus.Labels{
		modalityLabel: modality,
		statusLabel:   status,
	}).Inc()
}

func IncreaseAnalysisTransitionMetric(status string) {
	analysisTransitionsTotalMetric.With(prometheus.Labels{statusLabel: status}).Inc()
}

func IncreaseDiagnosisMetric(diagnosis, severity string) {
	diagnosisTotalMetric.With(prometheus.Labels{
		diagnosisLabel: diagnosis,
		severityLabel:  severity,
	}).Inc()
}

func IncreaseSweptJobsMetric(kind string, count int) {
	sweptJobsTotalMetric.With(prometheus.Labels{kindLabel: kind}).Add(float64(count))
}

func IncreaseProcessedJobsMetric(kind, result string) {
	processedJobsTotalMetric.With(prometheus.Labels{
		kindLabel:   kind,
		resultLabel: result,
	}).Inc()
}

// NewPrometheusMetricsHandler serves the default registry.
func NewPrometheusMetricsHandler() http.Handler {
	return promhttp.Handler()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(uploadTransitionsTotalMetric)
	prometheus.MustRegister(analysisTransitionsTotalMetric)
	prometheus.MustRegister(diagnosisTotalMetric)
	prometheus.MustRegister(sweptJobsTotalMetric)
	prometheus.MustRegister(processedJobsTotalMetric)
}
