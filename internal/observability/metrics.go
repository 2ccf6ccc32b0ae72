package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	jobsProcessedTotal    *prometheus.CounterVec
	jobDurationSeconds    *prometheus.HistogramVec
	jobsInFlight          prometheus.Gauge
	jobRetriesTotal       *prometheus.CounterVec
	fetchBranchTotal      *prometheus.CounterVec
	extractionFallbacks   prometheus.Counter
	oversizedImagesTotal  prometheus.Counter
	invalidSignatureTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors for the submission pipeline.
func RegisterMetrics() {
	registerOnce.Do(func() {
		jobsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "submission_jobs_total",
			Help: "Total number of submission jobs processed, by outcome.",
		}, []string{"outcome"})

		jobDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "submission_job_duration_seconds",
			Help:    "End-to-end duration of submission processing jobs.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"outcome"})

		jobsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "submission_jobs_in_flight",
			Help: "Number of submission jobs currently being processed.",
		})

		jobRetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "submission_job_retries_total",
			Help: "Number of retried job attempts, by failure class.",
		}, []string{"class"})

		fetchBranchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "submission_fetch_branch_total",
			Help: "Reference resolutions by classification branch taken.",
		}, []string{"branch"})

		extractionFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "submission_extraction_fallbacks_total",
			Help: "Content units degraded to a diagnostic placeholder after extraction failure.",
		})

		oversizedImagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "submission_oversized_images_total",
			Help: "Images exceeding the soft size ceiling forwarded to the AI provider.",
		})

		invalidSignatureTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "submission_invalid_image_signatures_total",
			Help: "Images whose bytes did not match the declared MIME type signature.",
		}, []string{"mime"})

		prometheus.MustRegister(
			jobsProcessedTotal,
			jobDurationSeconds,
			jobsInFlight,
			jobRetriesTotal,
			fetchBranchTotal,
			extractionFallbacks,
			oversizedImagesTotal,
			invalidSignatureTotal,
		)
	})
}

// JobsProcessed exposes the counter of finished jobs.
func JobsProcessed() *prometheus.CounterVec {
	RegisterMetrics()
	return jobsProcessedTotal
}

// JobDuration exposes the duration histogram for jobs.
func JobDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return jobDurationSeconds
}

// JobsInFlight exposes the in-flight jobs gauge.
func JobsInFlight() prometheus.Gauge {
	RegisterMetrics()
	return jobsInFlight
}

// JobRetries exposes the retry counter.
func JobRetries() *prometheus.CounterVec {
	RegisterMetrics()
	return jobRetriesTotal
}

// FetchBranch exposes the classification branch counter.
func FetchBranch() *prometheus.CounterVec {
	RegisterMetrics()
	return fetchBranchTotal
}

// ExtractionFallbacks exposes the degraded-extraction counter.
func ExtractionFallbacks() prometheus.Counter {
	RegisterMetrics()
	return extractionFallbacks
}

// OversizedImages exposes the oversized image counter.
func OversizedImages() prometheus.Counter {
	RegisterMetrics()
	return oversizedImagesTotal
}

// InvalidImageSignatures exposes the signature mismatch counter.
func InvalidImageSignatures() *prometheus.CounterVec {
	RegisterMetrics()
	return invalidSignatureTotal
}
