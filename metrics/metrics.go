package metrics

import (
	"github.com/videoreport/api/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ClientMetrics is the generic shape MonitorRequest reports into; reused by
// every outbound HTTP client (object store, status store, task queue,
// vision/speech providers) per §1A.
type ClientMetrics struct {
	RetryCount      *prometheus.GaugeVec
	FailureCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

type VideoReportMetrics struct {
	Version *prometheus.CounterVec

	JobsInFlight         prometheus.Gauge
	HTTPRequestsInFlight prometheus.Gauge

	JobsStarted   *prometheus.CounterVec
	JobsCompleted *prometheus.CounterVec
	JobDurationSec *prometheus.HistogramVec

	PhaseDurationSec  *prometheus.HistogramVec
	StageTransitions  *prometheus.CounterVec

	OCRRequestDurationSec *prometheus.HistogramVec
	OCRRequestsTotal      *prometheus.CounterVec
	OCRProviderCooldowns  *prometheus.CounterVec

	TranscriptionRequestsTotal *prometheus.CounterVec

	BatchesProcessed  *prometheus.CounterVec
	BatchRetries      *prometheus.CounterVec

	RouteRequestDurationSec *prometheus.SummaryVec

	ObjectStoreClient    ClientMetrics
	StatusStoreClient    ClientMetrics
	TaskQueueClient      ClientMetrics
	VisionProviderClient ClientMetrics
	SpeechProviderClient ClientMetrics
	QuotaClient          ClientMetrics
}

func NewMetrics() *VideoReportMetrics {
	m := &VideoReportMetrics{
		Version: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "version",
			Help: "Current Git SHA / Tag that's running. Incremented once on app startup.",
		}, []string{"app", "version"}),

		JobsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "jobs_in_flight",
			Help: "A count of the jobs currently being processed by this worker",
		}),
		HTTPRequestsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "A count of the http requests in flight",
		}),

		JobsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_started_total",
			Help: "Number of jobs that started processing",
		}, []string{"detection_mode"}),
		JobsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Number of jobs that reached a terminal status",
		}, []string{"status", "error_code"}),
		JobDurationSec: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Total wall-clock time from job intake to terminal status",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}, []string{"status"}),

		PhaseDurationSec: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "phase_duration_seconds",
			Help:    "Time spent in each of the three processing phases",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"phase"}),
		StageTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stage_transitions_total",
			Help: "Number of times a job entered a given stage",
		}, []string{"stage"}),

		OCRRequestDurationSec: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ocr_request_duration_seconds",
			Help:    "Time taken for a single-scene OCR call",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20},
		}, []string{"provider", "success"}),
		OCRRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ocr_requests_total",
			Help: "Number of OCR calls attempted, by provider and outcome",
		}, []string{"provider", "success"}),
		OCRProviderCooldowns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ocr_provider_cooldowns_total",
			Help: "Number of times a provider was marked unavailable after a retryable error",
		}, []string{"provider"}),

		TranscriptionRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "transcription_requests_total",
			Help: "Number of speech-API calls attempted, by outcome",
		}, []string{"success"}),

		BatchesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ocr_batches_processed_total",
			Help: "Number of OCR batches completed, by outcome",
		}, []string{"success"}),
		BatchRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ocr_batch_retries_total",
			Help: "Number of times a batch was retried by the task queue",
		}, []string{}),

		RouteRequestDurationSec: promauto.NewSummaryVec(prometheus.SummaryOpts{
			Name: "route_request_duration_seconds",
			Help: "Latency of handled HTTP requests broken down by route and status code",
		}, []string{"route", "status_code"}),

		ObjectStoreClient: ClientMetrics{
			RetryCount: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "object_store_retry_count",
				Help: "The number of retried object store requests",
			}, []string{"host"}),
			FailureCount: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "object_store_failure_count",
				Help: "The total number of failed object store requests",
			}, []string{"host", "status_code"}),
			RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "object_store_request_duration",
				Help:    "Time taken to send object store requests",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			}, []string{"host"}),
		},

		StatusStoreClient: ClientMetrics{
			RetryCount: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "status_store_retry_count",
				Help: "The number of retried status store requests",
			}, []string{"host"}),
			FailureCount: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "status_store_failure_count",
				Help: "The total number of failed status store requests",
			}, []string{"host", "status_code"}),
			RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "status_store_request_duration",
				Help:    "Time taken to send status store requests",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			}, []string{"host"}),
		},

		TaskQueueClient: ClientMetrics{
			RetryCount: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "task_queue_retry_count",
				Help: "The number of retried task queue dispatch requests",
			}, []string{"host"}),
			FailureCount: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "task_queue_failure_count",
				Help: "The total number of failed task queue dispatch requests",
			}, []string{"host", "status_code"}),
			RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "task_queue_request_duration",
				Help:    "Time taken to dispatch a task queue request",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			}, []string{"host"}),
		},

		VisionProviderClient: ClientMetrics{
			RetryCount: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "vision_provider_retry_count",
				Help: "The number of retried vision provider requests",
			}, []string{"host"}),
			FailureCount: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "vision_provider_failure_count",
				Help: "The total number of failed vision provider requests",
			}, []string{"host", "status_code"}),
			RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "vision_provider_request_duration",
				Help:    "Time taken to call a vision provider",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20},
			}, []string{"host"}),
		},
		SpeechProviderClient: ClientMetrics{
			RetryCount: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "speech_provider_retry_count",
				Help: "The number of retried speech provider requests",
			}, []string{"host"}),
			FailureCount: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "speech_provider_failure_count",
				Help: "The total number of failed speech provider requests",
			}, []string{"host", "status_code"}),
			RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "speech_provider_request_duration",
				Help:    "Time taken to call the speech provider",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20},
			}, []string{"host"}),
		},
		QuotaClient: ClientMetrics{
			RetryCount: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "quota_client_retry_count",
				Help: "The number of retried quota service requests",
			}, []string{"host"}),
			FailureCount: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "quota_client_failure_count",
				Help: "The total number of failed quota service requests",
			}, []string{"host", "status_code"}),
			RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "quota_client_request_duration",
				Help:    "Time taken to call the quota service",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			}, []string{"host"}),
		},
	}

	m.Version.WithLabelValues("videoreport-worker", config.Version).Inc()

	return m
}

var Metrics = NewMetrics()
