package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests            *prometheus.CounterVec
	CounterHandleRequestPanic  prometheus.Counter
	CounterRateLimitedRequests prometheus.Counter
	CounterSubmissions         *prometheus.CounterVec
	CounterPipelineOutcomes    *prometheus.CounterVec
	CounterCheatFlags          *prometheus.CounterVec
	CounterReapedSubmissions   prometheus.Counter

	// gauges
	GaugeRequests          prometheus.Gauge
	GaugeLifeSignal        prometheus.Gauge
	GaugeRunningPipelines  prometheus.Gauge
	GaugeOutstandingFrames prometheus.GaugeFunc

	// histograms
	HistogramRequestDuration *prometheus.HistogramVec
	HistogramStageDuration   *prometheus.HistogramVec
}

func NewTestManager() *Manager {
	return NewManager("backend", "test_server", prometheus.NewRegistry(), nil)
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("backend", "test_server", reg, nil), reg
}

// NewManager registers all service metrics in reg. outstandingFrames, when
// set, is sampled on every scrape to expose the frame buffers currently held.
func NewManager(namespace, subsystem string, reg prometheus.Registerer, outstandingFrames func() float64) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})
	counterHandleRequestPanic := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "handle_request_panic",
		Help:      "The total number of serve request panics",
	})
	counterRateLimitedRequests := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "rate_limited_requests",
		Help:      "The total number of rate limited requests",
	})
	counterSubmissions := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "submissions",
		Help:      "The total number of accepted test submissions",
	}, []string{"test_id"})
	counterPipelineOutcomes := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "pipeline_outcomes",
		Help:      "Finished analysis pipeline runs by terminal state and error kind",
	}, []string{"test_id", "state", "error_kind"})
	counterCheatFlags := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "cheat_flags",
		Help:      "Integrity check findings by reason",
	}, []string{"reason"})
	counterReapedSubmissions := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "reaped_submissions",
		Help:      "Submissions left running by a dead process and marked failed",
	})

	gaugeRequests := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "current_requests",
		Help:      "Current number of requests served",
	})
	gaugeLifeSignal := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "life_signal",
		Help:      "Shows whether the service is alive",
	})
	gaugeRunningPipelines := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "running_pipelines",
		Help:      "Analysis pipelines currently executing",
	})
	if outstandingFrames == nil {
		outstandingFrames = func() float64 { return 0 }
	}
	gaugeOutstandingFrames := factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "outstanding_frames",
		Help:      "Sampled frame buffers not yet released",
	}, outstandingFrames)

	histogramRequestDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Histogram of response time for requests in seconds",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"route", "method", "status_code"})
	histogramStageDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "pipeline_stage_duration_seconds",
		Help:      "Time spent in each analysis pipeline stage in seconds",
		Buckets: []float64{
			0.001, 0.01, 0.05, 0.1, 0.25, 0.5,
			1, 2.5, 5, 10, 30, 60,
			120, 300,
		},
	}, []string{"test_id", "stage"})

	return &Manager{
		CounterRequests:            counterRequests,
		CounterHandleRequestPanic:  counterHandleRequestPanic,
		CounterRateLimitedRequests: counterRateLimitedRequests,
		CounterSubmissions:         counterSubmissions,
		CounterPipelineOutcomes:    counterPipelineOutcomes,
		CounterCheatFlags:          counterCheatFlags,
		CounterReapedSubmissions:   counterReapedSubmissions,
		GaugeRequests:              gaugeRequests,
		GaugeLifeSignal:            gaugeLifeSignal,
		GaugeRunningPipelines:      gaugeRunningPipelines,
		GaugeOutstandingFrames:     gaugeOutstandingFrames,
		HistogramRequestDuration:   histogramRequestDuration,
		HistogramStageDuration:     histogramStageDuration,
	}
}
