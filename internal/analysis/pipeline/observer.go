package pipeline

import (
	"time"

	"github.com/2beens/fitanalysis/internal/analysis"
	"github.com/2beens/fitanalysis/internal/telemetry/metrics"
)

// Transition is a state change of one run. The first transition of a run
// has an empty From and To == PENDING.
type Transition struct {
	TestID string
	From   analysis.State
	To     analysis.State
	At     time.Time
	// Elapsed is the time the run spent in From.
	Elapsed time.Duration
	// Err is set for transitions into FAILED and CANCELLED.
	Err *analysis.Error
	// Result is set for the transition into COMPLETE.
	Result *analysis.AnalysisResult
}

type Observer interface {
	OnTransition(t Transition)
}

type ObserverFunc func(t Transition)

func (f ObserverFunc) OnTransition(t Transition) {
	f(t)
}

// MetricsObserver feeds pipeline transitions into the prometheus metrics.
type MetricsObserver struct {
	m *metrics.Manager
}

func NewMetricsObserver(m *metrics.Manager) *MetricsObserver {
	return &MetricsObserver{m: m}
}

func (o *MetricsObserver) OnTransition(t Transition) {
	if t.From == "" {
		o.m.GaugeRunningPipelines.Inc()
	} else {
		o.m.HistogramStageDuration.WithLabelValues(t.TestID, string(t.From)).Observe(t.Elapsed.Seconds())
	}

	if !t.To.IsTerminal() {
		return
	}
	o.m.GaugeRunningPipelines.Dec()

	errorKind := ""
	if t.Err != nil {
		errorKind = string(t.Err.Kind)
	}
	o.m.CounterPipelineOutcomes.WithLabelValues(t.TestID, string(t.To), errorKind).Inc()

	if t.Result != nil {
		for _, reason := range t.Result.CheatReasons {
			o.m.CounterCheatFlags.WithLabelValues(reason).Inc()
		}
	}
}
