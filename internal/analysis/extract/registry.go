// Package extract computes the measured value of a fitness test from the
// pose or motion series of a recording.
package extract

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/2beens/fitanalysis/internal/analysis"
	"github.com/2beens/fitanalysis/internal/analysis/motion"
	"github.com/2beens/fitanalysis/internal/analysis/pose"
)

// Input is everything an extractor may read.
type Input struct {
	Descriptor  analysis.TestDescriptor
	Calibration analysis.Calibration
	Pose        pose.Series
	Motion      motion.Series
	// FrameAspect is frame width over height; horizontal normalized distances
	// are multiplied by it to share the vertical scale.
	FrameAspect float64
}

// Extractor measures one kind of test.
type Extractor interface {
	Kind() analysis.AnalysisKind
	MetricName() string
	// RequiresCalibration tells whether the value is a physical distance.
	RequiresCalibration() bool
	Extract(ctx context.Context, in Input) (analysis.Measurement, error)
}

// Registry maps test ids to extractors. Tests without an entry have no
// measurement; asking for one is an UnsupportedTestError.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]Extractor
}

func NewRegistry() *Registry {
	return &Registry{
		extractors: make(map[string]Extractor),
	}
}

func (r *Registry) Register(testID string, e Extractor) error {
	if testID == "" {
		return fmt.Errorf("empty test id")
	}
	if e.Kind() == analysis.KindNone || !e.Kind().IsValid() {
		return fmt.Errorf("extractor for [%s] has no measurable kind", testID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.extractors[testID]; ok {
		return fmt.Errorf("extractor for [%s] already registered", testID)
	}
	r.extractors[testID] = e
	return nil
}

// Resolve returns the extractor for the test. A test with analysis kind
// none, without a registration or registered for a different kind is
// unsupported.
func (r *Registry) Resolve(d analysis.TestDescriptor) (Extractor, error) {
	if d.AnalysisKind == analysis.KindNone {
		return nil, analysis.UnsupportedTestError(d.ID)
	}

	r.mu.RLock()
	e, ok := r.extractors[d.ID]
	r.mu.RUnlock()
	if !ok {
		return nil, analysis.UnsupportedTestError(d.ID)
	}
	if e.Kind() != d.AnalysisKind {
		return nil, analysis.NewError(
			analysis.KindUnsupportedTest,
			fmt.Sprintf("test [%s] is %s-based but its extractor reads %s series", d.ID, d.AnalysisKind, e.Kind()),
			nil,
		)
	}
	return e, nil
}

// TestIDs lists the registered tests, sorted.
func (r *Registry) TestIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.extractors))
	for id := range r.extractors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Config holds the tunables of the built-in extractors.
type Config struct {
	MinKeypointConfidence float64 `toml:"min_keypoint_confidence"`
	SitUpDownDegrees      float64 `toml:"sit_up_down_degrees"`
	SitUpUpDegrees        float64 `toml:"sit_up_up_degrees"`
	MovementThreshold     float64 `toml:"movement_threshold"`
	GroundPercentile      float64 `toml:"ground_percentile"`
	// NoseToAnkleRatio is the share of stature between nose and ankles.
	NoseToAnkleRatio float64 `toml:"nose_to_ankle_ratio"`
}

func DefaultConfig() Config {
	return Config{
		MinKeypointConfidence: 0.3,
		SitUpDownDegrees:      20,
		SitUpUpDegrees:        60,
		MovementThreshold:     0.05,
		GroundPercentile:      0.9,
		NoseToAnkleRatio:      0.89,
	}
}

// WithDefaults fills unset values from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.MinKeypointConfidence <= 0 {
		c.MinKeypointConfidence = def.MinKeypointConfidence
	}
	if c.SitUpDownDegrees <= 0 {
		c.SitUpDownDegrees = def.SitUpDownDegrees
	}
	if c.SitUpUpDegrees <= 0 {
		c.SitUpUpDegrees = def.SitUpUpDegrees
	}
	if c.MovementThreshold <= 0 {
		c.MovementThreshold = def.MovementThreshold
	}
	if c.GroundPercentile <= 0 || c.GroundPercentile > 1 {
		c.GroundPercentile = def.GroundPercentile
	}
	if c.NoseToAnkleRatio <= 0 || c.NoseToAnkleRatio > 1 {
		c.NoseToAnkleRatio = def.NoseToAnkleRatio
	}
	return c
}

// Test ids of the built-in extractors.
const (
	VerticalJumpID = "vertical_jump"
	BroadJumpID    = "broad_jump"
	SitUpsID       = "sit_ups"
	SprintID       = "sprint_30m"
	ShuttleRunID   = "shuttle_run"
)

// DefaultRegistry registers the built-in extractors.
func DefaultRegistry(cfg Config) *Registry {
	cfg = cfg.WithDefaults()
	r := NewRegistry()
	for id, e := range map[string]Extractor{
		VerticalJumpID: NewVerticalJump(cfg),
		BroadJumpID:    NewBroadJump(cfg),
		SitUpsID:       NewSitUps(cfg),
		SprintID:       NewSprint(cfg),
		ShuttleRunID:   NewShuttleRun(cfg),
	} {
		if err := r.Register(id, e); err != nil {
			panic(err)
		}
	}
	return r
}
