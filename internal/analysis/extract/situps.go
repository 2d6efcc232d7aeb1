package extract

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/2beens/fitanalysis/internal/analysis"
	"github.com/2beens/fitanalysis/internal/analysis/pose"
)

// TorsoInclination is the shoulder-to-hip angle above horizontal in degrees,
// 0 lying flat and 90 sitting upright.
func TorsoInclination(s pose.Sample, minConf float64) (float64, bool) {
	sx, sy, ok := s.Center(minConf, pose.LeftShoulder, pose.RightShoulder)
	if !ok {
		return 0, false
	}
	hx, hy, ok := s.Center(minConf, pose.LeftHip, pose.RightHip)
	if !ok {
		return 0, false
	}
	if sx == hx && sy == hy {
		return 0, false
	}
	return math.Atan2(math.Abs(hy-sy), math.Abs(hx-sx)) * 180 / math.Pi, true
}

type repPhase int

const (
	phaseUnknown repPhase = iota
	phaseDown
	phaseUp
)

// RepCounter counts repetitions of a movement that swings between a low and
// a high angle. A repetition is a DOWN to UP transition; the band between
// the two thresholds never changes the state.
type RepCounter struct {
	down, up float64
	phase    repPhase
	count    int
}

func NewRepCounter(downDegrees, upDegrees float64) *RepCounter {
	return &RepCounter{down: downDegrees, up: upDegrees}
}

// Observe feeds the next angle and returns the repetitions so far.
func (c *RepCounter) Observe(angle float64) int {
	switch {
	case angle <= c.down:
		c.phase = phaseDown
	case angle >= c.up:
		if c.phase == phaseDown {
			c.count++
		}
		c.phase = phaseUp
	}
	return c.count
}

func (c *RepCounter) Count() int {
	return c.count
}

// SitUps counts completed sit-ups from the torso inclination.
type SitUps struct {
	cfg Config
}

func NewSitUps(cfg Config) *SitUps {
	return &SitUps{cfg: cfg.WithDefaults()}
}

func (e *SitUps) Kind() analysis.AnalysisKind { return analysis.KindPose }
func (e *SitUps) MetricName() string          { return "repetitions" }
func (e *SitUps) RequiresCalibration() bool   { return false }

func (e *SitUps) Extract(_ context.Context, in Input) (analysis.Measurement, error) {
	if len(in.Pose) == 0 {
		return analysis.Measurement{}, nil
	}

	counter := NewRepCounter(e.cfg.SitUpDownDegrees, e.cfg.SitUpUpDegrees)
	var angles, confidences []float64
	for _, s := range in.Pose {
		if !s.Detected() {
			continue
		}
		angle, ok := TorsoInclination(s, e.cfg.MinKeypointConfidence)
		if !ok {
			continue
		}
		counter.Observe(angle)
		angles = append(angles, angle)
		confidences = append(confidences, s.OverallConfidence)
	}
	if len(angles) == 0 {
		return analysis.Measurement{}, nil
	}

	coverage := float64(len(angles)) / float64(len(in.Pose))
	return analysis.Measurement{
		Value:      float64(counter.Count()),
		Confidence: stat.Mean(confidences, nil) * coverage,
		Details: map[string]float64{
			"min_inclination": floats.Min(angles),
			"max_inclination": floats.Max(angles),
			"measured_frames": float64(len(angles)),
		},
	}, nil
}
