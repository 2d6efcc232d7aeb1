package extract

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/2beens/fitanalysis/internal/analysis"
	"github.com/2beens/fitanalysis/internal/analysis/motion"
)

// Sprint measures the time from the start of movement to the last frame.
type Sprint struct {
	cfg Config
}

func NewSprint(cfg Config) *Sprint {
	return &Sprint{cfg: cfg.WithDefaults()}
}

func (e *Sprint) Kind() analysis.AnalysisKind { return analysis.KindMotion }
func (e *Sprint) MetricName() string          { return "elapsed_time" }
func (e *Sprint) RequiresCalibration() bool   { return false }

func (e *Sprint) Extract(_ context.Context, in Input) (analysis.Measurement, error) {
	series := in.Motion
	if len(series) == 0 {
		return analysis.Measurement{}, nil
	}

	start := -1
	for i, s := range series {
		if s.Speed > e.cfg.MovementThreshold {
			start = i
			break
		}
	}
	if start < 0 {
		return analysis.Measurement{}, nil
	}

	elapsed := float64(series[len(series)-1].TimestampMs-series[start].TimestampMs) / 1000

	var directions, speeds []float64
	for _, s := range series[start:] {
		if s.Speed > e.cfg.MovementThreshold {
			directions = append(directions, s.Direction)
			speeds = append(speeds, s.Speed)
		}
	}

	details := map[string]float64{
		"start_ms":         float64(series[start].TimestampMs),
		"mean_speed_units": stat.Mean(speeds, nil),
		"consistency":      MeanResultantLength(directions),
	}
	if in.Descriptor.DistanceMeters > 0 && elapsed > 0 {
		details["speed_mps"] = in.Descriptor.DistanceMeters / elapsed
	}

	return analysis.Measurement{
		Value:      elapsed,
		Confidence: MeanResultantLength(directions) * series.TrackedFraction(),
		Details:    details,
	}, nil
}

// MeanResultantLength is the length of the mean unit vector of the given
// directions (degrees): 1 when all agree, near 0 when they scatter.
func MeanResultantLength(degrees []float64) float64 {
	if len(degrees) == 0 {
		return 0
	}
	var sumSin, sumCos float64
	for _, d := range degrees {
		rad := d * math.Pi / 180
		sumSin += math.Sin(rad)
		sumCos += math.Cos(rad)
	}
	n := float64(len(degrees))
	return math.Min(1, math.Hypot(sumSin, sumCos)/n)
}

// ShuttleRun measures the total time of the series and how often the
// athlete changes direction and pace.
type ShuttleRun struct {
	cfg Config
}

func NewShuttleRun(cfg Config) *ShuttleRun {
	return &ShuttleRun{cfg: cfg.WithDefaults()}
}

func (e *ShuttleRun) Kind() analysis.AnalysisKind { return analysis.KindMotion }
func (e *ShuttleRun) MetricName() string          { return "elapsed_time" }
func (e *ShuttleRun) RequiresCalibration() bool   { return false }

func (e *ShuttleRun) Extract(_ context.Context, in Input) (analysis.Measurement, error) {
	series := in.Motion
	if len(series) == 0 {
		return analysis.Measurement{}, nil
	}

	elapsed := float64(series[len(series)-1].TimestampMs-series[0].TimestampMs) / 1000
	reversals := DirectionReversals(series, e.cfg.MovementThreshold)
	signChanges := AccelerationSignChanges(series)

	return analysis.Measurement{
		Value:      elapsed,
		Confidence: series.TrackedFraction(),
		Details: map[string]float64{
			"agility":          float64(reversals+signChanges) / float64(len(series)),
			"reversals":        float64(reversals),
			"pace_changes":     float64(signChanges),
			"tracked_fraction": series.TrackedFraction(),
		},
	}, nil
}

// DirectionReversals counts turns of more than 90 degrees between
// consecutive moving samples.
func DirectionReversals(series motion.Series, minSpeed float64) int {
	reversals := 0
	prev := -1.0
	for _, s := range series {
		if s.Speed <= minSpeed {
			continue
		}
		if prev >= 0 && AngleBetween(prev, s.Direction) > 90 {
			reversals++
		}
		prev = s.Direction
	}
	return reversals
}

// AccelerationSignChanges counts sign flips of the non-zero accelerations.
func AccelerationSignChanges(series motion.Series) int {
	changes := 0
	prevSign := 0
	for _, s := range series {
		sign := 0
		switch {
		case s.Acceleration > 0:
			sign = 1
		case s.Acceleration < 0:
			sign = -1
		}
		if sign == 0 {
			continue
		}
		if prevSign != 0 && sign != prevSign {
			changes++
		}
		prevSign = sign
	}
	return changes
}

// AngleBetween is the smallest absolute difference of two directions.
func AngleBetween(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}
