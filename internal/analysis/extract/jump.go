package extract

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/2beens/fitanalysis/internal/analysis"
	"github.com/2beens/fitanalysis/internal/analysis/pose"
)

// VerticalJump measures jump height as the rise of the hip above its
// standing level.
type VerticalJump struct {
	cfg Config
}

func NewVerticalJump(cfg Config) *VerticalJump {
	return &VerticalJump{cfg: cfg.WithDefaults()}
}

func (j *VerticalJump) Kind() analysis.AnalysisKind { return analysis.KindPose }
func (j *VerticalJump) MetricName() string          { return "jump_height" }
func (j *VerticalJump) RequiresCalibration() bool   { return true }

func (j *VerticalJump) Extract(_ context.Context, in Input) (analysis.Measurement, error) {
	minConf := j.cfg.MinKeypointConfidence

	var ys, confidences []float64
	for _, s := range in.Pose {
		if !s.Detected() {
			continue
		}
		y, ok := hipOrAnkleY(s, minConf)
		if !ok {
			continue
		}
		ys = append(ys, y)
		confidences = append(confidences, s.OverallConfidence)
	}
	if len(ys) == 0 {
		return analysis.Measurement{}, nil
	}

	scale, err := cmPerUnit(in.Calibration, in.Pose, minConf, j.cfg.NoseToAnkleRatio)
	if err != nil {
		return analysis.Measurement{}, err
	}

	sorted := append([]float64(nil), ys...)
	sort.Float64s(sorted)
	// y grows downwards: the standing level is a high percentile of y
	ground := stat.Quantile(j.cfg.GroundPercentile, stat.Empirical, sorted, nil)
	peak := sorted[0]
	rise := math.Max(0, ground-peak)

	return analysis.Measurement{
		Value:      rise * scale,
		Confidence: stat.Mean(confidences, nil),
		Details: map[string]float64{
			"ground_y":        ground,
			"peak_y":          peak,
			"rise_units":      rise,
			"cm_per_unit":     scale,
			"detected_frames": float64(len(ys)),
		},
	}, nil
}

func hipOrAnkleY(s pose.Sample, minConf float64) (float64, bool) {
	if _, y, ok := s.Center(minConf, pose.LeftHip, pose.RightHip); ok {
		return y, true
	}
	_, y, ok := s.Center(minConf, pose.LeftAnkle, pose.RightAnkle)
	return y, ok
}

// cmPerUnit returns the scale of one normalized unit (frame height) in cm:
// the explicit factor, or one derived from the athlete's stature and the
// median nose-to-ankle span seen in the recording.
func cmPerUnit(c analysis.Calibration, series pose.Series, minConf, noseToAnkle float64) (float64, error) {
	if c.CmPerUnit > 0 {
		return c.CmPerUnit, nil
	}
	if c.SubjectHeightCm <= 0 {
		return 0, analysis.InsufficientDataError("distance measurement needs a calibration factor or the athlete's height")
	}

	var spans []float64
	for _, s := range series {
		if !s.Detected() {
			continue
		}
		nose, ok := s.Keypoint(pose.Nose, minConf)
		if !ok {
			continue
		}
		_, ankleY, ok := s.Center(minConf, pose.LeftAnkle, pose.RightAnkle)
		if !ok {
			continue
		}
		if span := ankleY - nose.Y; span > 0 {
			spans = append(spans, span)
		}
	}
	if len(spans) == 0 {
		return 0, analysis.InsufficientDataError("athlete's full body never visible, cannot derive scale from height")
	}
	sort.Float64s(spans)
	span := stat.Quantile(0.5, stat.Empirical, spans, nil)
	return c.SubjectHeightCm * noseToAnkle / span, nil
}

// BroadJump measures the horizontal ankle displacement between the take-off
// stance and the landing.
type BroadJump struct {
	cfg Config
}

func NewBroadJump(cfg Config) *BroadJump {
	return &BroadJump{cfg: cfg.WithDefaults()}
}

func (j *BroadJump) Kind() analysis.AnalysisKind { return analysis.KindPose }
func (j *BroadJump) MetricName() string          { return "jump_distance" }
func (j *BroadJump) RequiresCalibration() bool   { return true }

func (j *BroadJump) Extract(_ context.Context, in Input) (analysis.Measurement, error) {
	minConf := j.cfg.MinKeypointConfidence

	var xs, confidences []float64
	for _, s := range in.Pose {
		if !s.Detected() {
			continue
		}
		x, _, ok := s.Center(minConf, pose.LeftAnkle, pose.RightAnkle)
		if !ok {
			continue
		}
		xs = append(xs, x)
		confidences = append(confidences, s.OverallConfidence)
	}
	if len(xs) == 0 {
		return analysis.Measurement{}, nil
	}

	scale, err := cmPerUnit(in.Calibration, in.Pose, minConf, j.cfg.NoseToAnkleRatio)
	if err != nil {
		return analysis.Measurement{}, err
	}

	aspect := in.FrameAspect
	if aspect <= 0 {
		aspect = 1
	}
	takeoff, landing := xs[0], xs[len(xs)-1]
	displacement := math.Abs(landing-takeoff) * aspect

	return analysis.Measurement{
		Value:      displacement * scale,
		Confidence: stat.Mean(confidences, nil),
		Details: map[string]float64{
			"takeoff_x":       takeoff,
			"landing_x":       landing,
			"cm_per_unit":     scale,
			"detected_frames": float64(len(xs)),
		},
	}, nil
}
