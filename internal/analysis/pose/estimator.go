package pose

import (
	"context"
	"errors"
	"image"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/fitanalysis/internal/analysis"
	"github.com/2beens/fitanalysis/internal/analysis/video"
)

//go:generate mockgen -source=$GOFILE -destination=estimator_mocks_test.go -package=pose_test

// Estimator turns one frame into a pose sample.
type Estimator interface {
	Estimate(ctx context.Context, frame *video.Frame) (Sample, error)
	// Name identifies the backend and its version in result provenance.
	Name() string
}

// Detection is one person found by a pose model.
type Detection struct {
	Keypoints []Keypoint
	Score     float64
}

// Model is a loaded pose inference backend.
type Model interface {
	Load(ctx context.Context) error
	Infer(ctx context.Context, img image.Image) ([]Detection, error)
	Version() string
}

// EstimateAll runs est over every frame. The returned series always has one
// sample per frame: a frame whose estimate fails gets an empty sample with
// an unknown subject count.
// Only an expired context aborts the run.
func EstimateAll(ctx context.Context, est Estimator, frames video.Frames) (Series, error) {
	series := make(Series, 0, len(frames))
	for _, f := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sample, err := est.Estimate(ctx, f)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Debugf("pose estimate of frame %d failed: %s", f.Index, err)
			sample = Unknown(f)
			sample.Subjects = UnknownSubjects
		}
		series = append(series, sample)
	}
	return series, nil
}

// Unknown is the explicit "no pose" sample for frame f.
func Unknown(f *video.Frame) Sample {
	return Sample{
		FrameIndex:  f.Index,
		TimestampMs: f.TimestampMs,
		Keypoints:   []Keypoint{},
	}
}

// ModelBackedEstimator delegates to a loaded pose model.
type ModelBackedEstimator struct {
	model          Model
	minPersonScore float64
}

// NewModelBackedEstimator loads model once. A model that cannot be loaded is
// reported as ModelUnavailableError; there is no silent substitute.
func NewModelBackedEstimator(ctx context.Context, model Model, minPersonScore float64) (*ModelBackedEstimator, error) {
	if model == nil {
		return nil, analysis.ModelUnavailableError("no pose model configured", nil)
	}
	if err := model.Load(ctx); err != nil {
		var aErr *analysis.Error
		if errors.As(err, &aErr) {
			return nil, aErr
		}
		return nil, analysis.ModelUnavailableError("pose model load failed", err)
	}
	return &ModelBackedEstimator{
		model:          model,
		minPersonScore: minPersonScore,
	}, nil
}

func (e *ModelBackedEstimator) Name() string {
	return "model:" + e.model.Version()
}

func (e *ModelBackedEstimator) Estimate(ctx context.Context, frame *video.Frame) (Sample, error) {
	img := frame.Image()
	if img == nil {
		return Sample{}, errors.New("frame already released")
	}

	detections, err := e.model.Infer(ctx, img)
	if err != nil {
		return Sample{}, err
	}

	sample := Unknown(frame)
	var best *Detection
	for i := range detections {
		d := &detections[i]
		if d.Score < e.minPersonScore {
			continue
		}
		sample.Subjects++
		if best == nil || d.Score > best.Score {
			best = d
		}
	}
	if best == nil {
		return sample, nil
	}

	sample.Keypoints = append(sample.Keypoints, best.Keypoints...)
	sample.OverallConfidence = MeanConfidence(best.Keypoints)
	return sample, nil
}
