package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/fitanalysis/internal/analysis"
	"github.com/2beens/fitanalysis/internal/analysis/extract"
	"github.com/2beens/fitanalysis/internal/analysis/integrity"
	"github.com/2beens/fitanalysis/internal/analysis/motion"
	"github.com/2beens/fitanalysis/internal/analysis/pose"
	"github.com/2beens/fitanalysis/internal/analysis/video"
)

//go:generate mockgen -source=$GOFILE -destination=context_mocks_test.go -package=pipeline_test

// VideoOpener resolves a video reference into a decodable video.
type VideoOpener interface {
	Open(ctx context.Context, ref string) (video.Video, error)
}

// Settings are the tuning parameters of a pipeline run.
type Settings struct {
	ConfidenceThreshold float64
	Schedule            Schedule
	StageTimeouts       analysis.StageTimeouts
}

func DefaultSettings() Settings {
	return Settings{
		ConfidenceThreshold: analysis.DefaultConfidenceThreshold,
		Schedule:            DefaultSchedule(),
		StageTimeouts: analysis.StageTimeouts{
			Open:       30 * time.Second,
			Sampling:   2 * time.Minute,
			Extracting: 5 * time.Minute,
			Checking:   time.Minute,
		},
	}
}

// AnalysisContext is everything a run needs that is shared between runs:
// loaded model handles, the extractor registry and the frame pool behind the
// sampler. It is built once and only read afterwards, so any number of runs
// may use it concurrently.
type AnalysisContext struct {
	Opener    VideoOpener
	Sampler   *video.Sampler
	Estimator pose.Estimator
	Tracker   motion.Tracker
	Registry  *extract.Registry
	// Checker may be nil, results are then marked as not integrity checked.
	Checker  *integrity.Checker
	Settings Settings
}

func (a *AnalysisContext) Validate() error {
	if a == nil {
		return errors.New("analysis context is nil")
	}
	if a.Opener == nil {
		return errors.New("video opener not set")
	}
	if a.Sampler == nil {
		return errors.New("frame sampler not set")
	}
	if a.Registry == nil {
		return errors.New("extractor registry not set")
	}
	if t := a.Settings.ConfidenceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("confidence threshold %f out of [0,1]", t)
	}
	return a.Settings.Schedule.Validate()
}
