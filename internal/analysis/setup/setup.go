// Package setup builds the shared analysis context from the service config.
package setup

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/fitanalysis/internal/analysis/extract"
	"github.com/2beens/fitanalysis/internal/analysis/integrity"
	"github.com/2beens/fitanalysis/internal/analysis/motion"
	"github.com/2beens/fitanalysis/internal/analysis/pipeline"
	"github.com/2beens/fitanalysis/internal/analysis/pose"
	"github.com/2beens/fitanalysis/internal/analysis/video"
	"github.com/2beens/fitanalysis/internal/config"
)

// Analysis holds the built context together with the frame pool feeding its
// sampler, so callers can export the pool's counters.
type Analysis struct {
	Context *pipeline.AnalysisContext
	Frames  *video.FramePool

	model *pose.HTTPModel
}

// Close releases the model client. The context must not be used afterwards.
func (a *Analysis) Close() {
	if a.model != nil {
		a.model.Close()
	}
}

// Build loads the backends named in cfg. A configured pose model that cannot
// be loaded fails the build; the fallback estimator is only used when no
// model is configured at all.
func Build(ctx context.Context, cfg config.Analysis) (*Analysis, error) {
	opener, err := newOpener(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var (
		httpModel *pose.HTTPModel
		model     pose.Model
	)
	if cfg.PoseModelURL != "" {
		httpModel = pose.NewHTTPModel(cfg.PoseModelURL, cfg.PoseModelName, cfg.PoseModelTimeout)
		model = httpModel
	}

	estimator, err := newEstimator(ctx, cfg, model)
	if err != nil {
		return nil, err
	}

	extractCfg := cfg.Extract.WithDefaults()
	trackerOpts := []motion.TrackerOption{}
	if _, isModel := estimator.(*pose.ModelBackedEstimator); isModel {
		trackerOpts = append(trackerOpts, motion.WithLocator(motion.NewPoseLocator(estimator, extractCfg.MinKeypointConfidence)))
	}

	_, modelEstimator := estimator.(*pose.ModelBackedEstimator)
	checker, err := newChecker(cfg, model, modelEstimator)
	if err != nil {
		return nil, err
	}

	frames := video.NewFramePool()
	actx := &pipeline.AnalysisContext{
		Opener:    opener,
		Sampler:   video.NewSampler(frames),
		Estimator: estimator,
		Tracker:   motion.NewCentroidTracker(trackerOpts...),
		Registry:  extract.DefaultRegistry(extractCfg),
		Checker:   checker,
		Settings:  cfg.Settings(),
	}
	if err := actx.Validate(); err != nil {
		return nil, err
	}

	estimatorName := "none"
	if estimator != nil {
		estimatorName = estimator.Name()
	}
	log.WithFields(log.Fields{
		"estimator": estimatorName,
		"tracker":   actx.Tracker.Name(),
		"detector":  cfg.Detector,
		"tests":     actx.Registry.TestIDs(),
	}).Info("analysis context ready")

	return &Analysis{
		Context: actx,
		Frames:  frames,
		model:   httpModel,
	}, nil
}

func newOpener(ctx context.Context, cfg config.Analysis) (*video.Opener, error) {
	httpFetcher := video.NewHTTPFetcher(cfg.DownloadTimeout, cfg.MaxDownloadBytes)
	opts := []video.OpenerOption{
		video.WithFetcher("http", httpFetcher),
		video.WithFetcher("https", httpFetcher),
	}
	if cfg.FFmpegPath != "" || cfg.FFprobePath != "" {
		opts = append(opts, video.WithFFmpeg(cfg.FFmpegPath, cfg.FFprobePath))
	}
	if cfg.TempDir != "" {
		opts = append(opts, video.WithTempDir(cfg.TempDir))
	}

	if cfg.GCSEnabled {
		var creds []byte
		if cfg.GCSCredentialsPath != "" {
			var err error
			creds, err = os.ReadFile(cfg.GCSCredentialsPath)
			if err != nil {
				return nil, fmt.Errorf("read gcs credentials: %w", err)
			}
		}
		gcsFetcher, err := video.NewGCSFetcher(ctx, creds, cfg.MaxDownloadBytes)
		if err != nil {
			return nil, err
		}
		opts = append(opts, video.WithFetcher("gs", gcsFetcher))
	}

	return video.NewOpener(opts...), nil
}

func newEstimator(ctx context.Context, cfg config.Analysis, model pose.Model) (pose.Estimator, error) {
	if model != nil {
		est, err := pose.NewModelBackedEstimator(ctx, model, cfg.MinPersonScore)
		if err != nil {
			return nil, fmt.Errorf("load pose model [%s]: %w", cfg.PoseModelURL, err)
		}
		return est, nil
	}
	if cfg.FallbackEstimator {
		return pose.NewFallbackEstimator(pose.DefaultFallbackConfig()), nil
	}
	log.Warn("no pose estimator configured, pose tests will fail with ModelUnavailableError")
	return nil, nil
}

// newChecker builds the integrity checker. A model detector next to a
// model-backed estimator shares its model and score floor, so pose runs take
// the subject counts from the estimates.
func newChecker(cfg config.Analysis, model pose.Model, modelEstimator bool) (*integrity.Checker, error) {
	switch cfg.Detector {
	case config.DetectorNone:
		return nil, nil
	case config.DetectorModel:
		if model == nil {
			return nil, fmt.Errorf("detector [%s] needs a pose model", cfg.Detector)
		}
		var opts []integrity.CheckerOption
		if modelEstimator {
			opts = append(opts, integrity.WithPoseSubjectCounts())
		}
		return integrity.NewChecker(integrity.NewModelDetector(model, cfg.MinPersonScore), cfg.Integrity, opts...), nil
	default:
		return integrity.NewChecker(integrity.NewBlobDetector(), cfg.Integrity), nil
	}
}
