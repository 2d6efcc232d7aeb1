// Package pipeline runs one test submission through the analysis stages:
//
//	PENDING -> SAMPLING -> EXTRACTING -> CHECKING -> COMPLETE
//
// A run that fails ends in FAILED with the originating error kind and stage;
// a run whose context is cancelled ends in CANCELLED at the next stage
// boundary. Stages are never interrupted by cancellation, only by their own
// wall-clock budget.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/2beens/fitanalysis/internal/analysis"
	"github.com/2beens/fitanalysis/internal/analysis/extract"
	"github.com/2beens/fitanalysis/internal/analysis/integrity"
	"github.com/2beens/fitanalysis/internal/analysis/motion"
	"github.com/2beens/fitanalysis/internal/analysis/pose"
	"github.com/2beens/fitanalysis/internal/analysis/video"
	"github.com/2beens/fitanalysis/internal/telemetry/tracing"
)

// Request is the input of one run.
type Request struct {
	VideoRef    string
	Descriptor  analysis.TestDescriptor
	Calibration analysis.Calibration
	// Attempt numbers retries of the same submission, starting at 1.
	Attempt int
}

type Pipeline struct {
	actx      *AnalysisContext
	now       func() time.Time
	observers []Observer
}

type Option func(*Pipeline)

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithObserver adds an observer notified of the transitions of every run.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		p.observers = append(p.observers, o)
	}
}

func New(actx *AnalysisContext, opts ...Option) (*Pipeline, error) {
	if err := actx.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis context: %w", err)
	}
	p := &Pipeline{
		actx: actx,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// run is the mutable state of one invocation.
type run struct {
	p         *Pipeline
	req       Request
	observers []Observer
	timeouts  analysis.StageTimeouts

	state     analysis.State
	enteredAt time.Time

	extractor  extract.Extractor
	vid        video.Video
	frames     video.Frames
	frameCount int
	input      extract.Input
	evidence   integrity.Evidence
	measured   analysis.Measurement
	verdict    analysis.Verdict
}

// Run executes a run to its terminal state. It returns the result of a
// COMPLETE run, or an *analysis.Error carrying the kind and the stage of the
// failure. Extra observers only see this run.
func (p *Pipeline) Run(ctx context.Context, req Request, observers ...Observer) (_ analysis.AnalysisResult, err error) {
	ctx, span := tracing.PipelineTracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("test_id", req.Descriptor.ID),
		attribute.Int("attempt", req.Attempt),
	))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	r := &run{
		p:         p,
		req:       req,
		observers: append(append([]Observer(nil), p.observers...), observers...),
		timeouts:  req.Descriptor.StageTimeouts.Merge(p.actx.Settings.StageTimeouts),
	}
	defer r.cleanup()

	r.enter(analysis.StatePending, nil, nil)

	steps := []struct {
		state analysis.State
		fn    func(context.Context) error
	}{
		{analysis.StatePending, r.prepare},
		{analysis.StateSampling, r.sample},
		{analysis.StateExtracting, r.extract},
		{analysis.StateChecking, r.check},
	}
	for _, step := range steps {
		if err := r.stage(ctx, step.state, step.fn); err != nil {
			return analysis.AnalysisResult{}, err
		}
	}
	if err := r.boundary(ctx); err != nil {
		return analysis.AnalysisResult{}, err
	}

	result := r.result()
	r.enter(analysis.StateComplete, nil, &result)
	span.SetAttributes(
		attribute.Float64("raw_value", result.RawValue),
		attribute.Float64("confidence", result.Confidence),
		attribute.Bool("cheat_detected", result.CheatDetected),
	)
	return result, nil
}

// stage moves the run into state and executes fn under the stage budget.
// The stage context does not inherit cancellation from ctx, so a started
// stage always runs to completion or to its deadline.
func (r *run) stage(ctx context.Context, state analysis.State, fn func(context.Context) error) (err error) {
	if err := r.boundary(ctx); err != nil {
		return err
	}
	if r.state != state {
		r.enter(state, nil, nil)
	}

	stageCtx := context.WithoutCancel(ctx)
	budget := r.timeouts.For(state)
	if budget > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(stageCtx, budget)
		defer cancel()
	}

	stageCtx, span := tracing.PipelineTracer.Start(stageCtx, "pipeline.stage."+strings.ToLower(string(state)))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := fn(stageCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && stageCtx.Err() != nil {
			err = analysis.NewError(analysis.KindStageTimeout, fmt.Sprintf("stage exceeded its %s budget", budget), err)
		}
		return r.fail(state, err)
	}
	return nil
}

// boundary observes cancellation between stages.
func (r *run) boundary(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	aErr := &analysis.Error{
		Kind:   analysis.KindCancelled,
		Stage:  r.state,
		Reason: "run cancelled",
		Err:    ctx.Err(),
	}
	r.enter(analysis.StateCancelled, aErr, nil)
	return aErr
}

func (r *run) fail(state analysis.State, err error) error {
	aErr, ok := analysis.AtStage(err, state)
	if !ok {
		aErr = &analysis.Error{
			Kind:  unclassifiedKind(state),
			Stage: state,
			Err:   err,
		}
	}
	r.enter(analysis.StateFailed, aErr, nil)
	return aErr
}

// unclassifiedKind attributes an error that carries no kind of its own to the
// resource the stage depends on: the video before extraction, the analysis
// backends after.
func unclassifiedKind(state analysis.State) analysis.ErrorKind {
	switch state {
	case analysis.StatePending, analysis.StateSampling:
		return analysis.KindDecode
	default:
		return analysis.KindModelUnavailable
	}
}

func (r *run) enter(next analysis.State, aErr *analysis.Error, result *analysis.AnalysisResult) {
	now := r.p.now()
	prev := r.state
	if prev != "" && !prev.CanTransition(next) {
		// only reachable through a bug in the stage sequence
		log.Errorf("pipeline [%s]: illegal transition %s -> %s", r.req.Descriptor.ID, prev, next)
		return
	}

	t := Transition{
		TestID: r.req.Descriptor.ID,
		From:   prev,
		To:     next,
		At:     now,
		Err:    aErr,
		Result: result,
	}
	if prev != "" {
		t.Elapsed = now.Sub(r.enteredAt)
	}
	r.state = next
	r.enteredAt = now

	switch next {
	case analysis.StateFailed:
		log.Warnf("pipeline [%s]: %s -> %s: %s", t.TestID, prev, next, aErr)
	case analysis.StateCancelled:
		log.Infof("pipeline [%s]: cancelled in %s", t.TestID, prev)
	default:
		log.Debugf("pipeline [%s]: %s -> %s", t.TestID, prev, next)
	}

	for _, o := range r.observers {
		o.OnTransition(t)
	}
}

func (r *run) cleanup() {
	r.frames.Release()
	r.frames = nil
	if r.vid != nil {
		if err := r.vid.Close(); err != nil {
			log.Warnf("pipeline [%s]: close video: %s", r.req.Descriptor.ID, err)
		}
		r.vid = nil
	}
}

// prepare resolves everything the run needs before touching the video, so
// a run that can never succeed fails before any decoding.
func (r *run) prepare(ctx context.Context) error {
	d := r.req.Descriptor
	extractor, err := r.p.actx.Registry.Resolve(d)
	if err != nil {
		return err
	}
	if extractor.RequiresCalibration() && !r.req.Calibration.IsSet() {
		return analysis.InsufficientDataError("test [%s] measures a distance and needs a calibration", d.ID)
	}
	switch d.AnalysisKind {
	case analysis.KindPose:
		if r.p.actx.Estimator == nil {
			return analysis.ModelUnavailableError("no pose estimator configured", nil)
		}
	case analysis.KindMotion:
		if r.p.actx.Tracker == nil {
			return analysis.ModelUnavailableError("no motion tracker configured", nil)
		}
	}
	r.extractor = extractor

	vid, err := r.p.actx.Opener.Open(ctx, r.req.VideoRef)
	if err != nil {
		return err
	}
	r.vid = vid
	if vid.Duration() <= 0 {
		return analysis.DecodeError("video [%s] has zero duration", vid.Source())
	}
	return nil
}

func (r *run) sample(ctx context.Context) error {
	r.frameCount = r.p.actx.Settings.Schedule.FrameCount(r.req.Descriptor)
	frames, err := r.p.actx.Sampler.Sample(ctx, r.vid, r.frameCount)
	if err != nil {
		return err
	}
	r.frames = frames
	return nil
}

// extract turns the frames into the test's series and measurement. The frame
// buffers are released when it returns, whatever the outcome.
func (r *run) extract(ctx context.Context) error {
	defer func() {
		r.frames.Release()
	}()

	r.input = extract.Input{
		Descriptor:  r.req.Descriptor,
		Calibration: r.req.Calibration,
		FrameAspect: frameAspect(r.frames),
	}

	switch r.req.Descriptor.AnalysisKind {
	case analysis.KindPose:
		series, err := pose.EstimateAll(ctx, r.p.actx.Estimator, r.frames)
		if err != nil {
			return err
		}
		r.input.Pose = series
	case analysis.KindMotion:
		series, err := r.p.actx.Tracker.Track(ctx, r.frames)
		if err != nil {
			return err
		}
		r.input.Motion = series
	}

	// a pose run has already seen every frame through the model, the
	// checker reuses its subject counts when they come from the same model
	var (
		evidence integrity.Evidence
		err      error
	)
	if r.input.Pose != nil {
		evidence, err = r.p.actx.Checker.CollectWithPose(ctx, r.frames, r.input.Pose)
	} else {
		evidence, err = r.p.actx.Checker.Collect(ctx, r.frames)
	}
	if err != nil {
		return err
	}
	r.evidence = evidence

	measured, err := r.extractor.Extract(ctx, r.input)
	if err != nil {
		return err
	}
	r.measured = measured
	return nil
}

func (r *run) check(ctx context.Context) error {
	verdict, err := r.p.actx.Checker.Check(ctx, r.evidence, integrity.Observations{
		TestID: r.req.Descriptor.ID,
		Pose:   r.input.Pose,
		Motion: r.input.Motion,
	})
	if err != nil {
		return err
	}
	r.verdict = verdict
	return nil
}

func (r *run) result() analysis.AnalysisResult {
	prov := analysis.Provenance{
		Checker:    r.p.actx.Checker.Name(),
		FrameCount: len(r.evidence.Digests),
		Attempt:    max(1, r.req.Attempt),
	}
	switch r.req.Descriptor.AnalysisKind {
	case analysis.KindPose:
		prov.Estimator = r.p.actx.Estimator.Name()
	case analysis.KindMotion:
		prov.Tracker = r.p.actx.Tracker.Name()
	}

	return analysis.NewAnalysisResult(
		r.req.Descriptor,
		r.extractor.MetricName(),
		r.measured,
		r.verdict,
		r.p.actx.Settings.ConfidenceThreshold,
		prov,
		r.p.now(),
	)
}

func frameAspect(frames video.Frames) float64 {
	for _, f := range frames {
		img := f.Image()
		if img == nil {
			continue
		}
		b := img.Bounds()
		if b.Dy() > 0 {
			return float64(b.Dx()) / float64(b.Dy())
		}
	}
	return 1
}

// compile-time interface checks
var (
	_ pose.Estimator = (*pose.FallbackEstimator)(nil)
	_ motion.Tracker = (*motion.CentroidTracker)(nil)
	_ VideoOpener    = (*video.Opener)(nil)
)
