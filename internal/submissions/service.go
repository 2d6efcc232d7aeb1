package submissions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/fitanalysis/internal/analysis"
	"github.com/2beens/fitanalysis/internal/analysis/pipeline"
	"github.com/2beens/fitanalysis/internal/telemetry/metrics"
	"github.com/2beens/fitanalysis/internal/telemetry/tracing"
)

//go:generate mockgen -source=$GOFILE -destination=service_mocks_test.go -package=submissions

type submissionsRepo interface {
	Add(ctx context.Context, s *Submission) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Submission, error)
	UpdateStatus(ctx context.Context, id string, upd StatusUpdate) error
	SaveResult(ctx context.Context, id string, attempt int, res analysis.AnalysisResult) error
	StartRetry(ctx context.Context, id string, at time.Time) (*Submission, error)
	LatestResult(ctx context.Context, submissionID string) (*StoredResult, error)
	ListAthleteResults(ctx context.Context, athleteID string, page, size int) ([]*StoredResult, error)
	CountAthleteResults(ctx context.Context, athleteID string) (int, error)
	ListFlaggedResults(ctx context.Context, page, size int) ([]*StoredResult, error)
	CountFlaggedResults(ctx context.Context) (int, error)
	ResultStats(ctx context.Context) (*ResultStats, error)
}

type progressStore interface {
	Set(ctx context.Context, p Progress) error
	Get(ctx context.Context, submissionID string) (*Progress, error)
	Delete(ctx context.Context, submissionID string) error
}

type analysisRunner interface {
	Run(ctx context.Context, req pipeline.Request, observers ...pipeline.Observer) (analysis.AnalysisResult, error)
}

const persistTimeout = 10 * time.Second

type ServiceConfig struct {
	Workers   int
	QueueSize int
}

type job struct {
	ctx        context.Context
	submission Submission
	descriptor analysis.TestDescriptor
}

// Service accepts submissions and runs them on a bounded pool of workers.
// Every queued or running submission owns a cancel func, so it can be
// cancelled by id until its run reaches a terminal state.
type Service struct {
	repo     submissionsRepo
	progress progressStore
	cache    *ResultCache
	runner   analysisRunner
	catalog  *analysis.Catalog
	metrics  *metrics.Manager

	workers int
	queue   chan job
	now     func() time.Time
	newID   func() string

	mu       sync.Mutex
	inFlight map[string]context.CancelFunc

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

func NewService(
	repo submissionsRepo,
	progress progressStore,
	cache *ResultCache,
	runner analysisRunner,
	catalog *analysis.Catalog,
	metricsManager *metrics.Manager,
	cfg ServiceConfig,
) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers
	}
	baseCtx, stop := context.WithCancel(context.Background())
	return &Service{
		repo:     repo,
		progress: progress,
		cache:    cache,
		runner:   runner,
		catalog:  catalog,
		metrics:  metricsManager,
		workers:  cfg.Workers,
		queue:    make(chan job, cfg.QueueSize),
		now:      time.Now,
		newID:    uuid.NewString,
		inFlight: make(map[string]context.CancelFunc),
		baseCtx:  baseCtx,
		stop:     stop,
	}
}

func (s *Service) Start() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.worker()
		}()
	}
	log.Debugf("submissions service started with %d workers", s.workers)
}

// Stop cancels every queued and running submission and waits for the
// workers to record their outcome.
func (s *Service) Stop() {
	s.stop()
	s.wg.Wait()
	log.Debugln("submissions service stopped")
}

func (s *Service) worker() {
	for {
		select {
		case <-s.baseCtx.Done():
			s.drain()
			return
		case j := <-s.queue:
			s.process(j)
		}
	}
}

// drain records the jobs left in the queue on shutdown as cancelled.
func (s *Service) drain() {
	for {
		select {
		case j := <-s.queue:
			s.process(j)
		default:
			return
		}
	}
}

// InFlight returns the ids of the submissions owned by this process.
func (s *Service) InFlight() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.inFlight))
	for id := range s.inFlight {
		ids = append(ids, id)
	}
	return ids
}

func (s *Service) Tests() []analysis.TestDescriptor {
	return s.catalog.All()
}

func (s *Service) Submit(ctx context.Context, n NewSubmission) (_ *Submission, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.submissions.submit")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("test_id", n.TestID))

	if err := n.Validate(); err != nil {
		return nil, err
	}
	descriptor, err := s.catalog.Get(n.TestID)
	if err != nil {
		return nil, err
	}
	if descriptor.AnalysisKind == analysis.KindNone {
		return nil, analysis.UnsupportedTestError(descriptor.ID)
	}

	now := s.now().UTC()
	sub := &Submission{
		ID:          s.newID(),
		AthleteID:   n.AthleteID,
		TestID:      n.TestID,
		VideoRef:    n.VideoRef,
		Calibration: n.Calibration,
		Status:      StatusQueued,
		Attempt:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Add(ctx, sub); err != nil {
		return nil, fmt.Errorf("add submission: %w", err)
	}

	if err := s.enqueue(ctx, *sub, descriptor); err != nil {
		if delErr := s.repo.Delete(ctx, sub.ID); delErr != nil {
			log.Errorf("delete unqueued submission [%s]: %s", sub.ID, delErr)
		}
		return nil, err
	}

	s.metrics.CounterSubmissions.WithLabelValues(sub.TestID).Inc()
	return sub, nil
}

func (s *Service) enqueue(ctx context.Context, sub Submission, descriptor analysis.TestDescriptor) error {
	jobCtx, cancel := context.WithCancel(s.baseCtx)

	s.mu.Lock()
	s.inFlight[sub.ID] = cancel
	s.mu.Unlock()

	s.saveProgress(ctx, Progress{
		SubmissionID: sub.ID,
		Attempt:      sub.Attempt,
		Status:       StatusQueued,
		UpdatedAt:    sub.UpdatedAt,
	})

	select {
	case s.queue <- job{ctx: jobCtx, submission: sub, descriptor: descriptor}:
		return nil
	default:
		s.release(sub.ID)
		if err := s.progress.Delete(ctx, sub.ID); err != nil {
			log.Errorf("delete progress of unqueued [%s]: %s", sub.ID, err)
		}
		return ErrQueueFull
	}
}

func (s *Service) release(id string) {
	s.mu.Lock()
	cancel, ok := s.inFlight[id]
	delete(s.inFlight, id)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *Service) process(j job) {
	sub := j.submission
	defer s.release(sub.ID)

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(j.ctx), persistTimeout)
	err := s.repo.UpdateStatus(persistCtx, sub.ID, StatusUpdate{
		Status:  StatusRunning,
		Attempt: sub.Attempt,
		At:      s.now().UTC(),
	})
	cancel()
	if err != nil {
		log.Errorf("mark submission [%s] running: %s", sub.ID, err)
	}

	progress := pipeline.ObserverFunc(func(t pipeline.Transition) {
		p := Progress{
			SubmissionID: sub.ID,
			Attempt:      sub.Attempt,
			Status:       statusFor(t.To),
			State:        t.To,
			Failure:      failureFrom(t.Err),
			UpdatedAt:    t.At.UTC(),
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(j.ctx), persistTimeout)
		defer cancel()
		s.saveProgress(ctx, p)
	})

	result, runErr := s.runner.Run(j.ctx, pipeline.Request{
		VideoRef:    sub.VideoRef,
		Descriptor:  j.descriptor,
		Calibration: sub.Calibration,
		Attempt:     sub.Attempt,
	}, progress)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(j.ctx), persistTimeout)
	defer cancel()
	s.recordOutcome(ctx, sub, result, runErr)
}

func (s *Service) recordOutcome(ctx context.Context, sub Submission, result analysis.AnalysisResult, runErr error) {
	logger := log.WithFields(log.Fields{
		"submission": sub.ID,
		"test_id":    sub.TestID,
		"attempt":    sub.Attempt,
	})

	if runErr == nil {
		if err := s.repo.SaveResult(ctx, sub.ID, sub.Attempt, result); err != nil {
			logger.WithError(err).Error("save analysis result")
			return
		}
		sub.Status = StatusCompleted
		sub.UpdatedAt = result.AnalysisTimestamp
		s.cache.Set(newView(&sub, &StoredResult{
			SubmissionID: sub.ID,
			AthleteID:    sub.AthleteID,
			Attempt:      sub.Attempt,
			Result:       result,
		}))
		logger.WithFields(log.Fields{
			"value":    result.RawValue,
			"is_valid": result.IsValid,
			"cheat":    result.CheatDetected,
		}).Info("analysis completed")
		return
	}

	status := StatusFailed
	failure := &Failure{Kind: "InternalError", Reason: runErr.Error()}
	if aErr, ok := analysis.AsError(runErr); ok {
		failure = failureFrom(aErr)
		if aErr.Kind == analysis.KindCancelled {
			status = StatusCancelled
		}
	}

	sub.Status = status
	sub.Failure = failure
	sub.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateStatus(ctx, sub.ID, StatusUpdate{
		Status:  status,
		Attempt: sub.Attempt,
		Failure: failure,
		At:      sub.UpdatedAt,
	}); err != nil {
		logger.WithError(err).Error("record analysis failure")
		return
	}
	s.cache.Set(newView(&sub, nil))
	logger.WithFields(log.Fields{
		"kind":  failure.Kind,
		"stage": failure.Stage,
	}).Warnf("analysis ended %s: %s", status, failure.Reason)
}

func (s *Service) saveProgress(ctx context.Context, p Progress) {
	if err := s.progress.Set(ctx, p); err != nil {
		log.Errorf("save progress of [%s]: %s", p.SubmissionID, err)
	}
}

func (s *Service) Get(ctx context.Context, id string) (_ *View, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.submissions.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if view, ok := s.cache.Get(id); ok {
		span.SetAttributes(attribute.Bool("cached", true))
		return view, nil
	}

	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var latest *StoredResult
	if sub.Status == StatusCompleted {
		latest, err = s.repo.LatestResult(ctx, id)
		if err != nil && !errors.Is(err, ErrResultNotFound) {
			return nil, err
		}
	}

	view := newView(sub, latest)
	s.cache.Set(view)
	return view, nil
}

// Progress returns the live state of a submission, falling back to its
// stored status once the live entry has expired.
func (s *Service) Progress(ctx context.Context, id string) (_ *Progress, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.submissions.progress")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	p, err := s.progress.Get(ctx, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrProgressNotFound) {
		log.Errorf("get progress of [%s]: %s", id, err)
	}

	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Progress{
		SubmissionID: sub.ID,
		Attempt:      sub.Attempt,
		Status:       sub.Status,
		Failure:      sub.Failure,
		UpdatedAt:    sub.UpdatedAt,
	}, nil
}

// Retry queues a failed or cancelled submission again under a new attempt.
// Nothing of the previous attempt is reused.
func (s *Service) Retry(ctx context.Context, id string) (_ *Submission, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.submissions.retry")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	s.mu.Lock()
	_, running := s.inFlight[id]
	s.mu.Unlock()
	if running {
		return nil, ErrNotRetryable
	}

	sub, err := s.repo.StartRetry(ctx, id, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.cache.Evict(id)
	span.SetAttributes(attribute.Int("attempt", sub.Attempt))

	descriptor, err := s.catalog.Get(sub.TestID)
	if err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, *sub, descriptor); err != nil {
		if updErr := s.repo.UpdateStatus(ctx, sub.ID, StatusUpdate{
			Status:  StatusCancelled,
			Attempt: sub.Attempt,
			Failure: &Failure{Kind: string(analysis.KindCancelled), Reason: err.Error()},
			At:      s.now().UTC(),
		}); updErr != nil {
			log.Errorf("record unqueued retry of [%s]: %s", sub.ID, updErr)
		}
		return nil, err
	}
	return sub, nil
}

// Cancel requests cancellation of a queued or running submission. The run
// observes it at its next stage boundary.
func (s *Service) Cancel(ctx context.Context, id string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.submissions.cancel")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	s.mu.Lock()
	cancel, ok := s.inFlight[id]
	s.mu.Unlock()
	if ok {
		cancel()
		return nil
	}

	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if sub.Status.IsTerminal() {
		return ErrAlreadyFinished
	}
	// queued or running on another replica, or orphaned
	return ErrNotCancellable
}

func (s *Service) AthleteResults(ctx context.Context, athleteID string, page, size int) (_ *ResultsPage, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.submissions.athleteresults")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	results, err := s.repo.ListAthleteResults(ctx, athleteID, page, size)
	if err != nil {
		return nil, fmt.Errorf("list athlete results: %w", err)
	}
	total, err := s.repo.CountAthleteResults(ctx, athleteID)
	if err != nil {
		return nil, fmt.Errorf("count athlete results: %w", err)
	}
	return &ResultsPage{
		Results: results,
		Total:   total,
		Page:    page,
		Size:    size,
	}, nil
}

// FlaggedResults pages through the results a reviewer has to look at.
func (s *Service) FlaggedResults(ctx context.Context, page, size int) (_ *ResultsPage, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.submissions.flaggedresults")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	results, err := s.repo.ListFlaggedResults(ctx, page, size)
	if err != nil {
		return nil, fmt.Errorf("list flagged results: %w", err)
	}
	total, err := s.repo.CountFlaggedResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("count flagged results: %w", err)
	}
	return &ResultsPage{
		Results: results,
		Total:   total,
		Page:    page,
		Size:    size,
	}, nil
}

func (s *Service) Stats(ctx context.Context) (_ *ResultStats, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.submissions.stats")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	stats, err := s.repo.ResultStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("result stats: %w", err)
	}
	stats.GeneratedAt = s.now().UTC()
	return stats, nil
}
