package submissions

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/fitanalysis/internal/analysis"
	"github.com/2beens/fitanalysis/internal/telemetry/metrics"
)

//go:generate mockgen -source=$GOFILE -destination=reaper_mocks_test.go -package=submissions

type staleRepo interface {
	FailStale(ctx context.Context, before time.Time, skip []string, failure Failure, at time.Time) ([]string, error)
}

// Reaper fails submissions left queued or running by a process that died.
// Runs owned by this process are never reaped.
type Reaper struct {
	repo       staleRepo
	inFlight   func() []string
	staleAfter time.Duration
	metrics    *metrics.Manager
	now        func() time.Time
	cron       *cron.Cron
}

func NewReaper(repo staleRepo, inFlight func() []string, staleAfter time.Duration, metricsManager *metrics.Manager) *Reaper {
	return &Reaper{
		repo:       repo,
		inFlight:   inFlight,
		staleAfter: staleAfter,
		metrics:    metricsManager,
		now:        time.Now,
	}
}

// Start runs Reap on the given cron schedule, e.g. "@every 5m".
func (r *Reaper) Start(schedule string) error {
	c := cron.New()
	if err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := r.Reap(ctx); err != nil {
			log.Errorf("reap stale submissions: %s", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid reaper schedule [%s]: %w", schedule, err)
	}
	c.Start()
	r.cron = c
	return nil
}

func (r *Reaper) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

func (r *Reaper) Reap(ctx context.Context) (int, error) {
	now := r.now().UTC()
	ids, err := r.repo.FailStale(ctx, now.Add(-r.staleAfter), r.inFlight(), Failure{
		Kind:   string(analysis.KindStageTimeout),
		Reason: fmt.Sprintf("run abandoned, no progress for %s", r.staleAfter),
	}, now)
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		r.metrics.CounterReapedSubmissions.Add(float64(len(ids)))
		log.Warnf("reaped %d stale submissions: %v", len(ids), ids)
	}
	return len(ids), nil
}
