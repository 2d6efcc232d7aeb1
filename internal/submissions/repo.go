package submissions

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/fitanalysis/internal/analysis"
	"github.com/2beens/fitanalysis/internal/telemetry/tracing"
	"github.com/2beens/fitanalysis/pkg"
)

//go:embed schema.sql
var Schema string

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// EnsureSchema creates the tables when missing.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, Schema)
	return err
}

func (r *Repo) Add(ctx context.Context, s *Submission) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.submissions.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	_, err = r.db.Exec(ctx, `
		INSERT INTO submission (id, athlete_id, test_id, video_ref, cm_per_unit, subject_height_cm, status, attempt, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		s.ID, s.AthleteID, s.TestID, s.VideoRef,
		s.Calibration.CmPerUnit, s.Calibration.SubjectHeightCm,
		s.Status, s.Attempt,
		s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (r *Repo) Delete(ctx context.Context, id string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.submissions.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(ctx, `DELETE FROM submission WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

const submissionColumns = `id, athlete_id, test_id, video_ref, cm_per_unit, subject_height_cm, status, attempt, failure, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*Submission, error) {
	s := &Submission{}
	err := row.Scan(
		&s.ID, &s.AthleteID, &s.TestID, &s.VideoRef,
		&s.Calibration.CmPerUnit, &s.Calibration.SubjectHeightCm,
		&s.Status, &s.Attempt, &s.Failure,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Repo) Get(ctx context.Context, id string) (_ *Submission, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.submissions.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	s, err := scanSubmission(r.db.QueryRow(ctx, `
		SELECT `+submissionColumns+`
		FROM submission
		WHERE id = $1
	`, id))
	if pkg.IsNoRowsError(err) {
		return nil, ErrSubmissionNotFound
	}
	return s, err
}

// UpdateStatus changes the status of the given attempt only, so a late
// update of a superseded attempt is a no-op.
func (r *Repo) UpdateStatus(ctx context.Context, id string, upd StatusUpdate) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.submissions.updatestatus")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("status", string(upd.Status)))

	tag, err := r.db.Exec(ctx, `
		UPDATE submission
		SET status = $3, failure = $4, updated_at = $5
		WHERE id = $1 AND attempt = $2
	`, id, upd.Attempt, upd.Status, upd.Failure, upd.At)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

// SaveResult stores the result of an attempt and completes the submission.
func (r *Repo) SaveResult(ctx context.Context, id string, attempt int, res analysis.AnalysisResult) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.submissions.saveresult")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				err = fmt.Errorf("failed to rollback transaction: %w: %w", rollbackErr, err)
			}
		} else {
			err = tx.Commit(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, `
		UPDATE submission
		SET status = $3, failure = NULL, updated_at = $4
		WHERE id = $1 AND attempt = $2
	`, id, attempt, StatusCompleted, res.AnalysisTimestamp)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSubmissionNotFound
	}

	reasons := res.CheatReasons
	if reasons == nil {
		reasons = []string{}
	}
	details := res.Details
	if details == nil {
		details = map[string]float64{}
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO analysis_result (
			submission_id, attempt, test_id, metric_name, unit, raw_value, confidence, is_valid,
			cheat_detected, cheat_reasons, integrity_checked, details, provenance, analyzed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		id, attempt, res.TestID, res.MetricName, res.Unit, res.RawValue, res.Confidence, res.IsValid,
		res.CheatDetected, reasons, res.IntegrityChecked, details, res.Provenance, res.AnalysisTimestamp,
	)
	switch {
	case pkg.IsUniqueViolationError(err):
		return fmt.Errorf("%w: attempt %d already has a result", ErrAlreadyFinished, attempt)
	case pkg.IsForeignKeyViolationError(err):
		return ErrSubmissionNotFound
	}
	return err
}

// StartRetry bumps the attempt of a failed or cancelled submission and
// queues it again.
func (r *Repo) StartRetry(ctx context.Context, id string, at time.Time) (_ *Submission, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.submissions.startretry")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	s, err := scanSubmission(r.db.QueryRow(ctx, `
		UPDATE submission
		SET attempt = attempt + 1, status = $2, failure = NULL, updated_at = $3
		WHERE id = $1 AND status IN ($4, $5)
		RETURNING `+submissionColumns,
		id, StatusQueued, at, StatusFailed, StatusCancelled,
	))
	if err == nil {
		return s, nil
	}
	if !pkg.IsNoRowsError(err) {
		return nil, err
	}

	if _, getErr := r.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrNotRetryable
}

const resultColumns = `r.id, r.submission_id, s.athlete_id, r.attempt, r.test_id, r.metric_name, r.unit, r.raw_value,
	r.confidence, r.is_valid, r.cheat_detected, r.cheat_reasons, r.integrity_checked, r.details, r.provenance, r.analyzed_at`

func scanResult(row rowScanner) (*StoredResult, error) {
	sr := &StoredResult{}
	res := &sr.Result
	err := row.Scan(
		&sr.ID, &sr.SubmissionID, &sr.AthleteID, &sr.Attempt,
		&res.TestID, &res.MetricName, &res.Unit, &res.RawValue,
		&res.Confidence, &res.IsValid, &res.CheatDetected, &res.CheatReasons,
		&res.IntegrityChecked, &res.Details, &res.Provenance, &res.AnalysisTimestamp,
	)
	if err != nil {
		return nil, err
	}
	res.AnalysisTimestamp = res.AnalysisTimestamp.UTC()
	return sr, nil
}

func (r *Repo) LatestResult(ctx context.Context, submissionID string) (_ *StoredResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.submissions.latestresult")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	sr, err := scanResult(r.db.QueryRow(ctx, `
		SELECT `+resultColumns+`
		FROM analysis_result r
		JOIN submission s ON s.id = r.submission_id
		WHERE r.submission_id = $1
		ORDER BY r.attempt DESC
		LIMIT 1
	`, submissionID))
	if pkg.IsNoRowsError(err) {
		return nil, ErrResultNotFound
	}
	return sr, err
}

// ListAthleteResults pages through the latest result of every submission of
// an athlete, newest first.
func (r *Repo) ListAthleteResults(ctx context.Context, athleteID string, page, size int) (_ []*StoredResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.submissions.listathleteresults")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.String("athlete", athleteID),
		attribute.Int("page", page),
		attribute.Int("size", size),
	)

	rows, err := r.db.Query(ctx, `
		SELECT * FROM (
			SELECT DISTINCT ON (r.submission_id) `+resultColumns+`
			FROM analysis_result r
			JOIN submission s ON s.id = r.submission_id
			WHERE s.athlete_id = $1
			ORDER BY r.submission_id, r.attempt DESC
		) latest
		ORDER BY analyzed_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, athleteID, size, size*(page-1))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*StoredResult, 0, size)
	for rows.Next() {
		sr, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, sr)
	}
	return results, rows.Err()
}

func (r *Repo) CountAthleteResults(ctx context.Context, athleteID string) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.submissions.countathleteresults")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var count int
	err = r.db.QueryRow(ctx, `
		SELECT COUNT(DISTINCT r.submission_id)
		FROM analysis_result r
		JOIN submission s ON s.id = r.submission_id
		WHERE s.athlete_id = $1
	`, athleteID).Scan(&count)
	return count, err
}

// ListFlaggedResults pages through the results with detected cheating,
// newest first.
func (r *Repo) ListFlaggedResults(ctx context.Context, page, size int) (_ []*StoredResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.submissions.listflaggedresults")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.Int("page", page),
		attribute.Int("size", size),
	)

	rows, err := r.db.Query(ctx, `
		SELECT `+resultColumns+`
		FROM analysis_result r
		JOIN submission s ON s.id = r.submission_id
		WHERE r.cheat_detected
		ORDER BY r.analyzed_at DESC, r.id DESC
		LIMIT $1 OFFSET $2
	`, size, size*(page-1))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*StoredResult, 0, size)
	for rows.Next() {
		sr, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, sr)
	}
	return results, rows.Err()
}

func (r *Repo) CountFlaggedResults(ctx context.Context) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.submissions.countflaggedresults")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var count int
	err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM analysis_result WHERE cheat_detected`).Scan(&count)
	return count, err
}

// ResultStats aggregates all stored results, overall and per test.
func (r *Repo) ResultStats(ctx context.Context) (_ *ResultStats, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.submissions.resultstats")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	stats := &ResultStats{PerTest: []TestStats{}}
	err = r.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE r.cheat_detected),
			COUNT(*) FILTER (WHERE NOT r.is_valid),
			COUNT(*) FILTER (WHERE NOT r.integrity_checked),
			COUNT(DISTINCT s.athlete_id),
			COALESCE(AVG(r.confidence), 0)
		FROM analysis_result r
		JOIN submission s ON s.id = r.submission_id
	`).Scan(
		&stats.Total, &stats.Flagged, &stats.Invalid, &stats.Unchecked,
		&stats.Athletes, &stats.AverageConfidence,
	)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT
			test_id,
			unit,
			COUNT(*),
			COUNT(*) FILTER (WHERE cheat_detected),
			COUNT(*) FILTER (WHERE NOT is_valid),
			COALESCE(AVG(raw_value) FILTER (WHERE is_valid), 0)
		FROM analysis_result
		GROUP BY test_id, unit
		ORDER BY test_id, unit
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ts TestStats
		if err := rows.Scan(&ts.TestID, &ts.Unit, &ts.Total, &ts.Flagged, &ts.Invalid, &ts.AverageValue); err != nil {
			return nil, err
		}
		stats.PerTest = append(stats.PerTest, ts)
	}
	return stats, rows.Err()
}

// FailStale fails queued or running submissions not updated since before,
// skipping the ids still owned by this process. It returns the failed ids.
func (r *Repo) FailStale(ctx context.Context, before time.Time, skip []string, failure Failure, at time.Time) (_ []string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.submissions.failstale")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if skip == nil {
		skip = []string{}
	}
	rows, err := r.db.Query(ctx, `
		UPDATE submission
		SET status = $1, failure = $2, updated_at = $3
		WHERE status IN ($4, $5)
		  AND updated_at < $6
		  AND NOT (id::text = ANY($7))
		RETURNING id
	`, StatusFailed, failure, at, StatusQueued, StatusRunning, before, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
