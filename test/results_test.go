//go:build integration_test || all_tests

package test

import (
	"context"
	"net/http"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/fitanalysis/internal/submissions"
)

type storedRow struct {
	testID     string
	unit       string
	rawValue   float64
	valid      bool
	flagged    bool
	analyzedAt time.Time
}

// insertResult stores a completed submission with its result directly, so
// the read endpoints can be checked against known rows.
func (s *IntegrationTestSuite) insertResult(athleteID string, row storedRow) string {
	id := gofakeit.UUID()
	_, err := s.DB.Exec(`
		INSERT INTO submission (id, athlete_id, test_id, video_ref, status, attempt, created_at, updated_at)
		VALUES ($1, $2, $3, 'memory', $4, 1, $5, $5)
	`, id, athleteID, row.testID, string(submissions.StatusCompleted), row.analyzedAt)
	require.NoError(s.T(), err)

	reasons := "{}"
	if row.flagged {
		reasons = "{looped_sequence}"
	}
	_, err = s.DB.Exec(`
		INSERT INTO analysis_result (
			submission_id, attempt, test_id, metric_name, unit, raw_value, confidence, is_valid,
			cheat_detected, cheat_reasons, integrity_checked, details, provenance, analyzed_at
		)
		VALUES ($1, 1, $2, 'value', $3, $4, 0.8, $5, $6, $7::text[], TRUE, '{}', '{}', $8)
	`, id, row.testID, row.unit, row.rawValue, row.valid, row.flagged, reasons, row.analyzedAt)
	require.NoError(s.T(), err)
	return id
}

func (s *IntegrationTestSuite) TestResults_Flagged() {
	ctx := context.Background()
	athleteID := gofakeit.UUID()

	// far in the future, so these rows lead the newest-first listing
	base := time.Date(2100, 1, 1, 12, 0, 0, 0, time.UTC)
	older := s.insertResult(athleteID, storedRow{testID: "vertical_jump", unit: "cm", rawValue: 40, valid: true, flagged: true, analyzedAt: base})
	s.insertResult(athleteID, storedRow{testID: "vertical_jump", unit: "cm", rawValue: 42, valid: true, analyzedAt: base.Add(time.Minute)})
	newer := s.insertResult(athleteID, storedRow{testID: "sit_ups", unit: "reps", rawValue: 30, valid: true, flagged: true, analyzedAt: base.Add(2 * time.Minute)})

	resp := s.do(ctx, "GET", "/results/flagged/page/1/size/2", nil)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
	page := decodeBody[submissions.ResultsPage](s, resp)
	assert.GreaterOrEqual(s.T(), page.Total, 2)
	require.Len(s.T(), page.Results, 2)
	assert.Equal(s.T(), newer, page.Results[0].SubmissionID)
	assert.Equal(s.T(), older, page.Results[1].SubmissionID)
	for _, r := range page.Results {
		assert.True(s.T(), r.Result.CheatDetected)
		assert.Equal(s.T(), []string{"looped_sequence"}, r.Result.CheatReasons)
		assert.Equal(s.T(), athleteID, r.AthleteID)
	}

	resp = s.do(ctx, "GET", "/results/flagged/page/0/size/2", nil)
	resp.Body.Close()
	assert.Equal(s.T(), http.StatusBadRequest, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestResults_Stats() {
	ctx := context.Background()
	athleteID := gofakeit.UUID()
	testID := "stats_jump_" + gofakeit.UUID()[:8]

	at := time.Date(2099, 6, 1, 8, 0, 0, 0, time.UTC)
	s.insertResult(athleteID, storedRow{testID: testID, unit: "cm", rawValue: 40, valid: true, analyzedAt: at})
	s.insertResult(athleteID, storedRow{testID: testID, unit: "cm", rawValue: 50, valid: true, flagged: true, analyzedAt: at})
	s.insertResult(athleteID, storedRow{testID: testID, unit: "cm", rawValue: 5, valid: false, analyzedAt: at})

	resp := s.do(ctx, "GET", "/results/stats", nil)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
	stats := decodeBody[submissions.ResultStats](s, resp)
	assert.GreaterOrEqual(s.T(), stats.Total, 3)
	assert.GreaterOrEqual(s.T(), stats.Flagged, 1)
	assert.GreaterOrEqual(s.T(), stats.Invalid, 1)
	assert.GreaterOrEqual(s.T(), stats.Athletes, 1)
	assert.False(s.T(), stats.GeneratedAt.IsZero())

	var found *submissions.TestStats
	for i := range stats.PerTest {
		if stats.PerTest[i].TestID == testID {
			found = &stats.PerTest[i]
		}
	}
	require.NotNil(s.T(), found)
	assert.Equal(s.T(), submissions.TestStats{
		TestID:       testID,
		Unit:         "cm",
		Total:        3,
		Flagged:      1,
		Invalid:      1,
		AverageValue: 45,
	}, *found)
}

func (s *IntegrationTestSuite) TestResults_RequireToken() {
	ctx := context.Background()
	for _, path := range []string{"/results/flagged/page/1/size/10", "/results/stats"} {
		req, err := http.NewRequestWithContext(ctx, "GET", serverEndpoint+path, nil)
		require.NoError(s.T(), err)
		req.Header.Set("User-Agent", "test-agent")
		resp, err := s.httpClient.Do(req)
		require.NoError(s.T(), err)
		resp.Body.Close()
		assert.Equal(s.T(), http.StatusUnauthorized, resp.StatusCode, path)
	}
}
