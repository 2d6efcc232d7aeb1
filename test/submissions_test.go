//go:build integration_test || all_tests

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/fitanalysis/internal/submissions"
)

func (s *IntegrationTestSuite) do(ctx context.Context, method, path string, body any) *http.Response {
	var reader io.Reader
	if body != nil {
		bodyJson, err := json.Marshal(body)
		require.NoError(s.T(), err)
		reader = bytes.NewReader(bodyJson)
	}

	req, err := http.NewRequestWithContext(ctx, method, serverEndpoint+path, reader)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	s.authorize(req)

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	return resp
}

func decodeBody[T any](s *IntegrationTestSuite, resp *http.Response) T {
	defer resp.Body.Close()
	var v T
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (s *IntegrationTestSuite) submit(ctx context.Context, n submissions.NewSubmission) *submissions.Submission {
	resp := s.do(ctx, "POST", "/submissions", n)
	require.Equal(s.T(), http.StatusAccepted, resp.StatusCode)
	sub := decodeBody[submissions.Submission](s, resp)
	assert.Equal(s.T(), "/submissions/"+sub.ID, resp.Header.Get("Location"))
	return &sub
}

// waitForStatus polls a submission until it reaches a terminal status for
// the given attempt.
func (s *IntegrationTestSuite) waitForStatus(ctx context.Context, id string, attempt int) *submissions.View {
	var view submissions.View
	require.Eventually(s.T(), func() bool {
		resp := s.do(ctx, "GET", "/submissions/"+id, nil)
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return false
		}
		view = decodeBody[submissions.View](s, resp)
		return view.Submission.Attempt == attempt && view.Submission.Status.IsTerminal()
	}, 30*time.Second, 200*time.Millisecond)
	return &view
}

func (s *IntegrationTestSuite) TestSubmissions_Completed() {
	ctx := context.Background()
	athleteID := gofakeit.UUID()

	sub := s.submit(ctx, submissions.NewSubmission{
		AthleteID: athleteID,
		TestID:    "sprint_30m",
		VideoRef:  s.sprintVideo(),
	})
	assert.Equal(s.T(), submissions.StatusQueued, sub.Status)
	assert.Equal(s.T(), 1, sub.Attempt)

	view := s.waitForStatus(ctx, sub.ID, 1)
	require.Equal(s.T(), submissions.StatusCompleted, view.Submission.Status)
	require.NotNil(s.T(), view.Result)
	assert.Equal(s.T(), "sprint_30m", view.Result.TestID)
	assert.Equal(s.T(), "elapsed_time", view.Result.MetricName)
	assert.Greater(s.T(), view.Result.RawValue, 0.0)
	assert.Equal(s.T(), 1, view.Result.Provenance.Attempt)
	assert.False(s.T(), view.Retryable)

	progressResp := s.do(ctx, "GET", "/submissions/"+sub.ID+"/progress", nil)
	require.Equal(s.T(), http.StatusOK, progressResp.StatusCode)
	progress := decodeBody[submissions.Progress](s, progressResp)
	assert.Equal(s.T(), submissions.StatusCompleted, progress.Status)

	var storedResults int
	require.NoError(s.T(), s.DB.QueryRow(
		"SELECT COUNT(*) FROM analysis_result WHERE submission_id = $1", sub.ID,
	).Scan(&storedResults))
	assert.Equal(s.T(), 1, storedResults)

	resultsResp := s.do(ctx, "GET", fmt.Sprintf("/athletes/%s/results/page/1/size/10", athleteID), nil)
	require.Equal(s.T(), http.StatusOK, resultsResp.StatusCode)
	page := decodeBody[submissions.ResultsPage](s, resultsResp)
	assert.Equal(s.T(), 1, page.Total)
	require.Len(s.T(), page.Results, 1)
	assert.Equal(s.T(), sub.ID, page.Results[0].SubmissionID)

	// finished runs cannot be cancelled or retried
	cancelResp := s.do(ctx, "DELETE", "/submissions/"+sub.ID, nil)
	cancelResp.Body.Close()
	assert.Equal(s.T(), http.StatusConflict, cancelResp.StatusCode)
	retryResp := s.do(ctx, "POST", "/submissions/"+sub.ID+"/retry", nil)
	retryResp.Body.Close()
	assert.Equal(s.T(), http.StatusConflict, retryResp.StatusCode)
}

func (s *IntegrationTestSuite) TestSubmissions_FailedThenRetried() {
	ctx := context.Background()

	sub := s.submit(ctx, submissions.NewSubmission{
		AthleteID: gofakeit.UUID(),
		TestID:    "sprint_30m",
		VideoRef:  s.videosDir + "/missing.mp4",
	})

	view := s.waitForStatus(ctx, sub.ID, 1)
	require.Equal(s.T(), submissions.StatusFailed, view.Submission.Status)
	require.NotNil(s.T(), view.Submission.Failure)
	assert.NotEmpty(s.T(), view.Submission.Failure.Kind)
	assert.Nil(s.T(), view.Result)

	retryResp := s.do(ctx, "POST", "/submissions/"+sub.ID+"/retry", nil)
	require.Equal(s.T(), http.StatusAccepted, retryResp.StatusCode)
	retried := decodeBody[submissions.Submission](s, retryResp)
	assert.Equal(s.T(), 2, retried.Attempt)

	view = s.waitForStatus(ctx, sub.ID, 2)
	assert.Equal(s.T(), submissions.StatusFailed, view.Submission.Status)
	assert.Equal(s.T(), 2, view.Submission.Attempt)
}

func (s *IntegrationTestSuite) TestSubmissions_Rejected() {
	ctx := context.Background()

	// measured tests have no video analysis
	resp := s.do(ctx, "POST", "/submissions", submissions.NewSubmission{
		AthleteID: gofakeit.UUID(),
		TestID:    "height",
		VideoRef:  s.sprintVideo(),
	})
	resp.Body.Close()
	assert.Equal(s.T(), http.StatusUnprocessableEntity, resp.StatusCode)

	resp = s.do(ctx, "POST", "/submissions", submissions.NewSubmission{
		AthleteID: gofakeit.UUID(),
		TestID:    "pole_vault",
		VideoRef:  s.sprintVideo(),
	})
	resp.Body.Close()
	assert.Equal(s.T(), http.StatusBadRequest, resp.StatusCode)

	resp = s.do(ctx, "GET", "/submissions/"+gofakeit.UUID(), nil)
	resp.Body.Close()
	assert.Equal(s.T(), http.StatusNotFound, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestAuth() {
	ctx := context.Background()

	req, err := http.NewRequestWithContext(ctx, "GET", serverEndpoint+"/submissions/"+gofakeit.UUID(), nil)
	require.NoError(s.T(), err)
	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	resp.Body.Close()
	assert.Equal(s.T(), http.StatusUnauthorized, resp.StatusCode)

	req, err = http.NewRequestWithContext(ctx, "GET", serverEndpoint+"/tests", nil)
	require.NoError(s.T(), err)
	resp, err = s.httpClient.Do(req)
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
	var tests []map[string]any
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&tests))
	resp.Body.Close()
	assert.Len(s.T(), tests, 2)
}
