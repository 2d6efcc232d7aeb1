package submissions

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2beens/fitanalysis/internal/analysis"
)

var (
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrResultNotFound     = errors.New("result not found")
	ErrNotRetryable       = errors.New("submission is not retryable")
	ErrAlreadyFinished    = errors.New("submission already finished")
	ErrNotCancellable     = errors.New("submission is not running on this instance")
	ErrQueueFull          = errors.New("analysis queue is full")
	ErrInvalidSubmission  = errors.New("invalid submission")
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

func (s Status) Retryable() bool {
	return s == StatusFailed || s == StatusCancelled
}

// statusFor maps the terminal pipeline state onto the submission status.
func statusFor(state analysis.State) Status {
	switch state {
	case analysis.StateComplete:
		return StatusCompleted
	case analysis.StateCancelled:
		return StatusCancelled
	case analysis.StateFailed:
		return StatusFailed
	default:
		return StatusRunning
	}
}

// NewSubmission is the body of a submit request.
type NewSubmission struct {
	AthleteID   string               `json:"athleteId"`
	TestID      string               `json:"testId"`
	VideoRef    string               `json:"videoRef"`
	Calibration analysis.Calibration `json:"calibration"`
}

func (n NewSubmission) Validate() error {
	switch {
	case strings.TrimSpace(n.AthleteID) == "":
		return fmt.Errorf("%w: athleteId is empty", ErrInvalidSubmission)
	case strings.TrimSpace(n.TestID) == "":
		return fmt.Errorf("%w: testId is empty", ErrInvalidSubmission)
	case strings.TrimSpace(n.VideoRef) == "":
		return fmt.Errorf("%w: videoRef is empty", ErrInvalidSubmission)
	case n.Calibration.CmPerUnit < 0 || n.Calibration.SubjectHeightCm < 0:
		return fmt.Errorf("%w: negative calibration", ErrInvalidSubmission)
	}
	return nil
}

// Failure is the persisted form of an *analysis.Error.
type Failure struct {
	Kind   string `json:"kind"`
	Stage  string `json:"stage,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func failureFrom(err *analysis.Error) *Failure {
	if err == nil {
		return nil
	}
	reason := err.Reason
	if err.Err != nil {
		if reason != "" {
			reason += ": "
		}
		reason += err.Err.Error()
	}
	return &Failure{
		Kind:   string(err.Kind),
		Stage:  string(err.Stage),
		Reason: reason,
	}
}

// Retryable tells clients whether resubmitting the same video can help.
func (f *Failure) Retryable() bool {
	return analysis.ErrorKind(f.Kind).Retryable()
}

type Submission struct {
	ID          string               `json:"id"`
	AthleteID   string               `json:"athleteId"`
	TestID      string               `json:"testId"`
	VideoRef    string               `json:"videoRef"`
	Calibration analysis.Calibration `json:"calibration"`
	Status      Status               `json:"status"`
	// Attempt starts at 1 and grows with every retry.
	Attempt   int       `json:"attempt"`
	Failure   *Failure  `json:"failure,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StatusUpdate moves a submission to a new status for the given attempt.
type StatusUpdate struct {
	Status  Status
	Attempt int
	Failure *Failure
	At      time.Time
}

// StoredResult is an analysis result as persisted for one attempt.
type StoredResult struct {
	ID           int                     `json:"id"`
	SubmissionID string                  `json:"submissionId"`
	AthleteID    string                  `json:"athleteId"`
	Attempt      int                     `json:"attempt"`
	Result       analysis.AnalysisResult `json:"result"`
}

// View is what clients get for a submission: its row and the result of the
// latest attempt, when there is one.
type View struct {
	Submission *Submission              `json:"submission"`
	Result     *analysis.AnalysisResult `json:"result,omitempty"`
	Retryable  bool                     `json:"retryable"`
}

func newView(s *Submission, r *StoredResult) *View {
	v := &View{
		Submission: s,
		Retryable:  s.Status == StatusCancelled || (s.Failure != nil && s.Failure.Retryable()),
	}
	if r != nil && r.Attempt == s.Attempt {
		v.Result = &r.Result
	}
	return v
}

// Progress is the live pipeline state of a submission.
type Progress struct {
	SubmissionID string         `json:"submissionId"`
	Attempt      int            `json:"attempt"`
	Status       Status         `json:"status"`
	State        analysis.State `json:"state,omitempty"`
	Failure      *Failure       `json:"failure,omitempty"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

type ResultsPage struct {
	Results []*StoredResult `json:"results"`
	Total   int             `json:"total"`
	Page    int             `json:"page"`
	Size    int             `json:"size"`
}

// TestStats summarizes the stored results of one test.
type TestStats struct {
	TestID  string `json:"testId"`
	Unit    string `json:"unit"`
	Total   int    `json:"total"`
	Flagged int    `json:"flagged"`
	Invalid int    `json:"invalid"`
	// AverageValue is the mean raw value of the valid results, 0 when there
	// are none.
	AverageValue float64 `json:"averageValue"`
}

// ResultStats is the reviewer's overview of all stored results.
type ResultStats struct {
	Total     int `json:"total"`
	Flagged   int `json:"flagged"`
	Invalid   int `json:"invalid"`
	Unchecked int `json:"unchecked"`
	Athletes  int `json:"athletes"`
	// AverageConfidence is the mean confidence over all results.
	AverageConfidence float64     `json:"averageConfidence"`
	PerTest           []TestStats `json:"perTest"`
	GeneratedAt       time.Time   `json:"generatedAt"`
}
