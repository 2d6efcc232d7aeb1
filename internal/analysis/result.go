package analysis

import (
	"sort"
	"time"
)

const DefaultConfidenceThreshold = 0.7

// Calibration converts normalized frame coordinates into centimeters.
// Normalized coordinates carry no absolute scale, so one of the two
// references has to be supplied by the submitter.
type Calibration struct {
	// CmPerUnit is an explicit scale: centimeters per one normalized frame unit.
	CmPerUnit float64 `json:"cmPerUnit,omitempty"`
	// SubjectHeightCm is the athlete's stature; the scale is then derived from
	// the observed head-to-ankle span in the frames.
	SubjectHeightCm float64 `json:"subjectHeightCm,omitempty"`
}

func (c Calibration) IsSet() bool {
	return c.CmPerUnit > 0 || c.SubjectHeightCm > 0
}

// Measurement is what a metric extractor produces.
type Measurement struct {
	Value      float64
	Confidence float64
	Details    map[string]float64
}

// Verdict is the outcome of the integrity checks.
type Verdict struct {
	CheatDetected bool
	Reasons       []string
	// Checked is false when no checking backend was available.
	Checked bool
}

// Provenance records which backends produced a result.
type Provenance struct {
	Estimator  string `json:"estimator,omitempty"`
	Tracker    string `json:"tracker,omitempty"`
	Checker    string `json:"checker"`
	FrameCount int    `json:"frameCount"`
	Attempt    int    `json:"attempt"`
}

// AnalysisResult is the immutable outcome of one successful pipeline run.
type AnalysisResult struct {
	TestID            string             `json:"testId"`
	MetricName        string             `json:"metricName"`
	Unit              string             `json:"unit"`
	RawValue          float64            `json:"rawValue"`
	Confidence        float64            `json:"confidence"`
	IsValid           bool               `json:"isValid"`
	CheatDetected     bool               `json:"cheatDetected"`
	CheatReasons      []string           `json:"cheatReasons"`
	IntegrityChecked  bool               `json:"integrityChecked"`
	Details           map[string]float64 `json:"details,omitempty"`
	Provenance        Provenance         `json:"provenance"`
	AnalysisTimestamp time.Time          `json:"analysisTimestamp"`
}

// NewAnalysisResult assembles a result, deriving IsValid from the confidence
// so the two can never disagree.
func NewAnalysisResult(
	descriptor TestDescriptor,
	metricName string,
	m Measurement,
	v Verdict,
	threshold float64,
	provenance Provenance,
	now time.Time,
) AnalysisResult {
	confidence := clamp01(m.Confidence)

	reasons := dedupeSorted(v.Reasons)
	details := make(map[string]float64, len(m.Details))
	for k, val := range m.Details {
		details[k] = val
	}

	return AnalysisResult{
		TestID:            descriptor.ID,
		MetricName:        metricName,
		Unit:              descriptor.Unit,
		RawValue:          m.Value,
		Confidence:        confidence,
		IsValid:           confidence >= threshold,
		CheatDetected:     v.CheatDetected,
		CheatReasons:      reasons,
		IntegrityChecked:  v.Checked,
		Details:           details,
		Provenance:        provenance,
		AnalysisTimestamp: now.UTC(),
	}
}

func clamp01(v float64) float64 {
	switch {
	case v != v, v < 0: // NaN or negative
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func dedupeSorted(in []string) []string {
	set := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := set[s]; ok {
			continue
		}
		set[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
