package analysis

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var ErrTestNotFound = errors.New("test not found")

// AnalysisKind tells the pipeline which series a test is measured from:
//   - pose: per-frame body keypoints
//   - motion: frame-to-frame movement of the subject
//   - none: no video measurement exists for the test
type AnalysisKind string

const (
	KindPose   AnalysisKind = "pose"
	KindMotion AnalysisKind = "motion"
	KindNone   AnalysisKind = "none"
)

func (k AnalysisKind) String() string {
	return string(k)
}

func (k AnalysisKind) IsValid() bool {
	switch k {
	case KindPose, KindMotion, KindNone:
		return true
	default:
		return false
	}
}

// StageTimeouts are the wall-clock budgets of the pipeline stages.
// Zero values mean "use the configured default".
type StageTimeouts struct {
	Open       time.Duration `toml:"open" json:"open,omitempty"`
	Sampling   time.Duration `toml:"sampling" json:"sampling,omitempty"`
	Extracting time.Duration `toml:"extracting" json:"extracting,omitempty"`
	Checking   time.Duration `toml:"checking" json:"checking,omitempty"`
}

// Merge returns t with every zero budget filled from defaults.
func (t StageTimeouts) Merge(defaults StageTimeouts) StageTimeouts {
	if t.Open <= 0 {
		t.Open = defaults.Open
	}
	if t.Sampling <= 0 {
		t.Sampling = defaults.Sampling
	}
	if t.Extracting <= 0 {
		t.Extracting = defaults.Extracting
	}
	if t.Checking <= 0 {
		t.Checking = defaults.Checking
	}
	return t
}

// For returns the budget of a stage; stages without one get 0 (no budget).
func (t StageTimeouts) For(stage State) time.Duration {
	switch stage {
	case StatePending:
		return t.Open
	case StateSampling:
		return t.Sampling
	case StateExtracting:
		return t.Extracting
	case StateChecking:
		return t.Checking
	default:
		return 0
	}
}

// TestDescriptor is the static description of one fitness test.
// Descriptors are loaded once from configuration and never mutated.
type TestDescriptor struct {
	ID                   string        `json:"id"`
	Name                 string        `json:"name"`
	Unit                 string        `json:"unit"`
	DurationLimitSeconds int           `json:"durationLimitSeconds"`
	AnalysisKind         AnalysisKind  `json:"analysisKind"`
	DistanceMeters       float64       `json:"distanceMeters,omitempty"`
	FrameCount           int           `json:"frameCount,omitempty"`
	StageTimeouts        StageTimeouts `json:"stageTimeouts"`
}

func (d TestDescriptor) Validate() error {
	if d.ID == "" {
		return errors.New("test id empty")
	}
	if !d.AnalysisKind.IsValid() {
		return fmt.Errorf("test %s: invalid analysis kind [%s]", d.ID, d.AnalysisKind)
	}
	if d.DurationLimitSeconds <= 0 {
		return fmt.Errorf("test %s: duration limit must be positive", d.ID)
	}
	if d.FrameCount < 0 {
		return fmt.Errorf("test %s: negative frame count", d.ID)
	}
	return nil
}

// Catalog is the read-only set of known tests.
type Catalog struct {
	tests map[string]TestDescriptor
}

func NewCatalog(descriptors []TestDescriptor) (*Catalog, error) {
	tests := make(map[string]TestDescriptor, len(descriptors))
	for _, d := range descriptors {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, ok := tests[d.ID]; ok {
			return nil, fmt.Errorf("duplicate test id [%s]", d.ID)
		}
		tests[d.ID] = d
	}
	return &Catalog{tests: tests}, nil
}

func (c *Catalog) Get(id string) (TestDescriptor, error) {
	d, ok := c.tests[id]
	if !ok {
		return TestDescriptor{}, fmt.Errorf("%w: %s", ErrTestNotFound, id)
	}
	return d, nil
}

// All returns descriptors ordered by id.
func (c *Catalog) All() []TestDescriptor {
	all := make([]TestDescriptor, 0, len(c.tests))
	for _, d := range c.tests {
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].ID < all[j].ID
	})
	return all
}
