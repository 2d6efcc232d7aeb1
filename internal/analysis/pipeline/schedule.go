package pipeline

import (
	"errors"
	"fmt"
	"sort"

	"github.com/2beens/fitanalysis/internal/analysis"
)

// Bracket assigns a frame count to tests up to a duration limit.
type Bracket struct {
	MaxDurationSeconds int `toml:"max_duration_seconds"`
	FrameCount         int `toml:"frame_count"`
}

// Schedule decides how many frames are sampled for a test. Short, explosive
// tests are sampled densely; long endurance tests sparsely.
type Schedule struct {
	Brackets          []Bracket `toml:"brackets"`
	DefaultFrameCount int       `toml:"default_frame_count"`
}

func DefaultSchedule() Schedule {
	return Schedule{
		Brackets: []Bracket{
			{MaxDurationSeconds: 10, FrameCount: 40},
			{MaxDurationSeconds: 60, FrameCount: 60},
			{MaxDurationSeconds: 300, FrameCount: 90},
		},
		DefaultFrameCount: 120,
	}
}

func (s Schedule) Validate() error {
	if s.DefaultFrameCount <= 0 {
		return errors.New("schedule: default frame count must be positive")
	}
	for _, b := range s.Brackets {
		if b.MaxDurationSeconds <= 0 || b.FrameCount <= 0 {
			return fmt.Errorf("schedule: invalid bracket %+v", b)
		}
	}
	return nil
}

// FrameCount returns the descriptor's own frame count if it has one,
// otherwise the count of the tightest bracket covering its duration limit.
func (s Schedule) FrameCount(d analysis.TestDescriptor) int {
	if d.FrameCount > 0 {
		return d.FrameCount
	}

	brackets := append([]Bracket(nil), s.Brackets...)
	sort.Slice(brackets, func(i, j int) bool {
		return brackets[i].MaxDurationSeconds < brackets[j].MaxDurationSeconds
	})
	for _, b := range brackets {
		if d.DurationLimitSeconds <= b.MaxDurationSeconds {
			return b.FrameCount
		}
	}
	return s.DefaultFrameCount
}
