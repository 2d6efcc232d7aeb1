// Package motion turns a frame sequence into a movement series of the
// athlete: position, speed, direction and acceleration per frame interval.
package motion

import (
	"context"
	"math"

	"github.com/2beens/fitanalysis/internal/analysis"
	"github.com/2beens/fitanalysis/internal/analysis/pose"
	"github.com/2beens/fitanalysis/internal/analysis/video"
	"github.com/2beens/fitanalysis/internal/analysis/vision"
)

// Sample describes the interval ending at TimestampMs. Positions are
// normalized frame coordinates; speed is in frame units per second and
// direction in degrees clockwise from +x (image y grows downwards).
type Sample struct {
	TimestampMs  int64   `json:"timestampMs"`
	PositionX    float64 `json:"positionX"`
	PositionY    float64 `json:"positionY"`
	Speed        float64 `json:"speed"`
	Direction    float64 `json:"direction"`
	Acceleration float64 `json:"acceleration"`
	// Tracked is false when the subject was lost at either end of the interval.
	Tracked bool `json:"tracked"`
}

type Series []Sample

// TrackedFraction is the share of intervals with the subject found at both ends.
func (s Series) TrackedFraction() float64 {
	if len(s) == 0 {
		return 0
	}
	n := 0
	for _, sample := range s {
		if sample.Tracked {
			n++
		}
	}
	return float64(n) / float64(len(s))
}

// Tracker produces one motion sample per consecutive frame pair.
type Tracker interface {
	Track(ctx context.Context, frames video.Frames) (Series, error)
	Name() string
}

// Locator finds the subject in a single frame.
type Locator interface {
	Locate(ctx context.Context, f *video.Frame) (x, y float64, ok bool, err error)
	Name() string
}

type position struct {
	x, y  float64
	found bool
}

// CentroidTracker follows the subject's centroid, either through a Locator
// or, without one, by subtracting a median background from every frame.
type CentroidTracker struct {
	locator       Locator
	diffThreshold uint8
	minAreaFrac   float64
}

type TrackerOption func(*CentroidTracker)

// WithLocator makes the tracker locate the subject with l instead of
// background subtraction.
func WithLocator(l Locator) TrackerOption {
	return func(t *CentroidTracker) {
		t.locator = l
	}
}

func WithDiffThreshold(threshold uint8) TrackerOption {
	return func(t *CentroidTracker) {
		t.diffThreshold = threshold
	}
}

func NewCentroidTracker(opts ...TrackerOption) *CentroidTracker {
	t := &CentroidTracker{
		diffThreshold: 30,
		minAreaFrac:   0.005,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *CentroidTracker) Name() string {
	if t.locator != nil {
		return "centroid:" + t.locator.Name()
	}
	return "centroid:background-median"
}

// Track returns len(frames)-1 samples. Fewer than two frames is an
// InsufficientDataError.
func (t *CentroidTracker) Track(ctx context.Context, frames video.Frames) (Series, error) {
	if len(frames) < 2 {
		return nil, analysis.InsufficientDataError("motion tracking needs at least 2 frames, got %d", len(frames))
	}

	var (
		positions []position
		err       error
	)
	if t.locator != nil {
		positions, err = t.locate(ctx, frames)
	} else {
		positions, err = t.subtractBackground(ctx, frames)
	}
	if err != nil {
		return nil, err
	}

	return buildSeries(frames.Timestamps(), positions), nil
}

func (t *CentroidTracker) locate(ctx context.Context, frames video.Frames) ([]position, error) {
	positions := make([]position, len(frames))
	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		x, y, ok, err := t.locator.Locate(ctx, f)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			continue
		}
		positions[i] = position{x: x, y: y, found: ok}
	}
	return positions, nil
}

func (t *CentroidTracker) subtractBackground(ctx context.Context, frames video.Frames) ([]position, error) {
	planes := make([]*vision.Gray, len(frames))
	for i, f := range frames {
		planes[i] = f.Gray()
	}
	bg := vision.MedianBackground(planes)

	positions := make([]position, len(frames))
	for i, g := range planes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if g.W != bg.W || g.H != bg.H || g.W == 0 {
			continue
		}
		area := g.W * g.H
		blobs := vision.Components(vision.DiffMask(g, bg, t.diffThreshold), max(4, int(float64(area)*t.minAreaFrac)))
		if len(blobs) == 0 {
			continue
		}
		b := blobs[0]
		positions[i] = position{
			x:     (b.CX + 0.5) / float64(g.W),
			y:     (b.CY + 0.5) / float64(g.H),
			found: true,
		}
	}
	return positions, nil
}

// buildSeries derives speed, direction and acceleration from per-frame
// positions. A lost position is carried over from the nearest known one and
// the intervals touching it are marked untracked.
func buildSeries(timestamps []int64, positions []position) Series {
	n := len(positions)
	if n < 2 || len(timestamps) != n {
		return Series{}
	}

	filled := make([]position, n)
	copy(filled, positions)
	last := -1
	for i := range filled {
		if filled[i].found {
			last = i
		} else if last >= 0 {
			filled[i].x, filled[i].y = filled[last].x, filled[last].y
		}
	}
	// leading gap takes the first known position
	first := -1
	for i := range filled {
		if positions[i].found {
			first = i
			break
		}
	}
	for i := 0; i < first; i++ {
		filled[i].x, filled[i].y = filled[first].x, filled[first].y
	}

	series := make(Series, 0, n-1)
	var prevSpeed, prevDirection float64
	for i := 1; i < n; i++ {
		dt := float64(timestamps[i]-timestamps[i-1]) / 1000
		dx := filled[i].x - filled[i-1].x
		dy := filled[i].y - filled[i-1].y
		dist := math.Hypot(dx, dy)

		speed := 0.0
		if dt > 0 {
			speed = dist / dt
		}
		direction := prevDirection
		if dist > 0 {
			direction = normalizeDegrees(math.Atan2(dy, dx) * 180 / math.Pi)
		}
		acceleration := 0.0
		if i > 1 && dt > 0 {
			acceleration = (speed - prevSpeed) / dt
		}

		series = append(series, Sample{
			TimestampMs:  timestamps[i],
			PositionX:    filled[i].x,
			PositionY:    filled[i].y,
			Speed:        speed,
			Direction:    direction,
			Acceleration: acceleration,
			Tracked:      positions[i].found && positions[i-1].found,
		})
		prevSpeed, prevDirection = speed, direction
	}
	return series
}

func normalizeDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		d = 0
	}
	return d
}

// PoseLocator locates the subject at the hip center of a pose estimate,
// falling back to the mean of all keypoints.
type PoseLocator struct {
	estimator     pose.Estimator
	minConfidence float64
}

func NewPoseLocator(est pose.Estimator, minConfidence float64) *PoseLocator {
	return &PoseLocator{
		estimator:     est,
		minConfidence: minConfidence,
	}
}

func (l *PoseLocator) Name() string {
	return l.estimator.Name()
}

func (l *PoseLocator) Locate(ctx context.Context, f *video.Frame) (float64, float64, bool, error) {
	sample, err := l.estimator.Estimate(ctx, f)
	if err != nil {
		return 0, 0, false, err
	}
	if !sample.Detected() {
		return 0, 0, false, nil
	}
	if x, y, ok := sample.Center(l.minConfidence, pose.LeftHip, pose.RightHip); ok {
		return x, y, true, nil
	}
	all := make([]pose.Joint, 0, pose.NumJoints)
	for j := 0; j < pose.NumJoints; j++ {
		all = append(all, pose.Joint(j))
	}
	x, y, ok := sample.Center(l.minConfidence, all...)
	return x, y, ok, nil
}
