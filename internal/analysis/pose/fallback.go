package pose

import (
	"context"
	"image"
	"math"

	"github.com/2beens/fitanalysis/internal/analysis/video"
	"github.com/2beens/fitanalysis/internal/analysis/vision"
)

const fallbackVersion = "silhouette-v1"

// FallbackConfig tunes the silhouette skeleton.
type FallbackConfig struct {
	// MinContrast is the minimum luminance spread for a frame to be segmented.
	MinContrast uint8
	// MinSubjectFraction is the smallest share of the frame a person covers.
	MinSubjectFraction float64
	// RelativeSubjectFraction drops blobs smaller than this share of the largest.
	RelativeSubjectFraction float64
	// MaxConfidence caps the confidence of a guessed skeleton.
	MaxConfidence float64
}

func DefaultFallbackConfig() FallbackConfig {
	return FallbackConfig{
		MinContrast:             40,
		MinSubjectFraction:      0.005,
		RelativeSubjectFraction: 0.3,
		MaxConfidence:           0.6,
	}
}

// FallbackEstimator derives a skeleton from the dominant silhouette using
// fixed body proportions. It needs no model, is fully deterministic and
// reports confidence 0 when it cannot find a body.
type FallbackEstimator struct {
	cfg FallbackConfig
}

func NewFallbackEstimator(cfg FallbackConfig) *FallbackEstimator {
	def := DefaultFallbackConfig()
	if cfg.MinContrast == 0 {
		cfg.MinContrast = def.MinContrast
	}
	if cfg.MinSubjectFraction <= 0 {
		cfg.MinSubjectFraction = def.MinSubjectFraction
	}
	if cfg.RelativeSubjectFraction <= 0 {
		cfg.RelativeSubjectFraction = def.RelativeSubjectFraction
	}
	if cfg.MaxConfidence <= 0 || cfg.MaxConfidence > 1 {
		cfg.MaxConfidence = def.MaxConfidence
	}
	return &FallbackEstimator{cfg: cfg}
}

func (e *FallbackEstimator) Name() string {
	return "fallback:" + fallbackVersion
}

func (e *FallbackEstimator) Estimate(ctx context.Context, frame *video.Frame) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, err
	}
	sample := Unknown(frame)

	g := frame.Gray()
	mask, ok := vision.Silhouette(g, e.cfg.MinContrast)
	if !ok {
		return sample, nil
	}

	frameArea := g.W * g.H
	minArea := max(4, int(float64(frameArea)*e.cfg.MinSubjectFraction))
	subjects := vision.Subjects(
		vision.Components(mask, minArea),
		frameArea,
		e.cfg.MinSubjectFraction,
		e.cfg.RelativeSubjectFraction,
	)
	if len(subjects) == 0 {
		return sample, nil
	}
	sample.Subjects = len(subjects)

	pts := vision.Pixels(mask, subjects[0])
	sk, ok := fitSkeleton(pts)
	if !ok {
		return sample, nil
	}

	contrast := contrastOf(g)
	base := e.cfg.MaxConfidence * math.Min(1, float64(contrast)/96)
	sample.Keypoints = sk.keypoints(float64(g.W), float64(g.H), base)
	sample.OverallConfidence = MeanConfidence(sample.Keypoints)
	return sample, nil
}

func contrastOf(g *vision.Gray) uint8 {
	var lo, hi uint8 = 255, 0
	for _, p := range g.Pix {
		lo = min(lo, p)
		hi = max(hi, p)
	}
	return hi - lo
}

type vec struct {
	x, y float64
}

func (a vec) add(b vec) vec             { return vec{a.x + b.x, a.y + b.y} }
func (a vec) sub(b vec) vec             { return vec{a.x - b.x, a.y - b.y} }
func (a vec) scale(k float64) vec       { return vec{a.x * k, a.y * k} }
func (a vec) dot(b vec) float64         { return a.x*b.x + a.y*b.y }
func (a vec) dist(b vec) float64        { return math.Hypot(a.x-b.x, a.y-b.y) }
func (a vec) perp() vec                 { return vec{-a.y, a.x} }
func (a vec) lerp(b vec, t float64) vec { return a.add(b.sub(a).scale(t)) }

func toVec(p image.Point) vec {
	return vec{float64(p.X), float64(p.Y)}
}

func (a vec) unit() vec {
	l := math.Hypot(a.x, a.y)
	if l == 0 {
		return vec{}
	}
	return a.scale(1 / l)
}

// skeleton is the three-point body model a silhouette is reduced to.
type skeleton struct {
	head, hip, feet vec
	halfWidth       float64
}

const (
	// share of the head-feet chord the hip sits at on a straight body
	hipRatio = 0.52
	// a bend deeper than this share of the chord is taken as the hip
	bendRatio = 0.12
)

// fitSkeleton finds the head at one end of the body's principal axis, the
// feet at the far end from the head and the hip at the body's bend.
func fitSkeleton(pts []image.Point) (skeleton, bool) {
	if len(pts) < 8 {
		return skeleton{}, false
	}

	var c vec
	for _, p := range pts {
		c = c.add(toVec(p))
	}
	c = c.scale(1 / float64(len(pts)))

	var sxx, syy, sxy float64
	for _, p := range pts {
		d := toVec(p).sub(c)
		dx, dy := d.x, d.y
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	theta := 0.5 * math.Atan2(2*sxy, sxx-syy)
	axis := vec{math.Cos(theta), math.Sin(theta)}

	proj := make([]float64, len(pts))
	lo, hi := math.Inf(1), math.Inf(-1)
	loIdx, hiIdx := 0, 0
	for i, p := range pts {
		proj[i] = toVec(p).sub(c).dot(axis)
		if proj[i] < lo {
			lo, loIdx = proj[i], i
		}
		if proj[i] > hi {
			hi, hiIdx = proj[i], i
		}
	}
	length := hi - lo
	if length < 4 {
		return skeleton{}, false
	}

	// centroid and mass of the last tenth at each end of the axis
	band := 0.1 * length
	var loC, hiC vec
	var loN, hiN int
	for i, p := range pts {
		pv := toVec(p)
		if proj[i] <= lo+band {
			loC = loC.add(pv)
			loN++
		}
		if proj[i] >= hi-band {
			hiC = hiC.add(pv)
			hiN++
		}
	}
	loC = loC.scale(1 / float64(loN))
	hiC = hiC.scale(1 / float64(hiN))

	headIdx := loIdx
	switch {
	case math.Abs(loC.y-hiC.y) > 0.15*length:
		// the higher end is the head
		if hiC.y < loC.y {
			headIdx = hiIdx
		}
	case hiN > loN:
		// lying flat: the head is the thicker end
		headIdx = hiIdx
	case hiN == loN && hiC.x < loC.x:
		headIdx = hiIdx
	}
	head := toVec(pts[headIdx])

	var feet vec
	far := -1.0
	for _, p := range pts {
		pv := toVec(p)
		if d := pv.dist(head); d > far {
			far, feet = d, pv
		}
	}
	chord := feet.sub(head)
	chordLen := math.Hypot(chord.x, chord.y)
	if chordLen < 4 {
		return skeleton{}, false
	}

	n := chord.unit().perp()
	hip := head.lerp(feet, hipRatio)
	deepest := 0.0
	for _, p := range pts {
		pv := toVec(p)
		d := math.Abs(pv.sub(head).dot(n))
		if d > deepest {
			deepest = d
			if d > bendRatio*chordLen {
				hip = pv
			}
		}
	}

	return skeleton{
		head:      head,
		hip:       hip,
		feet:      feet,
		halfWidth: float64(len(pts)) / chordLen / 2,
	}, true
}

// placement is where a joint sits: a fraction along the head-hip segment
// (segment 0) or the hip-feet segment (segment 1), shifted sideways.
type placement struct {
	joint    Joint
	segment  int
	at       float64
	side     float64
	reliable bool
}

var placements = []placement{
	{Nose, 0, 0.12, 0, true},
	{LeftEye, 0, 0.08, 0.3, true},
	{RightEye, 0, 0.08, -0.3, true},
	{LeftEar, 0, 0.1, 0.6, true},
	{RightEar, 0, 0.1, -0.6, true},
	{LeftShoulder, 0, 0.3, 1, true},
	{RightShoulder, 0, 0.3, -1, true},
	{LeftElbow, 0, 0.6, 1.2, false},
	{RightElbow, 0, 0.6, -1.2, false},
	{LeftWrist, 0, 0.9, 1.2, false},
	{RightWrist, 0, 0.9, -1.2, false},
	{LeftHip, 0, 1, 0.6, true},
	{RightHip, 0, 1, -0.6, true},
	{LeftKnee, 1, 0.5, 0.4, true},
	{RightKnee, 1, 0.5, -0.4, true},
	{LeftAnkle, 1, 0.95, 0.4, true},
	{RightAnkle, 1, 0.95, -0.4, true},
}

// keypoints maps the skeleton to the 17 joints in normalized coordinates.
func (s skeleton) keypoints(w, h, confidence float64) []Keypoint {
	torsoSide := s.hip.sub(s.head).unit().perp()
	legSide := s.feet.sub(s.hip).unit().perp()

	kps := make([]Keypoint, 0, len(placements))
	for _, pl := range placements {
		var p vec
		if pl.segment == 0 {
			p = s.head.lerp(s.hip, pl.at).add(torsoSide.scale(pl.side * s.halfWidth))
		} else {
			p = s.hip.lerp(s.feet, pl.at).add(legSide.scale(pl.side * s.halfWidth))
		}
		conf := confidence
		if !pl.reliable {
			conf *= 0.8
		}
		kps = append(kps, Keypoint{
			Joint:      pl.joint,
			X:          clampUnit((p.x + 0.5) / w),
			Y:          clampUnit((p.y + 0.5) / h),
			Confidence: conf,
		})
	}
	return kps
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
