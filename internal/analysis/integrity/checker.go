// Package integrity looks for signs that a recording does not show one
// athlete performing the test honestly: extra people in frame, spliced or
// looped footage, and motion no human body produces.
package integrity

import (
	"context"
	"math"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/2beens/fitanalysis/internal/analysis"
	"github.com/2beens/fitanalysis/internal/analysis/extract"
	"github.com/2beens/fitanalysis/internal/analysis/motion"
	"github.com/2beens/fitanalysis/internal/analysis/pose"
	"github.com/2beens/fitanalysis/internal/analysis/video"
	"github.com/2beens/fitanalysis/internal/analysis/vision"
)

const (
	ReasonUnavailable      = "checker_unavailable"
	ReasonMultipleSubjects = "multiple_subjects"
	ReasonDuplicatedFrames = "duplicated_frames"
	ReasonLoopedSequence   = "looped_sequence"
	ReasonLighting         = "lighting_discontinuity"
	ReasonBackground       = "background_discontinuity"
	ReasonImplausibleTorso = "implausible_torso_motion"
	ReasonHorizontalDrift  = "horizontal_drift"
	ReasonMissingTurns     = "missing_turns"
)

const (
	unknownSubjects = pose.UnknownSubjects
	minLoopRun      = 3
	// a replayed run must contain at least one step that changes this many
	// hash bits, still scenes repeat naturally
	loopMotionBits = 4
)

type Config struct {
	// MultiSubjectFrames is how many frames must show two or more people.
	MultiSubjectFrames int `toml:"multi_subject_frames"`
	// LoopHamming is the largest dHash distance two frames may have to be
	// considered the same picture.
	LoopHamming int `toml:"loop_hamming"`
	// LumaJump is the largest plausible change of mean brightness between
	// consecutive samples.
	LumaJump float64 `toml:"luma_jump"`
	// BorderJump is the per-cell change of the border signature, after
	// removing the global brightness shift, that counts as a scene change.
	BorderJump float64 `toml:"border_jump"`
	// MaxTorsoDegreesPerSecond bounds the angular speed of the torso.
	MaxTorsoDegreesPerSecond float64 `toml:"max_torso_degrees_per_second"`
	// MaxHorizontalDrift bounds the sideways travel during a vertical jump,
	// in frame heights.
	MaxHorizontalDrift float64 `toml:"max_horizontal_drift"`
	// MinShuttleTurns is the number of turns a shuttle run must show.
	MinShuttleTurns int `toml:"min_shuttle_turns"`

	// RepDownDegrees and RepUpDegrees delimit one sit-up repetition.
	RepDownDegrees float64 `toml:"rep_down_degrees"`
	RepUpDegrees   float64 `toml:"rep_up_degrees"`
	// MinUniformReps is how many repetitions it takes before their rhythm is
	// judged at all.
	MinUniformReps int `toml:"min_uniform_reps"`
	// MinRepPeriodVariation is the smallest coefficient of variation of the
	// repetition periods a person produces.
	MinRepPeriodVariation float64 `toml:"min_rep_period_variation"`
	// MinRepPeakSpread is the smallest standard deviation of the top angle
	// of each repetition, in degrees.
	MinRepPeakSpread float64 `toml:"min_rep_peak_spread"`

	MinKeypointConfidence float64 `toml:"min_keypoint_confidence"`
	MovementThreshold     float64 `toml:"movement_threshold"`
}

func DefaultConfig() Config {
	return Config{
		MultiSubjectFrames:       1,
		LoopHamming:              2,
		LumaJump:                 0.15,
		BorderJump:               0.15,
		MaxTorsoDegreesPerSecond: 600,
		MaxHorizontalDrift:       0.15,
		MinShuttleTurns:          3,
		RepDownDegrees:           20,
		RepUpDegrees:             60,
		MinUniformReps:           5,
		MinRepPeriodVariation:    0.03,
		MinRepPeakSpread:         1.5,
		MinKeypointConfidence:    0.3,
		MovementThreshold:        0.05,
	}
}

func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.MultiSubjectFrames <= 0 {
		c.MultiSubjectFrames = d.MultiSubjectFrames
	}
	if c.LoopHamming <= 0 {
		c.LoopHamming = d.LoopHamming
	}
	if c.LumaJump <= 0 {
		c.LumaJump = d.LumaJump
	}
	if c.BorderJump <= 0 {
		c.BorderJump = d.BorderJump
	}
	if c.MaxTorsoDegreesPerSecond <= 0 {
		c.MaxTorsoDegreesPerSecond = d.MaxTorsoDegreesPerSecond
	}
	if c.MaxHorizontalDrift <= 0 {
		c.MaxHorizontalDrift = d.MaxHorizontalDrift
	}
	if c.MinShuttleTurns <= 0 {
		c.MinShuttleTurns = d.MinShuttleTurns
	}
	if c.RepDownDegrees <= 0 {
		c.RepDownDegrees = d.RepDownDegrees
	}
	if c.RepUpDegrees <= 0 {
		c.RepUpDegrees = d.RepUpDegrees
	}
	if c.MinUniformReps <= 0 {
		c.MinUniformReps = d.MinUniformReps
	}
	if c.MinRepPeriodVariation <= 0 {
		c.MinRepPeriodVariation = d.MinRepPeriodVariation
	}
	if c.MinRepPeakSpread <= 0 {
		c.MinRepPeakSpread = d.MinRepPeakSpread
	}
	if c.MinKeypointConfidence <= 0 {
		c.MinKeypointConfidence = d.MinKeypointConfidence
	}
	if c.MovementThreshold <= 0 {
		c.MovementThreshold = d.MovementThreshold
	}
	return c
}

// Evidence is everything the checks need from the frames. It is gathered
// while the pixels are still held, the checks run after they are released.
type Evidence struct {
	Digests []video.Digest
	// SubjectCounts holds the people seen per frame, -1 where detection
	// failed. Nil when no detector ran.
	SubjectCounts []int
}

// Observations carry the per-test signals produced by the extraction stage.
type Observations struct {
	TestID string
	Pose   pose.Series
	Motion motion.Series
}

type Checker struct {
	detector SubjectDetector
	cfg      Config
	// poseCounts is set when the pose estimator counts people with the same
	// model and score floor as the detector.
	poseCounts bool
}

type CheckerOption func(*Checker)

// WithPoseSubjectCounts makes CollectWithPose take the subject counts from
// the estimated pose series instead of running the detector again.
func WithPoseSubjectCounts() CheckerOption {
	return func(c *Checker) {
		c.poseCounts = true
	}
}

// NewChecker creates a checker. A nil detector yields a checker that is
// not available and reports every recording as unchecked.
func NewChecker(detector SubjectDetector, cfg Config, opts ...CheckerOption) *Checker {
	c := &Checker{
		detector: detector,
		cfg:      cfg.WithDefaults(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Checker) Available() bool {
	return c != nil && c.detector != nil
}

func (c *Checker) Name() string {
	if !c.Available() {
		return "none"
	}
	return c.detector.Name()
}

// Collect fingerprints the frames and counts the people in each one.
func (c *Checker) Collect(ctx context.Context, frames video.Frames) (Evidence, error) {
	ev := Evidence{Digests: frames.Digests()}
	if !c.Available() {
		return ev, nil
	}

	ev.SubjectCounts = make([]int, len(frames))
	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			return Evidence{}, err
		}
		n, err := c.detector.CountSubjects(ctx, f)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Evidence{}, ctxErr
			}
			log.Debugf("integrity: count subjects in frame %d: %s", f.Index, err)
			n = unknownSubjects
		}
		ev.SubjectCounts[i] = n
	}
	return ev, nil
}

// CollectWithPose is Collect for a pose run whose series was estimated from
// the same frames. With WithPoseSubjectCounts the per-frame counts come from
// the series, so each frame goes through the model once.
func (c *Checker) CollectWithPose(ctx context.Context, frames video.Frames, series pose.Series) (Evidence, error) {
	if !c.Available() || !c.poseCounts || len(series) != len(frames) {
		return c.Collect(ctx, frames)
	}
	if err := ctx.Err(); err != nil {
		return Evidence{}, err
	}
	return Evidence{
		Digests:       frames.Digests(),
		SubjectCounts: series.SubjectCounts(),
	}, nil
}

// Check runs all checks over the evidence. Without a detector no verdict
// can be reached and the result is marked unchecked.
func (c *Checker) Check(ctx context.Context, ev Evidence, obs Observations) (analysis.Verdict, error) {
	if !c.Available() {
		return analysis.Verdict{
			Reasons: []string{ReasonUnavailable},
		}, nil
	}
	if err := ctx.Err(); err != nil {
		return analysis.Verdict{}, err
	}

	var reasons []string
	add := func(ok bool, reason string) {
		if ok {
			reasons = append(reasons, reason)
		}
	}

	add(c.multipleSubjects(ev.SubjectCounts), ReasonMultipleSubjects)
	add(duplicatedFrames(ev.Digests), ReasonDuplicatedFrames)
	add(c.loopedSequence(ev.Digests), ReasonLoopedSequence)
	add(c.lightingDiscontinuity(ev.Digests), ReasonLighting)
	add(c.backgroundDiscontinuity(ev.Digests), ReasonBackground)

	switch obs.TestID {
	case extract.SitUpsID:
		add(c.implausibleTorsoMotion(obs.Pose) || c.metronomicReps(obs.Pose), ReasonImplausibleTorso)
	case extract.VerticalJumpID:
		add(c.horizontalDrift(obs.Pose), ReasonHorizontalDrift)
	case extract.ShuttleRunID:
		add(c.missingTurns(obs.Motion), ReasonMissingTurns)
	}

	return analysis.Verdict{
		CheatDetected: len(reasons) > 0,
		Reasons:       reasons,
		Checked:       true,
	}, nil
}

func (c *Checker) multipleSubjects(counts []int) bool {
	known := 0
	crowded := 0
	for _, n := range counts {
		if n == unknownSubjects {
			continue
		}
		known++
		if n >= 2 {
			crowded++
		}
	}
	if crowded == 0 {
		return false
	}
	return crowded >= min(c.cfg.MultiSubjectFrames, known)
}

// duplicatedFrames reports byte-identical frames. Sensor noise makes two
// genuinely captured frames differ even when nothing moves.
func duplicatedFrames(digests []video.Digest) bool {
	seen := make(map[uint64]struct{}, len(digests))
	for _, d := range digests {
		if _, ok := seen[d.ContentHash]; ok {
			return true
		}
		seen[d.ContentHash] = struct{}{}
	}
	return false
}

// loopedSequence looks for a run of frames that replays an earlier run of
// moving frames at a fixed lag. Any such run of minLoopRun frames counts,
// however short it is compared to the clip.
func (c *Checker) loopedSequence(digests []video.Digest) bool {
	n := len(digests)
	for lag := 2; lag <= n-minLoopRun; lag++ {
		run := 0
		moving := false
		for i := 0; i+lag < n; i++ {
			a, b := digests[i], digests[i+lag]
			if vision.Hamming(a.DHash, b.DHash) <= c.cfg.LoopHamming && math.Abs(a.MeanLuma-b.MeanLuma) < 0.005 {
				run++
				if i > 0 && vision.Hamming(digests[i-1].DHash, a.DHash) >= loopMotionBits {
					moving = true
				}
				if run >= minLoopRun && moving {
					return true
				}
				continue
			}
			run = 0
			moving = false
		}
	}
	return false
}

func (c *Checker) lightingDiscontinuity(digests []video.Digest) bool {
	for i := 1; i < len(digests); i++ {
		if math.Abs(digests[i].MeanLuma-digests[i-1].MeanLuma) > c.cfg.LumaJump {
			return true
		}
	}
	return false
}

// backgroundDiscontinuity compares the border of consecutive frames after
// removing the global brightness shift, so a lighting change alone does not
// count as a scene cut.
func (c *Checker) backgroundDiscontinuity(digests []video.Digest) bool {
	for i := 1; i < len(digests); i++ {
		prev, cur := digests[i-1].Border, digests[i].Border
		if len(prev) == 0 || len(prev) != len(cur) {
			continue
		}
		shift := 0.0
		for k := range cur {
			shift += cur[k] - prev[k]
		}
		shift /= float64(len(cur))

		changed := 0
		for k := range cur {
			if math.Abs(cur[k]-prev[k]-shift) > c.cfg.BorderJump {
				changed++
			}
		}
		if changed*2 >= len(cur) {
			return true
		}
	}
	return false
}

func (c *Checker) implausibleTorsoMotion(series pose.Series) bool {
	prevAngle, prevTs := 0.0, int64(-1)
	for _, s := range series {
		if !s.Detected() {
			continue
		}
		angle, ok := extract.TorsoInclination(s, c.cfg.MinKeypointConfidence)
		if !ok {
			continue
		}
		if prevTs >= 0 && s.TimestampMs > prevTs {
			dt := float64(s.TimestampMs-prevTs) / 1000
			if math.Abs(angle-prevAngle)/dt > c.cfg.MaxTorsoDegreesPerSecond {
				return true
			}
		}
		prevAngle, prevTs = angle, s.TimestampMs
	}
	return false
}

// metronomicReps reports sit-ups that repeat more exactly than a body does:
// the periods between repetitions and the top angle of each repetition both
// stay within their floors. Timing alone is not enough, the sampling grid
// quantizes the periods of a steady athlete too.
func (c *Checker) metronomicReps(series pose.Series) bool {
	counter := extract.NewRepCounter(c.cfg.RepDownDegrees, c.cfg.RepUpDegrees)
	var repTimes, peaks []float64
	inRep := false
	peak := 0.0
	for _, s := range series {
		if !s.Detected() {
			continue
		}
		angle, ok := extract.TorsoInclination(s, c.cfg.MinKeypointConfidence)
		if !ok {
			continue
		}
		before := counter.Count()
		if counter.Observe(angle) > before {
			repTimes = append(repTimes, float64(s.TimestampMs))
			inRep, peak = true, angle
			continue
		}
		if !inRep {
			continue
		}
		if angle <= c.cfg.RepDownDegrees {
			peaks = append(peaks, peak)
			inRep = false
			continue
		}
		peak = math.Max(peak, angle)
	}

	if len(repTimes) < c.cfg.MinUniformReps || len(peaks) < c.cfg.MinUniformReps-1 {
		return false
	}
	periods := make([]float64, 0, len(repTimes)-1)
	for i := 1; i < len(repTimes); i++ {
		periods = append(periods, repTimes[i]-repTimes[i-1])
	}
	mean := stat.Mean(periods, nil)
	if mean <= 0 || stat.StdDev(periods, nil)/mean >= c.cfg.MinRepPeriodVariation {
		return false
	}
	return stat.StdDev(peaks, nil) < c.cfg.MinRepPeakSpread
}

func (c *Checker) horizontalDrift(series pose.Series) bool {
	minX, maxX := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		if !s.Detected() {
			continue
		}
		x, _, ok := s.Center(c.cfg.MinKeypointConfidence, pose.LeftHip, pose.RightHip)
		if !ok {
			continue
		}
		minX = math.Min(minX, x)
		maxX = math.Max(maxX, x)
	}
	if math.IsInf(minX, 1) {
		return false
	}
	return maxX-minX > c.cfg.MaxHorizontalDrift
}

func (c *Checker) missingTurns(series motion.Series) bool {
	if len(series) == 0 || series.TrackedFraction() == 0 {
		return false
	}
	return extract.DirectionReversals(series, c.cfg.MovementThreshold) < c.cfg.MinShuttleTurns
}
