package pose

import (
	"fmt"
)

// Joint identifies one of the 17 COCO body keypoints.
type Joint int

const (
	Nose Joint = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle

	NumJoints = 17
)

var jointNames = [NumJoints]string{
	"nose",
	"left_eye",
	"right_eye",
	"left_ear",
	"right_ear",
	"left_shoulder",
	"right_shoulder",
	"left_elbow",
	"right_elbow",
	"left_wrist",
	"right_wrist",
	"left_hip",
	"right_hip",
	"left_knee",
	"right_knee",
	"left_ankle",
	"right_ankle",
}

func (j Joint) String() string {
	if j < 0 || int(j) >= NumJoints {
		return fmt.Sprintf("joint(%d)", int(j))
	}
	return jointNames[j]
}

// Keypoint is a body joint in normalized frame coordinates: x and y in [0,1],
// y growing downwards.
type Keypoint struct {
	Joint      Joint   `json:"joint"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// Sample is the pose estimated for one frame. An empty Keypoints slice with
// OverallConfidence 0 means no subject was detected.
type Sample struct {
	FrameIndex        int        `json:"frameIndex"`
	TimestampMs       int64      `json:"timestampMs"`
	Keypoints         []Keypoint `json:"keypoints"`
	OverallConfidence float64    `json:"overallConfidence"`
	// Subjects is the number of people the estimator saw in the frame,
	// UnknownSubjects when estimation failed.
	Subjects int `json:"subjects"`
}

const UnknownSubjects = -1

func (s Sample) Detected() bool {
	return len(s.Keypoints) > 0 && s.OverallConfidence > 0
}

// Keypoint returns joint j when it was estimated with at least minConfidence.
func (s Sample) Keypoint(j Joint, minConfidence float64) (Keypoint, bool) {
	for _, kp := range s.Keypoints {
		if kp.Joint == j && kp.Confidence >= minConfidence {
			return kp, true
		}
	}
	return Keypoint{}, false
}

// Center averages the given joints that pass minConfidence.
// ok is false when none of them do.
func (s Sample) Center(minConfidence float64, joints ...Joint) (x, y float64, ok bool) {
	n := 0
	for _, j := range joints {
		kp, found := s.Keypoint(j, minConfidence)
		if !found {
			continue
		}
		x += kp.X
		y += kp.Y
		n++
	}
	if n == 0 {
		return 0, 0, false
	}
	return x / float64(n), y / float64(n), true
}

// MeanConfidence is the mean keypoint confidence, 0 for no keypoints.
func MeanConfidence(kps []Keypoint) float64 {
	if len(kps) == 0 {
		return 0
	}
	var sum float64
	for _, kp := range kps {
		sum += kp.Confidence
	}
	return sum / float64(len(kps))
}

// Series is the per-frame pose sequence of one recording, ordered by frame.
type Series []Sample

// DetectedFraction is the share of frames with a detected subject.
func (s Series) DetectedFraction() float64 {
	if len(s) == 0 {
		return 0
	}
	n := 0
	for _, sample := range s {
		if sample.Detected() {
			n++
		}
	}
	return float64(n) / float64(len(s))
}

// SubjectCounts returns the per-frame number of people seen, UnknownSubjects
// for frames whose estimate failed.
func (s Series) SubjectCounts() []int {
	counts := make([]int, len(s))
	for i, sample := range s {
		counts[i] = sample.Subjects
	}
	return counts
}
