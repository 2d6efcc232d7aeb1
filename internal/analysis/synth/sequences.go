package synth

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	DefaultWidth  = 320
	DefaultHeight = 240
	DefaultFPS    = 10.0

	stature = 0.5
	ground  = 0.9
)

func baseScene(seed int) Scene {
	return Scene{
		W:          DefaultWidth,
		H:          DefaultHeight,
		Background: 200,
		Noise:      2,
		NoiseSeed:  seed,
	}
}

// VerticalJump renders an athlete standing, rising by jumpHeight (normalized)
// and landing again.
func VerticalJump(frames int, jumpHeight float64) []image.Image {
	imgs := make([]image.Image, 0, frames)
	for i := 0; i < frames; i++ {
		lift := 0.0
		if frames > 2 {
			// flight arc over the middle of the clip
			phase := float64(i) / float64(frames-1)
			if phase > 0.2 && phase < 0.8 {
				lift = jumpHeight * math.Sin((phase-0.2)/0.6*math.Pi)
			}
		}
		s := baseScene(i)
		s.Figures = []Figure{Standing(0.5, ground-lift, stature)}
		imgs = append(imgs, s.Render())
	}
	return imgs
}

// SitUps renders reps full repetitions, framesPerRep frames each, the torso
// swinging between flat and upright.
func SitUps(reps, framesPerRep int) []image.Image {
	total := reps * framesPerRep
	imgs := make([]image.Image, 0, total+1)
	for i := 0; i <= total; i++ {
		// the warp keeps repetitions from being pixel-identical, as no two
		// real ones are
		phase := float64(i)/float64(framesPerRep) + 0.05*math.Sin(float64(i)*0.9)
		angle := 85 * (1 - math.Cos(2*math.Pi*phase)) / 2
		s := baseScene(i)
		s.Figures = []Figure{SitUp(0.45, ground, stature*1.2, angle)}
		imgs = append(imgs, s.Render())
	}
	return imgs
}

// Sprint renders an athlete crossing the frame left to right at constant speed.
func Sprint(frames int) []image.Image {
	imgs := make([]image.Image, 0, frames)
	for i := 0; i < frames; i++ {
		x := 0.15 + 0.7*float64(i)/float64(max(1, frames-1))
		s := baseScene(i)
		s.Figures = []Figure{Standing(x, ground, stature*0.8)}
		imgs = append(imgs, s.Render())
	}
	return imgs
}

// Shuttle renders an athlete running back and forth laps times.
func Shuttle(frames, laps int) []image.Image {
	imgs := make([]image.Image, 0, frames)
	for i := 0; i < frames; i++ {
		phase := float64(i) / float64(max(1, frames-1)) * float64(laps)
		// triangle wave between the two lines
		tri := phase - math.Floor(phase)
		if int(math.Floor(phase))%2 == 1 {
			tri = 1 - tri
		}
		s := baseScene(i)
		s.Figures = []Figure{Standing(0.15+0.7*tri, ground, stature*0.8)}
		imgs = append(imgs, s.Render())
	}
	return imgs
}

// BroadJump renders a standing long jump covering distance (normalized).
func BroadJump(frames int, distance float64) []image.Image {
	imgs := make([]image.Image, 0, frames)
	for i := 0; i < frames; i++ {
		phase := float64(i) / float64(max(1, frames-1))
		x, lift := 0.25, 0.0
		switch {
		case phase >= 0.7:
			x += distance
		case phase > 0.3:
			p := (phase - 0.3) / 0.4
			x += distance * p
			lift = 0.1 * math.Sin(p*math.Pi)
		}
		s := baseScene(i)
		s.Figures = []Figure{Standing(x, ground-lift, stature*0.8)}
		imgs = append(imgs, s.Render())
	}
	return imgs
}

// TwoAthletes renders two figures standing side by side.
func TwoAthletes(frames int) []image.Image {
	imgs := make([]image.Image, 0, frames)
	for i := 0; i < frames; i++ {
		s := baseScene(i)
		s.Figures = []Figure{
			Standing(0.3, ground, stature),
			Standing(0.7, ground, stature),
		}
		imgs = append(imgs, s.Render())
	}
	return imgs
}

// Empty renders frames with no athlete at all.
func Empty(frames int) []image.Image {
	imgs := make([]image.Image, 0, frames)
	for i := 0; i < frames; i++ {
		imgs = append(imgs, baseScene(i).Render())
	}
	return imgs
}

type manifest struct {
	FPS float64 `toml:"fps"`
}

// WriteSequence stores imgs as numbered PNG files plus a sequence.toml
// manifest, the layout the image-sequence video source reads.
func WriteSequence(dir string, imgs []image.Image, fps float64) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i, img := range imgs {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return fmt.Errorf("encode frame %d: %w", i, err)
		}
		name := filepath.Join(dir, fmt.Sprintf("frame_%05d.png", i))
		if err := os.WriteFile(name, buf.Bytes(), 0o644); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(manifest{FPS: fps}); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "sequence.toml"), buf.Bytes(), 0o644)
}
