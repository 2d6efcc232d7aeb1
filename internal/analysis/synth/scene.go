// Package synth renders simple synthetic recordings: side-view stick figures
// on a flat background. They drive the demo command and the tests of the
// classical heuristics.
package synth

import (
	"image"
	"image/color"
	"math"
)

// Point is a normalized frame coordinate, (0,0) top-left, (1,1) bottom-right.
type Point struct {
	X, Y float64
}

// Figure is a three-point side-view body: top of the head, hip and feet.
type Figure struct {
	Head, Hip, Feet Point
	Shade           uint8
	// Thickness of the limbs as a fraction of the frame height.
	Thickness float64
}

// Standing places an upright figure with its feet at (x, groundY).
func Standing(x, groundY, stature float64) Figure {
	return Figure{
		Head:      Point{x, groundY - stature},
		Hip:       Point{x, groundY - 0.48*stature},
		Feet:      Point{x, groundY},
		Shade:     30,
		Thickness: stature / 10,
	}
}

// SitUp places a figure lying with legs flat on the ground and the torso
// raised by angleDeg around the hip. Legs point to the right.
func SitUp(hipX, groundY, stature, angleDeg float64) Figure {
	thickness := stature / 10
	y := groundY - thickness/2
	torso := 0.52 * stature
	rad := angleDeg * math.Pi / 180
	return Figure{
		Head:      Point{hipX - torso*math.Cos(rad), y - torso*math.Sin(rad)},
		Hip:       Point{hipX, y},
		Feet:      Point{hipX + 0.48*stature, y},
		Shade:     30,
		Thickness: thickness,
	}
}

// Scene is one frame: a background, optional global luminance shift and
// any number of figures.
type Scene struct {
	W, H       int
	Background uint8
	// LumaShift is added to every pixel, simulating an exposure change.
	LumaShift int
	// Noise is the amplitude of the deterministic per-pixel sensor noise.
	Noise int
	// NoiseSeed varies the noise pattern between frames.
	NoiseSeed int
	Figures   []Figure
}

func (s Scene) Render() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, s.W, s.H))
	for y := 0; y < s.H; y++ {
		for x := 0; x < s.W; x++ {
			v := int(s.Background)
			px := Point{(float64(x) + 0.5) / float64(s.W), (float64(y) + 0.5) / float64(s.H)}
			for _, f := range s.Figures {
				if f.covers(px, s.W, s.H) {
					v = int(f.Shade)
				}
			}
			v += s.LumaShift
			if s.Noise > 0 {
				v += noise(x, y, s.NoiseSeed, s.Noise)
			}
			g := uint8(min(255, max(0, v)))
			img.SetRGBA(x, y, color.RGBA{R: g, G: g, B: g, A: 255})
		}
	}
	return img
}

func (f Figure) covers(p Point, w, h int) bool {
	aspect := float64(w) / float64(h)
	// work in units of frame height so circles stay round
	toH := func(q Point) Point { return Point{q.X * aspect, q.Y} }
	pp, head, hip, feet := toH(p), toH(f.Head), toH(f.Hip), toH(f.Feet)

	r := f.Thickness / 2
	headR := f.Thickness * 0.7
	dx, dy := hip.X-head.X, hip.Y-head.Y
	l := math.Hypot(dx, dy)
	if l > 0 {
		center := Point{head.X + dx/l*headR, head.Y + dy/l*headR}
		if math.Hypot(pp.X-center.X, pp.Y-center.Y) <= headR {
			return true
		}
	}
	return segmentDistance(pp, head, hip) <= r || segmentDistance(pp, hip, feet) <= r*0.9
}

func segmentDistance(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}

// noise is a fixed integer hash, so renders are reproducible.
func noise(x, y, seed, amplitude int) int {
	h := uint32(x)*374761393 + uint32(y)*668265263 + uint32(seed)*2246822519
	h = (h ^ (h >> 13)) * 1274126177
	h ^= h >> 16
	return int(h%uint32(2*amplitude+1)) - amplitude
}
