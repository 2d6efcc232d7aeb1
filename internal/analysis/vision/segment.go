package vision

import (
	"image"
	"sort"
)

// Mask is a binary foreground mask.
type Mask struct {
	W, H int
	Bits []bool
}

// Blob is a 4-connected foreground component. Coordinates are in pixels of
// the plane it was found in.
type Blob struct {
	Area                   int
	MinX, MinY, MaxX, MaxY int
	CX, CY                 float64
	// Seed is the plane index of one pixel of the blob.
	Seed int
}

func (b Blob) Width() int  { return b.MaxX - b.MinX + 1 }
func (b Blob) Height() int { return b.MaxY - b.MinY + 1 }

// FillRatio is the share of the bounding box covered by the blob.
func (b Blob) FillRatio() float64 {
	box := b.Width() * b.Height()
	if box == 0 {
		return 0
	}
	return float64(b.Area) / float64(box)
}

// Otsu returns the threshold maximizing between-class variance.
func Otsu(g *Gray) uint8 {
	var hist [256]int
	for _, p := range g.Pix {
		hist[p]++
	}
	total := len(g.Pix)
	if total == 0 {
		return 0
	}

	var sumAll float64
	for i, c := range hist {
		sumAll += float64(i * c)
	}

	var (
		sumB, best float64
		wB         int
		threshold  uint8
	)
	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		mB := sumB / float64(wB)
		mF := (sumAll - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			threshold = uint8(t)
		}
	}
	return threshold
}

// Silhouette segments g into foreground and background with Otsu's threshold.
// The class that dominates the image border is taken as background.
// ok is false when the plane has no usable contrast.
func Silhouette(g *Gray, minContrast uint8) (_ Mask, ok bool) {
	m := Mask{W: g.W, H: g.H, Bits: make([]bool, len(g.Pix))}
	if len(g.Pix) == 0 {
		return m, false
	}

	t := Otsu(g)
	var lo, hi uint8 = 255, 0
	for _, p := range g.Pix {
		lo = min(lo, p)
		hi = max(hi, p)
	}
	if hi-lo < minContrast {
		return m, false
	}

	brightBorder, border := 0, 0
	countBorder := func(x, y int) {
		border++
		if g.At(x, y) > t {
			brightBorder++
		}
	}
	for x := 0; x < g.W; x++ {
		countBorder(x, 0)
		countBorder(x, g.H-1)
	}
	for y := 1; y < g.H-1; y++ {
		countBorder(0, y)
		countBorder(g.W-1, y)
	}
	foregroundIsDark := brightBorder*2 >= border

	for i, p := range g.Pix {
		if foregroundIsDark {
			m.Bits[i] = p <= t
		} else {
			m.Bits[i] = p > t
		}
	}
	return m, true
}

// DiffMask marks pixels differing from bg by more than threshold.
func DiffMask(g, bg *Gray, threshold uint8) Mask {
	m := Mask{W: g.W, H: g.H, Bits: make([]bool, len(g.Pix))}
	if bg.W != g.W || bg.H != g.H {
		return m
	}
	for i, p := range g.Pix {
		d := int(p) - int(bg.Pix[i])
		if d < 0 {
			d = -d
		}
		m.Bits[i] = d > int(threshold)
	}
	return m
}

// Components returns the 4-connected components with at least minArea pixels,
// largest first. Ties are broken by position so the order is stable.
func Components(m Mask, minArea int) []Blob {
	visited := make([]bool, len(m.Bits))
	stack := make([]int, 0, 64)
	var blobs []Blob

	for start, on := range m.Bits {
		if !on || visited[start] {
			continue
		}
		b := Blob{MinX: m.W, MinY: m.H, MaxX: -1, MaxY: -1, Seed: start}
		var sumX, sumY int
		visited[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := idx%m.W, idx/m.W
			b.Area++
			sumX += x
			sumY += y
			b.MinX, b.MaxX = min(b.MinX, x), max(b.MaxX, x)
			b.MinY, b.MaxY = min(b.MinY, y), max(b.MaxY, y)

			if x > 0 {
				stack = pushIfOn(m, visited, stack, idx-1)
			}
			if x < m.W-1 {
				stack = pushIfOn(m, visited, stack, idx+1)
			}
			if y > 0 {
				stack = pushIfOn(m, visited, stack, idx-m.W)
			}
			if y < m.H-1 {
				stack = pushIfOn(m, visited, stack, idx+m.W)
			}
		}
		if b.Area < minArea {
			continue
		}
		b.CX = float64(sumX) / float64(b.Area)
		b.CY = float64(sumY) / float64(b.Area)
		blobs = append(blobs, b)
	}

	sort.SliceStable(blobs, func(i, j int) bool {
		if blobs[i].Area != blobs[j].Area {
			return blobs[i].Area > blobs[j].Area
		}
		if blobs[i].MinY != blobs[j].MinY {
			return blobs[i].MinY < blobs[j].MinY
		}
		return blobs[i].MinX < blobs[j].MinX
	})
	return blobs
}

// Pixels returns the coordinates of every pixel of b, in scan order.
func Pixels(m Mask, b Blob) []image.Point {
	if b.Seed < 0 || b.Seed >= len(m.Bits) || !m.Bits[b.Seed] {
		return nil
	}
	visited := make([]bool, len(m.Bits))
	visited[b.Seed] = true
	stack := []int{b.Seed}
	var idxs []int
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		idxs = append(idxs, idx)
		x, y := idx%m.W, idx/m.W
		if x > 0 {
			stack = pushIfOn(m, visited, stack, idx-1)
		}
		if x < m.W-1 {
			stack = pushIfOn(m, visited, stack, idx+1)
		}
		if y > 0 {
			stack = pushIfOn(m, visited, stack, idx-m.W)
		}
		if y < m.H-1 {
			stack = pushIfOn(m, visited, stack, idx+m.W)
		}
	}
	sort.Ints(idxs)
	pts := make([]image.Point, len(idxs))
	for i, idx := range idxs {
		pts[i] = image.Pt(idx%m.W, idx/m.W)
	}
	return pts
}

func pushIfOn(m Mask, visited []bool, stack []int, idx int) []int {
	if m.Bits[idx] && !visited[idx] {
		visited[idx] = true
		stack = append(stack, idx)
	}
	return stack
}

// Subjects keeps the blobs that plausibly are people: at least minFrac of the
// frame area and at least relFrac of the largest blob.
func Subjects(blobs []Blob, frameArea int, minFrac, relFrac float64) []Blob {
	if len(blobs) == 0 || frameArea == 0 {
		return nil
	}
	largest := float64(blobs[0].Area)
	var subjects []Blob
	for _, b := range blobs {
		area := float64(b.Area)
		if area/float64(frameArea) < minFrac || area < relFrac*largest {
			continue
		}
		subjects = append(subjects, b)
	}
	return subjects
}
