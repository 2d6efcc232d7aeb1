// Package vision holds the small, deterministic image primitives the
// classical analysis heuristics are built from: luminance planes,
// segmentation, connected components and frame fingerprints.
package vision

import (
	"image"

	"golang.org/x/image/draw"
)

// DefaultWorkingWidth is the width frames are reduced to before analysis.
const DefaultWorkingWidth = 160

// Gray is an 8-bit luminance plane.
type Gray struct {
	W, H int
	Pix  []uint8
}

func NewGray(w, h int) *Gray {
	return &Gray{W: w, H: h, Pix: make([]uint8, w*h)}
}

func (g *Gray) At(x, y int) uint8 {
	return g.Pix[y*g.W+x]
}

func (g *Gray) Set(x, y int, v uint8) {
	g.Pix[y*g.W+x] = v
}

// ToGray converts img to luminance, downscaling it to at most maxWidth pixels
// wide (aspect ratio kept). maxWidth <= 0 keeps the original size.
// Scaling uses a fixed kernel, so the output is reproducible bit for bit.
func ToGray(img image.Image, maxWidth int) *Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return NewGray(0, 0)
	}
	if maxWidth > 0 && w > maxWidth {
		h = max(1, h*maxWidth/w)
		w = maxWidth
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	}

	g := &Gray{W: w, H: h, Pix: make([]uint8, w*h)}
	for y := 0; y < h; y++ {
		copy(g.Pix[y*w:(y+1)*w], dst.Pix[y*dst.Stride:y*dst.Stride+w])
	}
	return g
}

// CellMeans splits g into a cols x rows grid and returns the mean luminance
// of every cell, row by row.
func (g *Gray) CellMeans(cols, rows int) []float64 {
	means := make([]float64, cols*rows)
	if g.W < cols || g.H < rows {
		return means
	}
	for cy := 0; cy < rows; cy++ {
		y0, y1 := cy*g.H/rows, (cy+1)*g.H/rows
		for cx := 0; cx < cols; cx++ {
			x0, x1 := cx*g.W/cols, (cx+1)*g.W/cols
			sum := 0
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					sum += int(g.Pix[y*g.W+x])
				}
			}
			means[cy*cols+cx] = float64(sum) / float64((x1-x0)*(y1-y0))
		}
	}
	return means
}

// MeanLuma returns the mean luminance normalized to [0,1].
func (g *Gray) MeanLuma() float64 {
	if len(g.Pix) == 0 {
		return 0
	}
	var sum uint64
	for _, p := range g.Pix {
		sum += uint64(p)
	}
	return float64(sum) / float64(len(g.Pix)) / 255
}

// MedianBackground builds a per-pixel median over planes of equal size.
// Anything that moves across the sequence drops out of the median.
func MedianBackground(planes []*Gray) *Gray {
	if len(planes) == 0 {
		return NewGray(0, 0)
	}
	w, h := planes[0].W, planes[0].H
	bg := NewGray(w, h)

	var hist [256]int
	half := len(planes) / 2
	for i := range bg.Pix {
		clear(hist[:])
		for _, p := range planes {
			hist[p.Pix[i]]++
		}
		seen := 0
		for v := 0; v < 256; v++ {
			seen += hist[v]
			if seen > half {
				bg.Pix[i] = uint8(v)
				break
			}
		}
	}
	return bg
}
