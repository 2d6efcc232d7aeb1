package vision

import (
	"hash/fnv"
	"image"
	"math/bits"
)

// ContentHash hashes the exact pixel content of img. Two frames of a live
// camera recording practically never collide; equal hashes mean copied frames.
func ContentHash(img image.Image) uint64 {
	h := fnv.New64a()
	switch im := img.(type) {
	case *image.RGBA:
		b := im.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			off := im.PixOffset(b.Min.X, y)
			_, _ = h.Write(im.Pix[off : off+4*b.Dx()])
		}
	default:
		b := img.Bounds()
		row := make([]byte, 0, 8*b.Dx())
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row = row[:0]
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, a := img.At(x, y).RGBA()
				row = append(row,
					byte(r>>8), byte(r), byte(g>>8), byte(g),
					byte(bl>>8), byte(bl), byte(a>>8), byte(a),
				)
			}
			_, _ = h.Write(row)
		}
	}
	return h.Sum64()
}

// dHashMargin is the luminance difference a cell needs over its right
// neighbour to set its bit. Flat regions then hash to zeros instead of
// following the sensor noise.
const dHashMargin = 1.0

// DHash is a 64-bit difference hash: the plane is reduced to 9x8 cell means
// and each bit tells whether a cell is brighter than its right neighbour.
func DHash(g *Gray) uint64 {
	if g.W < 9 || g.H < 8 {
		return 0
	}
	cells := g.CellMeans(9, 8)
	var hash uint64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			hash <<= 1
			if cells[y*9+x] > cells[y*9+x+1]+dHashMargin {
				hash |= 1
			}
		}
	}
	return hash
}

// Hamming is the number of differing bits between two hashes.
func Hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// BorderSignature is the mean luminance of the 12 border cells of a 4x4 grid,
// normalized to [0,1]. The subject rarely covers the border, so the
// signature describes the background.
func BorderSignature(g *Gray) []float64 {
	const cells = 4
	sig := make([]float64, 0, 12)
	if g.W < cells || g.H < cells {
		return sig
	}
	means := g.CellMeans(cells, cells)
	for cy := 0; cy < cells; cy++ {
		for cx := 0; cx < cells; cx++ {
			if cx > 0 && cx < cells-1 && cy > 0 && cy < cells-1 {
				continue
			}
			sig = append(sig, means[cy*cells+cx]/255)
		}
	}
	return sig
}
