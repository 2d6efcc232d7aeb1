package video

import (
	"github.com/2beens/fitanalysis/internal/analysis/vision"
)

// Digest is a compact fingerprint of a frame. It outlives the pixel buffer,
// so integrity checks can run after the frames were released.
type Digest struct {
	Index       int
	TimestampMs int64
	ContentHash uint64
	DHash       uint64
	MeanLuma    float64
	Border      []float64
}

func newDigest(f *Frame) Digest {
	g := f.Gray()
	return Digest{
		Index:       f.Index,
		TimestampMs: f.TimestampMs,
		ContentHash: vision.ContentHash(f.img),
		DHash:       vision.DHash(g),
		MeanLuma:    g.MeanLuma(),
		Border:      vision.BorderSignature(g),
	}
}
