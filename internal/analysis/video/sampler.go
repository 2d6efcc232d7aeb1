package video

import (
	"context"
	"fmt"

	"github.com/2beens/fitanalysis/internal/analysis"
)

// Sampler extracts a fixed number of evenly spaced frames from a video.
type Sampler struct {
	pool *FramePool
}

func NewSampler(pool *FramePool) *Sampler {
	return &Sampler{pool: pool}
}

func (s *Sampler) Pool() *FramePool {
	return s.pool
}

// Sample returns min(frameCount, native frames) frames spaced duration/frameCount
// apart, starting at the first frame. A native frame is never returned twice.
// On any error the frames decoded so far are released before returning.
func (s *Sampler) Sample(ctx context.Context, v Video, frameCount int) (_ Frames, err error) {
	if frameCount <= 0 {
		return nil, analysis.InsufficientDataError("frame count must be positive, got %d", frameCount)
	}
	if v.Duration() <= 0 {
		return nil, analysis.DecodeError("video has zero duration")
	}
	native := v.NativeFrames()
	if native <= 0 {
		return nil, analysis.DecodeError("video has no decodable frames")
	}

	indices := SampleIndices(native, frameCount)
	frames := make(Frames, 0, len(indices))
	defer func() {
		if err != nil {
			frames.Release()
		}
	}()

	for i, idx := range indices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, ts, err := v.DecodeFrame(ctx, idx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, analysis.NewError(analysis.KindDecode, fmt.Sprintf("native frame %d", idx), err)
		}
		frames = append(frames, s.pool.NewFrame(i, ts.Milliseconds(), img))
	}

	return frames, nil
}

// SampleIndices picks the native frame indices for a sample of frameCount.
// When the video has fewer frames than requested every frame is used once.
func SampleIndices(native, frameCount int) []int {
	if native <= 0 || frameCount <= 0 {
		return nil
	}
	if frameCount >= native {
		indices := make([]int, native)
		for i := range indices {
			indices[i] = i
		}
		return indices
	}
	indices := make([]int, frameCount)
	for i := range indices {
		// strictly increasing since frameCount < native
		indices[i] = i * native / frameCount
	}
	return indices
}
