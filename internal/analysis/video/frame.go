package video

import (
	"image"
	"image/draw"
	"sync"
	"sync/atomic"

	"github.com/2beens/fitanalysis/internal/analysis/vision"
)

// Frame is one still sample of a video. Its pixel buffer is borrowed from a
// FramePool and must be handed back with Release once the frame is consumed.
type Frame struct {
	Index       int
	TimestampMs int64

	mu       sync.Mutex
	img      *image.RGBA
	gray     *vision.Gray
	digest   Digest
	pool     *FramePool
	released bool
}

// Image returns the pixel data, or nil once the frame was released.
func (f *Frame) Image() image.Image {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.img == nil {
		return nil
	}
	return f.img
}

// Gray returns the reduced luminance plane used by the heuristics.
// It is computed on first use and dropped together with the pixels.
func (f *Frame) Gray() *vision.Gray {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gray == nil && f.img != nil {
		f.gray = vision.ToGray(f.img, f.pool.workingWidth)
	}
	if f.gray == nil {
		return vision.NewGray(0, 0)
	}
	return f.gray
}

// Digest returns the fingerprint taken when the frame was decoded.
// It stays available after Release.
func (f *Frame) Digest() Digest {
	return f.digest
}

func (f *Frame) Released() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

// Release returns the pixel buffer to the pool. Safe to call more than once.
func (f *Frame) Release() {
	f.mu.Lock()
	if f.released {
		f.mu.Unlock()
		return
	}
	img := f.img
	f.img = nil
	f.gray = nil
	f.released = true
	f.mu.Unlock()

	f.pool.put(img)
}

// Frames is an ordered frame sequence owned by one pipeline run.
type Frames []*Frame

// Release releases every frame of the sequence.
func (fs Frames) Release() {
	for _, f := range fs {
		if f != nil {
			f.Release()
		}
	}
}

// Digests returns the fingerprints of all frames, in order.
func (fs Frames) Digests() []Digest {
	digests := make([]Digest, 0, len(fs))
	for _, f := range fs {
		digests = append(digests, f.Digest())
	}
	return digests
}

// Timestamps returns the presentation times of all frames, in order.
func (fs Frames) Timestamps() []int64 {
	ts := make([]int64, len(fs))
	for i, f := range fs {
		ts[i] = f.TimestampMs
	}
	return ts
}

// FramePool recycles RGBA pixel buffers and counts how many are handed out,
// which makes buffer leaks observable.
type FramePool struct {
	buffers      sync.Pool
	workingWidth int
	outstanding  atomic.Int64
	acquired     atomic.Int64
	released     atomic.Int64
	onRelease    func()
}

type FramePoolOption func(*FramePool)

// WithReleaseHook registers fn to be called every time a buffer comes back.
func WithReleaseHook(fn func()) FramePoolOption {
	return func(p *FramePool) {
		p.onRelease = fn
	}
}

// WithWorkingWidth sets the width of the luminance planes handed to heuristics.
func WithWorkingWidth(w int) FramePoolOption {
	return func(p *FramePool) {
		p.workingWidth = w
	}
}

func NewFramePool(opts ...FramePoolOption) *FramePool {
	p := &FramePool{
		workingWidth: vision.DefaultWorkingWidth,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFrame copies src into a pooled buffer and fingerprints it.
func (p *FramePool) NewFrame(index int, timestampMs int64, src image.Image) *Frame {
	b := src.Bounds()
	img := p.get(b.Dx(), b.Dy())
	draw.Draw(img, img.Bounds(), src, b.Min, draw.Src)

	f := &Frame{
		Index:       index,
		TimestampMs: timestampMs,
		img:         img,
		pool:        p,
	}
	f.digest = newDigest(f)
	return f
}

// Outstanding is the number of buffers currently held by frames.
func (p *FramePool) Outstanding() int64 {
	return p.outstanding.Load()
}

func (p *FramePool) Acquired() int64 {
	return p.acquired.Load()
}

func (p *FramePool) Released() int64 {
	return p.released.Load()
}

func (p *FramePool) get(w, h int) *image.RGBA {
	p.outstanding.Add(1)
	p.acquired.Add(1)

	size := 4 * w * h
	if buf, ok := p.buffers.Get().(*[]byte); ok && cap(*buf) >= size {
		pix := (*buf)[:size]
		return &image.RGBA{Pix: pix, Stride: 4 * w, Rect: image.Rect(0, 0, w, h)}
	}
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func (p *FramePool) put(img *image.RGBA) {
	if img == nil {
		return
	}
	buf := img.Pix[:0]
	p.buffers.Put(&buf)
	p.outstanding.Add(-1)
	p.released.Add(1)
	if p.onRelease != nil {
		p.onRelease()
	}
}
