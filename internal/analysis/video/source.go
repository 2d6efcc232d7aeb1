package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Video is an opened, decodable recording.
type Video interface {
	// Duration is the length of the recording; 0 means nothing is decodable.
	Duration() time.Duration
	// NativeFrames is the number of distinct frames the recording holds.
	NativeFrames() int
	// DecodeFrame decodes the native frame at idx and returns its presentation time.
	DecodeFrame(ctx context.Context, idx int) (image.Image, time.Duration, error)
	// Source names the backend, for provenance.
	Source() string
	Close() error
}

const (
	ManifestFileName   = "sequence.toml"
	DefaultSequenceFPS = 30.0
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// SequenceManifest describes an image-sequence recording directory.
type SequenceManifest struct {
	FPS float64 `toml:"fps"`
}

// ImageSequence is a recording stored as one image file per frame,
// ordered by file name.
type ImageSequence struct {
	dir   string
	files []string
	fps   float64
}

// OpenImageSequence lists the frame files of dir. An optional sequence.toml
// sets the frame rate.
func OpenImageSequence(dir string) (*ImageSequence, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read sequence dir: %w", err)
	}

	seq := &ImageSequence{
		dir: dir,
		fps: DefaultSequenceFPS,
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			seq.files = append(seq.files, e.Name())
		}
	}
	sort.Strings(seq.files)

	manifestPath := filepath.Join(dir, ManifestFileName)
	if _, err := os.Stat(manifestPath); err == nil {
		var manifest SequenceManifest
		if _, err := toml.DecodeFile(manifestPath, &manifest); err != nil {
			return nil, fmt.Errorf("decode %s: %w", ManifestFileName, err)
		}
		if manifest.FPS <= 0 {
			return nil, fmt.Errorf("%s: fps must be positive", ManifestFileName)
		}
		seq.fps = manifest.FPS
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat manifest: %w", err)
	}

	return seq, nil
}

func (s *ImageSequence) Duration() time.Duration {
	return frameTime(len(s.files), s.fps)
}

func (s *ImageSequence) NativeFrames() int {
	return len(s.files)
}

func (s *ImageSequence) DecodeFrame(ctx context.Context, idx int) (image.Image, time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if idx < 0 || idx >= len(s.files) {
		return nil, 0, fmt.Errorf("frame %d out of range [0,%d)", idx, len(s.files))
	}

	f, err := os.Open(filepath.Join(s.dir, s.files[idx]))
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", s.files[idx], err)
	}
	ts := frameTime(idx, s.fps)
	return img, ts, nil
}

func (s *ImageSequence) Source() string {
	return "image-sequence"
}

func (s *ImageSequence) Close() error {
	return nil
}

func frameTime(idx int, fps float64) time.Duration {
	return time.Duration(math.Round(float64(idx) * float64(time.Second) / fps))
}

// MemoryVideo is an in-memory recording, used by tests and by callers that
// already hold decoded frames.
type MemoryVideo struct {
	Frames []image.Image
	FPS    float64
	closed bool
}

func (m *MemoryVideo) Duration() time.Duration {
	if m.FPS <= 0 {
		return 0
	}
	return frameTime(len(m.Frames), m.FPS)
}

func (m *MemoryVideo) NativeFrames() int {
	return len(m.Frames)
}

func (m *MemoryVideo) DecodeFrame(ctx context.Context, idx int) (image.Image, time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if idx < 0 || idx >= len(m.Frames) {
		return nil, 0, fmt.Errorf("frame %d out of range [0,%d)", idx, len(m.Frames))
	}
	return m.Frames[idx], frameTime(idx, m.FPS), nil
}

func (m *MemoryVideo) Source() string {
	return "memory"
}

func (m *MemoryVideo) Closed() bool {
	return m.closed
}

func (m *MemoryVideo) Close() error {
	m.closed = true
	return nil
}
