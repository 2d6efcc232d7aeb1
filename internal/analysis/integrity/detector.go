package integrity

import (
	"context"
	"errors"

	"github.com/2beens/fitanalysis/internal/analysis/pose"
	"github.com/2beens/fitanalysis/internal/analysis/video"
	"github.com/2beens/fitanalysis/internal/analysis/vision"
)

//go:generate mockgen -source=$GOFILE -destination=detector_mocks_test.go -package=integrity

// SubjectDetector counts the people visible in a frame.
type SubjectDetector interface {
	CountSubjects(ctx context.Context, f *video.Frame) (int, error)
	Name() string
}

// BlobDetector counts person-sized foreground silhouettes.
type BlobDetector struct {
	minContrast uint8
	minFrac     float64
	relFrac     float64
}

func NewBlobDetector() *BlobDetector {
	return &BlobDetector{
		minContrast: 40,
		minFrac:     0.005,
		relFrac:     0.3,
	}
}

func (d *BlobDetector) Name() string {
	return "blob"
}

func (d *BlobDetector) CountSubjects(ctx context.Context, f *video.Frame) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	g := f.Gray()
	mask, ok := vision.Silhouette(g, d.minContrast)
	if !ok {
		return 0, nil
	}
	area := g.W * g.H
	blobs := vision.Components(mask, max(4, int(float64(area)*d.minFrac)))
	return len(vision.Subjects(blobs, area, d.minFrac, d.relFrac)), nil
}

// ModelDetector counts the confident person detections of a pose model.
type ModelDetector struct {
	model    pose.Model
	minScore float64
}

func NewModelDetector(model pose.Model, minScore float64) *ModelDetector {
	return &ModelDetector{
		model:    model,
		minScore: minScore,
	}
}

func (d *ModelDetector) Name() string {
	return "model:" + d.model.Version()
}

func (d *ModelDetector) CountSubjects(ctx context.Context, f *video.Frame) (int, error) {
	img := f.Image()
	if img == nil {
		return 0, errors.New("frame already released")
	}
	detections, err := d.model.Infer(ctx, img)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, det := range detections {
		if det.Score >= d.minScore {
			n++
		}
	}
	return n, nil
}
