package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultFFmpegPath  = "ffmpeg"
	DefaultFFprobePath = "ffprobe"
)

// FFmpegVideo decodes container formats (mp4, mov, webm, ...) by shelling out
// to ffprobe for the stream metadata and ffmpeg for single frames.
type FFmpegVideo struct {
	path       string
	ffmpegPath string
	duration   time.Duration
	fps        float64
	frames     int
}

type probeOutput struct {
	Streams []struct {
		RFrameRate    string `json:"r_frame_rate"`
		AvgFrameRate  string `json:"avg_frame_rate"`
		Duration      string `json:"duration"`
		NbFrames      string `json:"nb_frames"`
		NbReadPackets string `json:"nb_read_packets"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// OpenFFmpeg probes path and returns a video that decodes frames on demand.
func OpenFFmpeg(ctx context.Context, path, ffmpegPath, ffprobePath string) (*FFmpegVideo, error) {
	if ffmpegPath == "" {
		ffmpegPath = DefaultFFmpegPath
	}
	if ffprobePath == "" {
		ffprobePath = DefaultFFprobePath
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=r_frame_rate,avg_frame_rate,duration,nb_frames,nb_read_packets",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var probe probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &probe); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no video stream in %s", path)
	}
	stream := probe.Streams[0]

	fps := parseRate(stream.AvgFrameRate)
	if fps <= 0 {
		fps = parseRate(stream.RFrameRate)
	}
	seconds := parseFloat(stream.Duration)
	if seconds <= 0 {
		seconds = parseFloat(probe.Format.Duration)
	}

	frames := int(parseFloat(stream.NbReadPackets))
	if frames <= 0 {
		frames = int(parseFloat(stream.NbFrames))
	}
	if frames <= 0 && fps > 0 {
		frames = int(math.Floor(seconds * fps))
	}

	v := &FFmpegVideo{
		path:       path,
		ffmpegPath: ffmpegPath,
		fps:        fps,
		frames:     frames,
	}
	if fps > 0 && frames > 0 && seconds > 0 {
		v.duration = time.Duration(seconds * float64(time.Second))
	}
	return v, nil
}

func (v *FFmpegVideo) Duration() time.Duration {
	return v.duration
}

func (v *FFmpegVideo) NativeFrames() int {
	if v.duration <= 0 {
		return 0
	}
	return v.frames
}

func (v *FFmpegVideo) DecodeFrame(ctx context.Context, idx int) (image.Image, time.Duration, error) {
	if idx < 0 || idx >= v.frames {
		return nil, 0, fmt.Errorf("frame %d out of range [0,%d)", idx, v.frames)
	}
	ts := frameTime(idx, v.fps)

	cmd := exec.CommandContext(ctx, v.ffmpegPath,
		"-v", "error",
		"-ss", strconv.FormatFloat(ts.Seconds(), 'f', 6, 64),
		"-i", v.path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, 0, ctxErr
		}
		return nil, 0, fmt.Errorf("ffmpeg frame %d: %w: %s", idx, err, strings.TrimSpace(stderr.String()))
	}

	img, err := png.Decode(&stdout)
	if err != nil {
		return nil, 0, fmt.Errorf("decode frame %d: %w", idx, err)
	}
	return img, ts, nil
}

func (v *FFmpegVideo) Source() string {
	return "ffmpeg"
}

func (v *FFmpegVideo) Close() error {
	return nil
}

// parseRate parses ffprobe rates such as "30000/1001".
func parseRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	if !found {
		return parseFloat(s)
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
