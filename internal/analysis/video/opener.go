package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"github.com/2beens/fitanalysis/internal/analysis"
)

// Fetcher downloads a remote video reference into dst.
type Fetcher interface {
	Fetch(ctx context.Context, ref *url.URL, dst io.Writer) error
}

// Opener resolves a video reference (local path, file://, http(s):// or gs://)
// into a decodable Video.
type Opener struct {
	ffmpegPath  string
	ffprobePath string
	tempDir     string
	fetchers    map[string]Fetcher
}

type OpenerOption func(*Opener)

func WithFFmpeg(ffmpegPath, ffprobePath string) OpenerOption {
	return func(o *Opener) {
		o.ffmpegPath = ffmpegPath
		o.ffprobePath = ffprobePath
	}
}

func WithTempDir(dir string) OpenerOption {
	return func(o *Opener) {
		o.tempDir = dir
	}
}

// WithFetcher registers f for the given URL scheme.
func WithFetcher(scheme string, f Fetcher) OpenerOption {
	return func(o *Opener) {
		o.fetchers[strings.ToLower(scheme)] = f
	}
}

func NewOpener(opts ...OpenerOption) *Opener {
	o := &Opener{
		ffmpegPath:  DefaultFFmpegPath,
		ffprobePath: DefaultFFprobePath,
		fetchers:    make(map[string]Fetcher),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Open returns the video behind ref. Any failure to locate or probe the
// recording is a DecodeError; cancellation is returned as is.
func (o *Opener) Open(ctx context.Context, ref string) (Video, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, analysis.DecodeError("empty video reference")
	}

	if p, ok := LocalPath(ref); ok {
		return o.openLocal(ctx, p)
	}

	u, err := url.Parse(ref)
	if err != nil {
		return nil, analysis.NewError(analysis.KindDecode, "invalid video reference", err)
	}
	fetcher, ok := o.fetchers[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, analysis.DecodeError("unsupported video reference scheme [%s]", u.Scheme)
	}
	return o.openRemote(ctx, u, fetcher)
}

func (o *Opener) openLocal(ctx context.Context, p string) (Video, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, analysis.NewError(analysis.KindDecode, "video cannot be opened", err)
	}

	if info.IsDir() {
		seq, err := OpenImageSequence(p)
		if err != nil {
			return nil, analysis.NewError(analysis.KindDecode, "image sequence cannot be opened", err)
		}
		return seq, nil
	}

	v, err := OpenFFmpeg(ctx, p, o.ffmpegPath, o.ffprobePath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, analysis.NewError(analysis.KindDecode, "video cannot be probed", err)
	}
	return v, nil
}

func (o *Opener) openRemote(ctx context.Context, u *url.URL, fetcher Fetcher) (Video, error) {
	tmp, err := os.CreateTemp(o.tempDir, "fitanalysis-*"+path.Ext(u.Path))
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Errorf("remove downloaded video %s: %s", tmpPath, err)
		}
	}

	fetchErr := fetcher.Fetch(ctx, u, tmp)
	closeErr := tmp.Close()
	if fetchErr != nil {
		cleanup()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, analysis.NewError(analysis.KindDecode, "video cannot be downloaded", fetchErr)
	}
	if closeErr != nil {
		cleanup()
		return nil, fmt.Errorf("close temp file: %w", closeErr)
	}

	v, err := OpenFFmpeg(ctx, tmpPath, o.ffmpegPath, o.ffprobePath)
	if err != nil {
		cleanup()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, analysis.NewError(analysis.KindDecode, "downloaded video cannot be probed", err)
	}
	return &downloadedVideo{FFmpegVideo: v, cleanup: cleanup}, nil
}

// downloadedVideo removes its temp file on Close.
type downloadedVideo struct {
	*FFmpegVideo
	cleanup func()
}

func (d *downloadedVideo) Close() error {
	d.cleanup()
	return nil
}

// HTTPFetcher downloads videos over HTTP(S).
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

func NewHTTPFetcher(timeout time.Duration, maxBytes int64) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxBytes: maxBytes,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, ref *url.URL, dst io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.String(), nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: unexpected status %d", ref.Redacted(), resp.StatusCode)
	}
	return copyLimited(dst, resp.Body, f.maxBytes)
}

// GCSFetcher downloads gs://bucket/object references from Cloud Storage.
type GCSFetcher struct {
	service  *storage.Service
	maxBytes int64
}

// NewGCSFetcher creates a Cloud Storage client; empty credentials fall back
// to the application default credentials.
func NewGCSFetcher(ctx context.Context, credentialsJSON []byte, maxBytes int64) (*GCSFetcher, error) {
	var opts []option.ClientOption
	if len(credentialsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(credentialsJSON))
	}
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}
	return &GCSFetcher{
		service:  svc,
		maxBytes: maxBytes,
	}, nil
}

func (f *GCSFetcher) Fetch(ctx context.Context, ref *url.URL, dst io.Writer) error {
	bucket := ref.Host
	object := strings.TrimPrefix(ref.Path, "/")
	if bucket == "" || object == "" {
		return fmt.Errorf("invalid gs reference [%s]", ref.String())
	}

	resp, err := f.service.Objects.Get(bucket, object).Context(ctx).Download()
	if err != nil {
		return fmt.Errorf("download gs://%s/%s: %w", bucket, object, err)
	}
	defer resp.Body.Close()

	return copyLimited(dst, resp.Body, f.maxBytes)
}

func copyLimited(dst io.Writer, src io.Reader, maxBytes int64) error {
	if maxBytes <= 0 {
		_, err := io.Copy(dst, src)
		return err
	}
	n, err := io.Copy(dst, io.LimitReader(src, maxBytes+1))
	if err != nil {
		return err
	}
	if n > maxBytes {
		return fmt.Errorf("video exceeds %d bytes", maxBytes)
	}
	return nil
}

// LocalPath reports whether ref points to the local filesystem.
// A one-letter scheme is a windows drive.
func LocalPath(ref string) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		return filepath.Clean(ref), true
	}
	if strings.EqualFold(u.Scheme, "file") {
		return filepath.Clean(u.Path), true
	}
	return "", false
}
