package video

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/fitanalysis/internal/analysis"
	"github.com/2beens/fitanalysis/internal/analysis/synth"
)

func TestImageSequence_ManifestFPS(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, synth.WriteSequence(dir, synth.Empty(5), 10))

	seq, err := OpenImageSequence(dir)
	require.NoError(t, err)
	assert.Equal(t, 5, seq.NativeFrames())
	assert.Equal(t, 500*time.Millisecond, seq.Duration())

	img, ts, err := seq.DecodeFrame(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 300*time.Millisecond, ts)
	assert.Equal(t, synth.DefaultWidth, img.Bounds().Dx())

	_, _, err = seq.DecodeFrame(context.Background(), 5)
	assert.Error(t, err)
}

func TestImageSequence_DefaultFPS(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, synth.WriteSequence(dir, synth.Empty(3), 10))
	require.NoError(t, os.Remove(filepath.Join(dir, ManifestFileName)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	seq, err := OpenImageSequence(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, seq.NativeFrames())
	assert.Equal(t, 100*time.Millisecond, seq.Duration())
}

func TestImageSequence_InvalidManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFileName), []byte("fps = -1"), 0o644))

	_, err := OpenImageSequence(dir)
	assert.Error(t, err)
}

func TestOpener_EmptyDirectoryHasZeroDuration(t *testing.T) {
	opener := NewOpener()
	v, err := opener.Open(context.Background(), t.TempDir())
	require.NoError(t, err)
	defer v.Close()

	assert.Zero(t, v.Duration())
	_, err = NewSampler(NewFramePool()).Sample(context.Background(), v, 10)
	assert.ErrorIs(t, err, analysis.ErrDecode)
}

func TestOpener_Errors(t *testing.T) {
	opener := NewOpener()
	ctx := context.Background()

	_, err := opener.Open(ctx, "")
	assert.ErrorIs(t, err, analysis.ErrDecode)

	_, err = opener.Open(ctx, filepath.Join(t.TempDir(), "missing.mp4"))
	assert.ErrorIs(t, err, analysis.ErrDecode)

	_, err = opener.Open(ctx, "ftp://example.com/jump.mp4")
	assert.ErrorIs(t, err, analysis.ErrDecode)
}

func TestOpener_FileScheme(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, synth.WriteSequence(dir, synth.Empty(4), 10))

	v, err := NewOpener().Open(context.Background(), "file://"+dir)
	require.NoError(t, err)
	defer v.Close()
	assert.Equal(t, "image-sequence", v.Source())
	assert.Equal(t, 4, v.NativeFrames())
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	payload := []byte("not really a video")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/clips/jump.mp4" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(5*time.Second, 1024)
	defer fetcher.client.CloseIdleConnections()

	u, err := url.Parse(srv.URL + "/clips/jump.mp4")
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, fetcher.Fetch(context.Background(), u, &buf))
	assert.Equal(t, payload, buf.Bytes())

	u, err = url.Parse(srv.URL + "/clips/missing.mp4")
	require.NoError(t, err)
	assert.Error(t, fetcher.Fetch(context.Background(), u, &buf))
}

func TestHTTPFetcher_SizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte{1}, 64))
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(5*time.Second, 32)
	defer fetcher.client.CloseIdleConnections()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	var buf bytes.Buffer
	assert.ErrorContains(t, fetcher.Fetch(context.Background(), u, &buf), "exceeds")
}

func TestLocalPath(t *testing.T) {
	p, ok := LocalPath("/videos/a.mp4")
	assert.True(t, ok)
	assert.Equal(t, "/videos/a.mp4", p)

	p, ok = LocalPath("file:///videos/b.mp4")
	assert.True(t, ok)
	assert.Equal(t, "/videos/b.mp4", p)

	_, ok = LocalPath("gs://bucket/c.mp4")
	assert.False(t, ok)
}

func TestParseRate(t *testing.T) {
	assert.InDelta(t, 29.97, parseRate("30000/1001"), 0.01)
	assert.Equal(t, 25.0, parseRate("25"))
	assert.Zero(t, parseRate("0/0"))
	assert.Zero(t, parseRate("n/a"))
}
