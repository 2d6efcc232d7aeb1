package setup

import (
	"context"
	"image"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/fitanalysis/internal/analysis"
	"github.com/2beens/fitanalysis/internal/analysis/pose"
	"github.com/2beens/fitanalysis/internal/analysis/synth"
	"github.com/2beens/fitanalysis/internal/analysis/video"
	"github.com/2beens/fitanalysis/internal/config"
)

func newModelServer(t *testing.T, state string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models/movenet" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model_version_status":[{"version":"4","state":"` + state + `"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBuild_Fallback(t *testing.T) {
	a, err := Build(context.Background(), config.Analysis{
		FallbackEstimator: true,
		Detector:          config.DetectorBlob,
	})
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Context.Estimator)
	assert.Equal(t, "fallback:silhouette-v1", a.Context.Estimator.Name())
	assert.Equal(t, "centroid:background-median", a.Context.Tracker.Name())
	assert.True(t, a.Context.Checker.Available())
	assert.Equal(t, analysis.DefaultConfidenceThreshold, a.Context.Settings.ConfidenceThreshold)
	assert.Contains(t, a.Context.Registry.TestIDs(), "vertical_jump")
	assert.Equal(t, int64(0), a.Frames.Outstanding())
}

func TestBuild_NoEstimatorNoChecker(t *testing.T) {
	a, err := Build(context.Background(), config.Analysis{
		Detector:            config.DetectorNone,
		ConfidenceThreshold: 0.5,
	})
	require.NoError(t, err)

	assert.Nil(t, a.Context.Estimator)
	assert.False(t, a.Context.Checker.Available())
	assert.Equal(t, 0.5, a.Context.Settings.ConfidenceThreshold)
}

func TestBuild_Model(t *testing.T) {
	srv := newModelServer(t, "AVAILABLE")

	a, err := Build(context.Background(), config.Analysis{
		PoseModelURL:   srv.URL,
		PoseModelName:  "movenet",
		MinPersonScore: 0.3,
		Detector:       config.DetectorModel,
	})
	require.NoError(t, err)
	defer a.Close()

	_, isModel := a.Context.Estimator.(*pose.ModelBackedEstimator)
	assert.True(t, isModel)
	assert.Equal(t, "model:movenet@4", a.Context.Estimator.Name())
	assert.Equal(t, "centroid:model:movenet@4", a.Context.Tracker.Name())
	assert.True(t, a.Context.Checker.Available())
}

func TestBuild_ModelUnavailable(t *testing.T) {
	srv := newModelServer(t, "LOADING")

	_, err := Build(context.Background(), config.Analysis{
		PoseModelURL:      srv.URL,
		PoseModelName:     "movenet",
		FallbackEstimator: true,
		Detector:          config.DetectorBlob,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, analysis.ErrModelUnavailable)
}

func TestBuild_ModelDetectorWithoutModel(t *testing.T) {
	_, err := Build(context.Background(), config.Analysis{
		FallbackEstimator: true,
		Detector:          config.DetectorModel,
	})
	assert.Error(t, err)
}

func TestBuild_MissingGCSCredentials(t *testing.T) {
	_, err := Build(context.Background(), config.Analysis{
		GCSEnabled:         true,
		GCSCredentialsPath: "/does/not/exist.json",
	})
	assert.Error(t, err)
}

// countingModel sees one confident person and counts its inferences.
type countingModel struct {
	mu    sync.Mutex
	calls int
}

func (m *countingModel) Load(context.Context) error { return nil }
func (m *countingModel) Version() string            { return "counting@1" }

func (m *countingModel) Infer(context.Context, image.Image) ([]pose.Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return []pose.Detection{{Score: 0.9}}, nil
}

func TestNewChecker_SubjectCountsFromEstimates(t *testing.T) {
	series := pose.Series{{Subjects: 2}, {Subjects: pose.UnknownSubjects}}

	testCases := []struct {
		name           string
		modelEstimator bool
		expectedCalls  int
		expectedCounts []int
	}{
		{"model estimator", true, 0, []int{2, pose.UnknownSubjects}},
		{"other estimator", false, 2, []int{1, 1}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			model := &countingModel{}
			checker, err := newChecker(config.Analysis{Detector: config.DetectorModel, MinPersonScore: 0.5}, model, tc.modelEstimator)
			require.NoError(t, err)

			pool := video.NewFramePool()
			imgs := synth.Empty(2)
			frames := video.Frames{pool.NewFrame(0, 0, imgs[0]), pool.NewFrame(1, 100, imgs[1])}
			defer frames.Release()

			ev, err := checker.CollectWithPose(context.Background(), frames, series)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedCounts, ev.SubjectCounts)
			assert.Equal(t, tc.expectedCalls, model.calls)
		})
	}
}
