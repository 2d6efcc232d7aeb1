package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/fitanalysis/internal/analysis"
	"github.com/2beens/fitanalysis/internal/config"
	"github.com/2beens/fitanalysis/internal/middleware"
	"github.com/2beens/fitanalysis/internal/submissions"
	"github.com/2beens/fitanalysis/internal/telemetry/metrics"
	"github.com/2beens/fitanalysis/pkg"
)

const testAppSecret = "test-app-secret"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	catalog, err := analysis.NewCatalog([]analysis.TestDescriptor{
		{ID: "sprint_30m", Unit: "s", DurationLimitSeconds: 30, AnalysisKind: analysis.KindMotion, DistanceMeters: 30},
		{ID: "height", Unit: "cm", DurationLimitSeconds: 30, AnalysisKind: analysis.KindNone},
	})
	require.NoError(t, err)

	hash, err := pkg.HashPassword(testAppSecret)
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	m := metrics.NewTestManager()
	return &Server{
		config: &config.Config{
			AllowedOrigins:               []string{"http://localhost:8080"},
			SubmitRateLimitAllowedPerMin: 10,
		},
		appSecretHash: hash,
		versionInfo:   "abc123",
		redisClient:   rdb,
		submissions: submissions.NewService(
			nil, nil, submissions.NewResultCache(1), nil, catalog, m, submissions.ServiceConfig{},
		),
		metricsManager: m,
	}
}

func TestServer_Routes(t *testing.T) {
	server := newTestServer(t)
	r := server.routerSetup()

	testCases := []struct {
		name           string
		method         string
		path           string
		token          string
		origin         string
		expectedStatus int
	}{
		{name: "root", method: "GET", path: "/", expectedStatus: http.StatusOK},
		{name: "tests are public", method: "GET", path: "/tests", expectedStatus: http.StatusOK},
		{name: "missing token", method: "GET", path: "/submissions/abc", expectedStatus: http.StatusUnauthorized},
		{name: "wrong token", method: "GET", path: "/submissions/abc", token: "nope", expectedStatus: http.StatusUnauthorized},
		{name: "options", method: "OPTIONS", path: "/submissions", expectedStatus: http.StatusOK},
		{name: "unknown path", method: "GET", path: "/unknown", token: testAppSecret, expectedStatus: http.StatusNotFound},
		{name: "allowed origin", method: "GET", path: "/tests", origin: "http://localhost:8080", expectedStatus: http.StatusOK},
		{name: "foreign origin", method: "GET", path: "/tests", origin: "https://evil.example", expectedStatus: http.StatusForbidden},
		{name: "bad page", method: "GET", path: "/athletes/a1/results/page/0/size/10", token: testAppSecret, expectedStatus: http.StatusBadRequest},
		{name: "flagged results need a token", method: "GET", path: "/results/flagged/page/1/size/10", expectedStatus: http.StatusUnauthorized},
		{name: "stats need a token", method: "GET", path: "/results/stats", token: "nope", expectedStatus: http.StatusUnauthorized},
		{name: "flagged results bad size", method: "GET", path: "/results/flagged/page/1/size/101", token: testAppSecret, expectedStatus: http.StatusBadRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			req.Header.Set("User-Agent", "test-agent")
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if tc.token != "" {
				req.Header.Set(middleware.AuthTokenHeader, tc.token)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			assert.Equal(t, tc.expectedStatus, rr.Code)
		})
	}

	assert.Equal(t, 4.0, testutil.ToFloat64(server.metricsManager.CounterRequests.WithLabelValues("GET", "401")))
}

func TestServer_RootAndTests(t *testing.T) {
	server := newTestServer(t)
	r := server.routerSetup()

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, "fitanalysis abc123", rr.Body.String())

	req := httptest.NewRequest("GET", "/tests", nil)
	req.Header.Set("User-Agent", "test-agent")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"sprint_30m"`)
	assert.Contains(t, rr.Body.String(), `"height"`)
}

func TestServer_ConnStateMetrics(t *testing.T) {
	server := &Server{
		metricsManager: metrics.NewTestManager(),
	}

	server.connStateMetrics(nil, http.StateNew)
	server.connStateMetrics(nil, http.StateNew)
	server.connStateMetrics(nil, http.StateActive)
	assert.Equal(t, 2.0, testutil.ToFloat64(server.metricsManager.GaugeRequests))

	server.connStateMetrics(nil, http.StateClosed)
	assert.Equal(t, 1.0, testutil.ToFloat64(server.metricsManager.GaugeRequests))
}
