package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/2beens/fitanalysis/internal/analysis/pipeline"
	"github.com/2beens/fitanalysis/internal/analysis/setup"
	"github.com/2beens/fitanalysis/internal/config"
	"github.com/2beens/fitanalysis/internal/db"
	"github.com/2beens/fitanalysis/internal/middleware"
	"github.com/2beens/fitanalysis/internal/submissions"
	"github.com/2beens/fitanalysis/internal/telemetry/metrics"
	"github.com/2beens/fitanalysis/internal/telemetry/tracing"
	"github.com/2beens/fitanalysis/pkg"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	appSecretHash     string // bcrypt hash of the client token
	versionInfo       string

	config      *config.Config
	dbPool      *pgxpool.Pool
	redisClient *redis.Client

	analysis    *setup.Analysis
	submissions *submissions.Service
	reaper      *submissions.Reaper

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	VersionInfo             string
	AppSecretHash           string
	RedisPassword           string
	PostgresPassword        string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         cfg.PostgresHost,
		DBPort:         cfg.PostgresPort,
		DBName:         cfg.PostgresDBName,
		DBUser:         cfg.PostgresUser,
		DBPassword:     params.PostgresPassword,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	repo := submissions.NewRepo(dbPool)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Warnf("failed to ensure db schema: %s", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "fitanalysis-backend", rdb)
	if err != nil {
		return nil, err
	}

	analysisSetup, err := setup.Build(ctx, cfg.Analysis)
	if err != nil {
		otelShutdown()
		return nil, fmt.Errorf("build analysis context: %w", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": cfg.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("fitanalysis", "main", promRegistry, func() float64 {
		return float64(analysisSetup.Frames.Outstanding())
	})
	metricsManager.GaugeLifeSignal.Set(0)

	analysisPipeline, err := pipeline.New(
		analysisSetup.Context,
		pipeline.WithObserver(pipeline.NewMetricsObserver(metricsManager)),
	)
	if err != nil {
		analysisSetup.Close()
		return nil, fmt.Errorf("new pipeline: %w", err)
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		analysisSetup.Close()
		return nil, err
	}

	submissionsService := submissions.NewService(
		repo,
		submissions.NewProgressStore(rdb),
		submissions.NewResultCache(cfg.ResultCacheSizeMB),
		analysisPipeline,
		catalog,
		metricsManager,
		submissions.ServiceConfig{
			Workers:   cfg.Analysis.Workers,
			QueueSize: cfg.Analysis.QueueSize,
		},
	)

	return &Server{
		config:        cfg,
		appSecretHash: params.AppSecretHash,
		versionInfo:   params.VersionInfo,

		dbPool:      dbPool,
		redisClient: rdb,

		analysis:    analysisSetup,
		submissions: submissionsService,
		reaper:      submissions.NewReaper(repo, submissionsService.InFlight, cfg.StaleRunAfter, metricsManager),

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	r.HandleFunc("/", s.handleRoot).Methods("GET").Name("root")
	r.HandleFunc("/health", s.handleHealth).Methods("GET").Name("health")

	submissionsHandler := submissions.NewHandler(s.submissions)
	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)
	submitRateLimit := middleware.RateLimit(
		reqRateLimiter,
		"submit",
		s.config.SubmitRateLimitAllowedPerMin,
		s.metricsManager,
	)

	r.HandleFunc("/tests", submissionsHandler.HandleTests).Methods("GET", "OPTIONS").Name("list-tests")
	r.Handle("/submissions", submitRateLimit(http.HandlerFunc(submissionsHandler.HandleSubmit))).Methods("POST", "OPTIONS").Name("new-submission")
	r.HandleFunc("/submissions/{id}", submissionsHandler.HandleGet).Methods("GET", "OPTIONS").Name("get-submission")
	r.HandleFunc("/submissions/{id}", submissionsHandler.HandleCancel).Methods("DELETE", "OPTIONS").Name("cancel-submission")
	r.HandleFunc("/submissions/{id}/progress", submissionsHandler.HandleProgress).Methods("GET", "OPTIONS").Name("submission-progress")
	r.Handle("/submissions/{id}/retry", submitRateLimit(http.HandlerFunc(submissionsHandler.HandleRetry))).Methods("POST", "OPTIONS").Name("retry-submission")
	r.HandleFunc("/athletes/{id}/results/page/{page}/size/{size}", submissionsHandler.HandleAthleteResults).Methods("GET", "OPTIONS").Name("athlete-results")
	r.HandleFunc("/results/flagged/page/{page}/size/{size}", submissionsHandler.HandleFlaggedResults).Methods("GET", "OPTIONS").Name("flagged-results")
	r.HandleFunc("/results/stats", submissionsHandler.HandleStats).Methods("GET", "OPTIONS").Name("result-stats")

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "DELETE", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(
		middleware.NewBcryptSecretChecker(s.appSecretHash),
	)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.AllowedOrigins...))
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, "fitanalysis "+s.versionInfo)
}

type healthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres"`
	Redis    string `json:"redis"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:   "ok",
		Version:  s.versionInfo,
		Postgres: "ok",
		Redis:    "ok",
	}
	if err := s.dbPool.Ping(ctx); err != nil {
		log.Errorf("health, ping db: %s", err)
		resp.Status, resp.Postgres = "degraded", err.Error()
	}
	if err := s.redisClient.Ping(ctx).Err(); err != nil {
		log.Errorf("health, ping redis: %s", err)
		resp.Status, resp.Redis = "degraded", err.Error()
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	pkg.WriteJSON(w, status, resp)
}

func (s *Server) Serve(_ context.Context, host string, port int) {
	s.submissions.Start()
	if err := s.reaper.Start(s.config.ReaperSchedule); err != nil {
		log.Errorf("failed to start stale submissions reaper: %s", err)
	}

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      s.routerSetup(),
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.InstrumentMetricHandler(
		s.promRegistry,
		promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}),
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")
	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	// stop taking submissions before the running ones are cancelled
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	s.reaper.Stop()
	log.Debugln("cancelling running analyses ...")
	s.submissions.Stop()
	s.analysis.Close()

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
