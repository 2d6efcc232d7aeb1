package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/2beens/fitanalysis/internal/analysis"
	"github.com/2beens/fitanalysis/internal/analysis/extract"
	"github.com/2beens/fitanalysis/internal/analysis/integrity"
	"github.com/2beens/fitanalysis/internal/analysis/pipeline"
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`
	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`
	// redis
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`
	// postgres
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`
	PostgresUser   string `toml:"postgres_user"`

	AllowedOrigins               []string `toml:"allowed_origins"`
	SubmitRateLimitAllowedPerMin int      `toml:"submit_rate_limit_allowed_per_min"`
	ResultCacheSizeMB            int      `toml:"result_cache_size_mb"`
	// ReaperSchedule is a cron spec, e.g. "@every 5m".
	ReaperSchedule string        `toml:"reaper_schedule"`
	StaleRunAfter  time.Duration `toml:"stale_run_after"`

	Analysis Analysis    `toml:"analysis"`
	Tests    []TestEntry `toml:"tests"`
}

// Analysis configures the pipeline backends and tunables.
type Analysis struct {
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	Workers             int     `toml:"workers"`
	QueueSize           int     `toml:"queue_size"`

	// PoseModelURL points to a model server; empty means no model.
	PoseModelURL     string        `toml:"pose_model_url"`
	PoseModelName    string        `toml:"pose_model_name"`
	PoseModelTimeout time.Duration `toml:"pose_model_timeout"`
	MinPersonScore   float64       `toml:"min_person_score"`
	// FallbackEstimator enables the silhouette skeleton when no model is set.
	FallbackEstimator bool `toml:"fallback_estimator"`
	// Detector is one of "blob", "model" or "none".
	Detector string `toml:"detector"`

	FFmpegPath         string        `toml:"ffmpeg_path"`
	FFprobePath        string        `toml:"ffprobe_path"`
	TempDir            string        `toml:"temp_dir"`
	DownloadTimeout    time.Duration `toml:"download_timeout"`
	MaxDownloadBytes   int64         `toml:"max_download_bytes"`
	GCSEnabled         bool          `toml:"gcs_enabled"`
	GCSCredentialsPath string        `toml:"gcs_credentials_path"`

	Schedule      pipeline.Schedule      `toml:"schedule"`
	StageTimeouts analysis.StageTimeouts `toml:"stage_timeouts"`
	Extract       extract.Config         `toml:"extract"`
	Integrity     integrity.Config       `toml:"integrity"`
}

const (
	DetectorBlob  = "blob"
	DetectorModel = "model"
	DetectorNone  = "none"
)

// TestEntry is one [[tests]] catalog entry.
type TestEntry struct {
	ID                   string                 `toml:"id"`
	Name                 string                 `toml:"name"`
	Unit                 string                 `toml:"unit"`
	DurationLimitSeconds int                    `toml:"duration_limit_seconds"`
	AnalysisKind         string                 `toml:"analysis_kind"`
	DistanceMeters       float64                `toml:"distance_meters"`
	FrameCount           int                    `toml:"frame_count"`
	StageTimeouts        analysis.StageTimeouts `toml:"stage_timeouts"`
}

func (e TestEntry) Descriptor() analysis.TestDescriptor {
	return analysis.TestDescriptor{
		ID:                   e.ID,
		Name:                 e.Name,
		Unit:                 e.Unit,
		DurationLimitSeconds: e.DurationLimitSeconds,
		AnalysisKind:         analysis.AnalysisKind(strings.ToLower(e.AnalysisKind)),
		DistanceMeters:       e.DistanceMeters,
		FrameCount:           e.FrameCount,
		StageTimeouts:        e.StageTimeouts,
	}
}

// Catalog builds the read-only test catalog from the [[tests]] entries.
func (c *Config) Catalog() (*analysis.Catalog, error) {
	descriptors := make([]analysis.TestDescriptor, 0, len(c.Tests))
	for _, e := range c.Tests {
		descriptors = append(descriptors, e.Descriptor())
	}
	return analysis.NewCatalog(descriptors)
}

// Settings returns the pipeline settings, unset values taken from the defaults.
func (a Analysis) Settings() pipeline.Settings {
	settings := pipeline.DefaultSettings()
	if a.ConfidenceThreshold > 0 {
		settings.ConfidenceThreshold = a.ConfidenceThreshold
	}
	if a.Schedule.DefaultFrameCount > 0 {
		settings.Schedule = a.Schedule
	}
	settings.StageTimeouts = a.StageTimeouts.Merge(settings.StageTimeouts)
	return settings
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}
	return cfg, nil
}

// Load reads the TOML file at path and returns the section for env.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config [%s]: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 9000
	}
	if c.PostgresUser == "" {
		c.PostgresUser = "postgres"
	}
	if c.SubmitRateLimitAllowedPerMin <= 0 {
		c.SubmitRateLimitAllowedPerMin = 30
	}
	if c.ResultCacheSizeMB <= 0 {
		c.ResultCacheSizeMB = 20
	}
	if c.ReaperSchedule == "" {
		c.ReaperSchedule = "@every 5m"
	}
	if c.StaleRunAfter <= 0 {
		c.StaleRunAfter = 30 * time.Minute
	}

	a := &c.Analysis
	if a.Workers <= 0 {
		a.Workers = 2
	}
	if a.QueueSize <= 0 {
		a.QueueSize = 64
	}
	if a.Detector == "" {
		a.Detector = DetectorBlob
	}
	if a.PoseModelName == "" {
		a.PoseModelName = "movenet"
	}
	if a.PoseModelTimeout <= 0 {
		a.PoseModelTimeout = 10 * time.Second
	}
	if a.MinPersonScore <= 0 {
		a.MinPersonScore = 0.3
	}
	if a.DownloadTimeout <= 0 {
		a.DownloadTimeout = 2 * time.Minute
	}
	if a.MaxDownloadBytes <= 0 {
		a.MaxDownloadBytes = 512 << 20
	}
}

func (c *Config) Validate() error {
	if len(c.Tests) == 0 {
		return errors.New("test catalog is empty")
	}
	if _, err := c.Catalog(); err != nil {
		return err
	}
	switch c.Analysis.Detector {
	case DetectorBlob, DetectorModel, DetectorNone:
	default:
		return fmt.Errorf("unknown detector [%s]", c.Analysis.Detector)
	}
	if c.Analysis.Detector == DetectorModel && c.Analysis.PoseModelURL == "" {
		return errors.New("model detector needs a pose model url")
	}
	if t := c.Analysis.ConfidenceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("confidence threshold %f out of [0,1]", t)
	}
	if c.Analysis.Schedule.DefaultFrameCount > 0 {
		if err := c.Analysis.Schedule.Validate(); err != nil {
			return err
		}
	}
	return nil
}
