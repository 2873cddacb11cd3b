package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/joho/godotenv"
	"github.com/natefinch/lumberjack"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/commonplace/internal/geo"
)

// Config holds the full application configuration.
type Config struct {
	Server      ServerConfig     `yaml:"server" mapstructure:"server"`
	Log         LogConfig        `yaml:"log" mapstructure:"log"`
	Mapbox      MapboxConfig     `yaml:"mapbox" mapstructure:"mapbox"`
	TfL         TfLConfig        `yaml:"tfl" mapstructure:"tfl"`
	HTTP        HTTPConfig       `yaml:"http" mapstructure:"http"`
	Cache       CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Search      SearchConfig     `yaml:"search" mapstructure:"search"`
	Scoring     ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	ServiceArea geo.BBox         `yaml:"service_area" mapstructure:"service_area"`
	Resilience  ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Catalog     CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins      []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RequestTimeoutSecs  int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
	// SearchPerMinute caps meeting-point searches across all clients. Zero
	// disables the limit.
	SearchPerMinute     int      `yaml:"search_per_minute" mapstructure:"search_per_minute"`
}

// LogConfig configures logging. When File is set, JSON logs are also written
// to a rotating file.
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// MapboxConfig holds Mapbox isochrone and geocoding settings.
type MapboxConfig struct {
	Token      string  `yaml:"token" mapstructure:"token"`
	BaseURL    string  `yaml:"base_url" mapstructure:"base_url"`
	Profile    string  `yaml:"profile" mapstructure:"profile"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Country    string  `yaml:"country" mapstructure:"country"`
}

// TfLConfig holds TfL Journey Planner settings.
type TfLConfig struct {
	AppKey     string   `yaml:"app_key" mapstructure:"app_key"`
	BaseURL    string   `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec float64  `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Modes      []string `yaml:"modes" mapstructure:"modes"`
	Timezone   string   `yaml:"timezone" mapstructure:"timezone"`
}

// HTTPConfig configures the shared outbound HTTP client.
type HTTPConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// CacheConfig selects the cache backend and per-kind lifetimes.
type CacheConfig struct {
	Driver            string `yaml:"driver" mapstructure:"driver"`
	DSN               string `yaml:"dsn" mapstructure:"dsn"`
	GeocodeTTLHours   int    `yaml:"geocode_ttl_hours" mapstructure:"geocode_ttl_hours"`
	IsochroneTTLMins  int    `yaml:"isochrone_ttl_mins" mapstructure:"isochrone_ttl_mins"`
	JourneyTTLMins    int    `yaml:"journey_ttl_mins" mapstructure:"journey_ttl_mins"`
	SuggestTTLMins    int    `yaml:"suggest_ttl_mins" mapstructure:"suggest_ttl_mins"`
	PurgeIntervalMins int    `yaml:"purge_interval_mins" mapstructure:"purge_interval_mins"`
}

// BudgetConfig is one step of the reachability search: the time budget and
// the candidate count at which the search stops early.
type BudgetConfig struct {
	Minutes int `yaml:"minutes" mapstructure:"minutes"`
	StopAt  int `yaml:"stop_at" mapstructure:"stop_at"`
}

// SearchConfig tunes candidate generation, analysis and selection.
type SearchConfig struct {
	Budgets            []BudgetConfig `yaml:"budgets" mapstructure:"budgets"`
	ResultCount        int            `yaml:"result_count" mapstructure:"result_count"`
	MaxJourneyMinutes  int            `yaml:"max_journey_minutes" mapstructure:"max_journey_minutes"`
	BatchSize          int            `yaml:"batch_size" mapstructure:"batch_size"`
	BatchPauseMs       int            `yaml:"batch_pause_ms" mapstructure:"batch_pause_ms"`
	PrefilterMin       int            `yaml:"prefilter_min" mapstructure:"prefilter_min"`
	PrefilterMax       int            `yaml:"prefilter_max" mapstructure:"prefilter_max"`
	PrefilterFraction  float64        `yaml:"prefilter_fraction" mapstructure:"prefilter_fraction"`
	MidpointCandidates int            `yaml:"midpoint_candidates" mapstructure:"midpoint_candidates"`
	DirectStops        int            `yaml:"direct_stops" mapstructure:"direct_stops"`
	DirectSeparationKm float64        `yaml:"direct_separation_km" mapstructure:"direct_separation_km"`
	MinSeparationKm    float64        `yaml:"min_separation_km" mapstructure:"min_separation_km"`
	CategoryCap        int            `yaml:"category_cap" mapstructure:"category_cap"`
	OverheadMinutes    float64        `yaml:"overhead_minutes" mapstructure:"overhead_minutes"`
	MinutesPerKm       float64        `yaml:"minutes_per_km" mapstructure:"minutes_per_km"`
}

// ScoringConfig is one versioned set of scoring weights and thresholds.
// Weights must sum to 1.
type ScoringConfig struct {
	Version           string  `yaml:"version" mapstructure:"version"`
	SpeedWeight       float64 `yaml:"speed_weight" mapstructure:"speed_weight"`
	FairnessWeight    float64 `yaml:"fairness_weight" mapstructure:"fairness_weight"`
	ConvenienceWeight float64 `yaml:"convenience_weight" mapstructure:"convenience_weight"`
	PrestigeWeight    float64 `yaml:"prestige_weight" mapstructure:"prestige_weight"`

	SoftMinutes    float64 `yaml:"soft_minutes" mapstructure:"soft_minutes"`
	CeilingMinutes float64 `yaml:"ceiling_minutes" mapstructure:"ceiling_minutes"`
	SpeedExponent  float64 `yaml:"speed_exponent" mapstructure:"speed_exponent"`
	MaxGapMinutes  float64 `yaml:"max_gap_minutes" mapstructure:"max_gap_minutes"`
	MaxChanges     float64 `yaml:"max_changes" mapstructure:"max_changes"`

	HubBonus         float64 `yaml:"hub_bonus" mapstructure:"hub_bonus"`
	Zone1Bonus       float64 `yaml:"zone1_bonus" mapstructure:"zone1_bonus"`
	DirectBonus      float64 `yaml:"direct_bonus" mapstructure:"direct_bonus"`
	DirectRefMinutes float64 `yaml:"direct_ref_minutes" mapstructure:"direct_ref_minutes"`
}

// ResilienceConfig bounds every external call.
type ResilienceConfig struct {
	TimeoutSecs         int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts         int `yaml:"max_attempts" mapstructure:"max_attempts"`
	BackoffMs           int `yaml:"backoff_ms" mapstructure:"backoff_ms"`
	BreakerFailures     int `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// CatalogConfig points at an alternative area catalog. Empty uses the
// embedded London catalog.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// Load reads configuration from an optional .env, config.yaml and environment.
func Load() (*Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COMMONPLACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.request_timeout_secs", 60)
	v.SetDefault("server.shutdown_timeout_secs", 15)
	v.SetDefault("server.search_per_minute", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 14)
	v.SetDefault("log.file", "")

	v.SetDefault("mapbox.token", "")
	v.SetDefault("mapbox.base_url", "https://api.mapbox.com")
	v.SetDefault("mapbox.profile", "driving")
	v.SetDefault("mapbox.rate_per_sec", 5.0)
	v.SetDefault("mapbox.country", "GB")

	v.SetDefault("tfl.app_key", "")
	v.SetDefault("tfl.base_url", "https://api.tfl.gov.uk")
	v.SetDefault("tfl.rate_per_sec", 8.0)
	v.SetDefault("tfl.modes", []string{"tube", "bus", "national-rail", "dlr", "overground", "elizabeth-line", "walking"})
	v.SetDefault("tfl.timezone", "Europe/London")

	v.SetDefault("http.timeout_secs", 10)

	v.SetDefault("cache.driver", "none")
	v.SetDefault("cache.dsn", "")
	v.SetDefault("cache.geocode_ttl_hours", 24)
	v.SetDefault("cache.isochrone_ttl_mins", 60)
	v.SetDefault("cache.journey_ttl_mins", 5)
	v.SetDefault("cache.suggest_ttl_mins", 60)
	v.SetDefault("cache.purge_interval_mins", 30)

	v.SetDefault("search.budgets", []map[string]any{
		{"minutes": 20, "stop_at": 4},
		{"minutes": 30, "stop_at": 6},
		{"minutes": 45, "stop_at": 10},
		{"minutes": 60, "stop_at": 12},
	})
	v.SetDefault("search.result_count", 3)
	v.SetDefault("search.max_journey_minutes", 75)
	v.SetDefault("search.batch_size", 3)
	v.SetDefault("search.batch_pause_ms", 200)
	v.SetDefault("search.prefilter_min", 8)
	v.SetDefault("search.prefilter_max", 12)
	v.SetDefault("search.prefilter_fraction", 0.6)
	v.SetDefault("search.midpoint_candidates", 8)
	v.SetDefault("search.direct_stops", 4)
	v.SetDefault("search.direct_separation_km", 1.0)
	v.SetDefault("search.min_separation_km", 2.0)
	v.SetDefault("search.category_cap", 2)
	v.SetDefault("search.overhead_minutes", 5.0)
	v.SetDefault("search.minutes_per_km", 3.0)

	v.SetDefault("scoring.version", "2")
	v.SetDefault("scoring.speed_weight", 0.45)
	v.SetDefault("scoring.fairness_weight", 0.25)
	v.SetDefault("scoring.convenience_weight", 0.20)
	v.SetDefault("scoring.prestige_weight", 0.10)
	v.SetDefault("scoring.soft_minutes", 20.0)
	v.SetDefault("scoring.ceiling_minutes", 75.0)
	v.SetDefault("scoring.speed_exponent", 1.6)
	v.SetDefault("scoring.max_gap_minutes", 20.0)
	v.SetDefault("scoring.max_changes", 4.0)
	v.SetDefault("scoring.hub_bonus", 60.0)
	v.SetDefault("scoring.zone1_bonus", 40.0)
	v.SetDefault("scoring.direct_bonus", 10.0)
	v.SetDefault("scoring.direct_ref_minutes", 25.0)

	area := geo.DefaultServiceArea()
	v.SetDefault("service_area.min_lng", area.MinLng)
	v.SetDefault("service_area.min_lat", area.MinLat)
	v.SetDefault("service_area.max_lng", area.MaxLng)
	v.SetDefault("service_area.max_lat", area.MaxLat)

	v.SetDefault("catalog.path", "")

	v.SetDefault("resilience.timeout_secs", 8)
	v.SetDefault("resilience.max_attempts", 1)
	v.SetDefault("resilience.backoff_ms", 250)
	v.SetDefault("resilience.breaker_failures", 5)
	v.SetDefault("resilience.breaker_cooldown_secs", 30)
}

// Validate checks the settings a command needs. Mode is "serve", "search" or
// "catalog".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		errs = append(errs, c.validateSearch()...)
	case "search":
		errs = append(errs, c.validateSearch()...)
	case "catalog":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateSearch() []string {
	var errs []string

	if c.Mapbox.Token == "" {
		errs = append(errs, "mapbox.token is required")
	}
	if len(c.Search.Budgets) == 0 {
		errs = append(errs, "search.budgets must not be empty")
	}
	for i, b := range c.Search.Budgets {
		if b.Minutes <= 0 || b.StopAt <= 0 {
			errs = append(errs, fmt.Sprintf("search.budgets[%d] needs positive minutes and stop_at", i))
		}
		if i > 0 && b.Minutes <= c.Search.Budgets[i-1].Minutes {
			errs = append(errs, "search.budgets must be in ascending order")
		}
	}
	if c.Search.ResultCount < 1 {
		errs = append(errs, "search.result_count must be >= 1")
	}
	if c.Search.BatchSize < 1 {
		errs = append(errs, "search.batch_size must be >= 1")
	}
	if c.Search.MaxJourneyMinutes <= 0 {
		errs = append(errs, "search.max_journey_minutes must be > 0")
	}
	if c.Search.PrefilterMin > c.Search.PrefilterMax {
		errs = append(errs, "search.prefilter_min must be <= prefilter_max")
	}

	s := c.Scoring
	for name, w := range map[string]float64{
		"speed_weight":       s.SpeedWeight,
		"fairness_weight":    s.FairnessWeight,
		"convenience_weight": s.ConvenienceWeight,
		"prestige_weight":    s.PrestigeWeight,
	} {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("scoring.%s must be >= 0", name))
		}
	}
	if sum := s.SpeedWeight + s.FairnessWeight + s.ConvenienceWeight + s.PrestigeWeight; math.Abs(sum-1) > 0.001 {
		errs = append(errs, fmt.Sprintf("scoring weights should sum to 1, got %.3f", sum))
	}

	if c.ServiceArea.Empty() {
		errs = append(errs, "service_area must enclose a non-empty box")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}

	if cfg.File != "" {
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), sink, zapCfg.Level)
		logger = logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore)
		}))
	}

	zap.ReplaceGlobals(logger)
	return nil
}
