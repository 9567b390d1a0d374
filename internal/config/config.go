package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Copernicus Data Space Ecosystem endpoints and credentials.
	IdentityURL string `validate:"required,url"`
	CatalogURL  string `validate:"required,url"`
	DownloadURL string `validate:"required,url"`
	ClientID    string `validate:"required"`
	Username    string
	Password    string

	// Visual Crossing weather enrichment (feature-flagged via
	// VC_API_KEY / VC_WEATHER_ENABLED).
	WeatherURL     string `validate:"required,url"`
	WeatherAPIKey  string
	WeatherEnabled bool

	// Local data layout.
	DataDir     string `validate:"required"`
	DownloadDir string `validate:"required"`

	// Catalog query and masking parameters.
	ProductType          string  `validate:"required"`
	MaxRecords           int     `validate:"min=1,max=2000"`
	AOISideLengthM       float64 `validate:"gt=0"`
	ClearSkyThresholdPct float64 `validate:"gte=0,lte=100"`
	CloudDilationRadius  int     `validate:"gte=0"`

	// Daemon AOI and schedule. CenterLat/CenterLon are required by the
	// daemon only; the one-shot binary takes them as flags.
	CenterLat        float64 `validate:"gte=-90,lte=90"`
	CenterLon        float64 `validate:"gte=-180,lte=180"`
	ScheduleInterval time.Duration
	LookbackDays     int `validate:"min=1"`

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	HTTPTimeout     time.Duration
	DownloadTimeout time.Duration
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is merged in when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Info("no .env file loaded", "error", err)
	}

	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	httpTimeout, err := envDuration("HTTP_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	downloadTimeout, err := envDuration("DOWNLOAD_TIMEOUT", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	scheduleInterval, err := envDuration("SCHEDULE_INTERVAL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	maxRecords, err := envInt("MAX_RECORDS", 2000)
	if err != nil {
		return nil, err
	}
	dilationRadius, err := envInt("CLOUD_DILATION_RADIUS", 7)
	if err != nil {
		return nil, err
	}
	lookbackDays, err := envInt("LOOKBACK_DAYS", 30)
	if err != nil {
		return nil, err
	}

	sideLength, err := envFloat("AOI_SIDE_LENGTH_M", 5000)
	if err != nil {
		return nil, err
	}
	clearSkyThreshold, err := envFloat("CLEAR_SKY_THRESHOLD_PCT", 1.0)
	if err != nil {
		return nil, err
	}
	centerLat, err := envFloat("AOI_CENTER_LAT", 0)
	if err != nil {
		return nil, err
	}
	centerLon, err := envFloat("AOI_CENTER_LON", 0)
	if err != nil {
		return nil, err
	}

	dataDir := envOrDefault("DATA_DIR", "./data")

	weatherKey := os.Getenv("VC_API_KEY")
	weatherEnabled := weatherKey != ""
	if v := os.Getenv("VC_WEATHER_ENABLED"); v != "" {
		weatherEnabled = v == "true"
	}

	cfg := &Config{
		IdentityURL: envOrDefault("CDSE_IDENTITY_URL", "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"),
		CatalogURL:  envOrDefault("CDSE_CATALOG_URL", "https://catalogue.dataspace.copernicus.eu/resto/api/collections/Sentinel3/search.json"),
		DownloadURL: envOrDefault("CDSE_DOWNLOAD_URL", "https://download.dataspace.copernicus.eu/odata/v1/Products"),
		ClientID:    envOrDefault("CDSE_CLIENT_ID", "cdse-public"),
		Username:    os.Getenv("CDSE_USERNAME"),
		Password:    os.Getenv("CDSE_PASSWORD"),

		WeatherURL:     envOrDefault("VC_WEATHER_URL", "https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services/timeline"),
		WeatherAPIKey:  weatherKey,
		WeatherEnabled: weatherEnabled,

		DataDir:     dataDir,
		DownloadDir: envOrDefault("DOWNLOAD_DIR", filepath.Join(dataDir, "archives")),

		ProductType:          envOrDefault("PRODUCT_TYPE", "SL_2_LST___"),
		MaxRecords:           maxRecords,
		AOISideLengthM:       sideLength,
		ClearSkyThresholdPct: clearSkyThreshold,
		CloudDilationRadius:  dilationRadius,

		CenterLat:        centerLat,
		CenterLon:        centerLon,
		ScheduleInterval: scheduleInterval,
		LookbackDays:     lookbackDays,

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		HTTPTimeout:     httpTimeout,
		DownloadTimeout: downloadTimeout,
	}

	if cfg.WeatherEnabled && cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("VC_WEATHER_ENABLED is true but VC_API_KEY is not set")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// RequireCredentials rejects configs without CDSE credentials. Called by
// entry points before any catalog or download traffic.
func (c *Config) RequireCredentials() error {
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("CDSE_USERNAME and CDSE_PASSWORD are required")
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return f, nil
}
