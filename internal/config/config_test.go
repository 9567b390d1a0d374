package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWeatherKey = "vc-test-key"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Contains(t, cfg.IdentityURL, "identity.dataspace.copernicus.eu")
	assert.Contains(t, cfg.CatalogURL, "collections/Sentinel3")
	assert.Contains(t, cfg.DownloadURL, "odata/v1/Products")
	assert.Equal(t, "cdse-public", cfg.ClientID)
	assert.Equal(t, "SL_2_LST___", cfg.ProductType)
	assert.Equal(t, 2000, cfg.MaxRecords)
	assert.Equal(t, 5000.0, cfg.AOISideLengthM)
	assert.Equal(t, 1.0, cfg.ClearSkyThresholdPct)
	assert.Equal(t, 7, cfg.CloudDilationRadius)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "data/archives", cfg.DownloadDir)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 15*time.Minute, cfg.DownloadTimeout)
	assert.Equal(t, 24*time.Hour, cfg.ScheduleInterval)
	assert.Equal(t, 30, cfg.LookbackDays)
	assert.False(t, cfg.WeatherEnabled)
	assert.Empty(t, cfg.WeatherAPIKey)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("CDSE_CLIENT_ID", "custom-client")
	t.Setenv("PRODUCT_TYPE", "SL_2_WST___")
	t.Setenv("MAX_RECORDS", "500")
	t.Setenv("AOI_SIDE_LENGTH_M", "2500")
	t.Setenv("CLEAR_SKY_THRESHOLD_PCT", "5.5")
	t.Setenv("CLOUD_DILATION_RADIUS", "3")
	t.Setenv("DATA_DIR", "/tmp/lst")
	t.Setenv("DOWNLOAD_DIR", "/tmp/lst/zips")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("DOWNLOAD_TIMEOUT", "5m")
	t.Setenv("SCHEDULE_INTERVAL", "6h")
	t.Setenv("LOOKBACK_DAYS", "7")
	t.Setenv("AOI_CENTER_LAT", "45.5")
	t.Setenv("AOI_CENTER_LON", "9.25")
	t.Setenv("VC_API_KEY", testWeatherKey)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "custom-client", cfg.ClientID)
	assert.Equal(t, "SL_2_WST___", cfg.ProductType)
	assert.Equal(t, 500, cfg.MaxRecords)
	assert.Equal(t, 2500.0, cfg.AOISideLengthM)
	assert.Equal(t, 5.5, cfg.ClearSkyThresholdPct)
	assert.Equal(t, 3, cfg.CloudDilationRadius)
	assert.Equal(t, "/tmp/lst", cfg.DataDir)
	assert.Equal(t, "/tmp/lst/zips", cfg.DownloadDir)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 5*time.Minute, cfg.DownloadTimeout)
	assert.Equal(t, 6*time.Hour, cfg.ScheduleInterval)
	assert.Equal(t, 7, cfg.LookbackDays)
	assert.Equal(t, 45.5, cfg.CenterLat)
	assert.Equal(t, 9.25, cfg.CenterLon)
	assert.True(t, cfg.WeatherEnabled)
	assert.Equal(t, testWeatherKey, cfg.WeatherAPIKey)
}

func TestLoad_DownloadDirFollowsDataDir(t *testing.T) {
	t.Setenv("DATA_DIR", "/var/lst")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/var/lst/archives", cfg.DownloadDir)
}

func TestLoad_WeatherFlagOverride(t *testing.T) {
	t.Run("disabled despite key", func(t *testing.T) {
		t.Setenv("VC_API_KEY", testWeatherKey)
		t.Setenv("VC_WEATHER_ENABLED", "false")

		cfg, err := Load()
		require.NoError(t, err)
		assert.False(t, cfg.WeatherEnabled)
	})

	t.Run("enabled without key is rejected", func(t *testing.T) {
		t.Setenv("VC_WEATHER_ENABLED", "true")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("SHUTDOWN_TIMEOUT", "soon")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("negative duration", func(t *testing.T) {
		t.Setenv("DOWNLOAD_TIMEOUT", "-5m")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("bad integer", func(t *testing.T) {
		t.Setenv("MAX_RECORDS", "many")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("max records over catalog page limit", func(t *testing.T) {
		t.Setenv("MAX_RECORDS", "5000")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("latitude out of range", func(t *testing.T) {
		t.Setenv("AOI_CENTER_LAT", "95")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("non-positive side length", func(t *testing.T) {
		t.Setenv("AOI_SIDE_LENGTH_M", "0")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestRequireCredentials(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Error(t, cfg.RequireCredentials())
	})

	t.Run("present", func(t *testing.T) {
		t.Setenv("CDSE_USERNAME", "user@example.com")
		t.Setenv("CDSE_PASSWORD", "secret")

		cfg, err := Load()
		require.NoError(t, err)
		assert.NoError(t, cfg.RequireCredentials())
	})
}
