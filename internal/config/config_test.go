package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/canvas"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "nominatim", cfg.Geocode.Provider)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.Geocode.BaseURL)
	assert.Equal(t, "geomap/1.0", cfg.Geocode.UserAgent)
	assert.Equal(t, 1000, cfg.Geocode.SettleMs)
	assert.InDelta(t, 1.0, cfg.Geocode.RateLimit, 0.001)
	assert.Equal(t, "PostalCode", cfg.Geocode.Columns.PostalCode)
	assert.Equal(t, "EPSG:4326", cfg.Vector.DefaultSourceCRS)
	assert.Equal(t, "https://opendata.cbs.nl/ODataApi/odata", cfg.Stats.BaseURL)
	assert.Equal(t, "openstreetmap", cfg.Canvas.Tile)
	assert.Equal(t, 7, cfg.Canvas.Zoom)
	assert.True(t, cfg.Canvas.Fullscreen)
	assert.True(t, cfg.Canvas.LayerControl)
	assert.False(t, cfg.Canvas.Minimap)
	assert.Equal(t, 1, cfg.Fetch.MaxRetries)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "maps", cfg.Server.Dir)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
geocode:
  provider: google
  google_api_key: abc
  columns:
    name: Naam
log:
  level: debug
  format: console
server:
  port: 9090
canvas:
  center_lat: 52.1
  center_lon: 5.2
  tile: cartodbpositron
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "google", cfg.Geocode.Provider)
	assert.Equal(t, "abc", cfg.Geocode.GoogleAPIKey)
	assert.Equal(t, "Naam", cfg.Geocode.Columns.Name)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "cartodbpositron", cfg.Canvas.Tile)
	// Defaults still apply for unset values
	assert.Equal(t, "Street", cfg.Geocode.Columns.Street)
	assert.Equal(t, 7, cfg.Canvas.Zoom)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
geocode:
  provider: google
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("GEOMAP_GEOCODE_PROVIDER", "nominatim")
	t.Setenv("GEOMAP_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "nominatim", cfg.Geocode.Provider)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GEOMAP_STORE_DATABASE_URL=postgres://localhost/gis\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("GEOMAP_STORE_DATABASE_URL") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/gis", cfg.Store.DatabaseURL)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("GEOMAP_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestCanvasConfig(t *testing.T) {
	cc := CanvasConfig{Tile: "openstreetmap", Zoom: 9, Minimap: true}
	got := cc.Canvas()
	assert.Nil(t, got.Center)
	assert.Equal(t, 9, got.Zoom)
	assert.True(t, got.Minimap)

	cc.CenterLat, cc.CenterLon = 52.1, 5.2
	got = cc.Canvas()
	require.NotNil(t, got.Center)
	assert.Equal(t, canvas.LatLng{Lat: 52.1, Lng: 5.2}, *got.Center)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Geocode.Provider = "nominatim"
	cfg.Geocode.UserAgent = "geomap/1.0"
	cfg.Geocode.SettleMs = 1000
	cfg.Geocode.RateLimit = 1
	cfg.Canvas.Zoom = 7
	cfg.Server.Port = 8080
	cfg.Server.Dir = "maps"
	return cfg
}

func TestValidateGeocode(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("geocode"))

	cfg.Geocode.Provider = "google"
	err := cfg.Validate("geocode")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geocode.google_api_key is required")

	cfg.Geocode.GoogleAPIKey = "key"
	assert.NoError(t, cfg.Validate("geocode"))

	cfg.Geocode.Provider = "bing"
	cfg.Geocode.SettleMs = -1
	err = cfg.Validate("geocode")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geocode.provider must be nominatim or google")
	assert.Contains(t, err.Error(), "geocode.settle_ms must be >= 1000")
}

func TestValidateGeocode_SettleAndRateFloors(t *testing.T) {
	for _, ms := range []int{0, 200, 999} {
		cfg := validDefaults()
		cfg.Geocode.SettleMs = ms
		err := cfg.Validate("geocode")
		require.Error(t, err, "settle_ms=%d", ms)
		assert.Contains(t, err.Error(), "geocode.settle_ms must be >= 1000")
	}

	cfg := validDefaults()
	cfg.Geocode.SettleMs = 2500
	assert.NoError(t, cfg.Validate("geocode"))

	cfg.Geocode.RateLimit = 0
	err := cfg.Validate("geocode")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geocode.rate_limit must be > 0")
}

func TestValidateExport(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/gis"
	assert.NoError(t, cfg.Validate("export"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateRender(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("render"))
	cfg.Canvas.Zoom = 30
	assert.Error(t, cfg.Validate("render"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
