package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/geomap/internal/canvas"
	"github.com/sells-group/geomap/internal/geocoding"
)

// Config holds the full application configuration.
type Config struct {
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Vector  VectorConfig  `yaml:"vector" mapstructure:"vector"`
	Stats   StatsConfig   `yaml:"stats" mapstructure:"stats"`
	Canvas  CanvasConfig  `yaml:"canvas" mapstructure:"canvas"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// MinSettleMs is the shortest pause allowed after a resolved geocoding
// request.
const MinSettleMs = 1000

// GeocodeConfig selects and configures the geocoding provider.
type GeocodeConfig struct {
	Provider     string              `yaml:"provider" mapstructure:"provider"`
	BaseURL      string              `yaml:"base_url" mapstructure:"base_url"`
	UserAgent    string              `yaml:"user_agent" mapstructure:"user_agent"`
	Email        string              `yaml:"email" mapstructure:"email"`
	GoogleAPIKey string              `yaml:"google_api_key" mapstructure:"google_api_key"`
	SettleMs     int                 `yaml:"settle_ms" mapstructure:"settle_ms"`
	TimeoutSecs  int                 `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit    float64             `yaml:"rate_limit" mapstructure:"rate_limit"`
	Columns      geocoding.ColumnMap `yaml:"columns" mapstructure:"columns"`
}

// VectorConfig configures vector dataset loading.
type VectorConfig struct {
	DefaultSourceCRS string `yaml:"default_source_crs" mapstructure:"default_source_crs"`
	TempDir          string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// StatsConfig configures the statistics service.
type StatsConfig struct {
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	MaxPages int    `yaml:"max_pages" mapstructure:"max_pages"`
}

// CanvasConfig holds the default map decorations. A zero center leaves
// centering to the canvas builder.
type CanvasConfig struct {
	CenterLat    float64 `yaml:"center_lat" mapstructure:"center_lat"`
	CenterLon    float64 `yaml:"center_lon" mapstructure:"center_lon"`
	Tile         string  `yaml:"tile" mapstructure:"tile"`
	Zoom         int     `yaml:"zoom" mapstructure:"zoom"`
	Fullscreen   bool    `yaml:"fullscreen" mapstructure:"fullscreen"`
	LayerControl bool    `yaml:"layer_control" mapstructure:"layer_control"`
	Minimap      bool    `yaml:"minimap" mapstructure:"minimap"`
	Spiderfy     bool    `yaml:"spiderfy" mapstructure:"spiderfy"`
}

// Canvas converts c to a canvas configuration.
func (c CanvasConfig) Canvas() canvas.Config {
	cfg := canvas.Config{
		Zoom:         c.Zoom,
		Tile:         c.Tile,
		Fullscreen:   c.Fullscreen,
		LayerControl: c.LayerControl,
		Minimap:      c.Minimap,
		Spiderfy:     c.Spiderfy,
	}
	if c.CenterLat != 0 || c.CenterLon != 0 {
		cfg.Center = &canvas.LatLng{Lat: c.CenterLat, Lng: c.CenterLon}
	}
	return cfg
}

// FetchConfig configures dataset downloads.
type FetchConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// StoreConfig configures the PostGIS backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the map server.
type ServerConfig struct {
	Port int    `yaml:"port" mapstructure:"port"`
	Dir  string `yaml:"dir" mapstructure:"dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional; variables already set win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEOMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("geocode.provider", "nominatim")
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "geomap/1.0")
	v.SetDefault("geocode.settle_ms", 1000)
	v.SetDefault("geocode.timeout_secs", 30)
	v.SetDefault("geocode.rate_limit", 1.0)
	v.SetDefault("geocode.columns.name", geocoding.DefaultColumns.Name)
	v.SetDefault("geocode.columns.street", geocoding.DefaultColumns.Street)
	v.SetDefault("geocode.columns.number", geocoding.DefaultColumns.Number)
	v.SetDefault("geocode.columns.postal_code", geocoding.DefaultColumns.PostalCode)
	v.SetDefault("geocode.columns.city", geocoding.DefaultColumns.City)
	v.SetDefault("geocode.columns.country", geocoding.DefaultColumns.Country)
	v.SetDefault("vector.default_source_crs", "EPSG:4326")
	v.SetDefault("vector.temp_dir", os.TempDir())
	v.SetDefault("stats.base_url", "https://opendata.cbs.nl/ODataApi/odata")
	v.SetDefault("stats.max_pages", 100)
	v.SetDefault("canvas.tile", "openstreetmap")
	v.SetDefault("canvas.zoom", 7)
	v.SetDefault("canvas.fullscreen", true)
	v.SetDefault("canvas.layer_control", true)
	v.SetDefault("canvas.minimap", false)
	v.SetDefault("canvas.spiderfy", false)
	v.SetDefault("fetch.user_agent", "geomap/1.0")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.dir", "maps")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
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

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	var errs []string
	switch mode {
	case "geocode":
		switch c.Geocode.Provider {
		case "nominatim":
			if c.Geocode.UserAgent == "" {
				errs = append(errs, "geocode.user_agent is required for nominatim")
			}
		case "google":
			if c.Geocode.GoogleAPIKey == "" {
				errs = append(errs, "geocode.google_api_key is required for google")
			}
		default:
			errs = append(errs, "geocode.provider must be nominatim or google")
		}
		if c.Geocode.SettleMs < MinSettleMs {
			errs = append(errs, fmt.Sprintf("geocode.settle_ms must be >= %d", MinSettleMs))
		}
		if c.Geocode.RateLimit <= 0 {
			errs = append(errs, "geocode.rate_limit must be > 0")
		}
	case "export":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.Dir == "" {
			errs = append(errs, "server.dir is required")
		}
	case "render":
		if c.Canvas.Zoom < 0 || c.Canvas.Zoom > 22 {
			errs = append(errs, "canvas.zoom must be between 0 and 22")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
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
	zap.ReplaceGlobals(logger)

	return nil
}
