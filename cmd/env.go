package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/config"
	"github.com/sells-group/geomap/internal/db"
	"github.com/sells-group/geomap/internal/fetcher"
	"github.com/sells-group/geomap/internal/geocoding"
	"github.com/sells-group/geomap/internal/manifest"
	"github.com/sells-group/geomap/internal/stats"
	"github.com/sells-group/geomap/internal/vector"
	"github.com/sells-group/geomap/pkg/cbs"
	"github.com/sells-group/geomap/pkg/geocode"
)

// mapEnv holds the collaborators the map commands share.
type mapEnv struct {
	Router    *fetcher.Router
	Pool      *pgxpool.Pool // nil without store.database_url
	Projector *vector.Projector
	CBS       cbs.Client
}

// Close releases resources held by the environment.
func (e *mapEnv) Close() {
	if e.Pool != nil {
		e.Pool.Close()
	}
}

// initEnv builds the fetch router, the optional PostGIS pool and the
// vector and statistics sources from cfg.
func initEnv(ctx context.Context, c *config.Config) (*mapEnv, error) {
	httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    c.Fetch.UserAgent,
		Timeout:      time.Duration(c.Fetch.TimeoutSecs) * time.Second,
		MaxRetries:   c.Fetch.MaxRetries,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})
	ftpFetcher := fetcher.NewFTPFetcher(fetcher.FTPOptions{
		Timeout: time.Duration(c.Fetch.TimeoutSecs) * time.Second,
	})
	env := &mapEnv{Router: fetcher.NewRouter(httpFetcher, ftpFetcher)}

	if c.Store.DatabaseURL != "" {
		pool, err := db.Connect(ctx, c.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		env.Pool = pool
	}

	var pool db.Pool
	if env.Pool != nil {
		pool = env.Pool
	}
	env.Projector = vector.NewProjector(vector.NewSourceRouter(env.Router, pool, c.Vector.TempDir))
	env.CBS = cbs.NewClient(
		cbs.WithBaseURL(c.Stats.BaseURL),
		cbs.WithFetcher(httpFetcher),
		cbs.WithMaxPages(c.Stats.MaxPages),
	)
	return env, nil
}

// statsFetcher returns a fetcher for file references and CBS tables with q
// applied to remote requests.
func (e *mapEnv) statsFetcher(c *config.Config, q cbs.Query) *stats.Fetcher {
	return stats.NewFetcher(&stats.Router{
		Files:  stats.NewFileSource(e.Router, ',', c.Vector.TempDir),
		Remote: stats.NewCBSSource(e.CBS, stats.WithQuery(q), stats.WithTitles()),
	})
}

// composer wires a manifest composer to the environment.
func (e *mapEnv) composer(c *config.Config, g *geocoding.Geocoder) *manifest.Composer {
	return &manifest.Composer{
		Vectors:    e.Projector,
		Stats:      func(q cbs.Query) manifest.TableFetcher { return e.statsFetcher(c, q) },
		Geocoder:   g,
		Base:       c.Canvas.Canvas(),
		DefaultCRS: c.Vector.DefaultSourceCRS,
		Columns:    c.Geocode.Columns,
	}
}

// newProvider builds the configured geocoding provider.
func newProvider(c config.GeocodeConfig) (geocode.Provider, error) {
	timeout := time.Duration(c.TimeoutSecs) * time.Second
	switch c.Provider {
	case "nominatim", "":
		return geocode.NewNominatimProvider(
			geocode.WithBaseURL(c.BaseURL),
			geocode.WithUserAgent(c.UserAgent),
			geocode.WithEmail(c.Email),
			geocode.WithNominatimRateLimit(c.RateLimit),
			geocode.WithNominatimTimeout(timeout),
		), nil
	case "google":
		return geocode.NewGoogleProvider(c.GoogleAPIKey, &http.Client{Timeout: timeout}, c.RateLimit), nil
	default:
		return nil, eris.Errorf("geocode: unknown provider %q", c.Provider)
	}
}

// newGeocoder builds a Geocoder for the configured provider. progress may
// be nil.
func newGeocoder(c config.GeocodeConfig, progress geocoding.ProgressFunc) (*geocoding.Geocoder, error) {
	p, err := newProvider(c)
	if err != nil {
		return nil, err
	}
	opts := []geocoding.Option{geocoding.WithSettle(time.Duration(c.SettleMs) * time.Millisecond)}
	if progress != nil {
		opts = append(opts, geocoding.WithProgress(progress))
	}
	zap.L().Debug("geocoding provider ready", zap.String("provider", p.Name()))
	return geocoding.New(p, opts...), nil
}
