// Package canvas holds the map document that layers are composed onto.
package canvas

import (
	"errors"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var (
	// ErrLayerAttached reports a second Attach of the same layer to one canvas.
	ErrLayerAttached = errors.New("canvas: layer already attached")
	// ErrLayerOwned reports an Attach of a layer that belongs to another canvas.
	ErrLayerOwned = errors.New("canvas: layer belongs to another canvas")
)

// Defaults used when a Config leaves a field unset.
const (
	DefaultLat  = 41.000150980792405
	DefaultLon  = 34.99998540139929
	DefaultZoom = 7
	DefaultTile = "openstreetmap"
)

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat" yaml:"lat" mapstructure:"lat"`
	Lng float64 `json:"lng" yaml:"lng" mapstructure:"lng"`
}

// Valid reports whether both components are finite and in range.
func (p LatLng) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lng) &&
		p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Config describes a canvas to create. A nil Center and an empty Tile
// select the package defaults.
type Config struct {
	Center       *LatLng
	Zoom         int
	Tile         string
	Fullscreen   bool
	LayerControl bool
	Minimap      bool
	Spiderfy     bool
}

// DefaultConfig returns the decorations the map tool enables by default:
// fullscreen toggle and layer control on, minimap and spiderfy off.
func DefaultConfig() Config {
	return Config{Zoom: DefaultZoom, Tile: DefaultTile, Fullscreen: true, LayerControl: true}
}

// Option adjusts a Config.
type Option func(*Config)

// WithCenter sets the initial map center.
func WithCenter(lat, lng float64) Option {
	return func(c *Config) { c.Center = &LatLng{Lat: lat, Lng: lng} }
}

// WithTile selects the basemap by name or URL template.
func WithTile(tile string) Option {
	return func(c *Config) { c.Tile = tile }
}

// WithZoom sets the initial zoom level.
func WithZoom(z int) Option {
	return func(c *Config) { c.Zoom = z }
}

// WithFullscreen toggles the fullscreen button.
func WithFullscreen(on bool) Option {
	return func(c *Config) { c.Fullscreen = on }
}

// WithLayerControl toggles the layer control widget.
func WithLayerControl(on bool) Option {
	return func(c *Config) { c.LayerControl = on }
}

// WithMinimap toggles the overview minimap.
func WithMinimap(on bool) Option {
	return func(c *Config) { c.Minimap = on }
}

// WithSpiderfy toggles spreading of overlapping markers on click.
func WithSpiderfy(on bool) Option {
	return func(c *Config) { c.Spiderfy = on }
}

// Canvas is a base map plus an ordered set of exclusively owned layers.
// A Canvas is not safe for concurrent mutation.
type Canvas struct {
	center LatLng
	zoom   int
	tile   Tile
	cfg    Config
	layers []Layer
}

// New creates a canvas from DefaultConfig adjusted by opts.
func New(opts ...Option) *Canvas {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewFromConfig(cfg)
}

// NewFromConfig creates a canvas from an explicit Config.
func NewFromConfig(cfg Config) *Canvas {
	c := &Canvas{
		center: LatLng{Lat: DefaultLat, Lng: DefaultLon},
		zoom:   cfg.Zoom,
		tile:   ResolveTile(cfg.Tile),
		cfg:    cfg,
	}
	if cfg.Center != nil {
		c.center = *cfg.Center
	}
	if c.zoom <= 0 {
		c.zoom = DefaultZoom
	}
	return c
}

// Center returns the initial map center.
func (c *Canvas) Center() LatLng { return c.center }

// Zoom returns the initial zoom level.
func (c *Canvas) Zoom() int { return c.zoom }

// Tile returns the basemap.
func (c *Canvas) Tile() Tile { return c.tile }

// Config returns the configuration the canvas was built from.
func (c *Canvas) Config() Config { return c.cfg }

// Len returns the number of attached layers.
func (c *Canvas) Len() int { return len(c.layers) }

// Layers returns the attached layers in insertion order.
func (c *Canvas) Layers() []Layer {
	out := make([]Layer, len(c.layers))
	copy(out, c.layers)
	return out
}

// Attach appends l to the canvas. Insertion order is z-order and layer
// control order. Attaching a layer twice returns ErrLayerAttached; a layer
// owned by another canvas returns ErrLayerOwned. Neither changes the canvas.
func (c *Canvas) Attach(l Layer) error {
	if l == nil {
		return eris.New("canvas: nil layer")
	}
	a := l.attachment()
	switch {
	case a.owner == c:
		return eris.Wrapf(ErrLayerAttached, "canvas: attach %q", l.LayerName())
	case a.owner != nil:
		return eris.Wrapf(ErrLayerOwned, "canvas: attach %q", l.LayerName())
	}
	a.owner = c
	c.layers = append(c.layers, l)

	zap.L().Debug("canvas: layer attached",
		zap.String("layer", l.LayerName()),
		zap.Int("position", len(c.layers)-1),
	)
	return nil
}
