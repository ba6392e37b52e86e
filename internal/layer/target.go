package layer

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geomap/internal/canvas"
	"github.com/sells-group/geomap/internal/geocoding"
)

// AttachTarget selects the canvas a convenience builder attaches to: a new
// canvas from a Config, or an existing one.
type AttachTarget interface {
	canvasFor(results []geocoding.Result) *canvas.Canvas
}

type newCanvas struct{ cfg canvas.Config }

func (t newCanvas) canvasFor(results []geocoding.Result) *canvas.Canvas {
	cfg := t.cfg
	if cfg.Center == nil {
		if c, ok := ResolvedCenter(results); ok {
			cfg.Center = &c
		}
	}
	return canvas.NewFromConfig(cfg)
}

type existingCanvas struct{ c *canvas.Canvas }

func (t existingCanvas) canvasFor(_ []geocoding.Result) *canvas.Canvas { return t.c }

// NewCanvas creates a canvas from cfg. When cfg has no center, the canvas
// is centered on the mean of the resolved coordinates.
func NewCanvas(cfg canvas.Config) AttachTarget { return newCanvas{cfg: cfg} }

// ExistingCanvas attaches to c.
func ExistingCanvas(c *canvas.Canvas) AttachTarget { return existingCanvas{c: c} }

// GeocodeAndAttach resolves records, builds a marker layer from the
// resolved results and attaches it to the target canvas.
//
// If geocoding is interrupted, the markers for the records processed so far
// are still attached and the interruption error is returned alongside.
func GeocodeAndAttach(ctx context.Context, g *geocoding.Geocoder, records []geocoding.AddressRecord, target AttachTarget, style MarkerStyle) (*MarkerLayer, *canvas.Canvas, error) {
	if err := checkTarget(target); err != nil {
		return nil, nil, err
	}

	results, gerr := g.ResolveAll(ctx, records)
	if gerr != nil && !errors.Is(gerr, geocoding.ErrInterrupted) {
		return nil, nil, gerr
	}

	ml, cv, err := AttachResults(results, target, style)
	if err != nil {
		return nil, nil, err
	}
	return ml, cv, gerr
}

// AttachResults builds a marker layer from already resolved results and
// attaches it to the target canvas.
func AttachResults(results []geocoding.Result, target AttachTarget, style MarkerStyle) (*MarkerLayer, *canvas.Canvas, error) {
	if err := checkTarget(target); err != nil {
		return nil, nil, err
	}
	cv := target.canvasFor(results)
	ml := BuildMarkers(results, style)
	if err := ml.AttachTo(cv); err != nil {
		return nil, nil, err
	}
	return ml, cv, nil
}

func checkTarget(target AttachTarget) error {
	if target == nil {
		return eris.New("layer: nil attach target")
	}
	if ec, ok := target.(existingCanvas); ok && ec.c == nil {
		return eris.New("layer: nil existing canvas")
	}
	return nil
}
