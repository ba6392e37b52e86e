package vector

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/resilience"
)

// Projector loads datasets through a Reader and normalises them into the
// working projection.
type Projector struct {
	reader Reader
	target CRS
}

// NewProjector creates a Projector targeting WorkingCRS.
func NewProjector(r Reader) *Projector {
	return &Projector{reader: r, target: WorkingCRS}
}

// Load reads ref, tags it with sourceCRS, reprojects every feature into the
// working projection and assigns feature IDs "0".."n-1" in load order.
//
// sourceCRS is trusted: it is never inferred from the data, so a wrong
// identifier yields a mis-projected layer rather than an error.
func (p *Projector) Load(ctx context.Context, ref, sourceCRS string) (*Layer, error) {
	src, err := ParseCRS(sourceCRS)
	if err != nil {
		return nil, err
	}
	fn, err := NewTransform(src, p.target)
	if err != nil {
		return nil, err
	}

	coll, err := p.reader.Read(ctx, ref)
	if err != nil {
		return nil, resilience.Unavailable(ref, err)
	}
	if coll == nil {
		return nil, resilience.Unavailable(ref, eris.New("vector: no feature collection"))
	}

	layer := &Layer{
		Source:    ref,
		SourceCRS: src,
		CRS:       p.target,
		Features:  make([]Feature, len(coll.Features)),
	}
	for i, raw := range coll.Features {
		if err := Reproject(raw.Geometry, fn); err != nil {
			return nil, resilience.Unavailable(ref, eris.Wrapf(err, "vector: feature %d", i))
		}
		setSRID(raw.Geometry, p.target.Code)
		layer.Features[i] = Feature{
			ID:         strconv.Itoa(i),
			Geometry:   raw.Geometry,
			Properties: raw.Properties,
		}
	}

	zap.L().Debug("vector: layer loaded",
		zap.String("source", ref),
		zap.String("source_crs", src.String()),
		zap.String("crs", p.target.String()),
		zap.Int("features", len(layer.Features)),
	)
	return layer, nil
}
