// Package vector loads vector datasets, reprojects them into the working
// projection and assigns positional feature identifiers.
package vector

import (
	"context"

	"github.com/twpayne/go-geom"
)

// RawFeature is one record as delivered by a Reader, before projection.
type RawFeature struct {
	Geometry   geom.T
	Properties map[string]any
}

// Collection is the raw output of a vector-data collaborator.
type Collection struct {
	Features []RawFeature
}

// Reader produces a feature collection for a dataset reference.
type Reader interface {
	Read(ctx context.Context, ref string) (*Collection, error)
}

// Feature is a projected feature with its stable identifier.
type Feature struct {
	ID         string
	Geometry   geom.T
	Properties map[string]any
}

// Layer is an ordered, identified feature set in a known CRS. Layers are
// immutable once returned by Projector.Load.
type Layer struct {
	Source    string
	SourceCRS CRS
	CRS       CRS
	Features  []Feature
}

// Len returns the number of features.
func (l *Layer) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Features)
}

// Projected reports whether the layer is expressed in the working projection.
func (l *Layer) Projected() bool {
	return l != nil && l.CRS == WorkingCRS
}
