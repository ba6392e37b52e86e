package vector

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Opener returns a byte stream for a dataset reference.
type Opener interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// GeoJSONReader reads FeatureCollection and Feature documents.
type GeoJSONReader struct {
	opener Opener
}

// NewGeoJSONReader creates a GeoJSONReader that opens references with o.
func NewGeoJSONReader(o Opener) *GeoJSONReader {
	return &GeoJSONReader{opener: o}
}

type geoJSONFeature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

type geoJSONDocument struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
	geoJSONFeature
}

// Read implements Reader.
func (r *GeoJSONReader) Read(ctx context.Context, ref string) (*Collection, error) {
	rc, err := r.opener.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	return DecodeGeoJSON(rc)
}

// DecodeGeoJSON parses a GeoJSON FeatureCollection or single Feature.
// Features keep document order; a null geometry yields a nil Geometry.
func DecodeGeoJSON(rd io.Reader) (*Collection, error) {
	dec := json.NewDecoder(rd)
	dec.UseNumber()

	var doc geoJSONDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, eris.Wrap(err, "geojson: decode document")
	}

	var features []geoJSONFeature
	switch strings.ToLower(doc.Type) {
	case "featurecollection":
		features = doc.Features
	case "feature":
		features = []geoJSONFeature{doc.geoJSONFeature}
	default:
		return nil, eris.Errorf("geojson: unsupported document type %q", doc.Type)
	}

	coll := &Collection{Features: make([]RawFeature, 0, len(features))}
	for i, f := range features {
		g, err := decodeGeometry(f.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "geojson: feature %d", i)
		}
		coll.Features = append(coll.Features, RawFeature{Geometry: g, Properties: f.Properties})
	}
	return coll, nil
}

func decodeGeometry(raw json.RawMessage) (geom.T, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return nil, eris.Wrap(err, "decode geometry")
	}
	return g, nil
}

// EncodeGeometry marshals g as a GeoJSON geometry object.
func EncodeGeometry(g geom.T) (json.RawMessage, error) {
	if g == nil {
		return json.RawMessage("null"), nil
	}
	data, err := geojson.Marshal(g)
	if err != nil {
		return nil, eris.Wrap(err, "geojson: encode geometry")
	}
	return data, nil
}
