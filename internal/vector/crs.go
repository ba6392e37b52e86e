package vector

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/rotisserie/eris"
)

// ErrInvalidCRS reports a coordinate reference system identifier this
// module does not recognise.
var ErrInvalidCRS = errors.New("invalid crs")

// CRS identifies a coordinate reference system by EPSG code.
type CRS struct {
	Code int
}

// Well-known reference systems.
var (
	WGS84       = CRS{Code: 4326}
	ETRS89      = CRS{Code: 4258}
	WebMercator = CRS{Code: 3857}
	RDNew       = CRS{Code: 28992}

	// WorkingCRS is the single planar frame every loaded layer is projected
	// into. Canvases and layer builders only ever see this projection.
	WorkingCRS = WebMercator
)

// String returns the EPSG:n form.
func (c CRS) String() string {
	return "EPSG:" + strconv.Itoa(c.Code)
}

// IsZero reports whether c is unset.
func (c CRS) IsZero() bool { return c.Code == 0 }

// PointFunc transforms one coordinate pair.
type PointFunc func(x, y float64) (float64, float64)

// toLonLat converts from the keyed CRS to WGS84 longitude/latitude.
var toLonLat = map[int]PointFunc{
	4326:   identity,
	4258:   identity, // ETRS89 and WGS84 differ by well under a metre
	3857:   viaOrb(project.Mercator.ToWGS84),
	900913: viaOrb(project.Mercator.ToWGS84),
	28992:  rdToLonLat,
}

// fromLonLat converts WGS84 longitude/latitude into the keyed CRS.
var fromLonLat = map[int]PointFunc{
	4326:   identity,
	4258:   identity,
	3857:   viaOrb(project.WGS84.ToMercator),
	900913: viaOrb(project.WGS84.ToMercator),
}

// ParseCRS accepts "EPSG:n", "epsg:n", "urn:ogc:def:crs:EPSG::n" and bare codes.
func ParseCRS(id string) (CRS, error) {
	s := strings.TrimSpace(strings.ToUpper(id))
	switch {
	case strings.HasPrefix(s, "URN:OGC:DEF:CRS:EPSG:"):
		s = s[strings.LastIndex(s, ":")+1:]
	case strings.HasPrefix(s, "EPSG:"):
		s = strings.TrimPrefix(s, "EPSG:")
	}

	code, err := strconv.Atoi(s)
	if err != nil {
		return CRS{}, eris.Wrapf(ErrInvalidCRS, "vector: parse crs %q", id)
	}
	if _, ok := toLonLat[code]; !ok {
		return CRS{}, eris.Wrapf(ErrInvalidCRS, "vector: unsupported crs %q", id)
	}
	if code == 900913 {
		code = 3857
	}
	return CRS{Code: code}, nil
}

// NewTransform returns a point transform from one CRS to another.
func NewTransform(from, to CRS) (PointFunc, error) {
	if from == to {
		return identity, nil
	}
	inv, ok := toLonLat[from.Code]
	if !ok {
		return nil, eris.Wrapf(ErrInvalidCRS, "vector: unsupported source crs %s", from)
	}
	fwd, ok := fromLonLat[to.Code]
	if !ok {
		return nil, eris.Wrapf(ErrInvalidCRS, "vector: unsupported target crs %s", to)
	}
	return func(x, y float64) (float64, float64) {
		return fwd(inv(x, y))
	}, nil
}

func identity(x, y float64) (float64, float64) { return x, y }

func viaOrb(p orb.Projection) PointFunc {
	return func(x, y float64) (float64, float64) {
		out := p(orb.Point{x, y})
		return out[0], out[1]
	}
}

// RD New reference point (Amersfoort) in both systems.
const (
	rdX0   = 155000.0
	rdY0   = 463000.0
	rdLat0 = 52.15517440
	rdLon0 = 5.38720621
)

// rdToLonLat is the Schreutelaar / Strang van Hees polynomial approximation
// from Rijksdriehoeksmeting to WGS84. Accurate to about a metre within the
// Netherlands.
func rdToLonLat(x, y float64) (float64, float64) {
	dX := (x - rdX0) * 1e-5
	dY := (y - rdY0) * 1e-5

	sumN := 3235.65389*dY +
		-32.58297*dX*dX +
		-0.2475*dY*dY +
		-0.84978*dX*dX*dY +
		-0.0655*math.Pow(dY, 3) +
		-0.01709*dX*dX*dY*dY +
		-0.00738*dX +
		0.0053*math.Pow(dX, 4) +
		-0.00039*dX*dX*math.Pow(dY, 3) +
		0.00033*math.Pow(dX, 4)*dY +
		-0.00012*dX*dY

	sumE := 5260.52916*dX +
		105.94684*dX*dY +
		2.45656*dX*dY*dY +
		-0.81885*math.Pow(dX, 3) +
		0.05594*dX*math.Pow(dY, 3) +
		-0.05607*math.Pow(dX, 3)*dY +
		0.01199*dY +
		-0.00256*math.Pow(dX, 3)*dY*dY +
		0.00128*dX*math.Pow(dY, 4) +
		0.00022*dY*dY +
		-0.00022*dX*dX +
		0.00026*math.Pow(dX, 5)

	return rdLon0 + sumE/3600, rdLat0 + sumN/3600
}
