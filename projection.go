package wxvol

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Projection is the pluggable map-projection capability spec §6 describes
// as an opaque external collaborator exposing only a forward and an
// inverse evaluation. The real projection library (PROJ or similar) is
// never linked into this package; ProjFn is the seam a caller wires
// a real implementation through.
type Projection interface {
	// LonLatToXY projects geographic coordinates (radians) to the
	// projection's planar coordinates. ok is false on a projection miss
	// (e.g. a point beyond the projection's domain).
	LonLatToXY(lon, lat float64) (x, y float64, ok bool)
	// XYToLonLat is the inverse of LonLatToXY.
	XYToLonLat(x, y float64) (lon, lat float64, ok bool)
}

// ProjFn is the shape the geometry subsystem hands a projection callback
// in (spec §6): fn(lon, lat, &x, &y) -> ok.
type ProjFn func(lon, lat float64) (x, y float64, ok bool)

// equirect is the one concrete Projection built in to this package: plate
// carrée about a reference longitude/latitude. It exists so the geometry
// subsystem is independently testable (spec §8
// property 8) without a real external projection library; production
// callers are expected to supply their own Projection wired to PROJ or
// equivalent.
type equirect struct {
	refLon, refLat float64
}

// SetFromString parses a projection specifier of the form
// "equirectangular:<lon0>,<lat0>" (degrees) and constructs a Projection.
// Any other specifier is reported as HelperFail, since the real projection
// library this stands in for is an opaque external collaborator (spec §1).
func SetFromString(spec string) (Projection, error) {
	parts := strings.SplitN(spec, ":", 2)
	switch parts[0] {
	case "equirectangular":
		if len(parts) != 2 {
			return nil, newErr(HelperFail, "equirectangular projection requires lon0,lat0")
		}
		ll := strings.Split(parts[1], ",")
		if len(ll) != 2 {
			return nil, newErr(HelperFail, "equirectangular projection requires lon0,lat0")
		}
		lon0, err := strconv.ParseFloat(strings.TrimSpace(ll[0]), 64)
		if err != nil {
			return nil, wrapErr(HelperFail, err, "parsing lon0")
		}
		lat0, err := strconv.ParseFloat(strings.TrimSpace(ll[1]), 64)
		if err != nil {
			return nil, wrapErr(HelperFail, err, "parsing lat0")
		}
		return &equirect{refLon: lon0 * math.Pi / 180, refLat: lat0 * math.Pi / 180}, nil
	default:
		return nil, newErr(HelperFail, "unknown projection specifier %q", spec)
	}
}

func (e *equirect) LonLatToXY(lon, lat float64) (x, y float64, ok bool) {
	x = (LonInDomain(lon, e.refLon) - e.refLon) * REarth * math.Cos(e.refLat)
	y = (lat - e.refLat) * REarth
	return x, y, true
}

func (e *equirect) XYToLonLat(x, y float64) (lon, lat float64, ok bool) {
	lon = e.refLon + x/(REarth*math.Cos(e.refLat))
	lat = e.refLat + y/REarth
	return lon, lat, true
}

// Fn adapts a Projection to the ProjFn shape the geometry subsystem takes.
func Fn(p Projection) ProjFn {
	return func(lon, lat float64) (float64, float64, bool) {
		return p.LonLatToXY(lon, lat)
	}
}

func (e *equirect) String() string {
	return fmt.Sprintf("equirectangular:%f,%f", e.refLon*180/math.Pi, e.refLat*180/math.Pi)
}
