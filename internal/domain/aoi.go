package domain

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/planar"
)

// metersPerDegreeLat is the 111 km/degree approximation used to convert the
// AOI half-side to latitude degrees; the longitude offset is additionally
// divided by cos(lat) to correct for meridian convergence.
const metersPerDegreeLat = 111_000.0

// AreaOfInterest is an axis-aligned square region around a center point.
// Immutable once constructed; build a new value to change center or size.
type AreaOfInterest struct {
	CenterLat   float64
	CenterLon   float64
	SideLengthM float64

	polygon orb.Polygon
	bound   orb.Bound
}

// NewAreaOfInterest derives the bounding polygon for a center point and a
// side length in meters. The ring is closed and in lon/lat vertex order.
func NewAreaOfInterest(centerLat, centerLon, sideLengthM float64) (AreaOfInterest, error) {
	if !(sideLengthM > 0) {
		return AreaOfInterest{}, fmt.Errorf("%w: side length must be positive, got %v", ErrInvalidParameter, sideLengthM)
	}
	if centerLat <= -90 || centerLat >= 90 || math.IsNaN(centerLat) || math.IsNaN(centerLon) {
		return AreaOfInterest{}, fmt.Errorf("%w: center (%v, %v) out of range", ErrInvalidParameter, centerLat, centerLon)
	}

	half := sideLengthM / 2
	latOffset := half / metersPerDegreeLat
	lonOffset := half / (metersPerDegreeLat * math.Cos(centerLat*math.Pi/180))

	minLon, maxLon := centerLon-lonOffset, centerLon+lonOffset
	minLat, maxLat := centerLat-latOffset, centerLat+latOffset

	ring := orb.Ring{
		{minLon, minLat},
		{maxLon, minLat},
		{maxLon, maxLat},
		{minLon, maxLat},
		{minLon, minLat},
	}

	return AreaOfInterest{
		CenterLat:   centerLat,
		CenterLon:   centerLon,
		SideLengthM: sideLengthM,
		polygon:     orb.Polygon{ring},
		bound:       ring.Bound(),
	}, nil
}

// Polygon returns the closed bounding ring.
func (a AreaOfInterest) Polygon() orb.Polygon { return a.polygon }

// Bound returns the axis-aligned lon/lat bounds.
func (a AreaOfInterest) Bound() orb.Bound { return a.bound }

// Contains reports whether a lon/lat point lies inside the AOI. Boundary
// points resolve by the ray-cast rule of the geometry library; the rule is
// fixed, so repeated evaluation of the same point is always consistent.
func (a AreaOfInterest) Contains(lon, lat float64) bool {
	return planar.PolygonContains(a.polygon, orb.Point{lon, lat})
}

// WKT renders the polygon for catalog geometry query parameters.
func (a AreaOfInterest) WKT() string {
	return wkt.MarshalString(a.polygon)
}
