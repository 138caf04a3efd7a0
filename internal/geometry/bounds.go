package geometry

import (
	"math"

	"github.com/paulmach/orb"
)

// Bounds is an orb.Bound in (lng, lat) order plus a Valid flag, which is
// false when no usable vertex contributed to the box. The embedded Bound is
// meaningless while Valid is false.
type Bounds struct {
	orb.Bound
	Valid bool
}

// NewBounds builds a valid box from its corners.
func NewBounds(minLat, minLng, maxLat, maxLng float64) Bounds {
	return Bounds{
		Bound: orb.Bound{Min: orb.Point{minLng, minLat}, Max: orb.Point{maxLng, maxLat}},
		Valid: true,
	}
}

// OrbPoint converts p to orb's (lng, lat) order.
func (p Point) OrbPoint() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// Extend grows the box to include p. Points with NaN or infinite coordinates
// are ignored.
func (b *Bounds) Extend(p Point) {
	if !finite(p.Lat) || !finite(p.Lng) {
		return
	}
	if !b.Valid {
		b.Bound = p.OrbPoint().Bound()
		b.Valid = true
		return
	}
	b.Bound = b.Bound.Extend(p.OrbPoint())
}

// Centroid returns the midpoint of the box. This is a bounding-box centroid,
// not an area-weighted one.
func (b Bounds) Centroid() Point {
	c := b.Center()
	return Point{Lat: c.Lat(), Lng: c.Lon()}
}

// ContainsPoint reports whether p lies inside the box, edges included.
func (b Bounds) ContainsPoint(p Point) bool {
	return b.Valid && b.Contains(p.OrbPoint())
}

// Overlaps reports whether the boxes share any point. Touching edges count.
func (b Bounds) Overlaps(other Bounds) bool {
	return b.Valid && other.Valid && b.Intersects(other.Bound)
}

// BoundingBox scans every vertex of every ring of g. Malformed vertices are
// skipped.
func BoundingBox(g Geometry) Bounds {
	var b Bounds
	g.forEachRing(func(r Ring) {
		for _, p := range r {
			b.Extend(p)
		}
	})
	return b
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
