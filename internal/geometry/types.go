// Package geometry holds the planar geometry used to attribute mouzas to
// districts: bounding boxes, bounding-box centroids, even-odd ray casting and
// the Polygon / MultiPolygon containment rules built on top of them.
//
// Coordinates are treated as Cartesian (longitude on x, latitude on y). No
// projection or geodesic correction is applied.
package geometry

import "fmt"

// Point is a (latitude, longitude) pair in the same planar space as feature
// coordinates.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Ring is a linear ring. The first and last vertex are logically connected
// whether or not the ring repeats its first vertex.
type Ring []Point

// Kind discriminates the payload carried by a Geometry.
type Kind int

const (
	KindUnknown Kind = iota
	KindPolygon
	KindMultiPolygon
)

func (k Kind) String() string {
	switch k {
	case KindPolygon:
		return "Polygon"
	case KindMultiPolygon:
		return "MultiPolygon"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Geometry is a tagged variant. Rings is populated for KindPolygon (ring 0 is
// the outer boundary, the rest are holes); Polygons is populated for
// KindMultiPolygon, each entry following the Polygon convention.
type Geometry struct {
	Kind     Kind
	Rings    []Ring
	Polygons [][]Ring
}

// NewPolygon builds a Polygon geometry from an outer ring and optional holes.
func NewPolygon(rings ...Ring) Geometry {
	return Geometry{Kind: KindPolygon, Rings: rings}
}

// NewMultiPolygon builds a MultiPolygon geometry.
func NewMultiPolygon(polygons ...[]Ring) Geometry {
	return Geometry{Kind: KindMultiPolygon, Polygons: polygons}
}

// forEachRing visits every ring of the geometry regardless of its kind.
func (g Geometry) forEachRing(fn func(Ring)) {
	switch g.Kind {
	case KindPolygon:
		for _, r := range g.Rings {
			fn(r)
		}
	case KindMultiPolygon:
		for _, poly := range g.Polygons {
			for _, r := range poly {
				fn(r)
			}
		}
	}
}

// OuterRings returns the outer boundary of each polygon in g. Holes are
// omitted.
func (g Geometry) OuterRings() []Ring {
	switch g.Kind {
	case KindPolygon:
		if len(g.Rings) == 0 {
			return nil
		}
		return []Ring{g.Rings[0]}
	case KindMultiPolygon:
		out := make([]Ring, 0, len(g.Polygons))
		for _, poly := range g.Polygons {
			if len(poly) > 0 {
				out = append(out, poly[0])
			}
		}
		return out
	default:
		return nil
	}
}

// Feature is a named geometry record.
type Feature struct {
	Name       string
	Properties map[string]any
	Geometry   Geometry

	// Skipped counts vertices dropped while decoding because they were
	// missing or non-numeric.
	Skipped int
}

// FeatureCollection is an ordered sequence of features. Names are not
// required to be unique.
type FeatureCollection []Feature
