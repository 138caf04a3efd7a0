package geometry

import "math"

// horizontalEdgeTolerance is the latitude difference below which an edge is
// treated as horizontal and skipped.
const horizontalEdgeTolerance = 1e-10

// RayCastInRing is an even-odd ray-casting test casting a ray from p towards
// increasing longitude.
//
// For each edge (i, j=i-1 wrapped) an edge crosses when exactly one endpoint
// lies strictly above p's latitude. The crossing is counted when the
// interpolated intersection longitude is strictly greater than p.Lng.
// Near-horizontal edges are skipped so they never divide by zero.
//
// Points exactly on the boundary are not guaranteed to be inside or outside.
func RayCastInRing(p Point, ring Ring) bool {
	n := len(ring)
	if n < 3 {
		return false
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].Lng, ring[i].Lat
		xj, yj := ring[j].Lng, ring[j].Lat

		if math.Abs(yi-yj) < horizontalEdgeTolerance {
			continue
		}
		if (yi > p.Lat) == (yj > p.Lat) {
			continue
		}

		x := xi + (p.Lat-yi)*(xj-xi)/(yj-yi)
		if x > p.Lng {
			inside = !inside
		}
	}
	return inside
}
