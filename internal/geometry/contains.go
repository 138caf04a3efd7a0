package geometry

import (
	"fmt"
	"log/slog"
)

// RepresentativePoint returns the bounding-box centroid of f. The boolean is
// false when the geometry has no usable vertex.
func RepresentativePoint(f Feature) (Point, bool) {
	b := BoundingBox(f.Geometry)
	if !b.Valid {
		return Point{}, false
	}
	return b.Centroid(), true
}

// Contains reports whether p lies inside f.
//
// For a Polygon, p must be inside the outer ring and outside every hole.
// For a MultiPolygon, p must be inside the outer ring of at least one member
// polygon; member holes are NOT consulted. That matches how districts have
// always been attributed and changing it would move mouzas between districts.
//
// Any other kind, or a geometry without rings, yields false.
func Contains(p Point, f Feature) bool {
	g := f.Geometry
	switch g.Kind {
	case KindMultiPolygon:
		for _, poly := range g.Polygons {
			if len(poly) == 0 {
				continue
			}
			if RayCastInRing(p, poly[0]) {
				return true
			}
		}
		return false
	case KindPolygon:
		if len(g.Rings) == 0 || !RayCastInRing(p, g.Rings[0]) {
			return false
		}
		for _, hole := range g.Rings[1:] {
			if RayCastInRing(p, hole) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Method records how a membership decision was reached.
type Method int

const (
	MethodNone Method = iota
	MethodRayCast
	MethodBoundsFallback
)

func (m Method) String() string {
	switch m {
	case MethodRayCast:
		return "ray_cast"
	case MethodBoundsFallback:
		return "bounds_fallback"
	default:
		return "none"
	}
}

// FallbackObserver is told whenever a membership decision had to fall back
// to bounding-box overlap.
type FallbackObserver func(child, parent string)

// Engine decides parent/child membership. The zero value is usable and logs
// to slog.Default().
type Engine struct {
	Logger     *slog.Logger
	OnFallback FallbackObserver
}

// NewEngine creates an Engine that logs through logger.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{Logger: logger}
}

func (e *Engine) logger() *slog.Logger {
	if e == nil || e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Member reports whether child's representative point falls inside parent.
//
// When parent's rings cannot be evaluated (no usable outer ring, or a panic
// while casting) the decision degrades to a bounding-box overlap test
// instead of silently dropping the child.
func (e *Engine) Member(child, parent Feature) (bool, Method) {
	p, valid := e.Locatable(child)
	if !valid {
		return false, MethodNone
	}
	return e.MemberAt(p, child, parent)
}

// Locatable returns child's representative point, logging a warning when it
// has none. Callers testing one child against many parents compute it once
// and use MemberAt.
func (e *Engine) Locatable(child Feature) (Point, bool) {
	p, valid := RepresentativePoint(child)
	if !valid {
		e.logger().Warn("feature has no usable coordinates",
			slog.String("feature", child.Name))
	}
	return p, valid
}

// MemberAt is Member with the child's representative point already known.
func (e *Engine) MemberAt(p Point, child, parent Feature) (ok bool, method Method) {
	if err := checkRings(parent.Geometry); err != nil {
		return e.fallback(child, parent, err)
	}

	defer func() {
		if r := recover(); r != nil {
			ok, method = e.fallback(child, parent, fmt.Errorf("containment panic: %v", r))
		}
	}()
	return Contains(p, parent), MethodRayCast
}

func (e *Engine) fallback(child, parent Feature, cause error) (bool, Method) {
	e.logger().Warn("containment unavailable, using bounding box overlap",
		slog.String("child", child.Name),
		slog.String("parent", parent.Name),
		slog.String("error", cause.Error()))
	if e != nil && e.OnFallback != nil {
		e.OnFallback(child.Name, parent.Name)
	}
	return BoundingBox(child.Geometry).Overlaps(BoundingBox(parent.Geometry)), MethodBoundsFallback
}

// checkRings returns an error when the containment test has no outer ring to
// rely on. A MultiPolygon is usable as long as one member has an outer ring
// of at least three vertices; Contains skips the others. Unknown kinds are
// not an error: they are simply never containers.
func checkRings(g Geometry) error {
	switch g.Kind {
	case KindPolygon:
		if len(g.Rings) == 0 {
			return fmt.Errorf("polygon has no rings")
		}
		if len(g.Rings[0]) < 3 {
			return fmt.Errorf("polygon outer ring has %d vertices", len(g.Rings[0]))
		}
	case KindMultiPolygon:
		if len(g.Polygons) == 0 {
			return fmt.Errorf("multipolygon has no polygons")
		}
		for _, poly := range g.Polygons {
			if len(poly) > 0 && len(poly[0]) >= 3 {
				return nil
			}
		}
		return fmt.Errorf("none of %d multipolygon members has a usable outer ring", len(g.Polygons))
	}
	return nil
}
