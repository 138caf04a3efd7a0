// Package region attributes child features (mouzas) to parent features
// (districts) and answers lookups against the resulting partition.
package region

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/tidwall/rtree"
	"mouzamap.org/internal/geometry"
)

// Stats summarizes a build.
type Stats struct {
	Parents           int `json:"parents"`
	Children          int `json:"children"`
	UnnamedParents    int `json:"unnamedParents"`
	UnnamedChildren   int `json:"unnamedChildren"`
	Assignments       int `json:"assignments"`
	BoundsFallbacks   int `json:"boundsFallbacks"`
	UnlocatedChildren int `json:"unlocatedChildren"`
}

// Index maps each parent name to the sorted, de-duplicated names of the
// children whose representative point falls inside it. An Index is immutable
// after Build and safe for concurrent readers.
type Index struct {
	children map[string][]string
	parents  []string

	parentFeatures []geometry.Feature
	childFeatures  []geometry.Feature
	// childrenByParent holds positions in childFeatures, per parent name.
	childrenByParent map[string][]int
	tree             rtree.RTreeG[int]

	stats Stats
}

type buildOptions struct {
	engine *geometry.Engine
	logger *slog.Logger
}

// Option configures Build.
type Option func(*buildOptions)

// WithEngine sets the containment engine used for membership decisions.
func WithEngine(e *geometry.Engine) Option {
	return func(o *buildOptions) { o.engine = e }
}

// WithLogger sets the logger for build diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *buildOptions) { o.logger = l }
}

// Build partitions children by parent. Features whose name is empty are
// skipped. Empty inputs are not an error: every named parent gets an entry,
// possibly with no children.
func Build(parents, children geometry.FeatureCollection, opts ...Option) *Index {
	o := buildOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.engine == nil {
		o.engine = geometry.NewEngine(o.logger)
	}

	idx := &Index{
		children:         make(map[string][]string),
		childrenByParent: make(map[string][]int),
	}

	for _, c := range children {
		if strings.TrimSpace(c.Name) == "" {
			idx.stats.UnnamedChildren++
			continue
		}
		idx.childFeatures = append(idx.childFeatures, c)
	}

	points := make([]geometry.Point, len(idx.childFeatures))
	usable := make([]bool, len(idx.childFeatures))
	for i, c := range idx.childFeatures {
		points[i], usable[i] = o.engine.Locatable(c)
	}

	sets := make(map[string]map[string]struct{})
	members := make(map[string]map[int]struct{})
	located := make([]bool, len(idx.childFeatures))

	for _, p := range parents {
		if strings.TrimSpace(p.Name) == "" {
			idx.stats.UnnamedParents++
			continue
		}

		pos := len(idx.parentFeatures)
		idx.parentFeatures = append(idx.parentFeatures, p)
		if b := geometry.BoundingBox(p.Geometry); b.Valid {
			idx.tree.Insert(b.Min, b.Max, pos)
		}

		set, ok := sets[p.Name]
		if !ok {
			set = make(map[string]struct{})
			sets[p.Name] = set
			members[p.Name] = make(map[int]struct{})
		}

		for i, c := range idx.childFeatures {
			if !usable[i] {
				continue
			}
			member, method := o.engine.MemberAt(points[i], c, p)
			if method == geometry.MethodBoundsFallback {
				idx.stats.BoundsFallbacks++
			}
			if !member {
				continue
			}
			located[i] = true
			set[c.Name] = struct{}{}
			if _, dup := members[p.Name][i]; !dup {
				members[p.Name][i] = struct{}{}
				idx.childrenByParent[p.Name] = append(idx.childrenByParent[p.Name], i)
			}
		}
	}

	for name, set := range sets {
		names := make([]string, 0, len(set))
		for n := range set {
			names = append(names, n)
		}
		sort.Strings(names)
		idx.children[name] = names
		idx.parents = append(idx.parents, name)
		idx.stats.Assignments += len(names)
	}
	sort.Strings(idx.parents)

	for _, ok := range located {
		if !ok {
			idx.stats.UnlocatedChildren++
		}
	}
	idx.stats.Parents = len(idx.parents)
	idx.stats.Children = len(idx.childFeatures)

	o.logger.Debug("region index built",
		slog.Int("parents", idx.stats.Parents),
		slog.Int("children", idx.stats.Children),
		slog.Int("assignments", idx.stats.Assignments),
		slog.Int("bounds_fallbacks", idx.stats.BoundsFallbacks))

	return idx
}

// ChildrenOf returns the children attributed to parentName, or an empty
// slice when the name is unknown or empty. The returned slice must not be
// modified.
func (idx *Index) ChildrenOf(parentName string) []string {
	if idx == nil || parentName == "" {
		return []string{}
	}
	names, ok := idx.children[parentName]
	if !ok {
		return []string{}
	}
	return names
}

// Parents returns every named parent, sorted.
func (idx *Index) Parents() []string {
	if idx == nil {
		return []string{}
	}
	return idx.parents
}

// Stats returns the build summary.
func (idx *Index) Stats() Stats {
	if idx == nil {
		return Stats{}
	}
	return idx.stats
}

// ParentFeatures returns all parent features carrying name.
func (idx *Index) ParentFeatures(name string) []geometry.Feature {
	if idx == nil {
		return nil
	}
	var out []geometry.Feature
	for _, f := range idx.parentFeatures {
		if f.Name == name {
			out = append(out, f)
		}
	}
	return out
}

// Locate returns the sorted names of parents whose geometry contains p.
// Parent bounding boxes are searched first; only candidates are ray cast.
func (idx *Index) Locate(p geometry.Point) []string {
	if idx == nil {
		return []string{}
	}
	seen := make(map[string]struct{})
	names := []string{}
	pt := p.OrbPoint()
	idx.tree.Search(pt, pt, func(_, _ [2]float64, pos int) bool {
		f := idx.parentFeatures[pos]
		if _, dup := seen[f.Name]; dup {
			return true
		}
		if geometry.Contains(p, f) {
			seen[f.Name] = struct{}{}
			names = append(names, f.Name)
		}
		return true
	})
	sort.Strings(names)
	return names
}

// LocateChild returns the sorted names of children of parentName whose
// geometry contains p.
func (idx *Index) LocateChild(parentName string, p geometry.Point) []string {
	if idx == nil {
		return []string{}
	}
	seen := make(map[string]struct{})
	names := []string{}
	for _, i := range idx.childrenByParent[parentName] {
		c := idx.childFeatures[i]
		if _, dup := seen[c.Name]; dup {
			continue
		}
		if geometry.Contains(p, c) {
			seen[c.Name] = struct{}{}
			names = append(names, c.Name)
		}
	}
	sort.Strings(names)
	return names
}

// ChildFeatures returns every named child feature, in input order.
func (idx *Index) ChildFeatures() []geometry.Feature {
	if idx == nil {
		return nil
	}
	return idx.childFeatures
}
