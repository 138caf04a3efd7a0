package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"mouzamap.org/internal/geometry"
	"mouzamap.org/internal/region"
)

// Place is one catalog row. Parent is the district a mouza was attributed
// to, or empty for districts and unattributed mouzas.
type Place struct {
	Name   string  `json:"name"`
	Kind   Kind    `json:"kind"`
	Parent string  `json:"parent,omitempty"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
}

// PlacesFromIndex lists every district and mouza in idx. A mouza attributed
// to several districts yields one place per district.
func PlacesFromIndex(idx *region.Index) []Place {
	var places []Place

	for _, name := range idx.Parents() {
		p := Place{Name: name, Kind: KindDistrict}
		if fs := idx.ParentFeatures(name); len(fs) > 0 {
			if pt, ok := geometry.RepresentativePoint(fs[0]); ok {
				p.Lat, p.Lng = pt.Lat, pt.Lng
			}
		}
		places = append(places, p)
	}

	parentsOf := make(map[string][]string)
	for _, parent := range idx.Parents() {
		for _, child := range idx.ChildrenOf(parent) {
			parentsOf[child] = append(parentsOf[child], parent)
		}
	}

	seen := make(map[string]bool)
	for _, f := range idx.ChildFeatures() {
		if seen[f.Name] {
			continue
		}
		seen[f.Name] = true

		pt, _ := geometry.RepresentativePoint(f)
		parents := parentsOf[f.Name]
		if len(parents) == 0 {
			parents = []string{""}
		}
		for _, parent := range parents {
			places = append(places, Place{
				Name:   f.Name,
				Kind:   KindMouza,
				Parent: parent,
				Lat:    pt.Lat,
				Lng:    pt.Lng,
			})
		}
	}
	return places
}

// Replace swaps the catalog contents for places in one transaction.
func (c *Client) Replace(ctx context.Context, places []Place) (err error) {
	if c.closed.Load() {
		return ErrClosed
	}

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning catalog transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM places"); err != nil {
		return fmt.Errorf("clearing places: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR IGNORE INTO places (name, kind, parent, lat, lng) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing place insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, p := range places {
		if _, err = stmt.ExecContext(ctx, p.Name, string(p.Kind), p.Parent, p.Lat, p.Lng); err != nil {
			return fmt.Errorf("inserting place %q: %w", p.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing places: %w", err)
	}
	c.flushSearches()
	return nil
}

const searchPlaces = `
SELECT name, kind, parent, lat, lng
FROM places
WHERE name LIKE ? ESCAPE '\'
ORDER BY
    CASE WHEN name LIKE ? ESCAPE '\' THEN 0 ELSE 1 END,
    CASE kind WHEN 'district' THEN 0 ELSE 1 END,
    name,
    parent
LIMIT ?
`

// Search returns places whose name contains query, ignoring ASCII case.
// Prefix matches come first, then districts before mouzas, then by name.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Place, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []Place{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	key := searchCacheKey(query, limit)
	if c.searches != nil {
		if hit, ok := c.searches.Get(key); ok {
			return slices.Clone(hit.([]Place)), nil
		}
	}

	escaped := escapeLike(query)
	rows, err := c.DB.QueryContext(ctx, searchPlaces, "%"+escaped+"%", escaped+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("searching places: %w", err)
	}
	defer rows.Close() //nolint:errcheck // closing is also checked explicitly below

	places := []Place{}
	for rows.Next() {
		var p Place
		var kind string
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&p.Name, &kind, &p.Parent, &lat, &lng); err != nil {
			return nil, err
		}
		p.Kind = Kind(kind)
		p.Lat, p.Lng = lat.Float64, lng.Float64
		places = append(places, p)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if c.searches != nil {
		c.searches.SetDefault(key, slices.Clone(places))
	}
	return places, nil
}

// Count returns the number of catalog rows.
func (c *Client) Count(ctx context.Context) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	var n int
	if err := c.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM places").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting places: %w", err)
	}
	return n, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
