package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mouzamap.org/internal/appconf"
	"mouzamap.org/internal/boundary"
	"mouzamap.org/internal/region"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(Config{DBPath: ":memory:", Env: appconf.Test})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func sampleIndex() *region.Index {
	return region.Build(boundary.SampleDistricts(), boundary.SampleMouzas())
}

func TestNewClient_TestEnvRequiresMemory(t *testing.T) {
	_, err := NewClient(Config{DBPath: "/tmp/places.db", Env: appconf.Test})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in-memory")
}

func TestPlacesFromIndex(t *testing.T) {
	places := PlacesFromIndex(sampleIndex())

	var districts, mouzas int
	for _, p := range places {
		switch p.Kind {
		case KindDistrict:
			districts++
			assert.Empty(t, p.Parent)
		case KindMouza:
			mouzas++
		}
	}
	assert.Equal(t, 3, districts)
	assert.Equal(t, 9, mouzas)

	for _, p := range places {
		if p.Name == "Jang" {
			assert.Equal(t, "Tawang", p.Parent)
			assert.InDelta(t, 27.60, p.Lat, 1e-9)
			assert.InDelta(t, 92.00, p.Lng, 1e-9)
		}
		if p.Name == "Sessa Reserve" {
			assert.Empty(t, p.Parent, "mouza in a hole has no district")
		}
	}
}

func TestReplaceAndSearch(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Replace(ctx, PlacesFromIndex(sampleIndex())))

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	tests := []struct {
		name  string
		query string
		limit int
		want  []string
	}{
		{"case insensitive substring", "KA", 0, []string{"West Kameng"}},
		{"prefix first then districts", "w", 0, []string{"West Kameng", "Wakro", "Tawang"}},
		{"limit keeps districts first", "a", 2, []string{"Tawang", "West Kameng"}},
		{"no match", "zzz", 0, []string{}},
		{"empty query", "  ", 0, []string{}},
		{"wildcards are literal", "%", 0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Search(ctx, tt.query, tt.limit)
			require.NoError(t, err)
			names := []string{}
			for _, p := range got {
				names = append(names, p.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestReplaceIsFullReplace(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Replace(ctx, []Place{{Name: "Old", Kind: KindDistrict}}))
	require.NoError(t, c.Replace(ctx, []Place{
		{Name: "New", Kind: KindDistrict},
		{Name: "New", Kind: KindDistrict},
	}))

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "duplicates collapse and old rows are gone")

	got, err := c.Search(ctx, "old", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClosedClient(t *testing.T) {
	c, err := NewClient(Config{Env: appconf.Test})
	require.NoError(t, err)
	assert.Equal(t, ":memory:", c.Path())

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Close(), ErrClosed)

	_, err = c.Search(context.Background(), "a", 1)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Replace(context.Background(), nil), ErrClosed)
	_, err = c.Count(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSearchCache(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.Replace(ctx, []Place{{Name: "Tawang", Kind: KindDistrict}}))

	got, err := c.Search(ctx, "taw", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, c.CachedSearches())

	// Rows removed behind the client's back are still served from the cache.
	_, err = c.DB.ExecContext(ctx, "DELETE FROM places")
	require.NoError(t, err)
	got, err = c.Search(ctx, "taw", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	t.Run("limit is part of the key", func(t *testing.T) {
		got, err := c.Search(ctx, "taw", 5)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Equal(t, 2, c.CachedSearches())
	})

	t.Run("replace flushes", func(t *testing.T) {
		require.NoError(t, c.Replace(ctx, []Place{{Name: "Lohit", Kind: KindDistrict}}))
		assert.Equal(t, 0, c.CachedSearches())

		got, err := c.Search(ctx, "taw", 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestSearchCacheDisabled(t *testing.T) {
	c, err := NewClient(Config{Env: appconf.Test, SearchCacheTTL: -1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	require.NoError(t, c.Replace(ctx, []Place{{Name: "Tawang", Kind: KindDistrict}}))
	_, err = c.Search(ctx, "taw", 10)
	require.NoError(t, err)
	assert.Equal(t, 0, c.CachedSearches())

	_, err = c.DB.ExecContext(ctx, "DELETE FROM places")
	require.NoError(t, err)
	got, err := c.Search(ctx, "taw", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
