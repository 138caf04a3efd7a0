package restapi

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placeNames(t *testing.T, model map[string]any) []string {
	t.Helper()
	var names []string
	for _, item := range listOf(t, model) {
		place, ok := item.(map[string]any)
		require.True(t, ok)
		name, _ := place["name"].(string)
		names = append(names, name)
	}
	return names
}

func TestSearchHandler(t *testing.T) {
	api := createTestApi(t)
	server := createTestServer(t, api)

	tests := []struct {
		name     string
		query    string
		expected []string
		exceeded bool
	}{
		{"district by substring", "q=KA", []string{"West Kameng"}, false},
		{"districts rank before mouzas", "q=w", []string{"West Kameng", "Wakro", "Tawang"}, false},
		{"limit cuts results", "q=a&limit=2", []string{"Tawang", "West Kameng"}, true},
		{"no match", "q=zzz", nil, false},
		{"wildcards are literal", "q=" + url.QueryEscape("%"), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, model := serveAndRetrieveEndpoint(t, server, "/api/search?key=TEST&"+tt.query)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			assert.Equal(t, tt.expected, placeNames(t, model))
			data := model["data"].(map[string]any)
			assert.Equal(t, tt.exceeded, data["limitExceeded"])
		})
	}
}

func TestSearchHandler_PlaceShape(t *testing.T) {
	api := createTestApi(t)
	server := createTestServer(t, api)

	_, model := serveAndRetrieveEndpoint(t, server, "/api/search?key=TEST&q=Lumla")
	list := listOf(t, model)
	require.Len(t, list, 1)

	place := list[0].(map[string]any)
	assert.Equal(t, "mouza", place["kind"])
	assert.Equal(t, "Tawang", place["parent"])
	assert.InDelta(t, 27.57, place["lat"], 0.01)
	assert.InDelta(t, 91.725, place["lng"], 0.01)
}

func TestSearchHandler_Validation(t *testing.T) {
	api := createTestApi(t)
	server := createTestServer(t, api)

	tests := []struct {
		name  string
		query string
		field string
	}{
		{"missing query", "", "q"},
		{"blank query", "q=%20%20", "q"},
		{"query too long", "q=" + strings.Repeat("x", maxSearchQuery+1), "q"},
		{"zero limit", "q=a&limit=0", "limit"},
		{"non-numeric limit", "q=a&limit=ten", "limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, model := serveAndRetrieveEndpoint(t, server, "/api/search?key=TEST&"+tt.query)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, fieldErrorsOf(t, model), tt.field)
		})
	}
}
