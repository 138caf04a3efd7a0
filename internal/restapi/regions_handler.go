package restapi

import (
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"mouzamap.org/internal/geometry"
)

// DistrictMouzas is the entry for a district's mouza list.
type DistrictMouzas struct {
	District string   `json:"district"`
	Mouzas   []string `json:"mouzas"`
}

// LocateResult lists the districts containing a point and, within the first
// of them, the mouzas containing it.
type LocateResult struct {
	Point     geometry.Point `json:"point"`
	Districts []string       `json:"districts"`
	Mouzas    []string       `json:"mouzas"`
}

func (api *RestAPI) districtsHandler(w http.ResponseWriter, r *http.Request) {
	if !api.Ready() {
		api.serviceUnavailableResponse(w, r, "boundaries are still loading")
		return
	}
	api.sendResponse(w, r, newListResponse(api.Index().Parents(), false, api.Clock))
}

func (api *RestAPI) mouzasForDistrictHandler(w http.ResponseWriter, r *http.Request) {
	// Names are matched exactly as loaded; surrounding spaces are significant.
	name := r.PathValue("name")
	if strings.TrimSpace(name) == "" {
		api.validationErrorResponse(w, r, map[string][]string{"name": {"district name is required"}})
		return
	}

	idx := api.Index()
	if _, found := slices.BinarySearch(idx.Parents(), name); !found {
		api.sendNotFound(w, r)
		return
	}

	api.sendResponse(w, r, newEntryResponse(DistrictMouzas{
		District: name,
		Mouzas:   idx.ChildrenOf(name),
	}, api.Clock))
}

func (api *RestAPI) locateHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fieldErrors := map[string][]string{}

	lat, err := parseCoordinate(q.Get("lat"), 90)
	if err != "" {
		fieldErrors["lat"] = []string{err}
	}
	lng, err := parseCoordinate(q.Get("lng"), 180)
	if err != "" {
		fieldErrors["lng"] = []string{err}
	}
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	p := geometry.Point{Lat: lat, Lng: lng}
	idx := api.Index()
	result := LocateResult{
		Point:     p,
		Districts: idx.Locate(p),
		Mouzas:    []string{},
	}
	if len(result.Districts) > 0 {
		result.Mouzas = idx.LocateChild(result.Districts[0], p)
	}

	api.sendResponse(w, r, newEntryResponse(result, api.Clock))
}

// parseCoordinate parses s and checks it lies within [-limit, limit]. It
// returns a message describing the problem, or "".
func parseCoordinate(s string, limit float64) (float64, string) {
	if s == "" {
		return 0, "is required"
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, "must be a number"
	}
	if v < -limit || v > limit {
		return 0, "out of range"
	}
	return v, ""
}
