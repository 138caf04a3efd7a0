package restapi

import (
	"net/http"
	"strings"

	"github.com/twpayne/go-polyline"
	"mouzamap.org/internal/geometry"
)

// EncodedPolyline is one ring in Google encoded polyline form.
type EncodedPolyline struct {
	Points string `json:"points"`
	Length int    `json:"length"`
	Levels string `json:"levels"`
}

// DistrictOutline carries the outer rings of every feature named District.
type DistrictOutline struct {
	District  string            `json:"district"`
	Polylines []EncodedPolyline `json:"polylines"`
}

func (api *RestAPI) outlineHandler(w http.ResponseWriter, r *http.Request) {
	// Names are matched exactly as loaded; surrounding spaces are significant.
	name := r.PathValue("name")
	if strings.TrimSpace(name) == "" {
		api.validationErrorResponse(w, r, map[string][]string{"name": {"district name is required"}})
		return
	}

	features := api.Index().ParentFeatures(name)
	if len(features) == 0 {
		api.sendNotFound(w, r)
		return
	}

	outline := DistrictOutline{District: name, Polylines: []EncodedPolyline{}}
	for _, f := range features {
		for _, ring := range f.Geometry.OuterRings() {
			if len(ring) == 0 {
				continue
			}
			outline.Polylines = append(outline.Polylines, encodeRing(ring))
		}
	}

	api.sendResponse(w, r, newEntryResponse(outline, api.Clock))
}

func encodeRing(ring geometry.Ring) EncodedPolyline {
	coords := make([][]float64, 0, len(ring))
	for _, p := range ring {
		coords = append(coords, []float64{p.Lat, p.Lng})
	}
	return EncodedPolyline{
		Points: string(polyline.EncodeCoords(coords)),
		Length: len(coords),
		Levels: "",
	}
}
