package restapi

import (
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
	maxSearchQuery     = 100
)

func (api *RestAPI) searchHandler(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	fieldErrors := map[string][]string{}

	switch {
	case q == "":
		fieldErrors["q"] = []string{"is required"}
	case utf8.RuneCountInString(q) > maxSearchQuery:
		fieldErrors["q"] = []string{"is too long"}
	}

	limit := defaultSearchLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			fieldErrors["limit"] = []string{"must be a positive integer"}
		} else {
			limit = min(n, maxSearchLimit)
		}
	}

	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	if api.Catalog == nil {
		api.serviceUnavailableResponse(w, r, "search is not available")
		return
	}

	// Ask for one more than the limit to learn whether results were cut.
	places, err := api.Catalog.Search(r.Context(), q, limit+1)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	exceeded := len(places) > limit
	if exceeded {
		places = places[:limit]
	}
	api.sendResponse(w, r, newListResponse(places, exceeded, api.Clock))
}
