package restapi

import (
	"encoding/json"
	"net/http"

	"mouzamap.org/internal/clock"
)

// ResponseModel is the envelope every JSON endpoint answers with.
type ResponseModel struct {
	Code        int    `json:"code"`
	CurrentTime int64  `json:"currentTime"`
	Text        string `json:"text"`
	Version     int    `json:"version"`
	Data        any    `json:"data,omitempty"`
}

// ListData wraps a list result.
type ListData struct {
	List          any  `json:"list"`
	LimitExceeded bool `json:"limitExceeded"`
}

// EntryData wraps a single result.
type EntryData struct {
	Entry any `json:"entry"`
}

const apiVersion = 1

func newOKResponse(data any, c clock.Clock) ResponseModel {
	return ResponseModel{
		Code:        http.StatusOK,
		CurrentTime: c.NowUnixMilli(),
		Text:        "OK",
		Version:     apiVersion,
		Data:        data,
	}
}

func newListResponse(list any, limitExceeded bool, c clock.Clock) ResponseModel {
	return newOKResponse(ListData{List: list, LimitExceeded: limitExceeded}, c)
}

func newEntryResponse(entry any, c clock.Clock) ResponseModel {
	return newOKResponse(EntryData{Entry: entry}, c)
}

func (api *RestAPI) sendResponse(w http.ResponseWriter, r *http.Request, response ResponseModel) {
	setJSONResponseType(&w)
	if response.Code != 0 && response.Code != http.StatusOK {
		w.WriteHeader(response.Code)
	}
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		api.logEncodeError(r, err)
	}
}

func (api *RestAPI) sendNotFound(w http.ResponseWriter, r *http.Request) {
	api.sendError(w, r, http.StatusNotFound, "resource not found")
}

func (api *RestAPI) sendUnauthorized(w http.ResponseWriter, r *http.Request) {
	api.sendError(w, r, http.StatusUnauthorized, "permission denied")
}

func setJSONResponseType(w *http.ResponseWriter) {
	(*w).Header().Set("Content-Type", "application/json")
}

func (api *RestAPI) sendError(w http.ResponseWriter, r *http.Request, code int, message string) {
	if err := writeError(w, code, message, api.Clock); err != nil {
		api.logEncodeError(r, err)
	}
}

// writeError writes an envelope with no data. Middleware that has no RestAPI
// at hand uses it directly.
func writeError(w http.ResponseWriter, code int, message string, c clock.Clock) error {
	setJSONResponseType(&w)
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(ResponseModel{
		Code:        code,
		CurrentTime: c.NowUnixMilli(),
		Text:        message,
		Version:     apiVersion,
	})
}
