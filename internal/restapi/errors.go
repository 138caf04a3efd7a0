package restapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"mouzamap.org/internal/logging"
)

// ValidationErrorData lists invalid request fields and why.
type ValidationErrorData struct {
	FieldErrors map[string][]string `json:"fieldErrors"`
}

func (api *RestAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	logging.LogError(logging.FromContext(r.Context()), "request failed", err,
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())))
	api.sendError(w, r, http.StatusInternalServerError, "internal server error")
}

func (api *RestAPI) validationErrorResponse(w http.ResponseWriter, r *http.Request, fieldErrors map[string][]string) {
	setJSONResponseType(&w)
	w.WriteHeader(http.StatusBadRequest)

	response := ResponseModel{
		Code:        http.StatusBadRequest,
		CurrentTime: api.Clock.NowUnixMilli(),
		Text:        "invalid request",
		Version:     apiVersion,
		Data:        ValidationErrorData{FieldErrors: fieldErrors},
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		api.logEncodeError(r, err)
	}
}

func (api *RestAPI) serviceUnavailableResponse(w http.ResponseWriter, r *http.Request, detail string) {
	api.sendError(w, r, http.StatusServiceUnavailable, detail)
}

// logEncodeError records a failure to write a response body. The status line
// has already gone out, so nothing else can be sent.
func (api *RestAPI) logEncodeError(r *http.Request, err error) {
	logging.LogError(logging.FromContext(r.Context()), "failed to encode response", err,
		slog.String("path", r.URL.Path))
}
