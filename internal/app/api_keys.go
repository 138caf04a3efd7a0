package app

import (
	"crypto/subtle"
	"net/http"
)

// APIKeyHeader may carry the key instead of the "key" query parameter.
const APIKeyHeader = "X-API-Key"

// RequestAPIKey returns the key a request presents, preferring the header.
func RequestAPIKey(r *http.Request) string {
	if k := r.Header.Get(APIKeyHeader); k != "" {
		return k
	}
	return r.URL.Query().Get("key")
}

// RequestHasInvalidAPIKey reports whether r lacks a configured API key.
// With no keys configured the API is open.
func (a *Application) RequestHasInvalidAPIKey(r *http.Request) bool {
	if len(a.Config.ApiKeys) == 0 {
		return false
	}
	return a.IsInvalidAPIKey(RequestAPIKey(r))
}

func (a *Application) IsInvalidAPIKey(key string) bool {
	if key == "" {
		return true
	}
	for _, valid := range a.Config.ApiKeys {
		if valid == "" {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return false
		}
	}
	return true
}

// RequestIsAdmin reports whether r presents the admin key. Administrative
// endpoints are disabled when no admin key is configured.
func (a *Application) RequestIsAdmin(r *http.Request) bool {
	admin := a.Config.AdminKey
	key := RequestAPIKey(r)
	if admin == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(admin)) == 1
}
