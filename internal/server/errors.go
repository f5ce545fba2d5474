package server

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"
)

// jsonAPIError is one entry of a JSON:API errors array.
type jsonAPIError struct {
	Status string `json:"status"`
	Code   string `json:"code"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// writeTenantNotFound rejects the request with the JSON:API error document
// the original tenants API uses for unknown or invalid slugs.
func writeTenantNotFound(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)

	body := struct {
		Errors []jsonAPIError `json:"errors"`
	}{
		Errors: []jsonAPIError{{
			Status: "404",
			Code:   "TENANT_NOT_FOUND",
			Title:  "Tenant Not Found",
			Detail: detail,
		}},
	}
	_ = json.NewEncoder(w).Encode(body)
}

// writeTooManyRequests rejects the request with 429, a Retry-After header
// covering the remainder of the window, and a JSON error body.
func writeTooManyRequests(w http.ResponseWriter, path string, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	w.WriteHeader(http.StatusTooManyRequests)

	body := struct {
		Error struct {
			Status  int    `json:"status"`
			Code    string `json:"code"`
			Message string `json:"message"`
			Path    string `json:"path"`
		} `json:"error"`
	}{}
	body.Error.Status = http.StatusTooManyRequests
	body.Error.Code = "TOO_MANY_REQUESTS"
	body.Error.Message = "Rate limit exceeded. Try again later."
	body.Error.Path = path
	_ = json.NewEncoder(w).Encode(body)
}
