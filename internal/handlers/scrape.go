package handlers

import (
	"net/http"
	"strings"

	"klaviyo-detector/internal/detector"
)

const (
	missingURLMessage = "Missing 'url' parameter"
	usageMessage      = "?url=https://example.com"
)

// Scrape serves GET ?url=<target> and the matching CORS preflight.
//
//	400 when url is missing or empty
//	200 with the detection result on success
//	500 with the error result when fetching or scanning failed
func (a *API) Scrape(w http.ResponseWriter, r *http.Request) {
	allowOrigin(w)
	switch r.Method {
	case http.MethodOptions:
		writePreflight(w)
	case http.MethodGet:
		target := r.URL.Query().Get("url")
		if strings.TrimSpace(target) == "" {
			respondJSON(w, http.StatusBadRequest, map[string]string{
				"error": missingURLMessage,
				"usage": usageMessage,
			})
			return
		}
		res := a.Detector.Detect(r.Context(), target)
		respondIndentedJSON(w, statusFor(res), res)
	default:
		respondMethodNotAllowed(w, http.MethodGet, http.MethodOptions)
	}
}

// allowOrigin falls back to a wildcard when no CORS middleware ran first.
func allowOrigin(w http.ResponseWriter) {
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
}

func writePreflight(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusOK)
}

func statusFor(res detector.Result) int {
	if res.Success {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}
