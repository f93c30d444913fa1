package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"klaviyo-detector/internal/config"
	"klaviyo-detector/internal/detector"
)

type API struct {
	Detector *detector.Detector
	Logger   *log.Logger
	Version  string
	cfg      config.Config
	started  time.Time
}

func New(d *detector.Detector, logger *log.Logger, cfg config.Config, version string) *API {
	return &API{Detector: d, Logger: logger, Version: version, cfg: cfg, started: time.Now()}
}

// Helpers

func respondJSON(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, v, "")
}

// respondIndentedJSON is used for detection results, which are read by humans as often as by scripts.
func respondIndentedJSON(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, v, "  ")
}

func writeJSON(w http.ResponseWriter, status int, v any, indent string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if v == nil || status == http.StatusNoContent {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	_ = enc.Encode(v)
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func respondError(w http.ResponseWriter, status int, msg string) {
	var body apiError
	body.Error.Code = http.StatusText(status)
	body.Error.Message = msg
	respondJSON(w, status, body)
}

func respondMethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	respondError(w, http.StatusMethodNotAllowed, "method not allowed")
}
