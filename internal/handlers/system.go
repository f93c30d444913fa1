package handlers

import (
	"net/http"
	"time"
)

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (a *API) Live(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondMethodNotAllowed(w, http.MethodGet)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"alive": true})
}

// Reports readiness: a detector must be wired before traffic is accepted.
func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondMethodNotAllowed(w, http.MethodGet)
		return
	}
	if a.Detector == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ready": true})
}

// Lightweight snapshot for diagnostics.
type ServiceStatus struct {
	Version          string  `json:"version"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	FormExtractor    string  `json:"form_extractor"`
	FetchTimeout     string  `json:"fetch_timeout"`
	TLSVerification  bool    `json:"tls_verification"`
	BlocksPrivateIPs bool    `json:"blocks_private_ips"`
}

func (a *API) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondMethodNotAllowed(w, http.MethodGet)
		return
	}
	respondJSON(w, http.StatusOK, ServiceStatus{
		Version:          a.Version,
		UptimeSeconds:    time.Since(a.started).Seconds(),
		FormExtractor:    a.cfg.FormExtractor,
		FetchTimeout:     a.cfg.FetchTimeout.String(),
		TLSVerification:  !a.cfg.FetchInsecureTLS,
		BlocksPrivateIPs: a.cfg.FetchBlockPrivate,
	})
}

type endpoint struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Desc   string `json:"desc"`
}

var endpoints = []endpoint{
	{Method: "GET", Path: "/api/scrape?url={url}", Desc: "Detect the Klaviyo email widget (JSON)"},
	{Method: "OPTIONS", Path: "/api/scrape", Desc: "CORS preflight"},
	{Method: "GET", Path: "/scrape?url={url}", Desc: "Alias for /api/scrape"},
	{Method: "GET", Path: "/report?url={url}", Desc: "Detection report (HTML)"},
	{Method: "GET", Path: "/healthz", Desc: "Health check"},
	{Method: "GET", Path: "/livez", Desc: "Liveness (always OK)"},
	{Method: "GET", Path: "/readyz", Desc: "Readiness probe"},
	{Method: "GET", Path: "/status", Desc: "Status snapshot"},
	{Method: "GET", Path: "/metrics", Desc: "Prometheus metrics"},
}

func (a *API) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		respondMethodNotAllowed(w, http.MethodGet)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"service":   "klaviyo-detector",
		"version":   a.Version,
		"endpoints": endpoints,
		"usage":     usageMessage,
	})
}
