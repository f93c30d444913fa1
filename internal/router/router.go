package router

import (
	"log"
	"net/http"

	"klaviyo-detector/internal/config"
	"klaviyo-detector/internal/handlers"
	"klaviyo-detector/internal/metrics"
	"klaviyo-detector/internal/middleware"
)

// New wires the HTTP surface. Detection routes share one per-IP rate limiter;
// its cleanup goroutine stops when stop is closed.
func New(api *handlers.API, logger *log.Logger, cfg config.Config, stop <-chan struct{}) http.Handler {
	limited := middleware.RateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.RateLimiterTTL, logger, cfg.RateLimitBypassDomains, stop)

	mux := http.NewServeMux()
	mux.HandleFunc("/", api.Index)
	mux.HandleFunc("/healthz", api.Health)
	mux.HandleFunc("/livez", api.Live)
	mux.HandleFunc("/readyz", api.Ready)
	mux.HandleFunc("/status", api.Status)
	mux.Handle("/metrics", metrics.Handler())

	mux.Handle("/api/scrape", limited(http.HandlerFunc(api.Scrape)))
	mux.Handle("/scrape", limited(http.HandlerFunc(api.Scrape)))
	mux.Handle("/report", limited(http.HandlerFunc(api.Report)))

	return middleware.Chain(mux,
		middleware.RequestIDMiddleware(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.VersionHeader(api.Version),
		middleware.Recover(logger),
		middleware.Logging(logger),
	)
}
