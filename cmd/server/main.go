package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"log/slog"

	"klaviyo-detector/internal/config"
	"klaviyo-detector/internal/detector"
	"klaviyo-detector/internal/fetcher"
	"klaviyo-detector/internal/handlers"
	"klaviyo-detector/internal/metrics"
	"klaviyo-detector/internal/middleware"
	"klaviyo-detector/internal/router"
	slogadapter "klaviyo-detector/internal/util/logadapter"
)

var version string

func loadDotEnv(logger *log.Logger, path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		logger.Printf("warn: dotenv: read error: %v", err)
		return
	}
	for _, raw := range bytes.Split(data, []byte{'\n'}) {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}
		eq := bytes.IndexByte(raw, '=')
		if eq <= 0 {
			continue
		}
		key := string(bytes.TrimSpace(raw[:eq]))
		val := strings.Trim(string(bytes.TrimSpace(raw[eq+1:])), `"'`)
		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, val)
		}
	}
}

func main() {
	// version is injected via -ldflags "-X main.version=..."
	if version == "" {
		version = "dev"
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.TimeKey {
			return slog.Attr{Key: a.Key, Value: slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339Nano))}
		}
		return a
	}})
	rootLogger := slog.New(handler)
	logger := slogadapter.New(rootLogger)

	loadDotEnv(logger, ".env")

	cfg := config.Load(logger)
	rootLogger.Info("effective_config",
		slog.String("addr", cfg.Addr),
		slog.String("fetch_timeout", cfg.FetchTimeout.String()),
		slog.Bool("fetch_insecure_tls", cfg.FetchInsecureTLS),
		slog.Bool("fetch_block_private", cfg.FetchBlockPrivate),
		slog.Int64("fetch_max_body_bytes", cfg.FetchMaxBodyBytes),
		slog.String("form_extractor", cfg.FormExtractor),
		slog.Float64("rate_limit_rps", cfg.RateLimitRPS),
		slog.Int("rate_limit_burst", cfg.RateLimitBurst),
		slog.String("rate_limit_ttl", cfg.RateLimiterTTL.String()),
		slog.Bool("trust_proxy_headers", cfg.TrustProxyHeaders),
		slog.String("cors_allow_origin", cfg.CORSAllowOrigin),
		slog.Any("rate_limit_bypass_domains", cfg.RateLimitBypassDomains),
	)
	if cfg.FetchInsecureTLS {
		rootLogger.Warn("TLS certificate verification disabled for outbound fetches (FETCH_INSECURE_TLS=false to enable)")
	}
	if !cfg.FetchBlockPrivate {
		rootLogger.Warn("private and loopback fetch targets allowed (FETCH_BLOCK_PRIVATE=false)")
	}

	metrics.Register()
	middleware.SetTrustProxyHeaders(cfg.TrustProxyHeaders)

	f := fetcher.New(fetcher.Options{
		Timeout:      cfg.FetchTimeout,
		InsecureTLS:  cfg.FetchInsecureTLS,
		BlockPrivate: cfg.FetchBlockPrivate,
		MaxBodyBytes: cfg.FetchMaxBodyBytes,
	})
	det := detector.New(f, cfg.FormExtractor, logger)
	api := handlers.New(det, logger, cfg, version)

	internalStop := make(chan struct{})
	mux := router.New(api, logger, cfg, internalStop)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// a detection may spend the whole fetch budget before writing
		WriteTimeout:   cfg.FetchTimeout + 10*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	go func() {
		addr := srv.Addr
		var url string
		switch {
		case strings.HasPrefix(addr, ":"):
			url = "http://127.0.0.1" + addr
		case strings.HasPrefix(addr, "0.0.0.0:"):
			url = "http://127.0.0.1" + addr[len("0.0.0.0"):]
		default:
			url = "http://" + addr
		}
		rootLogger.Info("server starting", slog.String("addr", addr), slog.String("url", url+"/api/scrape?url=example.com"), slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			rootLogger.Error("listen error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	rootLogger.Info("shutdown signal received")

	close(internalStop)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.FetchTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		rootLogger.Error("server shutdown error", slog.String("error", err.Error()))
	} else {
		rootLogger.Info("server stopped gracefully")
	}
}
