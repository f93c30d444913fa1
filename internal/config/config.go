package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Form extractor modes.
const (
	ExtractorRegex = "regex" // single-pass block regex, not nesting aware
	ExtractorDOM   = "dom"   // goquery walk over the parsed document
)

type Config struct {
	Addr string // listen address, ":"+PORT

	FetchTimeout      time.Duration // whole outbound request budget
	FetchInsecureTLS  bool          // skip certificate and hostname verification
	FetchBlockPrivate bool          // refuse loopback/private/link-local destinations
	FetchMaxBodyBytes int64         // response bytes read before truncation
	FormExtractor     string        // ExtractorRegex or ExtractorDOM

	RateLimitRPS           float64       // tokens added per second per IP
	RateLimitBurst         int           // max burst tokens per IP
	RateLimiterTTL         time.Duration // idle bucket eviction horizon
	RateLimitBypassDomains []string      // hostnames (exact match) that bypass rate limiter
	TrustProxyHeaders      bool          // trust X-Forwarded-For / X-Real-IP when true

	CORSAllowOrigin string // value of Access-Control-Allow-Origin
}

func Load(logger *log.Logger) Config {
	c := Config{
		Addr:              ":8080",
		FetchTimeout:      15 * time.Second,
		FetchInsecureTLS:  true,
		FetchBlockPrivate: true,
		FetchMaxBodyBytes: 10 << 20,
		FormExtractor:     ExtractorRegex,
		RateLimitRPS:      2.0,
		RateLimitBurst:    10,
		RateLimiterTTL:    10 * time.Minute,
		CORSAllowOrigin:   "*",
	}
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n < 65536 {
			c.Addr = ":" + v
		} else {
			logger.Printf("warn: config: invalid PORT=%q", v)
		}
	}
	if v := os.Getenv("FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.FetchTimeout = d
		} else {
			logger.Printf("warn: config: invalid FETCH_TIMEOUT=%q, want a positive duration", v)
		}
	}
	if v := os.Getenv("FETCH_INSECURE_TLS"); v != "" {
		c.FetchInsecureTLS = parseBool(v)
	}
	if v := os.Getenv("FETCH_BLOCK_PRIVATE"); v != "" {
		c.FetchBlockPrivate = parseBool(v)
	}
	if v := os.Getenv("FETCH_MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.FetchMaxBodyBytes = n
		} else {
			logger.Printf("warn: config: invalid FETCH_MAX_BODY_BYTES=%q, want a positive integer", v)
		}
	}
	if v := os.Getenv("FORM_EXTRACTOR"); v != "" {
		switch vl := strings.ToLower(strings.TrimSpace(v)); vl {
		case ExtractorRegex, ExtractorDOM:
			c.FormExtractor = vl
		default:
			logger.Printf("warn: config: unknown FORM_EXTRACTOR=%q, using %s", v, c.FormExtractor)
		}
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.RateLimitRPS = f
		} else {
			logger.Printf("warn: config: invalid RATE_LIMIT_RPS=%q, want a positive number", v)
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.RateLimitBurst = n
		} else {
			logger.Printf("warn: config: invalid RATE_LIMIT_BURST=%q, want a positive integer", v)
		}
	}
	if v := os.Getenv("RATE_LIMIT_BUCKET_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.RateLimiterTTL = d
		} else {
			logger.Printf("warn: config: invalid RATE_LIMIT_BUCKET_TTL=%q, want a positive duration", v)
		}
	}
	if v := os.Getenv("RATE_LIMIT_BYPASS_DOMAINS"); v != "" { // comma/space separated
		for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' || r == ';' }) {
			part = strings.TrimSpace(strings.ToLower(part))
			if part == "" {
				continue
			}
			c.RateLimitBypassDomains = append(c.RateLimitBypassDomains, part)
		}
	}
	if v := os.Getenv("TRUST_PROXY_HEADERS"); v != "" {
		c.TrustProxyHeaders = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv("CORS_ALLOW_ORIGIN")); v != "" {
		c.CORSAllowOrigin = v
	}
	return c
}

func parseBool(v string) bool {
	vl := strings.ToLower(strings.TrimSpace(v))
	return vl == "1" || vl == "true" || vl == "yes" || vl == "on"
}
