package handlers

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"klaviyo-detector/internal/config"
)

func TestReadyHandler(t *testing.T) {
	api := newTestAPI(&stubFetcher{})
	rr := httptest.NewRecorder()
	api.Ready(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if b := rr.Body.String(); !strings.Contains(b, "\"ready\":true") {
		t.Fatalf("unexpected body: %s", b)
	}

	bare := &API{Logger: log.New(io.Discard, "", 0)}
	rr = httptest.NewRecorder()
	bare.Ready(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without detector, got %d", rr.Code)
	}
}

func TestStatusReportsFetchSettings(t *testing.T) {
	api := New(nil, log.New(io.Discard, "", 0), config.Config{
		FormExtractor:     config.ExtractorDOM,
		FetchTimeout:      15 * time.Second,
		FetchInsecureTLS:  true,
		FetchBlockPrivate: true,
	}, "v1.2.3")
	rr := httptest.NewRecorder()
	api.Status(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	b := rr.Body.String()
	for _, want := range []string{`"version":"v1.2.3"`, `"form_extractor":"dom"`, `"fetch_timeout":"15s"`, `"tls_verification":false`, `"blocks_private_ips":true`} {
		if !strings.Contains(b, want) {
			t.Errorf("status body missing %s: %s", want, b)
		}
	}
}

func TestIndexListsScrapeEndpoint(t *testing.T) {
	api := newTestAPI(&stubFetcher{})
	rr := httptest.NewRecorder()
	api.Index(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "/api/scrape?url={url}") {
		t.Fatalf("unexpected index response %d %s", rr.Code, rr.Body.String())
	}
	rr = httptest.NewRecorder()
	api.Index(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown path, got %d", rr.Code)
	}
}
