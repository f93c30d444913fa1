// Package detector decides whether a page embeds the Klaviyo email widget.
package detector

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"klaviyo-detector/internal/config"
	"klaviyo-detector/internal/fetcher"
	"klaviyo-detector/internal/metrics"

	"golang.org/x/net/publicsuffix"
)

type Verdict string

const (
	VerdictYes   Verdict = "yes"
	VerdictNo    Verdict = "no"
	VerdictError Verdict = "error"
)

// Findings is attached to successful results only.
type Findings struct {
	MatchedSignals  []string `json:"matched_signals"`
	EmailFormsFound int      `json:"klaviyo_email_forms_found"`
	EmailForms      []string `json:"klaviyo_email_forms"`
	HTMLLength      int      `json:"html_length"`
}

// Result is either a success carrying Findings or a failure carrying Error.
// URL echoes the caller's input unchanged.
type Result struct {
	Success bool    `json:"success"`
	URL     string  `json:"url"`
	Verdict Verdict `json:"result"`
	*Findings
	Error string `json:"error,omitempty"`
}

func Succeeded(rawURL string, f Findings) Result {
	verdict := VerdictNo
	if len(f.MatchedSignals) > 0 {
		verdict = VerdictYes
	}
	return Result{Success: true, URL: rawURL, Verdict: verdict, Findings: &f}
}

func Failed(rawURL string, err error) Result {
	return Result{Success: false, URL: rawURL, Verdict: VerdictError, Error: err.Error()}
}

// Fetcher returns the decoded HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

type Detector struct {
	fetch   Fetcher
	extract func(html string) []string
	logger  *log.Logger
}

// New builds a Detector. mode selects the form extractor
// (config.ExtractorRegex or config.ExtractorDOM).
func New(f Fetcher, mode string, logger *log.Logger) *Detector {
	d := &Detector{fetch: f, extract: ExtractEmailForms, logger: logger}
	if mode == config.ExtractorDOM {
		d.extract = ExtractEmailFormsDOM
	}
	return d
}

// Analyze runs the matchers over already fetched html.
func (d *Detector) Analyze(html string) Findings {
	forms := d.extract(html)
	return Findings{
		MatchedSignals:  MatchSignals(html),
		EmailFormsFound: len(forms),
		EmailForms:      forms,
		HTMLLength:      len(html),
	}
}

// Detect fetches rawURL and classifies it. Every failure, including a panic
// while scanning, is folded into a Result with Success=false.
func (d *Detector) Detect(ctx context.Context, rawURL string) (res Result) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			res = Failed(rawURL, fmt.Errorf("panic: %v", rec))
		}
		forms := 0
		if res.Findings != nil {
			forms = res.EmailFormsFound
		}
		metrics.ObserveDetection(string(res.Verdict), forms)
		if res.Success {
			d.logger.Printf("detect url=%q site=%s result=%s signals=%d email_forms=%d html_bytes=%d dur=%s",
				rawURL, site(rawURL), res.Verdict, len(res.MatchedSignals), res.EmailFormsFound, res.HTMLLength, time.Since(start))
		} else {
			d.logger.Printf("warn: detect url=%q site=%s error=%q dur=%s", rawURL, site(rawURL), res.Error, time.Since(start))
		}
	}()

	html, err := d.fetch.Fetch(ctx, rawURL)
	if err != nil {
		metrics.ObserveFetch("error", time.Since(start), 0)
		return Failed(rawURL, err)
	}
	metrics.ObserveFetch("ok", time.Since(start), len(html))
	return Succeeded(rawURL, d.Analyze(html))
}

// site returns the registrable domain of rawURL for logging, or "-".
func site(rawURL string) string {
	u, err := url.Parse(fetcher.NormalizeURL(rawURL))
	if err != nil || u.Hostname() == "" {
		return "-"
	}
	s, err := publicsuffix.EffectiveTLDPlusOne(u.Hostname())
	if err != nil {
		return u.Hostname()
	}
	return s
}
