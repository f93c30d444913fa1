package detector

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"unicode/utf8"

	"klaviyo-detector/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchFunc func(ctx context.Context, rawURL string) (string, error)

func (f fetchFunc) Fetch(ctx context.Context, rawURL string) (string, error) { return f(ctx, rawURL) }

func staticPage(html string) Fetcher {
	return fetchFunc(func(context.Context, string) (string, error) { return html, nil })
}

func discardLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestMatchSignalsCaseInsensitive(t *testing.T) {
	got := MatchSignals(`<script src="//STATIC.KLAVIYO.COM/onsite/js/klaviyo.js"></script>`)
	assert.Equal(t, []string{
		"script: klaviyo",
		"script: static.klaviyo.com",
		"script: klaviyo.js",
	}, got)
}

func TestMatchSignalsOrderScriptsBeforeHTML(t *testing.T) {
	got := MatchSignals(`<div class="klaviyo-form"></div><script>window._learnq = []; var x = window._klOnsite;</script>`)
	require.NotEmpty(t, got)
	assert.Equal(t, "script: klaviyo", got[0])
	assert.Equal(t, []string{
		"script: klaviyo",
		"html: klaviyo-form",
		"html: klOnsite",
		"html: _klOnsite",
		"html: _learnq",
	}, got)
}

func TestMatchSignalsNoMatch(t *testing.T) {
	got := MatchSignals(`<html><body><form><input type="email"></form></body></html>`)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestExtractEmailFormsBasic(t *testing.T) {
	html := `<div class="klaviyo-form"><input type="email" name="email"></div>`
	got := ExtractEmailForms(html)
	assert.Equal(t, []string{html}, got)
}

func TestExtractEmailFormsAttributeVariants(t *testing.T) {
	html := `
<section data-testid='klaviyo_embed'><input name="user_email"></section>
<form id="KL_signup"><input placeholder="Your Email"></form>
<div class="newsletter"><input type="email"></div>
<div class="kl-form-wrapper"><input type="text" name="phone"></div>`
	got := ExtractEmailForms(html)
	require.Len(t, got, 2)
	assert.True(t, strings.HasPrefix(got[0], "<section data-testid='klaviyo_embed'>"))
	assert.True(t, strings.HasPrefix(got[1], `<form id="KL_signup">`))
}

func TestExtractEmailFormsClosesOnSameElementName(t *testing.T) {
	html := `<form class="kl-form"><div>Join</div><input type="email"></form>`
	assert.Equal(t, []string{html}, ExtractEmailForms(html))
}

func TestExtractEmailFormsNestedClosesEarly(t *testing.T) {
	html := `<div class="klaviyo-form"><div>Join us</div><input type="email"></div>`
	assert.Empty(t, ExtractEmailForms(html), "regex extractor is not nesting aware")

	dom := ExtractEmailFormsDOM(html)
	require.Len(t, dom, 1)
	assert.Contains(t, dom[0], `type="email"`)
}

func TestExtractEmailFormsCapsAndTruncates(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 8; i++ {
		b.WriteString(`<div class="klaviyo-form"><input type="email">`)
		b.WriteString(strings.Repeat("é", 400))
		b.WriteString(`</div>`)
	}
	for _, extract := range []func(string) []string{ExtractEmailForms, ExtractEmailFormsDOM} {
		got := extract(b.String())
		require.Len(t, got, MaxEmailForms)
		for _, s := range got {
			assert.LessOrEqual(t, utf8.RuneCountInString(s), MaxSampleLength)
			assert.True(t, utf8.ValidString(s))
		}
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "éé", truncate("ééé", 2))
	assert.Equal(t, "", truncate("abc", 0))
}

func TestDetectExampleFromDocs(t *testing.T) {
	html := `<div class="klaviyo-form"><input type="email" name="email"></div>`
	d := New(staticPage(html), config.ExtractorRegex, discardLogger())

	res := d.Detect(context.Background(), "example.com")
	require.True(t, res.Success)
	assert.Equal(t, "example.com", res.URL)
	assert.Equal(t, VerdictYes, res.Verdict)
	assert.Contains(t, res.MatchedSignals, "html: klaviyo-form")
	assert.Equal(t, 1, res.EmailFormsFound)
	assert.Len(t, res.EmailForms, res.EmailFormsFound)
	assert.Equal(t, len(html), res.HTMLLength)
}

func TestDetectNoWidget(t *testing.T) {
	d := New(staticPage(`<html><body>plain shop</body></html>`), config.ExtractorDOM, discardLogger())
	res := d.Detect(context.Background(), "https://shop.example")
	require.True(t, res.Success)
	assert.Equal(t, VerdictNo, res.Verdict)
	assert.Empty(t, res.MatchedSignals)
	assert.Zero(t, res.EmailFormsFound)

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"matched_signals":[]`)
	assert.Contains(t, string(raw), `"klaviyo_email_forms":[]`)
	assert.NotContains(t, string(raw), `"error"`)
}

func TestDetectVerdictIgnoresEmailForms(t *testing.T) {
	// Signals alone decide the verdict; a widget without an email input is still "yes".
	d := New(staticPage(`<script src="https://static.klaviyo.com/onsite/js/klaviyo.js"></script>`), config.ExtractorRegex, discardLogger())
	res := d.Detect(context.Background(), "example.com")
	assert.Equal(t, VerdictYes, res.Verdict)
	assert.Zero(t, res.EmailFormsFound)
}

func TestDetectFetchFailure(t *testing.T) {
	d := New(fetchFunc(func(context.Context, string) (string, error) {
		return "", errors.New("dial tcp: lookup nowhere.invalid: no such host")
	}), config.ExtractorRegex, discardLogger())

	res := d.Detect(context.Background(), "nowhere.invalid")
	assert.False(t, res.Success)
	assert.Equal(t, VerdictError, res.Verdict)
	assert.Equal(t, "nowhere.invalid", res.URL)
	assert.NotEmpty(t, res.Error)
	assert.Nil(t, res.Findings)

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, map[string]any{
		"success": false,
		"url":     "nowhere.invalid",
		"result":  "error",
		"error":   "dial tcp: lookup nowhere.invalid: no such host",
	}, body)
}

func TestDetectRecoversFromScanPanic(t *testing.T) {
	d := New(staticPage("<html></html>"), config.ExtractorRegex, discardLogger())
	d.extract = func(string) []string { panic("boom") }

	res := d.Detect(context.Background(), "example.com")
	assert.False(t, res.Success)
	assert.Equal(t, VerdictError, res.Verdict)
	assert.Equal(t, "panic: boom", res.Error)
}

func TestSite(t *testing.T) {
	assert.Equal(t, "example.co.uk", site("shop.example.co.uk/products"))
	assert.Equal(t, "example.com", site("https://www.example.com"))
	assert.Equal(t, "-", site("https://"))
}
