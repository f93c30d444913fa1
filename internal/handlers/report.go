package handlers

import (
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"klaviyo-detector/internal/detector"
)

const reportStyle = `:root{--bg:#0b1020;--panel:#121a2e;--text:#e6eefc;--muted:#9fb3d9;--ok:#22c55e;--err:#ef4444}*{box-sizing:border-box}body{margin:0;background:#0b1020;color:var(--text);font:16px/1.5 system-ui} .wrap{max-width:820px;margin:0 auto;padding:24px} .card{background:#121a2e;border:1px solid #1d2947;border-radius:14px;margin-bottom:16px;overflow:hidden} .card h2{margin:0;padding:12px 16px;border-bottom:1px solid #1d2947;font-size:16px} .content{padding:12px 16px} .kv{display:grid;grid-template-columns:220px 1fr;gap:8px 16px} .key{color:#9fb3d9} ul{margin:8px 0 0 20px} pre{white-space:pre-wrap;word-break:break-all;background:#0b1326;border:1px solid #172243;border-radius:10px;padding:10px;font-size:13px} input{width:70%;background:#0b1326;border:1px solid #172243;border-radius:8px;color:#d1e9ff;padding:8px} button{background:#132042;border:1px solid #1f2c4a;color:#9cc2ff;border-radius:8px;padding:8px 12px} .pill{display:inline-block;margin-left:8px;padding:2px 8px;border-radius:999px;background:#132042;color:#9cc2ff;border:1px solid #1f2c4a;font-size:12px}`

// HTML report: /report?url=<target>. Without url only the lookup form is rendered.
func (a *API) Report(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondMethodNotAllowed(w, http.MethodGet)
		return
	}
	if r.URL.Path != "/report" {
		http.NotFound(w, r)
		return
	}
	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if target == "" {
		writeReportHTML(w, http.StatusOK, "", nil)
		return
	}
	res := a.Detector.Detect(r.Context(), target)
	writeReportHTML(w, statusFor(res), target, &res)
}

func writeReportHTML(w http.ResponseWriter, status int, target string, res *detector.Result) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	var b strings.Builder
	b.WriteString(`<!doctype html><html lang="en"><head><meta charset="utf-8"/><meta name="viewport" content="width=device-width,initial-scale=1"/><title>Klaviyo Detection Report</title><style>`)
	b.WriteString(reportStyle)
	b.WriteString(`</style></head><body><div class="wrap">`)
	b.WriteString(`<div class="card"><h2>Check a page</h2><div class="content"><form method="get" action="/report"><input name="url" placeholder="https://example.com" value="` + html.EscapeString(target) + `"/> <button type="submit">Detect</button></form></div></div>`)
	if res == nil {
		b.WriteString(`</div></body></html>`)
		_, _ = io.WriteString(w, b.String())
		return
	}

	b.WriteString(`<div class="card"><h2>Verdict<span class="pill">` + html.EscapeString(string(res.Verdict)) + `</span></h2><div class="content kv">`)
	b.WriteString(`<div class="key">url</div><div>` + html.EscapeString(res.URL) + `</div>`)
	b.WriteString(`<div class="key">checked_at</div><div>` + time.Now().UTC().Format(time.RFC3339) + `</div>`)
	if !res.Success {
		b.WriteString(`<div class="key">error</div><div style="color:var(--err)">` + html.EscapeString(res.Error) + `</div>`)
		b.WriteString(`</div></div></div></body></html>`)
		_, _ = io.WriteString(w, b.String())
		return
	}
	b.WriteString(`<div class="key">html_length</div><div>` + strconv.Itoa(res.HTMLLength) + `</div>`)
	b.WriteString(`<div class="key">email_forms_found</div><div>` + strconv.Itoa(res.EmailFormsFound) + `</div>`)
	b.WriteString(`</div></div>`)

	b.WriteString(`<div class="card"><h2>Matched signals <span class="pill">` + strconv.Itoa(len(res.MatchedSignals)) + `</span></h2><div class="content">`)
	if len(res.MatchedSignals) == 0 {
		b.WriteString(`<div style="color:var(--muted)">None</div>`)
	} else {
		b.WriteString(`<ul>`)
		for _, s := range res.MatchedSignals {
			b.WriteString(`<li>` + html.EscapeString(s) + `</li>`)
		}
		b.WriteString(`</ul>`)
	}
	b.WriteString(`</div></div>`)

	b.WriteString(`<div class="card"><h2>Email form samples</h2><div class="content">`)
	if len(res.EmailForms) == 0 {
		b.WriteString(`<div style="color:var(--muted)">None</div>`)
	}
	for _, f := range res.EmailForms {
		b.WriteString(`<pre>` + html.EscapeString(f) + `</pre>`)
	}
	b.WriteString(`</div></div>`)

	b.WriteString(`</div></body></html>`)
	_, _ = io.WriteString(w, b.String())
}
