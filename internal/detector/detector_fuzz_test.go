package detector

import (
	"strings"
	"testing"
	"unicode/utf8"
)

// FuzzExtractors checks the sample caps and the "klaviyo implies a signal" rule on random markup.
func FuzzExtractors(f *testing.F) {
	seeds := []string{
		`<div class="klaviyo-form"><input type="email" name="email"></div>`,
		`<form id='kl_x'><div><input placeholder="email"></div></form>`,
		`<section data-a="KLAVIYO"><section>`,
		`<div class="kl-form`,
		"plain text",
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, html string) {
		for _, extract := range []func(string) []string{ExtractEmailForms, ExtractEmailFormsDOM} {
			forms := extract(html)
			if len(forms) > MaxEmailForms {
				t.Fatalf("got %d samples", len(forms))
			}
			for _, s := range forms {
				if utf8.RuneCountInString(s) > MaxSampleLength {
					t.Fatalf("sample longer than %d characters", MaxSampleLength)
				}
			}
		}
		if strings.Contains(strings.ToLower(html), "klaviyo") && len(MatchSignals(html)) == 0 {
			t.Fatalf("klaviyo present but no signal matched")
		}
	})
}
