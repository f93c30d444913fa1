package detector

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	MaxEmailForms   = 5   // samples kept per page
	MaxSampleLength = 300 // characters kept per sample
)

// blockRegex matches an opening div/form/section whose class, id or data-*
// attribute names the widget, up to the first closing tag of the same name.
// Nested elements of the same name close the block early.
var blockRegex = buildBlockRegex()

var emailInputRegex = regexp.MustCompile(`(?i)(?:type=["']email["']|(?:name|id|placeholder)=["'][^"']*email[^"']*["'])`)

func buildBlockRegex() *regexp.Regexp {
	literals := make([]string, len(blockLiterals))
	for i, l := range blockLiterals {
		literals[i] = regexp.QuoteMeta(l)
	}
	attr := `(?:class|id|data-[\w-]+)=["'][^"']*(?:` + strings.Join(literals, "|") + `)[^"']*["']`
	tags := []string{"div", "form", "section"}
	alts := make([]string, len(tags))
	for i, tag := range tags {
		alts[i] = fmt.Sprintf(`<%[1]s\s[^>]*%[2]s[^>]*>[\s\S]*?</%[1]s>`, tag, attr)
	}
	return regexp.MustCompile(`(?i)` + strings.Join(alts, "|"))
}

// ExtractEmailForms scans html with blockRegex and returns up to MaxEmailForms
// blocks that carry an email input, each cut to MaxSampleLength characters.
// Scanning stops as soon as the cap is reached.
func ExtractEmailForms(html string) []string {
	out := make([]string, 0)
	for pos := 0; pos < len(html) && len(out) < MaxEmailForms; {
		loc := blockRegex.FindStringIndex(html[pos:])
		if loc == nil {
			break
		}
		block := html[pos+loc[0] : pos+loc[1]]
		if emailInputRegex.MatchString(block) {
			out = append(out, truncate(block, MaxSampleLength))
		}
		pos += loc[1]
	}
	return out
}

// ExtractEmailFormsDOM is the parser-backed variant of ExtractEmailForms.
// Blocks span their real subtree, so nested widget elements are reported
// individually instead of truncating the outer one.
func ExtractEmailFormsDOM(html string) []string {
	out := make([]string, 0)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return out
	}
	doc.Find("div, form, section").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !isWidgetBlock(s) {
			return true
		}
		block, err := goquery.OuterHtml(s)
		if err != nil {
			return true
		}
		if emailInputRegex.MatchString(block) {
			out = append(out, truncate(block, MaxSampleLength))
		}
		return len(out) < MaxEmailForms
	})
	return out
}

func isWidgetBlock(s *goquery.Selection) bool {
	if len(s.Nodes) == 0 {
		return false
	}
	for _, a := range s.Nodes[0].Attr {
		key := strings.ToLower(a.Key)
		if key != "class" && key != "id" && !(strings.HasPrefix(key, "data-") && len(key) > len("data-")) {
			continue
		}
		val := strings.ToLower(a.Val)
		for _, l := range blockLiterals {
			if strings.Contains(val, l) {
				return true
			}
		}
	}
	return false
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
