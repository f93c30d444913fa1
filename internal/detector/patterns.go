package detector

import "strings"

// Substrings that show up in pages loading the Klaviyo onsite script.
var scriptPatterns = []string{
	"klaviyo",
	"static.klaviyo.com",
	"klaviyo.js",
	"a.klaviyo.com",
	"fast.a.klaviyo.com",
}

// Markup, class names and globals left behind by Klaviyo forms and popups.
var htmlPatterns = []string{
	"klaviyo-form",
	"klaviyo_modal",
	"klaviyo-popup",
	"kl-private-reset-css-Xuajs1",
	"kl-form",
	"kl_",
	"data-klaviyo",
	"klaviyo_subscribe",
	"klaviyo-bis",
	"__kla_id",
	"klOnsite",
	"KlaviyoSubscribe",
	"_klOnsite",
	"_learnq",
}

// Attribute value fragments that mark an element as a widget block.
var blockLiterals = []string{"klaviyo", "kl-form", "kl_"}

type signal struct {
	label  string
	needle string
}

// signals is scripts first, then HTML markers, in declaration order.
var signals = buildSignals()

func buildSignals() []signal {
	out := make([]signal, 0, len(scriptPatterns)+len(htmlPatterns))
	for _, p := range scriptPatterns {
		out = append(out, signal{label: "script: " + p, needle: strings.ToLower(p)})
	}
	for _, p := range htmlPatterns {
		out = append(out, signal{label: "html: " + p, needle: strings.ToLower(p)})
	}
	return out
}
