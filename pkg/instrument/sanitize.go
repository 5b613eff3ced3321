package instrument

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// SanitizeText strips unsafe markup from instrument display text. Labels are
// shown as HTML by presentation layers, so definitions coming from authoring
// tools only keep basic formatting elements.
func SanitizeText(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return raw
	}
	return textSanitizer().Sanitize(raw)
}

func textSanitizer() *bluemonday.Policy {
	textPolicyOnce.Do(func() {
		policy := bluemonday.StrictPolicy()
		policy.AllowElements(
			"b", "strong", "i", "em", "u", "br", "p", "span", "sub", "sup",
			"ul", "ol", "li", "h1", "h2", "h3", "h4", "table", "thead", "tbody",
			"tr", "th", "td",
		)
		policy.AllowAttrs("class").Globally()
		policy.AllowAttrs("colspan", "rowspan").OnElements("th", "td")
		textPolicy = policy
	})
	return textPolicy
}
