// Package htmlsanitize strips unsafe markup from user-authored HTML before
// it is stored or rendered. Post content and comments pass through here; the
// policy allows the rich-text constructs the editor produces and nothing
// executable.
package htmlsanitize

import (
	"html"
	"html/template"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = buildPolicy()

func buildPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()

	// The editor emits these beyond what the UGC baseline covers.
	p.AllowElements("u", "s", "sub", "sup", "mark")

	// Tables, with the attributes the editor sets.
	p.AllowAttrs("colspan", "rowspan").OnElements("td", "th")
	p.AllowAttrs("class", "style").OnElements("table", "thead", "tbody", "tr", "th", "td")

	return p
}

// tagPattern matches an actual HTML tag, not a stray comparison operator.
var tagPattern = regexp.MustCompile(`<[a-zA-Z/][^>]*>`)

// Sanitize returns the input with disallowed tags and attributes removed.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return policy.Sanitize(s)
}

// SanitizeToHTML sanitizes and returns template.HTML for direct use in views.
func SanitizeToHTML(s string) template.HTML {
	return template.HTML(Sanitize(s))
}

// IsPlainText reports whether the input contains no HTML tags.
func IsPlainText(s string) bool {
	return !tagPattern.MatchString(s)
}

// PlainTextToHTML escapes plain text and wraps it in a paragraph, converting
// newlines to <br>.
func PlainTextToHTML(s string) string {
	if s == "" {
		return ""
	}
	escaped := html.EscapeString(s)
	return "<p>" + strings.ReplaceAll(escaped, "\n", "<br>") + "</p>"
}

// PrepareForDisplay renders stored content for a view: plain text is escaped
// and paragraph-wrapped, HTML is sanitized.
func PrepareForDisplay(s string) template.HTML {
	if s == "" {
		return ""
	}
	if IsPlainText(s) {
		return template.HTML(PlainTextToHTML(s))
	}
	return SanitizeToHTML(s)
}
