// Package htmlsanitize cleans user-supplied text before it is stored or shown.
//
// Change-request reasons and review notes are plain text. StripTags is used on
// the way in; PrepareForDisplay on the way out renders them with line breaks.
package htmlsanitize

import (
	"html"
	"html/template"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	ugcOnce    sync.Once
	ugc        *bluemonday.Policy
	strictOnce sync.Once
	strict     *bluemonday.Policy
)

func ugcPolicy() *bluemonday.Policy {
	ugcOnce.Do(func() {
		ugc = bluemonday.UGCPolicy()
		ugc.AllowElements("pre", "code", "hr", "br")
	})
	return ugc
}

func strictPolicy() *bluemonday.Policy {
	strictOnce.Do(func() { strict = bluemonday.StrictPolicy() })
	return strict
}

// Sanitize keeps safe formatting markup and removes everything else.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return ugcPolicy().Sanitize(s)
}

// SanitizeToHTML is Sanitize typed for templates.
func SanitizeToHTML(s string) template.HTML {
	return template.HTML(Sanitize(s))
}

// StripTags removes all markup and trims surrounding space. Entities that the
// policy escapes are decoded again so plain text round-trips.
func StripTags(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strictPolicy().Sanitize(s)))
}

// IsPlainText reports whether s has no tag-like content.
func IsPlainText(s string) bool {
	return !(strings.Contains(s, "<") && strings.Contains(s, ">"))
}

// PlainTextToHTML escapes s and wraps it in a paragraph, turning newlines into <br>.
func PlainTextToHTML(s string) string {
	if s == "" {
		return ""
	}
	esc := html.EscapeString(s)
	esc = strings.ReplaceAll(esc, "\r\n", "\n")
	return "<p>" + strings.ReplaceAll(esc, "\n", "<br>") + "</p>"
}

// PrepareForDisplay renders stored text as HTML: plain text is escaped,
// markup is sanitized.
func PrepareForDisplay(s string) template.HTML {
	if s == "" {
		return ""
	}
	if IsPlainText(s) {
		return template.HTML(PlainTextToHTML(s))
	}
	return SanitizeToHTML(s)
}
