package mirror

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	boldRe   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe = regexp.MustCompile(`\*(.+?)\*`)
	strikeRe = regexp.MustCompile(`~~(.+?)~~`)
	linkRe   = regexp.MustCompile(`\[(.+?)\]\((.+?)\)`)

	descriptionPolicy = newDescriptionPolicy()
)

func newDescriptionPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "i", "del", "br")
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("target").Matching(regexp.MustCompile(`^_blank$`)).OnElements("a")
	p.AllowURLSchemes("mailto", "http", "https")
	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(true)
	return p
}

// FormatMarkdown turns a card description into HTML. Only bold, italic,
// strikethrough, inline links and line breaks are recognised; everything else
// is escaped. The result is sanitized, so only those elements survive.
func FormatMarkdown(text string) string {
	out := html.EscapeString(text)
	out = boldRe.ReplaceAllString(out, "<b>$1</b>")
	out = italicRe.ReplaceAllString(out, "<i>$1</i>")
	out = strikeRe.ReplaceAllString(out, "<del>$1</del>")
	out = linkRe.ReplaceAllString(out, `<a href="$2" target="_blank">$1</a>`)
	out = strings.ReplaceAll(out, "\n", "<br>")
	return descriptionPolicy.Sanitize(out)
}
