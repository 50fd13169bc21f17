package oembed

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a decoded oEmbed response. Only the "html" member is required
// by the capture pipeline; the remaining members are informational.
type Document map[string]any

// HTML returns the embed fragment and whether it was present as a string.
func (d Document) HTML() (string, bool) {
	s, ok := d["html"].(string)
	return s, ok
}

// String returns a string member or "" when absent or of another type.
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Summary returns the visible text of the embedded post with whitespace
// collapsed. The text of the first blockquote is preferred since providers
// wrap the post body in one.
func (d Document) Summary() (string, error) {
	html, ok := d.HTML()
	if !ok {
		return "", ErrMissingHTML
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse embed html: %w", err)
	}

	sel := doc.Find("blockquote").First()
	if sel.Length() == 0 {
		sel = doc.Find("body")
	}

	return strings.Join(strings.Fields(sel.Text()), " "), nil
}
