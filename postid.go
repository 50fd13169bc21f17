// Package embedshot captures screenshots of embedded social-media posts: it
// fetches the oEmbed markup of a post, writes it to disk and screenshots the
// widget it renders to in a headless browser.
package embedshot

import (
	"net/url"
	"strings"

	"github.com/root4loot/goutils/urlutil"
)

const statusMarker = "/status/"

// ExtractPostID returns the part of the URL path following the first
// "/status/" marker. The remainder is not split further, so
// "/user/status/12345/photo/1" yields "12345/photo/1". It reports false for
// unparsable URLs, empty paths and paths without the marker or without
// anything after it.
func ExtractPostID(postURL string) (string, bool) {
	u, err := url.Parse(postURL)
	if err != nil || u.Path == "" {
		return "", false
	}

	parts := strings.SplitN(u.Path, statusMarker, 2)
	if len(parts) < 2 || parts[1] == "" {
		return "", false
	}

	return parts[1], true
}

// normalizeURL adds an https scheme to targets given without one.
func normalizeURL(target string) string {
	target = strings.TrimSpace(target)
	if !urlutil.HasScheme(target) {
		return "https://" + target
	}
	return target
}
