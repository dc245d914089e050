// Package extract pulls candidate http(s) URLs out of free text.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"

	"github.com/mikey/url-threat-monitor/internal/core"
)

// MinURLLength is the shortest match kept; anything at or below it is a truncated artifact
const MinURLLength = 10

var urlPattern = regexp.MustCompile(
	`(?i)https?://[-\p{L}\p{N}_.]+` + // host
		`(?::\d+)?` + // port
		`(?:/[-\p{L}\p{N}_/.~%+]*)?` + // path
		`(?:\?[-\p{L}\p{N}_&=%.+~]*)?` + // query
		`(?:#[-\p{L}\p{N}_.~]*)?`, // fragment
)

// URLs returns the unique URLs found in text, sorted for stable output.
// Malformed or empty text yields an empty slice.
func URLs(text string) []string {
	if text == "" {
		return []string{}
	}

	seen := make(map[string]struct{})
	for _, match := range urlPattern.FindAllString(norm.NFKC.String(text), -1) {
		match = strings.TrimRight(strings.TrimSpace(match), ".")
		if len(match) <= MinURLLength {
			continue
		}
		canonical, ok := canonicalize(match)
		if !ok {
			continue
		}
		seen[canonical] = struct{}{}
	}

	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// FromEmail returns the union of URLs found in the subject and the body
func FromEmail(email core.EmailRecord) []string {
	return URLs(email.Subject + "\n" + email.Body)
}

// canonicalize lower-cases the scheme and converts the host to lower-case ASCII
func canonicalize(raw string) (string, bool) {
	schemeEnd := strings.Index(raw, "://")
	if schemeEnd < 0 {
		return "", false
	}
	scheme := strings.ToLower(raw[:schemeEnd])
	rest := raw[schemeEnd+3:]

	hostEnd := strings.IndexAny(rest, ":/?#")
	if hostEnd < 0 {
		hostEnd = len(rest)
	}
	host := strings.Trim(strings.ToLower(rest[:hostEnd]), ".")
	if host == "" || (isASCII(host) && !strings.ContainsAny(host, "abcdefghijklmnopqrstuvwxyz0123456789")) {
		return "", false
	}
	if ascii, err := idna.Lookup.ToASCII(host); err == nil && ascii != "" {
		host = ascii
	}

	return scheme + "://" + host + rest[hostEnd:], true
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
