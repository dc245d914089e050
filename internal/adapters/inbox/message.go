// Package inbox implements ports.InboxSource for a browser-driven webmail
// account and for a local maildir of .eml files.
package inbox

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"

	"github.com/mikey/url-threat-monitor/internal/core"
	"github.com/mikey/url-threat-monitor/internal/utils"
)

// ReadMessage parses a raw RFC 5322 message into an EmailRecord. fallbackID
// is used when the message carries no Message-ID.
func ReadMessage(r io.Reader, fallbackID string) (core.EmailRecord, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return core.EmailRecord{}, fmt.Errorf("failed to parse message: %w", err)
	}

	id := strings.Trim(strings.TrimSpace(env.GetHeader("Message-ID")), "<>")
	if id == "" {
		id = fallbackID
	}

	body := env.Text
	if strings.TrimSpace(body) == "" && env.HTML != "" {
		body = HTMLText(env.HTML)
	} else if env.HTML != "" {
		// links often only appear in the HTML part
		body += "\n" + hrefs(env.HTML)
	}

	return core.EmailRecord{
		ID:        id,
		Sender:    env.GetHeader("From"),
		Subject:   env.GetHeader("Subject"),
		Timestamp: env.GetHeader("Date"),
		Body:      strings.TrimSpace(body),
	}, nil
}

// HTMLText returns the visible text of an HTML document followed by the
// targets of its links
func HTMLText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style, head").Remove()

	text := utils.CollapseWhitespace(doc.Text())
	if links := collectHrefs(doc); len(links) > 0 {
		text += "\n" + strings.Join(links, "\n")
	}
	return text
}

func hrefs(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.Join(collectHrefs(doc), "\n")
}

func collectHrefs(doc *goquery.Document) []string {
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if strings.HasPrefix(strings.ToLower(href), "http://") || strings.HasPrefix(strings.ToLower(href), "https://") {
			links = append(links, href)
		}
	})
	return links
}
