package inbox

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors lists CSS selectors tried in order for each part of the webmail
// page. The first selector that yields a usable value wins.
type Selectors struct {
	Rows        []string
	Sender      []string
	Subject     []string
	Timestamp   []string
	Body        []string
	Main        string
	LoginUser   []string
	LoginPass   []string
	LoginSubmit []string
	Inbox       []string
}

// minBodyLength is the length a body candidate must exceed to be accepted
const minBodyLength = 20

// DefaultSelectors returns selectors matching the Gmail web interface
func DefaultSelectors() Selectors {
	return Selectors{
		Rows: []string{
			"tr[role='row']",
			"div[role='row']",
			"div[data-testid='message-row']",
			"div[class*='message-row']",
			"tr[class*='message']",
		},
		Sender: []string{
			"td[data-tooltip]",
			"td[title]",
			"td[aria-label*='@']",
			"td span[email]",
			"td[class*='sender']",
			"td[class*='from']",
			"td[role='gridcell'] span[email]",
			"td[role='gridcell'] span[title*='@']",
			"td span[title*='@']",
			"td span[aria-label*='@']",
		},
		Subject: []string{
			"td[data-thread-id] span",
			"td[class*='subject'] span",
			"td span[class*='subject']",
			"td[aria-label*='Subject']",
			"td span[dir='ltr']",
			"td[class*='message'] span",
		},
		Timestamp: []string{
			"td[data-tooltip] span",
			"td[class*='date']",
			"td[aria-label*='Date']",
			"td span[class*='date']",
		},
		Body: []string{
			"div[role='main'] div[dir='ltr']",
			"div[role='main'] div[data-message-id]",
			"div[role='main'] div[class*='message']",
			"div[role='main'] div[class*='body']",
			"div[role='main'] div[class*='content']",
			"div[data-testid='message-content']",
			"div[class*='message-body']",
			"div[class*='email-content']",
			"div[aria-label*='Message body']",
		},
		Main: "div[role='main']",
		LoginUser: []string{
			"input[name='identifier']",
			"input[type='email']",
			"#identifierId",
		},
		LoginPass: []string{
			"input[name='Passwd']",
			"input[type='password']",
		},
		LoginSubmit: []string{
			"#identifierNext",
			"#passwordNext",
			"button[type='submit']",
		},
		Inbox: []string{
			"div[role='main']",
			"div[aria-label*='Inbox']",
		},
	}
}

// InboxRow is one message row of the inbox listing
type InboxRow struct {
	ID        string
	Sender    string
	Subject   string
	Timestamp string
	// Locator selects the row element again in the live page
	Locator string
}

var idAttributes = []string{"id", "data-legacy-thread-id", "data-thread-id"}

// ParseInbox extracts rows from the inbox page HTML. Rows without an id are
// dropped since they cannot be deduplicated.
func ParseInbox(html string, sel Selectors) ([]InboxRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var rows *goquery.Selection
	for _, s := range sel.Rows {
		if found := doc.Find(s); found.Length() > 0 {
			rows = found
			break
		}
	}
	if rows == nil {
		return nil, nil
	}

	var result []InboxRow
	rows.Each(func(_ int, row *goquery.Selection) {
		id, locator := rowID(row)
		if id == "" {
			return
		}
		result = append(result, InboxRow{
			ID:        id,
			Sender:    rowSender(row, sel.Sender),
			Subject:   firstText(row, sel.Subject),
			Timestamp: firstText(row, sel.Timestamp),
			Locator:   locator,
		})
	})
	return result, nil
}

func rowID(row *goquery.Selection) (string, string) {
	for _, attr := range idAttributes {
		raw, ok := row.Attr(attr)
		if !ok || raw == "" {
			continue
		}
		locator := "[" + attr + "=\"" + strings.ReplaceAll(raw, `"`, `\"`) + "\"]"
		return strings.TrimPrefix(raw, "thread-"), locator
	}
	return "", ""
}

func rowSender(row *goquery.Selection, selectors []string) string {
	for _, s := range selectors {
		var sender string
		row.Find(s).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			candidate := firstAttr(el, "email", "data-tooltip", "title", "aria-label")
			if candidate == "" {
				candidate = strings.TrimSpace(el.Text())
			}
			if strings.Contains(candidate, "@") && candidate != "Select" {
				sender = candidate
				return false
			}
			return true
		})
		if sender != "" {
			return sender
		}
	}
	return ""
}

func firstAttr(el *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v, ok := el.Attr(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstText(row *goquery.Selection, selectors []string) string {
	for _, s := range selectors {
		if text := strings.TrimSpace(row.Find(s).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// ParseBody extracts the message body from an opened message page. The first
// candidate longer than minBodyLength wins, otherwise the whole main area text
// is returned.
func ParseBody(html string, sel Selectors) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style").Remove()

	for _, s := range sel.Body {
		var body string
		doc.Find(s).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			text := strings.TrimSpace(el.Text())
			if len(text) > minBodyLength {
				body = withLinks(text, el)
				return false
			}
			return true
		})
		if body != "" {
			return body, nil
		}
	}

	if sel.Main != "" {
		main := doc.Find(sel.Main).First()
		return withLinks(strings.TrimSpace(main.Text()), main), nil
	}
	return "", nil
}

// withLinks appends anchor targets that are not already present in the text
func withLinks(text string, el *goquery.Selection) string {
	var extra []string
	el.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		lower := strings.ToLower(href)
		if (strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")) && !strings.Contains(text, href) {
			extra = append(extra, href)
		}
	})
	if len(extra) == 0 {
		return text
	}
	return text + "\n" + strings.Join(extra, "\n")
}
