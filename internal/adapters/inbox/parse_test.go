package inbox

import (
	"strings"
	"testing"
)

const inboxPage = `<html><body><div role="main"><table>
<tr role="row" id="thread-f:1001">
  <td><span email="alerts@paypa1-secure.com">PayPal Security</span></td>
  <td class="subject-cell"><span class="subject">Verify your account</span></td>
  <td class="date">10:42</td>
</tr>
<tr role="row" data-thread-id="f:1002">
  <td><span title="friend@example.org">Friend</span></td>
  <td><span dir="ltr">Lunch?</span></td>
</tr>
<tr role="row">
  <td><span email="nobody@example.org">No id</span></td>
</tr>
</table></div></body></html>`

func TestParseInbox(t *testing.T) {
	rows, err := ParseInbox(inboxPage, DefaultSelectors())
	if err != nil {
		t.Fatalf("ParseInbox() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("ParseInbox() returned %d rows, want 2", len(rows))
	}

	first := rows[0]
	if first.ID != "f:1001" {
		t.Errorf("first.ID = %q, want thread- prefix stripped", first.ID)
	}
	if first.Sender != "alerts@paypa1-secure.com" {
		t.Errorf("first.Sender = %q", first.Sender)
	}
	if first.Subject != "Verify your account" {
		t.Errorf("first.Subject = %q", first.Subject)
	}
	if first.Timestamp != "10:42" {
		t.Errorf("first.Timestamp = %q", first.Timestamp)
	}
	if first.Locator != `[id="thread-f:1001"]` {
		t.Errorf("first.Locator = %q", first.Locator)
	}

	second := rows[1]
	if second.ID != "f:1002" || second.Sender != "friend@example.org" || second.Subject != "Lunch?" {
		t.Errorf("second = %+v", second)
	}
	if second.Locator != `[data-thread-id="f:1002"]` {
		t.Errorf("second.Locator = %q", second.Locator)
	}
}

func TestParseInboxNoRows(t *testing.T) {
	rows, err := ParseInbox(`<html><body><p>Loading</p></body></html>`, DefaultSelectors())
	if err != nil {
		t.Fatalf("ParseInbox() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("ParseInbox() = %v, want none", rows)
	}
}

func TestParseBody(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		contains []string
		want     string
	}{
		{
			name: "first long candidate",
			html: `<div role="main"><div dir="ltr">short</div><div dir="ltr">Please confirm your password at
				<a href="https://login.example-verify.com/x">this page</a> today.</div></div>`,
			contains: []string{"Please confirm your password", "https://login.example-verify.com/x"},
		},
		{
			name:     "fallback to main area",
			html:     `<div role="main"><p>tiny</p></div>`,
			want:     "tiny",
		},
		{
			name: "no main area",
			html: `<p>nothing here</p>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBody(tt.html, DefaultSelectors())
			if err != nil {
				t.Fatalf("ParseBody() error = %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("ParseBody() = %q, missing %q", got, want)
				}
			}
			if tt.contains == nil && got != tt.want {
				t.Errorf("ParseBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTMLText(t *testing.T) {
	got := HTMLText(`<html><head><style>p{}</style></head><body><p>Hello   there</p>
		<a href="https://example.com/a">link</a><a href="mailto:x@y.z">mail</a></body></html>`)

	if !strings.Contains(got, "Hello there") {
		t.Errorf("HTMLText() = %q, want collapsed text", got)
	}
	if !strings.Contains(got, "https://example.com/a") {
		t.Errorf("HTMLText() = %q, want link target", got)
	}
	if strings.Contains(got, "mailto:") {
		t.Errorf("HTMLText() = %q, want only web links", got)
	}
}
