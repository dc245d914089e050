package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap/zaptest"
)

func TestPreview(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want string
	}{
		{"short", "hello", 200, "hello"},
		{"exact", strings.Repeat("a", 200), 200, strings.Repeat("a", 200)},
		{"long", strings.Repeat("a", 201), 200, strings.Repeat("a", 200) + "..."},
		{"runes", "ééééé", 3, "ééé..."},
		{"no limit", "abc", 0, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Preview(tt.text, tt.max); got != tt.want {
				t.Errorf("Preview() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncateTextKeepsValidUTF8(t *testing.T) {
	tp := NewTextProcessor(zaptest.NewLogger(t))
	got := tp.TruncateText("aé", 2)
	if !utf8.ValidString(got) {
		t.Fatalf("invalid UTF-8: %q", got)
	}
	if !strings.HasPrefix(got, "a\n[... Content truncated") {
		t.Errorf("TruncateText() = %q", got)
	}
}

func TestProcessTextSanitizes(t *testing.T) {
	tp := NewTextProcessor(nil)
	if got := tp.ProcessText("ok\xffok", 0); got != "okok" {
		t.Errorf("ProcessText() = %q", got)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	if got := CollapseWhitespace("  a \n\t b  "); got != "a b" {
		t.Errorf("CollapseWhitespace() = %q", got)
	}
}
