package notification

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateBody(t *testing.T) {
	if got := truncateBody("short"); got != "short" {
		t.Errorf("short text must pass through, got %q", got)
	}

	ascii := strings.Repeat("a", 200)
	got := truncateBody(ascii)
	if len(got) != 120 || !strings.HasSuffix(got, "...") {
		t.Errorf("expected 120-byte ellipsized text, got %d bytes", len(got))
	}
}

func TestTruncateBodyRuneBoundary(t *testing.T) {
	// Two-byte runes put an odd byte index in the middle of a sequence.
	text := strings.Repeat("é", 100)
	got := truncateBody(text)
	if !utf8.ValidString(got) {
		t.Errorf("truncation produced invalid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix, got %q", got)
	}
	if len(got) > 120 {
		t.Errorf("expected at most 120 bytes, got %d", len(got))
	}

	wide := strings.Repeat("\U0001F600", 50)
	got = truncateBody(wide)
	if !utf8.ValidString(got) {
		t.Errorf("truncation split a 4-byte rune: %q", got)
	}
}
