package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitMessagePrefersNewlines(t *testing.T) {
	text := strings.Repeat("a", 30) + "\n" + strings.Repeat("b", 30)
	parts := SplitMessage(text, 40)
	if len(parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(parts))
	}
	if parts[0] != strings.Repeat("a", 30)+"\n" {
		t.Errorf("first part = %q", parts[0])
	}
	if parts[1] != strings.Repeat("b", 30) {
		t.Errorf("second part = %q", parts[1])
	}
}

func TestSplitMessageCountsRunes(t *testing.T) {
	text := strings.Repeat("я", 25)
	parts := SplitMessage(text, 10)
	if len(parts) != 3 {
		t.Fatalf("parts = %d, want 3", len(parts))
	}
	for i, p := range parts {
		if n := utf8.RuneCountInString(p); n > 10 {
			t.Errorf("part %d has %d runes", i, n)
		}
	}
	if strings.Join(parts, "") != text {
		t.Error("parts do not reassemble the text")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"a longer caption", 8, "a longe…"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestEscapeMarkdown(t *testing.T) {
	got := EscapeMarkdown("my_chat *bold* `code` [link]")
	want := "my\\_chat \\*bold\\* \\`code\\` \\[link]"
	if got != want {
		t.Errorf("EscapeMarkdown = %q, want %q", got, want)
	}
}

func TestFixMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"balanced", "use `go test` here", "use `go test` here"},
		{"unclosed block", "```go\nfmt.Println()", "```go\nfmt.Println()\n```"},
		{"unclosed inline", "run `make", "run `make`"},
		{"backtick inside block", "```\na ` b\n```", "```\na ` b\n```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FixMarkdown(tt.in); got != tt.want {
				t.Errorf("FixMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
