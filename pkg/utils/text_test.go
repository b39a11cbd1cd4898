package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
}

func TestTruncateWith(t *testing.T) {
	got := TruncateWith("abcdef", 3, "\n... (truncated)")
	if got != "abc\n... (truncated)" {
		t.Errorf("got %q", got)
	}
	// "é" is two bytes; cutting at 2 would split it.
	if got := TruncateWith("aé b", 2, "~"); got != "a~" {
		t.Errorf("multi-byte cut: got %q", got)
	}
}

func TestFirstLine(t *testing.T) {
	tests := map[string]string{
		"":                     "",
		"one":                  "one",
		"\n\n  two  \nthree":   "two",
		"first\nsecond\nthird": "first",
	}
	for in, want := range tests {
		if got := FirstLine(in); got != want {
			t.Errorf("FirstLine(%q) = %q, want %q", in, got, want)
		}
	}
}
