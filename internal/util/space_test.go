package util

import (
	"strings"
	"testing"
)

func TestPadRight(t *testing.T) {
	tests := []struct {
		name     string
		str      string
		width    int
		expected string
	}{
		// Basic padding
		{"Empty string", "", 5, "     "},
		{"Short string", "abc", 10, "abc       "},
		{"Exact width", "hello", 5, "hello"},
		
		// Truncation cases
		{"String too long", "this is a very long string", 10, "this is..."},
		{"String slightly too long", "hello world", 10, "hello w..."},
		
		// Edge cases
		{"Zero width", "hello", 0, "..."},
		{"Width 1", "hello", 1, "..."},
		{"Width 2", "hello", 2, "..."},
		{"Width 3", "hello", 3, "..."},
		{"Width 4", "hello", 4, "h..."},
		
		// Unicode and wide characters (adjust expectations based on actual runewidth behavior)
		{"ASCII characters", "test", 8, "test    "},
		{"Unicode characters", "café", 8, "café    "}, // é might have different width
		{"Chinese characters", "你好", 8, "你好    "}, // Wide chars take 2 spaces each, so 4 + 4 padding
		{"Mixed characters", "hello世界", 12, "hello世界   "}, // 5 + 4 + 3 padding
		
		// Special characters (based on actual runewidth behavior)
		{"Tab character", "a\tb", 6, "a\tb    "}, // Tab is treated as single character
		{"Newline character", "a\nb", 5, "a\nb   "},
		{"Multiple spaces", "a  b", 6, "a  b  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PadRight(tt.str, tt.width)
			if result != tt.expected {
				t.Errorf("PadRight(%q, %d) = %q, expected %q", tt.str, tt.width, result, tt.expected)
			}
		})
	}
}

func TestPadRightTruncation(t *testing.T) {
	tests := []struct {
		name     string
		str      string
		width    int
		shouldTruncate bool
	}{
		{"No truncation needed", "short", 10, false},
		{"Exact fit", "exact", 5, false},
		{"Needs truncation", "this is too long", 5, true},
		{"Very long string", strings.Repeat("a", 100), 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PadRight(tt.str, tt.width)
			
			if tt.shouldTruncate {
				if !strings.HasSuffix(result, "...") {
					t.Errorf("Expected truncation (ending with '...') but got %q", result)
				}
			} else {
				if strings.HasSuffix(result, "...") {
					t.Errorf("Unexpected truncation for %q with width %d, got %q", tt.str, tt.width, result)
				}
			}
		})
	}
}

func TestPadRightEmptyAndSpecialCases(t *testing.T) {
	tests := []struct {
		name     string
		str      string
		width    int
		expected string
	}{
		{"Empty string zero width", "", 0, ""},
		{"Empty string positive width", "", 3, "   "},
		{"Single character", "a", 1, "a"},
		{"Single character padded", "a", 5, "a    "},
		{"Only spaces", "   ", 5, "     "},
		{"Only spaces truncated", "     ", 3, "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PadRight(tt.str, tt.width)
			if result != tt.expected {
				t.Errorf("PadRight(%q, %d) = %q, expected %q", tt.str, tt.width, result, tt.expected)
			}
		})
	}
}

func BenchmarkPadRight(b *testing.B) {
	testCases := []struct {
		name  string
		str   string
		width int
	}{
		{"Short ASCII", "hello", 20},
		{"Long ASCII", strings.Repeat("hello world ", 10), 50},
		{"Unicode", "café 你好 world", 25},
		{"Truncation", strings.Repeat("very long string ", 20), 30},
	}

	for _, tc := range testCases {
		b.Run(tc.name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				PadRight(tc.str, tc.width)
			}
		})
	}
}

func TestPadLeft(t *testing.T) {
	tests := []struct {
		name     string
		str      string
		width    int
		expected string
	}{
		{"Size column", "1.5 KB", 10, "    1.5 KB"},
		{"Exact width", "hello", 5, "hello"},
		{"Wide characters", "你好", 6, "  你好"},
		{"Truncated", "hello world", 8, "hello..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PadLeft(tt.str, tt.width); got != tt.expected {
				t.Errorf("PadLeft(%q, %d) = %q, expected %q", tt.str, tt.width, got, tt.expected)
			}
		})
	}
}

func TestShortHash(t *testing.T) {
	if got := ShortHash("deadbeefcafebabe", 8); got != "deadbeef" {
		t.Errorf("ShortHash() = %q", got)
	}
	if got := ShortHash("abc", 8); got != "abc" {
		t.Errorf("ShortHash() on short input = %q", got)
	}
	if got := ShortHash("abc", 0); got != "abc" {
		t.Errorf("ShortHash() with zero length = %q", got)
	}
}
