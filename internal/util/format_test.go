package util

import (
	"testing"
	"time"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name     string
		size     int64
		expected string
	}{
		// Bytes
		{"Zero bytes", 0, "0 Bytes"},
		{"Negative", -5, "0 Bytes"},
		{"Single byte", 1, "1 Bytes"},
		{"Small bytes", 512, "512 Bytes"},
		{"Max bytes", 1023, "1023 Bytes"},

		// Kilobytes
		{"Exact 1 KB", 1024, "1 KB"},
		{"1.5 KB", 1536, "1.5 KB"},
		{"1.25 KB", 1280, "1.25 KB"},
		{"1.125 KB rounds", 1152, "1.13 KB"},
		{"10 KB", 10240, "10 KB"},

		// Megabytes
		{"Exact 1 MB", 1048576, "1 MB"},
		{"1.5 MB", 1572864, "1.5 MB"},
		{"2.25 MB", 2359296, "2.25 MB"},
		{"100 MB", 104857600, "100 MB"},

		// Gigabytes
		{"Exact 1 GB", 1073741824, "1 GB"},
		{"2.75 GB", 2952790016, "2.75 GB"},

		// Larger values stay in TB
		{"Exact 1 TB", 1099511627776, "1 TB"},
		{"1 PB in TB", 1125899906842624, "1024 TB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatSize(tt.size)
			if result != tt.expected {
				t.Errorf("FormatSize(%d) = %s, expected %s", tt.size, result, tt.expected)
			}
		})
	}
}

func TestFormatAge(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name     string
		t        time.Time
		expected string
	}{
		{"just now", now, "0s ago"},
		{"seconds", now.Add(-42 * time.Second), "42s ago"},
		{"minutes", now.Add(-3*time.Minute - 10*time.Second), "3m ago"},
		{"future clamps", now.Add(time.Minute), "0s ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatAge(now, tt.t); got != tt.expected {
				t.Errorf("FormatAge() = %s, expected %s", got, tt.expected)
			}
		})
	}
}

func BenchmarkFormatSize(b *testing.B) {
	sizes := []int64{
		0,
		1024,
		1048576,
		1073741824,
		1099511627776,
	}

	for _, size := range sizes {
		b.Run(FormatSize(size), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				FormatSize(size)
			}
		})
	}
}
