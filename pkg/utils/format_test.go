package utils

import (
	"testing"
	"time"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name     string
		bytes    int64
		expected string
	}{
		{
			name:     "bytes",
			bytes:    500,
			expected: "500 B",
		},
		{
			name:     "kilobytes",
			bytes:    1500,
			expected: "1.5 KB",
		},
		{
			name:     "megabytes",
			bytes:    1500000,
			expected: "1.4 MB",
		},
		{
			name:     "gigabytes",
			bytes:    1500000000,
			expected: "1.4 GB",
		},
		{
			name:     "zero bytes",
			bytes:    0,
			expected: "0 B",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatSize(tt.bytes)
			if result != tt.expected {
				t.Errorf("FormatSize(%d) = %s; want %s", tt.bytes, result, tt.expected)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		d        time.Duration
		expected string
	}{
		{
			name:     "seconds only",
			d:        42 * time.Second,
			expected: "42s",
		},
		{
			name:     "minutes and seconds",
			d:        3*time.Minute + 5*time.Second,
			expected: "3m5s",
		},
		{
			name:     "hours",
			d:        2*time.Hour + 30*time.Minute,
			expected: "2h30m0s",
		},
		{
			name:     "sub-second rounds down",
			d:        400 * time.Millisecond,
			expected: "0s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatDuration(tt.d)
			if result != tt.expected {
				t.Errorf("FormatDuration(%v) = %s; want %s", tt.d, result, tt.expected)
			}
		})
	}
}
