package models

import (
	"slices"
	"testing"
)

func TestSplitOrigins(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"blank entries", " , ,", nil},
		{"single", "https://a.example.com", []string{"https://a.example.com"}},
		{"comma", "https://a.com, https://b.com", []string{"https://a.com", "https://b.com"}},
		{"dedup keeps first", "x, y, x", []string{"x", "y"}},
		{"trim", "  a  ,  b  ", []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SplitOrigins(tt.raw); !slices.Equal(got, tt.want) {
				t.Errorf("SplitOrigins(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCorsConfigOrigins(t *testing.T) {
	t.Parallel()
	c := &CorsConfig{AllowedOrigins: "https://habits.example.com,http://localhost:3000"}
	got := c.Origins()
	if len(got) != 2 || got[0] != "https://habits.example.com" {
		t.Errorf("Origins() = %v", got)
	}
}
