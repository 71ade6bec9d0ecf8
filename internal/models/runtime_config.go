package models

import (
	"strings"
	"time"
)

// RatelimitConfig is the stored request rate limit, in limiter format
// such as "20-S" or "1000-H".
type RatelimitConfig struct {
	ConfigKey string    `json:"config_key"`
	Rate      string    `json:"rate"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CorsConfig is the stored CORS policy
type CorsConfig struct {
	ConfigKey        string    `json:"config_key"`
	AllowedOrigins   string    `json:"allowed_origins"` // comma-separated
	AllowCredentials bool      `json:"allow_credentials"`
	MaxAge           int       `json:"max_age"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Origins returns the allowed origins without blanks or duplicates.
func (c *CorsConfig) Origins() []string {
	return SplitOrigins(c.AllowedOrigins)
}

// SplitOrigins parses a comma-separated origin list.
func SplitOrigins(raw string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range strings.Split(raw, ",") {
		s := strings.TrimSpace(p)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
