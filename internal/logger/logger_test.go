package logger

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestSanitizeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		in        string
		maxLength int
		want      string
	}{
		{name: "empty", in: "", maxLength: 10, want: ""},
		{name: "plain", in: "/api/v1/habits/3", maxLength: 100, want: "/api/v1/habits/3"},
		{name: "control characters", in: "alice\x1b[31m\x00", maxLength: 100, want: "alice[31m"},
		{name: "newline kept", in: "a\nb", maxLength: 100, want: "a\nb"},
		{name: "invalid utf8", in: "ok\xffok", maxLength: 100, want: "okok"},
		{name: "truncated", in: "abcdefghij", maxLength: 4, want: "abcd..."},
		{name: "default length", in: strings.Repeat("x", MaxGeneralStringLength+1), maxLength: 0, want: strings.Repeat("x", MaxGeneralStringLength) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeString(tt.in, tt.maxLength); got != tt.want {
				t.Errorf("SanitizeString(%q, %d) = %q, want %q", tt.in, tt.maxLength, got, tt.want)
			}
		})
	}
}

func TestSanitizeHelpers(t *testing.T) {
	t.Parallel()

	if got := SanitizeUsername(strings.Repeat("u", 100)); len(got) != MaxUsernameLength+3 {
		t.Errorf("Expected username truncated to %d, got %d", MaxUsernameLength, len(got))
	}
	if got := SanitizePath("/healthz\r\x07"); got != "/healthz\r" {
		t.Errorf("Unexpected path %q", got)
	}
	if got := SanitizeError(nil); got != "" {
		t.Errorf("Expected empty string for nil error, got %q", got)
	}
	if got := SanitizeError(errors.New("bad\x00 thing")); got != "bad thing" {
		t.Errorf("Unexpected error string %q", got)
	}
}

func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		debug bool
		want  zapcore.Level
	}{
		{debug: false, want: zapcore.InfoLevel},
		{debug: true, want: zapcore.DebugLevel},
	}

	for _, tt := range tests {
		l, err := NewProductionLogger("habit-test", tt.debug)
		if err != nil {
			t.Fatalf("NewProductionLogger() error = %v", err)
		}
		if !l.Core().Enabled(tt.want) {
			t.Errorf("Expected level %v enabled with debug=%v", tt.want, tt.debug)
		}
		if tt.want == zapcore.InfoLevel && l.Core().Enabled(zapcore.DebugLevel) {
			t.Error("Expected debug disabled")
		}
	}
}

func TestNewCLILogger(t *testing.T) {
	t.Parallel()

	l, err := NewCLILogger(false)
	if err != nil {
		t.Fatalf("NewCLILogger() error = %v", err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) {
		t.Error("Expected info to be hidden without verbose")
	}
	if err := Sync(nil); err != nil {
		t.Errorf("Sync(nil) = %v", err)
	}
}
