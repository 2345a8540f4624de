package security

import (
	"net/http"
	"strings"
	"testing"
)

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello", "hello"},
		{"newline escaped", "line1\nline2", "line1\\nline2"},
		{"carriage return escaped", "a\rb", "a\\rb"},
		{"tab escaped", "a\tb", "a\\tb"},
		{"control removed", "a\x00b", "ab"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeForLog(tt.input); got != tt.want {
				t.Errorf("SanitizeForLog(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeForLogWithLength_Truncates(t *testing.T) {
	got := SanitizeForLogWithLength(strings.Repeat("x", 100), 10)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected truncation marker, got %q", got)
	}
	if len(got) > 13 {
		t.Errorf("output too long: %d", len(got))
	}
}

func TestMaskSensitiveHeaders(t *testing.T) {
	headers := http.Header{
		"Authorization": []string{"Bearer secret-token"},
		"X-Api-Key":     []string{"key-123"},
		"Content-Type":  []string{"application/json"},
	}

	masked := MaskSensitiveHeaders(headers)

	if masked.Get("Authorization") != "[REDACTED]" {
		t.Errorf("Authorization not masked: %s", masked.Get("Authorization"))
	}
	if masked.Get("X-Api-Key") != "[REDACTED]" {
		t.Errorf("X-Api-Key not masked: %s", masked.Get("X-Api-Key"))
	}
	if masked.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type changed: %s", masked.Get("Content-Type"))
	}

	// Original untouched
	if headers.Get("Authorization") != "Bearer secret-token" {
		t.Error("original headers mutated")
	}
}

func TestMaskSensitiveMap(t *testing.T) {
	m := map[string]string{
		"gemini_api_key": "abc",
		"product":        "galaxy buds",
	}

	masked := MaskSensitiveMap(m)

	if masked["gemini_api_key"] != "[REDACTED]" {
		t.Errorf("api key not masked: %s", masked["gemini_api_key"])
	}
	if masked["product"] != "galaxy buds" {
		t.Errorf("product changed: %s", masked["product"])
	}
}

func TestMaskSensitive_Nil(t *testing.T) {
	if MaskSensitiveHeaders(nil) != nil {
		t.Error("expected nil for nil headers")
	}
	if MaskSensitiveMap(nil) != nil {
		t.Error("expected nil for nil map")
	}
}
