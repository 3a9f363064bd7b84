package utils

import (
	"testing"
)

func TestParseInt(t *testing.T) {
	tests := []struct {
		value string
		def   int
		want  int
	}{
		{"", 10, 10},
		{"abc", 10, 10},
		{"0", 10, 10},
		{"-3", 10, 10},
		{"25", 10, 25},
	}

	for _, tc := range tests {
		if got := ParseInt(tc.value, tc.def); got != tc.want {
			t.Errorf("ParseInt(%q, %d) = %d, want %d", tc.value, tc.def, got, tc.want)
		}
	}
}

func TestGenerateConfirmationCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := GenerateConfirmationCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != 4 {
			t.Fatalf("code %q, want 4 characters", code)
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Fatalf("code %q contains non-digit", code)
			}
		}
	}
}

func TestGenerateQRTokenUniqueness(t *testing.T) {
	const n = 10000
	seen := make(map[string]bool, n)

	for i := 0; i < n; i++ {
		token, err := GenerateQRToken()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(token) != 43 { // 32 bytes, unpadded base64url
			t.Fatalf("token length = %d, want 43", len(token))
		}
		if seen[token] {
			t.Fatalf("duplicate token after %d generations", i)
		}
		seen[token] = true
	}
}
