package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTokenFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write token file: %v", err)
	}
	return path
}

func TestFileTokenSource(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		content   string
		wantToken string
		wantOK    bool
	}{
		{
			name:      "valid with future expiry",
			content:   `{"access_token":"abc","expiry":"2025-06-01T13:00:00Z"}`,
			wantToken: "abc",
			wantOK:    true,
		},
		{
			name:      "valid without expiry",
			content:   `{"access_token":"abc"}`,
			wantToken: "abc",
			wantOK:    true,
		},
		{
			name:    "expired",
			content: `{"access_token":"abc","expiry":"2025-06-01T11:00:00Z"}`,
		},
		{
			name:    "expiring within skew",
			content: `{"access_token":"abc","expiry":"2025-06-01T12:00:10Z"}`,
		},
		{
			name:    "unparseable expiry",
			content: `{"access_token":"abc","expiry":"tomorrow"}`,
		},
		{
			name:    "empty token",
			content: `{"access_token":""}`,
		},
		{
			name:    "malformed json",
			content: `{not json`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewFileTokenSource(writeTokenFile(t, tt.content))
			src.now = func() time.Time { return now }
			token, ok := src.Token()
			if ok != tt.wantOK || token != tt.wantToken {
				t.Errorf("Token() = (%q, %v), want (%q, %v)", token, ok, tt.wantToken, tt.wantOK)
			}
		})
	}
}

func TestFileTokenSourceMissingFile(t *testing.T) {
	src := NewFileTokenSource(filepath.Join(t.TempDir(), "nope.json"))
	if token, ok := src.Token(); ok || token != "" {
		t.Errorf("Token() = (%q, %v), want unavailable", token, ok)
	}
}

func TestFileTokenSourcePicksUpReplacedFile(t *testing.T) {
	path := writeTokenFile(t, `{"access_token":"old"}`)
	src := NewFileTokenSource(path)

	if token, _ := src.Token(); token != "old" {
		t.Fatalf("token = %q, want old", token)
	}

	if err := os.WriteFile(path, []byte(`{"access_token":"new"}`), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if token, _ := src.Token(); token != "new" {
		t.Errorf("token = %q, want new after rewrite", token)
	}
}

func TestStaticTokenSource(t *testing.T) {
	if token, ok := StaticTokenSource("t").Token(); !ok || token != "t" {
		t.Errorf("static = (%q, %v)", token, ok)
	}
	if _, ok := StaticTokenSource("").Token(); ok {
		t.Error("empty static token reported available")
	}
}
