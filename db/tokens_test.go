package db

import (
	"strings"
	"testing"
)

// The token cipher is initialized once per process, so all cases that need
// encryption live in this single test with the key set up front.
func TestTokenSealOpenRoundTrip(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "test-key-for-token-crypto")

	sealed, err := sealToken("super-secret-access-token")
	if err != nil {
		t.Fatalf("sealToken: %v", err)
	}
	if !strings.HasPrefix(sealed, "enc:") {
		t.Fatalf("sealed token missing enc: prefix: %q", sealed)
	}
	if strings.Contains(sealed, "super-secret") {
		t.Fatalf("sealed token leaks plaintext")
	}

	plain, err := openToken(sealed)
	if err != nil {
		t.Fatalf("openToken: %v", err)
	}
	if plain != "super-secret-access-token" {
		t.Errorf("roundtrip mismatch: %q", plain)
	}

	// Empty tokens pass through untouched.
	if sealed, err := sealToken(""); err != nil || sealed != "" {
		t.Errorf("sealToken(\"\") = %q, %v", sealed, err)
	}

	// Legacy plaintext rows (no enc: prefix) read back as-is.
	if plain, err := openToken("plaintext-token"); err != nil || plain != "plaintext-token" {
		t.Errorf("openToken passthrough = %q, %v", plain, err)
	}

	// Corrupted ciphertext is an error, not silent garbage.
	if _, err := openToken("enc:not-valid-base64!!!"); err == nil {
		t.Errorf("expected error for corrupted ciphertext")
	}
}
