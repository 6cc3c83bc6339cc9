package twitchapi

import (
	"context"
	"testing"
)

func TestChatToken(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"abc123", "oauth:abc123"},
		{"oauth:abc123", "oauth:abc123"},
	}
	for _, c := range cases {
		if got := ChatToken(c.in); got != c.want {
			t.Errorf("ChatToken(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRefreshTokenRequiresCreds(t *testing.T) {
	if _, err := RefreshToken(context.Background(), "", "secret", "refresh"); err == nil {
		t.Errorf("expected error with missing client id")
	}
	if _, err := RefreshToken(context.Background(), "id", "", "refresh"); err == nil {
		t.Errorf("expected error with missing client secret")
	}
	if _, err := RefreshToken(context.Background(), "id", "secret", ""); err == nil {
		t.Errorf("expected error with missing refresh token")
	}
}
