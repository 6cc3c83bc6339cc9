package chat

import (
	"context"
	"testing"
)

func TestNewIngestRequiresCredentials(t *testing.T) {
	t.Setenv("TWITCH_CHANNEL", "")
	t.Setenv("TWITCH_BOT_USERNAME", "")
	t.Setenv("TWITCH_OAUTH_TOKEN", "")

	if _, err := NewIngest(context.Background(), nil, nil, nil); err == nil {
		t.Fatalf("expected error with no credentials")
	}

	t.Setenv("TWITCH_CHANNEL", "somechannel")
	t.Setenv("TWITCH_BOT_USERNAME", "somebot")
	if _, err := NewIngest(context.Background(), nil, nil, nil); err == nil {
		t.Fatalf("expected error with no token and no database fallback")
	}

	t.Setenv("TWITCH_OAUTH_TOKEN", "oauth:abc")
	in, err := NewIngest(context.Background(), nil, nil, nil)
	if err != nil {
		t.Fatalf("NewIngest: %v", err)
	}
	if in.channel != "somechannel" {
		t.Errorf("channel = %q", in.channel)
	}
}
