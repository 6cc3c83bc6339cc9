package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/dachi-stream/backend/dachistream"
	"github.com/onnwee/dachi-stream/backend/testutil"
)

type fakeSpeaker struct {
	lines []string
}

func (s *fakeSpeaker) Say(text string) { s.lines = append(s.lines, text) }

// completionServer fakes an OpenAI-compatible /chat/completions endpoint and
// records the request body it received.
func completionServer(t *testing.T, reply string, gotBody *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotBody != nil {
			_ = json.NewDecoder(r.Body).Decode(gotBody)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": reply}},
			},
		})
	}))
}

func TestRespondSpeaksAndLogs(t *testing.T) {
	var body map[string]any
	srv := completionServer(t, "  hey alice, good point!  ", &body)
	defer srv.Close()

	store := &testutil.MemoryStore{}
	engine := dachistream.New(store)
	speaker := &fakeSpeaker{}
	r := NewResponder("test-key", srv.URL+"/v1", "gpt-4o-mini", speaker, engine)
	r.Timeout = 5 * time.Second

	msg := dachistream.ChatMessage{ID: "1", UserID: "u1", Username: "alice", Message: "what game next?"}
	if err := r.Respond(context.Background(), msg, "=== DACHIPOOL SETTINGS ==="); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if len(speaker.lines) != 1 || speaker.lines[0] != "@alice hey alice, good point!" {
		t.Errorf("spoke %v", speaker.lines)
	}
	if got := engine.State().AIResponse; got != "hey alice, good point!" {
		t.Errorf("engine AI response = %q", got)
	}

	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system+user messages, got %v", body["messages"])
	}
	system, _ := msgs[0].(map[string]any)
	if content, _ := system["content"].(string); !strings.Contains(content, "DACHIPOOL SETTINGS") {
		t.Errorf("prompt context not forwarded in system message: %q", content)
	}
	user, _ := msgs[1].(map[string]any)
	if content, _ := user["content"].(string); content != "alice: what game next?" {
		t.Errorf("user message = %q", content)
	}
}

func TestRespondEmptyReplyIsNotAnError(t *testing.T) {
	srv := completionServer(t, "   ", nil)
	defer srv.Close()

	speaker := &fakeSpeaker{}
	r := NewResponder("test-key", srv.URL+"/v1", "gpt-4o-mini", speaker, nil)
	err := r.Respond(context.Background(), dachistream.ChatMessage{Username: "bob", Message: "hi"}, "")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if len(speaker.lines) != 0 {
		t.Errorf("spoke empty reply: %v", speaker.lines)
	}
}

func TestRespondPropagatesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewResponder("test-key", srv.URL+"/v1", "gpt-4o-mini", nil, nil)
	err := r.Respond(context.Background(), dachistream.ChatMessage{Username: "bob", Message: "hi"}, "")
	if err == nil {
		t.Fatalf("expected error from failing API")
	}
	if !strings.Contains(err.Error(), "chat completion") {
		t.Errorf("error not wrapped: %v", err)
	}
}
