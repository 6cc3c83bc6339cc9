package dachistream

import (
	"context"
	"fmt"
	"strings"
)

const (
	// recentChatLimit caps how many stored messages the history section shows.
	recentChatLimit = 10

	voiceOnlyDirective = "The streamer is in voice-only mode. Only respond if the streamer has spoken recently; otherwise stay silent."
)

// buildContext assembles the plain-text context handed to the downstream
// generator alongside the selected message. Sections appear in a fixed order
// and are separated by a blank line; a section whose condition is false or
// whose storage lookup fails is simply omitted. This function never returns
// an error.
func buildContext(ctx context.Context, store Storage, msg ChatMessage, st Settings) string {
	var sections []string

	if st.StreamerVoiceOnlyMode {
		sections = append(sections, voiceOnlyDirective)
	}
	if len(st.TopicAllowlist) > 0 {
		sections = append(sections, "Allowed topics: "+strings.Join(st.TopicAllowlist, ", "))
	}
	if len(st.TopicBlocklist) > 0 {
		sections = append(sections, "Topics to avoid: "+strings.Join(st.TopicBlocklist, ", "))
	}
	if st.UseDatabasePersonalization && msg.UserID != "" {
		if ins, err := store.GetUserInsight(ctx, msg.UserID); err == nil && ins != nil && strings.TrimSpace(ins.Summary) != "" {
			sections = append(sections, fmt.Sprintf("What you know about %s: %s", msg.Username, ins.Summary))
		}
	}
	if recent, err := store.GetChatMessages(ctx, recentChatLimit); err == nil && len(recent) > 0 {
		// Storage returns most-recent-first; render oldest-first.
		lines := make([]string, 0, len(recent)+1)
		lines = append(lines, "Recent chat:")
		for i := len(recent) - 1; i >= 0; i-- {
			lines = append(lines, recent[i].Username+": "+recent[i].Message)
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	return strings.Join(sections, "\n\n")
}
