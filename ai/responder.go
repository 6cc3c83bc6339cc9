// Package ai generates chat replies for selected messages through an
// OpenAI-compatible completion API and speaks them back to the channel.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/onnwee/dachi-stream/backend/dachistream"
	"github.com/onnwee/dachi-stream/backend/telemetry"
)

const systemPrompt = "You are Dachi, a friendly companion in a Twitch chat. Reply to the selected viewer's message in one or two short sentences. Stay in character, keep it light, and never use links or newlines."

// Speaker sends a line of text to chat. Implemented by the IRC transport.
type Speaker interface {
	Say(text string)
}

// Responder is the onMessageSelected callback: it asks the model for a reply,
// says it in chat, and reports it back to the engine's log/state feed.
type Responder struct {
	client  *openai.Client
	model   string
	speaker Speaker
	engine  *dachistream.Engine

	// Timeout bounds a single completion call. Zero means 30s.
	Timeout time.Duration
}

// NewResponder builds a responder against an OpenAI-compatible endpoint.
// baseURL may be empty for api.openai.com.
func NewResponder(apiKey, baseURL, model string, speaker Speaker, engine *dachistream.Engine) *Responder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Responder{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		speaker: speaker,
		engine:  engine,
	}
}

// Respond implements dachistream.SelectedFunc.
func (r *Responder) Respond(ctx context.Context, msg dachistream.ChatMessage, promptContext string) error {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	system := systemPrompt
	if promptContext != "" {
		system += "\n\n" + promptContext
	}
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: msg.Username + ": " + msg.Message},
		},
		MaxTokens:   150,
		Temperature: 0.8,
	})
	if err != nil {
		return fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("no response choices")
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		slog.Info("model returned empty reply", slog.String("component", "ai"))
		return nil
	}

	telemetry.IncAIResponse()
	if r.speaker != nil {
		r.speaker.Say("@" + msg.Username + " " + reply)
	}
	if r.engine != nil {
		r.engine.LogAIResponse(reply)
	}
	return nil
}
