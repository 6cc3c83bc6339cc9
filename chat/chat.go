package chat

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/google/uuid"

	"github.com/onnwee/dachi-stream/backend/dachistream"
	"github.com/onnwee/dachi-stream/backend/db"
	"github.com/onnwee/dachi-stream/backend/twitchapi"
)

// Ingest owns the IRC connection: inbound messages flow into the engine and
// the chat_messages table; Say sends generated replies back to the channel.
type Ingest struct {
	client  *twitch.Client
	channel string
	store   *db.Store
	engine  *dachistream.Engine
}

// NewIngest builds the IRC client from TWITCH_CHANNEL / TWITCH_BOT_USERNAME /
// TWITCH_OAUTH_TOKEN, falling back to a stored token for provider "twitch"
// when the env token is absent.
func NewIngest(ctx context.Context, dbc *sql.DB, store *db.Store, engine *dachistream.Engine) (*Ingest, error) {
	channel := os.Getenv("TWITCH_CHANNEL")
	username := os.Getenv("TWITCH_BOT_USERNAME")
	token := os.Getenv("TWITCH_OAUTH_TOKEN")
	if token == "" && dbc != nil {
		access, _, _, _, err := db.GetOAuthToken(ctx, dbc, "twitch")
		if err != nil {
			slog.Warn("stored twitch token lookup failed", slog.Any("err", err))
		}
		token = twitchapi.ChatToken(access)
	}
	if channel == "" || username == "" || token == "" {
		return nil, errors.New("missing twitch chat credentials")
	}

	in := &Ingest{
		client:  twitch.NewClient(username, token),
		channel: channel,
		store:   store,
		engine:  engine,
	}
	in.client.OnPrivateMessage(in.onMessage)
	return in, nil
}

func (in *Ingest) onMessage(msg twitch.PrivateMessage) {
	m := dachistream.ChatMessage{
		ID:        uuid.New().String(),
		UserID:    msg.User.ID,
		Username:  msg.User.Name,
		Message:   msg.Message,
		Channel:   msg.Channel,
		Timestamp: time.Now().UTC(),
	}
	in.engine.AddMessage(m)

	// Persistence is best-effort and must not block ingestion.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := in.store.InsertChatMessage(ctx, m); err != nil {
			slog.Error("failed to insert chat message", slog.Any("err", err))
			return
		}
		isVIP := msg.User.Badges["vip"] > 0 || msg.User.Badges["moderator"] > 0
		if err := in.store.RecordUserActivity(ctx, m.UserID, m.Username, isVIP, m.Timestamp); err != nil {
			slog.Warn("failed to record user activity", slog.Any("err", err))
		}
	}()
}

// Say sends a reply to the configured channel.
func (in *Ingest) Say(text string) {
	in.client.Say(in.channel, text)
}

// Run joins the channel and blocks until the connection drops or ctx is
// canceled.
func (in *Ingest) Run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		in.client.Disconnect()
		close(done)
	}()

	in.client.Join(in.channel)
	if err := in.client.Connect(); err != nil {
		slog.Error("twitch chat connect error", slog.Any("err", err))
	}
	<-done
}
