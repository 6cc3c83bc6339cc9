// Package chat contains the Twitch IRC transport feeding the dachistream
// engine.
//
// Ingest connects to Twitch IRC for TWITCH_CHANNEL and pushes every chat
// line into the engine's cycle buffer while persisting it to the
// chat_messages table (which backs the context builder's recent-history
// section). Sender profiles and all-time message totals are upserted as a
// side effect, feeding the new_chatter strategy and personalization.
//
// Credentials: the IRC client requires a bot username and an OAuth token with
// chat:read/chat:edit scopes. If TWITCH_OAUTH_TOKEN is not provided, the
// package will try to reuse a stored token from the oauth_tokens table for
// provider "twitch".
package chat
