// Package twitchapi wraps the Twitch OAuth endpoints used to keep the bot's
// chat token fresh.
package twitchapi

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// Endpoint is Twitch's OAuth2 provider endpoint.
var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://id.twitch.tv/oauth2/authorize",
	TokenURL: "https://id.twitch.tv/oauth2/token",
}

// RefreshToken exchanges a refresh token for a new access token.
func RefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (*oauth2.Token, error) {
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, errors.New("missing clientID/clientSecret/refreshToken")
	}
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     Endpoint,
	}
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("twitch refresh failed: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("empty access_token in twitch response")
	}
	return tok, nil
}

// ChatToken formats an access token for the IRC client, which expects the
// "oauth:" prefix.
func ChatToken(accessToken string) string {
	if accessToken == "" {
		return ""
	}
	if len(accessToken) > 6 && accessToken[:6] == "oauth:" {
		return accessToken
	}
	return "oauth:" + accessToken
}
