package db

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Stored chat tokens are encrypted at rest when ENCRYPTION_KEY is set;
// otherwise they are stored plaintext with a one-time warning.
var (
	tokenCipher     cipher.AEAD
	tokenCipherOnce sync.Once
)

func getTokenCipher() cipher.AEAD {
	tokenCipherOnce.Do(func() {
		key := os.Getenv("ENCRYPTION_KEY")
		if key == "" {
			slog.Warn("ENCRYPTION_KEY not set, oauth tokens will be stored in plaintext", slog.String("component", "db_tokens"))
			return
		}
		sum := sha256.Sum256([]byte(key))
		block, err := aes.NewCipher(sum[:])
		if err != nil {
			slog.Error("token encryption init failed", slog.Any("err", err))
			return
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			slog.Error("token encryption init failed", slog.Any("err", err))
			return
		}
		tokenCipher = gcm
	})
	return tokenCipher
}

func sealToken(plain string) (string, error) {
	gcm := getTokenCipher()
	if gcm == nil || plain == "" {
		return plain, nil
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plain), nil)
	return "enc:" + base64.StdEncoding.EncodeToString(sealed), nil
}

func openToken(stored string) (string, error) {
	if len(stored) < 4 || stored[:4] != "enc:" {
		return stored, nil
	}
	gcm := getTokenCipher()
	if gcm == nil {
		return "", fmt.Errorf("token is encrypted but ENCRYPTION_KEY not configured")
	}
	raw, err := base64.StdEncoding.DecodeString(stored[4:])
	if err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if len(raw) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	plain, err := gcm.Open(nil, raw[:gcm.NonceSize()], raw[gcm.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt token: %w", err)
	}
	return string(plain), nil
}

// UpsertOAuthToken stores or updates an OAuth token for a provider (e.g., twitch).
func UpsertOAuthToken(ctx context.Context, dbx *sql.DB, provider, access, refresh string, expiry time.Time, scope string) error {
	accessStored, err := sealToken(access)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	refreshStored, err := sealToken(refresh)
	if err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}
	_, err = dbx.ExecContext(ctx, `INSERT INTO oauth_tokens(provider, access_token, refresh_token, expires_at, scope, updated_at)
		VALUES($1,$2,$3,$4,$5,NOW())
		ON CONFLICT(provider) DO UPDATE SET
			access_token=EXCLUDED.access_token,
			refresh_token=EXCLUDED.refresh_token,
			expires_at=EXCLUDED.expires_at,
			scope=EXCLUDED.scope,
			updated_at=NOW()`, provider, accessStored, refreshStored, expiry, scope)
	return err
}

// GetOAuthToken retrieves a stored token row; returns zero values if not found.
func GetOAuthToken(ctx context.Context, dbx *sql.DB, provider string) (access, refresh string, expiry time.Time, scope string, err error) {
	row := dbx.QueryRowContext(ctx, `SELECT access_token, refresh_token, expires_at, scope FROM oauth_tokens WHERE provider=$1`, provider)
	err = row.Scan(&access, &refresh, &expiry, &scope)
	if err == sql.ErrNoRows {
		return "", "", time.Time{}, "", nil
	}
	if err != nil {
		return "", "", time.Time{}, "", err
	}
	if access, err = openToken(access); err != nil {
		return "", "", time.Time{}, "", err
	}
	if refresh, err = openToken(refresh); err != nil {
		return "", "", time.Time{}, "", err
	}
	return access, refresh, expiry, scope, nil
}
