package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/onnwee/dachi-stream/backend/dachistream"
)

// Store implements dachistream.Storage on Postgres, plus the write side used
// by the chat transport (message persistence, profile/insight bookkeeping).
type Store struct {
	DB *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{DB: db} }

// GetSettings returns settings rows oldest-first; the first row is authoritative.
func (s *Store) GetSettings(ctx context.Context) ([]dachistream.Settings, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT dachipool_enabled, selection_strategy, cycle_interval_seconds,
		streamer_voice_only_mode, topic_allowlist, topic_blocklist, use_database_personalization
		FROM dachi_settings ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)
	var out []dachistream.Settings
	for rows.Next() {
		var st dachistream.Settings
		var allow, block string
		if err := rows.Scan(&st.DachipoolEnabled, &st.SelectionStrategy, &st.CycleIntervalSeconds,
			&st.StreamerVoiceOnlyMode, &allow, &block, &st.UseDatabasePersonalization); err != nil {
			return nil, err
		}
		st.TopicAllowlist = splitList(allow)
		st.TopicBlocklist = splitList(block)
		out = append(out, st)
	}
	return out, rows.Err()
}

// GetUserInsight returns the stored insight for a user, or nil when absent.
func (s *Store) GetUserInsight(ctx context.Context, userID string) (*dachistream.UserInsight, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT user_id, username, summary, total_messages, updated_at
		FROM user_insights WHERE user_id=$1`, userID)
	var in dachistream.UserInsight
	if err := row.Scan(&in.UserID, &in.Username, &in.Summary, &in.TotalMessages, &in.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &in, nil
}

func (s *Store) GetAllUserInsights(ctx context.Context) ([]dachistream.UserInsight, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT user_id, username, summary, total_messages, updated_at FROM user_insights`)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)
	var out []dachistream.UserInsight
	for rows.Next() {
		var in dachistream.UserInsight
		if err := rows.Scan(&in.UserID, &in.Username, &in.Summary, &in.TotalMessages, &in.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// GetChatMessages returns up to limit persisted messages, most-recent-first.
func (s *Store) GetChatMessages(ctx context.Context, limit int) ([]dachistream.StoredChatMessage, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT username, message, created_at FROM chat_messages
		ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)
	var out []dachistream.StoredChatMessage
	for rows.Next() {
		var m dachistream.StoredChatMessage
		if err := rows.Scan(&m.Username, &m.Message, &m.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) GetAllUserProfiles(ctx context.Context) ([]dachistream.UserProfile, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT user_id, username, is_vip, first_seen, last_seen FROM user_profiles`)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)
	var out []dachistream.UserProfile
	for rows.Next() {
		var p dachistream.UserProfile
		if err := rows.Scan(&p.UserID, &p.Username, &p.IsVIP, &p.FirstSeen, &p.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InsertChatMessage persists an ingested chat message for the recent-history
// section of the context builder.
func (s *Store) InsertChatMessage(ctx context.Context, m dachistream.ChatMessage) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO chat_messages (message_id, user_id, username, message, channel, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`, m.ID, nullable(m.UserID), m.Username, m.Message, m.Channel, m.Timestamp)
	return err
}

// RecordUserActivity upserts the sender's profile and bumps their all-time
// message total, which feeds the new_chatter strategy.
func (s *Store) RecordUserActivity(ctx context.Context, userID, username string, isVIP bool, at time.Time) error {
	if userID == "" {
		return nil
	}
	if _, err := s.DB.ExecContext(ctx, `INSERT INTO user_profiles (user_id, username, is_vip, first_seen, last_seen)
		VALUES ($1,$2,$3,$4,$4)
		ON CONFLICT (user_id) DO UPDATE SET username=EXCLUDED.username, is_vip=EXCLUDED.is_vip, last_seen=EXCLUDED.last_seen`,
		userID, username, isVIP, at); err != nil {
		return err
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO user_insights (user_id, username, total_messages, updated_at)
		VALUES ($1,$2,1,NOW())
		ON CONFLICT (user_id) DO UPDATE SET username=EXCLUDED.username, total_messages=user_insights.total_messages+1, updated_at=NOW()`,
		userID, username)
	return err
}

// SeedDefaultSettings inserts the initial settings row if the table is empty,
// so a fresh deployment cycles without manual setup.
func (s *Store) SeedDefaultSettings(ctx context.Context, intervalSeconds int, strategy string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO dachi_settings (dachipool_enabled, selection_strategy, cycle_interval_seconds)
		SELECT TRUE, $1, $2
		WHERE NOT EXISTS (SELECT 1 FROM dachi_settings)`, strategy, intervalSeconds)
	return err
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func closeRows(rows *sql.Rows) {
	_ = rows.Close()
}
