package dachistream

import (
	"context"
	"time"
)

// ChatMessage is a single chat line as received from the transport. The
// engine never mutates one. UserID is empty for anonymous messages (the
// transport could not attribute a stable user id).
type ChatMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Channel   string    `json:"channel"`
	Timestamp time.Time `json:"timestamp"`
}

// Selection strategies. Unrecognized values fall back to the last buffered
// message rather than failing the cycle.
const (
	StrategyMostActive = "most_active"
	StrategyRandom     = "random"
	StrategyNewChatter = "new_chatter"
)

// Settings is the per-cycle configuration snapshot. It is fetched fresh from
// storage on every cycle; the engine caches nothing across cycles except the
// running timer interval.
type Settings struct {
	DachipoolEnabled           bool     `json:"dachipool_enabled"`
	SelectionStrategy          string   `json:"selection_strategy"`
	CycleIntervalSeconds       int      `json:"cycle_interval_seconds"`
	StreamerVoiceOnlyMode      bool     `json:"streamer_voice_only_mode"`
	TopicAllowlist             []string `json:"topic_allowlist"`
	TopicBlocklist             []string `json:"topic_blocklist"`
	UseDatabasePersonalization bool     `json:"use_database_personalization"`
}

// UserInsight is a slowly-updated per-user summary: all-time message total
// plus a free-text personality note consulted by the context builder.
type UserInsight struct {
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	Summary       string    `json:"summary"`
	TotalMessages int       `json:"total_messages"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UserProfile is the transport-maintained viewer record.
type UserProfile struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	IsVIP     bool      `json:"is_vip"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// StoredChatMessage is a persisted chat line used for the recent-history
// section of the context.
type StoredChatMessage struct {
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Storage is the persistence capability the engine consumes. GetSettings
// returns rows with the first element authoritative; GetChatMessages returns
// most-recent-first.
type Storage interface {
	GetSettings(ctx context.Context) ([]Settings, error)
	GetUserInsight(ctx context.Context, userID string) (*UserInsight, error)
	GetAllUserInsights(ctx context.Context) ([]UserInsight, error)
	GetChatMessages(ctx context.Context, limit int) ([]StoredChatMessage, error)
	GetAllUserProfiles(ctx context.Context) ([]UserProfile, error)
}

// Status is the engine's observable state machine position.
type Status string

const (
	StatusIdle            Status = "idle"
	StatusCollecting      Status = "collecting"
	StatusProcessing      Status = "processing"
	StatusSelecting       Status = "selecting_message"
	StatusBuildingContext Status = "building_context"
	StatusWaitingForAI    Status = "waiting_for_ai"
	StatusDisabled        Status = "disabled"
	StatusPaused          Status = "paused"
)

// State is a point-in-time snapshot of the engine, recomputed on demand.
type State struct {
	Status                Status       `json:"status"`
	BufferCount           int          `json:"buffer_count"`
	LastCycleTime         *time.Time   `json:"last_cycle_time"`
	NextCycleTime         *time.Time   `json:"next_cycle_time"`
	SecondsUntilNextCycle int          `json:"seconds_until_next_cycle"`
	SelectedMessage       *ChatMessage `json:"selected_message"`
	AIResponse            string       `json:"ai_response,omitempty"`
	Error                 string       `json:"error,omitempty"`
}

// LogType classifies entries in the log ring.
type LogType string

const (
	LogInfo       LogType = "info"
	LogStatus     LogType = "status"
	LogMessage    LogType = "message"
	LogSelection  LogType = "selection"
	LogAIResponse LogType = "ai_response"
	LogError      LogType = "error"
)

// LogEntry is one timestamped event in the engine's observability feed.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      LogType        `json:"type"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

// SelectedFunc receives the chosen message and assembled context once per
// successful cycle. The engine awaits its return before finishing the cycle;
// a returned error is logged for that cycle only.
type SelectedFunc func(ctx context.Context, msg ChatMessage, promptContext string) error

// StatusFunc observes fresh state snapshots on every engine mutation.
type StatusFunc func(State)
