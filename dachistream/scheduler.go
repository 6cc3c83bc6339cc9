package dachistream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/onnwee/dachi-stream/backend/telemetry"
)

const (
	// DefaultCycleIntervalSeconds is used when settings carry no valid interval.
	DefaultCycleIntervalSeconds = 15
	// MinCycleIntervalSeconds and MaxCycleIntervalSeconds bound runtime
	// interval updates; out-of-range values are rejected.
	MinCycleIntervalSeconds = 5
	MaxCycleIntervalSeconds = 60
)

// Option configures optional hardening behavior on an Engine.
type Option func(*Engine)

// WithMaxBufferSize caps the per-cycle buffer at n messages with the given
// overflow policy. The default is unbounded, matching the drain-on-timer
// admission model where the cycle cadence is the only safety valve.
func WithMaxBufferSize(n int, policy OverflowPolicy) Option {
	return func(e *Engine) {
		e.maxBuffer = n
		e.overflow = policy
	}
}

// WithCycleGuard makes the engine skip a timer tick while the previous cycle
// (including its callback) is still in flight. The default is permissive:
// ticks fire independently and a new cycle may begin while a slow callback
// from the previous one is outstanding.
func WithCycleGuard() Option {
	return func(e *Engine) { e.guard = true }
}

// Engine is the cyclic buffering and selection scheduler. Construct with New,
// then Start; AddMessage may be called from any goroutine.
type Engine struct {
	store Storage
	buf   *buffer
	logs  logRing

	maxBuffer int
	overflow  OverflowPolicy
	guard     bool
	busy      atomic.Bool

	mu          sync.Mutex
	status      Status
	intervalSec int
	lastCycle   time.Time
	selected    *ChatMessage
	aiResponse  string
	lastErr     string
	paused      bool
	running     bool
	cancel      context.CancelFunc
	ticker      *time.Ticker
	onSelected  SelectedFunc
	onStatus    StatusFunc
}

// New constructs an idle engine backed by the given storage capability.
func New(store Storage, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		status:      StatusIdle,
		intervalSec: DefaultCycleIntervalSeconds,
		overflow:    OverflowDropOldest,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.buf = newBuffer(e.maxBuffer, e.overflow)
	return e
}

// Start reads the initial interval from settings (default 15s), begins the
// tick loop, and transitions to collecting. onSelected receives the chosen
// message and context once per successful cycle; onStatus, if non-nil, is
// invoked with a fresh snapshot on every state or buffer mutation.
func (e *Engine) Start(ctx context.Context, onSelected SelectedFunc, onStatus StatusFunc) error {
	interval := DefaultCycleIntervalSeconds
	if rows, err := e.store.GetSettings(ctx); err == nil && len(rows) > 0 {
		if s := rows[0].CycleIntervalSeconds; s >= MinCycleIntervalSeconds && s <= MaxCycleIntervalSeconds {
			interval = s
		}
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.New("dachistream engine already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.running = true
	e.cancel = cancel
	e.onSelected = onSelected
	e.onStatus = onStatus
	e.intervalSec = interval
	e.ticker = time.NewTicker(time.Duration(interval) * time.Second)
	e.status = StatusCollecting
	tick := e.ticker.C
	e.mu.Unlock()

	slog.Info("dachistream started", slog.Int("interval_seconds", interval), slog.String("component", "dachistream"))
	e.logs.append(LogInfo, fmt.Sprintf("dachistream started (cycle every %ds)", interval), map[string]any{"interval_seconds": interval})
	e.notifyStatus()

	go e.run(runCtx, tick)
	return nil
}

func (e *Engine) run(ctx context.Context, tick <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			e.processCycle(ctx)
		}
	}
}

// Stop cancels the tick loop and forces idle. The buffer is left untouched
// so callers can still inspect it.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	ticker := e.ticker
	e.cancel = nil
	e.ticker = nil
	e.status = StatusIdle
	e.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
	}
	if cancel != nil {
		cancel()
	}
	slog.Info("dachistream stopped", slog.String("component", "dachistream"))
	e.logs.append(LogInfo, "dachistream stopped", nil)
	e.notifyStatus()
}

// Pause halts cycle processing without halting ingestion: the buffer keeps
// accumulating across paused cycles. Takes effect on the next tick.
func (e *Engine) Pause() {
	e.mu.Lock()
	e.paused = true
	e.status = StatusPaused
	e.mu.Unlock()
	e.logs.append(LogStatus, "dachistream paused", nil)
	e.notifyStatus()
}

// Resume re-enables cycle processing starting with the next tick.
func (e *Engine) Resume() {
	e.mu.Lock()
	e.paused = false
	e.status = StatusCollecting
	e.mu.Unlock()
	e.logs.append(LogStatus, "dachistream resumed", nil)
	e.notifyStatus()
}

// UpdateCycleInterval replaces the running cadence. Values outside
// [MinCycleIntervalSeconds, MaxCycleIntervalSeconds] are rejected and the
// prior cadence retained.
func (e *Engine) UpdateCycleInterval(seconds int) error {
	if seconds < MinCycleIntervalSeconds || seconds > MaxCycleIntervalSeconds {
		slog.Warn("rejected cycle interval update", slog.Int("seconds", seconds), slog.String("component", "dachistream"))
		e.logs.append(LogInfo, fmt.Sprintf("ignored invalid cycle interval %ds (allowed %d-%d)", seconds, MinCycleIntervalSeconds, MaxCycleIntervalSeconds), nil)
		return fmt.Errorf("cycle interval must be between %d and %d seconds", MinCycleIntervalSeconds, MaxCycleIntervalSeconds)
	}
	e.mu.Lock()
	e.intervalSec = seconds
	if e.ticker != nil {
		e.ticker.Reset(time.Duration(seconds) * time.Second)
	}
	e.mu.Unlock()
	slog.Info("cycle interval updated", slog.Int("seconds", seconds), slog.String("component", "dachistream"))
	e.logs.append(LogInfo, fmt.Sprintf("cycle interval updated to %ds", seconds), map[string]any{"interval_seconds": seconds})
	e.notifyStatus()
	return nil
}

// AddMessage appends a chat message to the current cycle's buffer. It is
// O(1), never blocks on storage or the callback, and is safe to call
// concurrently with a running cycle.
func (e *Engine) AddMessage(msg ChatMessage) {
	if !e.buf.add(msg) {
		e.logs.append(LogInfo, "buffer full; dropped message from "+msg.Username, map[string]any{"username": msg.Username})
		return
	}
	telemetry.IncMessageBuffered()
	telemetry.SetBufferDepth(e.buf.len())
	e.logs.append(LogMessage, msg.Username+": "+msg.Message, map[string]any{
		"username": msg.Username,
		"channel":  msg.Channel,
	})
	e.notifyStatus()
}

// LogAIResponse records a generated reply reported back by the callback. The
// log line is truncated to 100 characters; the full text is kept in the
// entry's payload and in the state snapshot.
func (e *Engine) LogAIResponse(responseText string) {
	e.mu.Lock()
	e.aiResponse = responseText
	e.mu.Unlock()
	summary := responseText
	if r := []rune(summary); len(r) > 100 {
		summary = string(r[:100])
	}
	e.logs.append(LogAIResponse, summary, map[string]any{"response": responseText})
	e.notifyStatus()
}

// Logs returns the bounded event log, most-recent-last.
func (e *Engine) Logs() []LogEntry { return e.logs.list() }

// BufferMessages returns a copy of the messages accumulated this cycle.
func (e *Engine) BufferMessages() []ChatMessage { return e.buf.snapshot() }

// State materializes a snapshot of the engine for monitoring. When no cycle
// has run yet, the countdown reports the configured interval and the cycle
// times are nil.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := State{
		Status:      e.status,
		BufferCount: e.buf.len(),
		AIResponse:  e.aiResponse,
		Error:       e.lastErr,
	}
	if e.selected != nil {
		m := *e.selected
		st.SelectedMessage = &m
	}
	if e.lastCycle.IsZero() {
		st.SecondsUntilNextCycle = e.intervalSec
		return st
	}
	last := e.lastCycle
	next := last.Add(time.Duration(e.intervalSec) * time.Second)
	st.LastCycleTime = &last
	st.NextCycleTime = &next
	if remain := time.Until(next); remain > 0 {
		st.SecondsUntilNextCycle = int(remain / time.Second)
	}
	return st
}

// notifyStatus pushes a fresh snapshot to the registered observer, outside
// the engine lock so the observer may call back into the engine.
func (e *Engine) notifyStatus() {
	e.mu.Lock()
	fn := e.onStatus
	e.mu.Unlock()
	if fn != nil {
		fn(e.State())
	}
}

func (e *Engine) setStatus(s Status) {
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
	e.logs.append(LogStatus, "state: "+string(s), nil)
	e.notifyStatus()
}

// processCycle runs one drain/select/dispatch sequence. Errors from
// selection, context assembly, or the callback are logged and the buffer is
// cleared regardless; a single bad cycle never halts subsequent ones.
func (e *Engine) processCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if e.guard && !e.busy.CompareAndSwap(false, true) {
		e.logs.append(LogInfo, "previous cycle still in flight; skipping tick", nil)
		return
	}
	if e.guard {
		defer e.busy.Store(false)
	}

	e.mu.Lock()
	e.lastCycle = time.Now()
	paused := e.paused
	e.mu.Unlock()

	if paused {
		// Pausing halts processing, not ingestion: leave the buffer alone.
		e.setStatus(StatusPaused)
		return
	}
	if e.buf.len() == 0 {
		e.setStatus(StatusCollecting)
		return
	}

	telemetry.IncCycle()
	rows, err := e.store.GetSettings(ctx)
	var st *Settings
	if err != nil {
		slog.Warn("settings fetch failed", slog.Any("err", err), slog.String("component", "dachistream"))
	} else if len(rows) > 0 {
		st = &rows[0]
	}
	if st == nil || !st.DachipoolEnabled {
		e.setStatus(StatusDisabled)
		e.logs.append(LogStatus, "dachipool disabled; discarding buffered messages", map[string]any{"discarded": e.buf.len()})
		e.buf.clear()
		telemetry.SetBufferDepth(0)
		e.notifyStatus()
		return
	}

	cycleErr := e.runCycleWork(ctx, *st)

	e.mu.Lock()
	if cycleErr != nil {
		e.lastErr = cycleErr.Error()
	} else {
		e.lastErr = ""
	}
	e.mu.Unlock()
	if cycleErr != nil {
		telemetry.IncCycleError()
		slog.Error("cycle failed", slog.Any("err", cycleErr), slog.String("component", "dachistream"))
		e.logs.append(LogError, cycleErr.Error(), nil)
	}

	e.buf.clear()
	telemetry.SetBufferDepth(0)
	e.setStatus(StatusCollecting)
}

// runCycleWork performs selection, context assembly, and callback dispatch
// for one cycle. Panics from the externally-supplied callback degrade to a
// logged cycle error.
func (e *Engine) runCycleWork(ctx context.Context, st Settings) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()

	e.setStatus(StatusProcessing)
	e.setStatus(StatusSelecting)

	view := e.buf.view()
	var insightTotals map[string]int
	if st.SelectionStrategy == StrategyNewChatter {
		insights, lerr := e.store.GetAllUserInsights(ctx)
		if lerr != nil {
			return fmt.Errorf("fetch user insights: %w", lerr)
		}
		insightTotals = make(map[string]int, len(insights))
		for _, in := range insights {
			insightTotals[in.UserID] = in.TotalMessages
		}
	}

	msg := selectMessage(view, st.SelectionStrategy, insightTotals)
	if msg == nil {
		e.logs.append(LogInfo, "no message selected this cycle", nil)
		return nil
	}
	e.mu.Lock()
	e.selected = msg
	e.mu.Unlock()
	telemetry.IncSelection(st.SelectionStrategy)
	e.logs.append(LogSelection, fmt.Sprintf("selected %s (%s): %s", msg.Username, st.SelectionStrategy, msg.Message), map[string]any{
		"username": msg.Username,
		"strategy": st.SelectionStrategy,
	})

	e.setStatus(StatusBuildingContext)
	promptContext := buildContext(ctx, e.store, *msg, st)
	e.logs.append(LogInfo, fmt.Sprintf("context assembled (%d chars)", len(promptContext)), nil)

	e.setStatus(StatusWaitingForAI)
	e.mu.Lock()
	cb := e.onSelected
	e.mu.Unlock()
	if cb != nil {
		start := time.Now()
		err := cb(ctx, *msg, promptContext)
		telemetry.ObserveCallbackDuration(time.Since(start))
		if err != nil {
			return fmt.Errorf("message callback: %w", err)
		}
	}
	return nil
}
