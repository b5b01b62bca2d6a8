// Package events carries the signals the vault and its strategy adapters emit
// (deposit-completed, withdraw-completed, harvested, rebalanced, emergency-exit, strategy failures)
// to whoever is listening: the in-memory recorder behind the API, the log, and the database journal.
package events

import (
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elys-network/mvault/internal/types"
)

// Sink receives events. Implementations must not call back into the vault.
type Sink interface {
	Emit(event types.Event)
}

// New stamps an event with an ID and timestamp.
func New(eventType types.EventType, strategyID string) types.Event {
	return types.Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		StrategyID: strategyID,
		Amounts:    make(map[string]sdkmath.Int),
		Shares:     sdkmath.ZeroInt(),
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) Emit(types.Event) {}

// Multi fans an event out to several sinks in order.
type Multi []Sink

func (m Multi) Emit(event types.Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(event)
		}
	}
}

// Recorder keeps the most recent events in memory.
type Recorder struct {
	mu     sync.RWMutex
	limit  int
	events []types.Event
}

// NewRecorder keeps at most limit events; limit <= 0 keeps everything.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) Emit(event types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	if r.limit > 0 && len(r.events) > r.limit {
		r.events = r.events[len(r.events)-r.limit:]
	}
}

// Events returns a copy of the recorded events, oldest first.
func (r *Recorder) Events() []types.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Recent returns up to n events, newest first.
func (r *Recorder) Recent(n int) []types.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n <= 0 || n > len(r.events) {
		n = len(r.events)
	}
	out := make([]types.Event, 0, n)
	for i := len(r.events) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, r.events[i])
	}
	return out
}

// OfType returns recorded events of the given type, oldest first.
func (r *Recorder) OfType(eventType types.EventType) []types.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []types.Event
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// LogSink writes each event to a zerolog logger.
type LogSink struct {
	Logger zerolog.Logger
}

func (s LogSink) Emit(event types.Event) {
	entry := s.Logger.Info()
	if event.Type == types.EventStrategyFailed || event.Type == types.EventEmergencyExit {
		entry = s.Logger.Warn()
	}
	amounts := zerolog.Dict()
	for denom, amt := range event.Amounts {
		amounts = amounts.Str(denom, amt.String())
	}
	entry.
		Str("event_id", event.ID).
		Str("event", string(event.Type)).
		Str("strategy", event.StrategyID).
		Str("account", event.Account.String()).
		Dict("amounts", amounts).
		Str("shares", event.Shares.String()).
		Str("message", event.Message).
		Msg("Vault event")
}
