package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/elys-network/mvault/internal/logger"
	"github.com/elys-network/mvault/internal/types"
)

// Journal persists every emitted event to vault_events. It implements events.Sink; a failed insert
// is logged and never propagated to the emitting operation.
type Journal struct {
	log     zerolog.Logger
	timeout time.Duration
}

func NewJournal() *Journal {
	return &Journal{log: logger.GetForComponent("event_journal"), timeout: 5 * time.Second}
}

func (j *Journal) Emit(event types.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if err := SaveEvent(ctx, event); err != nil {
		j.log.Error().Err(err).Str("event_id", event.ID).Str("type", string(event.Type)).Msg("Failed to journal event")
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullNumeric(i sdkmath.Int) sql.NullString {
	if i.IsNil() {
		return sql.NullString{}
	}
	return sql.NullString{String: i.String(), Valid: true}
}

// SaveEvent inserts one event. Re-inserting the same event ID is a no-op.
func SaveEvent(ctx context.Context, event types.Event) error {
	if DB == nil {
		return ErrNoDatabase
	}
	amounts, err := json.Marshal(event.Amounts)
	if err != nil {
		return fmt.Errorf("failed to marshal amounts: %w", err)
	}

	query := `
		INSERT INTO vault_events (
			event_id, event_type, event_timestamp, strategy_id, account, amounts, shares, message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING;`
	_, err = DB.ExecContext(ctx, query,
		event.ID, string(event.Type), event.Timestamp,
		nullString(event.StrategyID), nullString(event.Account.String()),
		amounts, nullNumeric(event.Shares), nullString(event.Message),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", event.ID, err)
	}
	return nil
}

// GetRecentEvents returns the newest events, optionally filtered by type.
func GetRecentEvents(ctx context.Context, limit int, eventType types.EventType) ([]types.Event, error) {
	if DB == nil {
		return nil, ErrNoDatabase
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `
		SELECT event_id, event_type, event_timestamp, COALESCE(strategy_id, ''), COALESCE(account, ''),
			amounts, shares::TEXT, COALESCE(message, '')
		FROM vault_events
		WHERE ($2 = '' OR event_type = $2)
		ORDER BY event_timestamp DESC
		LIMIT $1`
	rows, err := DB.QueryContext(ctx, query, limit, string(eventType))
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	out := make([]types.Event, 0, limit)
	for rows.Next() {
		var (
			e       types.Event
			kind    string
			account string
			amounts []byte
			shares  sql.NullString
		)
		if err := rows.Scan(&e.ID, &kind, &e.Timestamp, &e.StrategyID, &account, &amounts, &shares, &e.Message); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		e.Type = types.EventType(kind)
		e.Account = types.Address(account)
		if len(amounts) > 0 {
			if err := json.Unmarshal(amounts, &e.Amounts); err != nil {
				return nil, fmt.Errorf("failed to unmarshal amounts of event %s: %w", e.ID, err)
			}
		}
		if shares.Valid {
			if e.Shares, err = parseNumeric("shares", shares.String); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}
