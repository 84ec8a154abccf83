package tracelog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/waveslice/retrig/internal/event"
)

// Record is one trace row, payload decoded.
type Record struct {
	ID      string             `json:"id"`
	Session string             `json:"session"`
	Seq     int64              `json:"seq"`
	Beat    float64            `json:"beat"`
	RuleID  string             `json:"rule_id,omitempty"`
	Event   event.TriggerEvent `json:"event"`
}

// ReadSession returns every trigger recorded for a session in
// deterministic order: seq ascending, then id with binary collation
// so replays compare byte for byte.
//
// Returns an empty slice, not nil, when the session has no rows.
func (s *Store) ReadSession(ctx context.Context, session string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session, seq, beat, rule_id, payload
		FROM triggers
		WHERE session = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query triggers: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var payload string
		if err := rows.Scan(&rec.ID, &rec.Session, &rec.Seq, &rec.Beat, &rec.RuleID, &payload); err != nil {
			return nil, fmt.Errorf("scan trigger: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &rec.Event); err != nil {
			return nil, fmt.Errorf("decode trigger payload: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate triggers: %w", err)
	}
	return records, nil
}

// Sessions lists the distinct session IDs present in the log, most
// recent first. UUIDv7 sessions sort chronologically as text.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT session FROM triggers ORDER BY session DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}
