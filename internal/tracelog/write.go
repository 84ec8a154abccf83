package tracelog

import (
	"context"
	"fmt"

	"github.com/waveslice/retrig/internal/event"
)

// WriteTrigger records one dispatched trigger.
//
// The row ID is content-addressed over (session, seq, event), so
// writing the same dispatch twice is a no-op: ON CONFLICT(id) DO
// NOTHING keeps the log idempotent across replays and reconnects.
func (s *Store) WriteTrigger(ctx context.Context, session string, seq int64, beat float64, ev event.TriggerEvent) error {
	id, err := event.TriggerID(session, seq, ev)
	if err != nil {
		return fmt.Errorf("write trigger: %w", err)
	}

	payload, err := event.MarshalCanonical(ev)
	if err != nil {
		return fmt.Errorf("write trigger: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO triggers
		(id, session, seq, beat, slice_index, velocity, rule_id, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		id,
		session,
		seq,
		beat,
		ev.SliceIndex,
		ev.Velocity,
		ev.TriggeredBy,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("write trigger: %w", err)
	}
	return nil
}
