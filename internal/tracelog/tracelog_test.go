package tracelog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveslice/retrig/internal/event"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWriteAndReadSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	events := []event.TriggerEvent{
		{Time: 0, SliceIndex: 0, Velocity: 0.95},
		{Time: 0.5, SliceIndex: 1, Velocity: 0.75, Reverse: true, RuleModified: true, TriggeredBy: "rev"},
	}
	for i, ev := range events {
		require.NoError(t, s.WriteTrigger(ctx, "session-a", int64(i), ev.Time, ev))
	}

	records, err := s.ReadSession(ctx, "session-a")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, int64(0), records[0].Seq)
	assert.Equal(t, 0, records[0].Event.SliceIndex)
	assert.Empty(t, records[0].RuleID)

	assert.Equal(t, int64(1), records[1].Seq)
	assert.Equal(t, "rev", records[1].RuleID)
	assert.True(t, records[1].Event.Reverse)
	assert.True(t, records[1].Event.RuleModified)
}

func TestWriteTriggerIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ev := event.TriggerEvent{Time: 1.5, SliceIndex: 2, Velocity: 0.8}
	require.NoError(t, s.WriteTrigger(ctx, "session-a", 7, 1.5, ev))
	require.NoError(t, s.WriteTrigger(ctx, "session-a", 7, 1.5, ev))

	records, err := s.ReadSession(ctx, "session-a")
	require.NoError(t, err)
	assert.Len(t, records, 1, "duplicate write must be a no-op")
}

func TestReadSessionOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Insert out of order; reads come back by seq.
	for _, seq := range []int64{3, 0, 2, 1} {
		ev := event.TriggerEvent{Time: float64(seq) * 0.25, SliceIndex: int(seq), Velocity: 0.7}
		require.NoError(t, s.WriteTrigger(ctx, "s", seq, ev.Time, ev))
	}

	records, err := s.ReadSession(ctx, "s")
	require.NoError(t, err)
	require.Len(t, records, 4)
	for i, rec := range records {
		assert.Equal(t, int64(i), rec.Seq)
	}
}

func TestReadSessionEmpty(t *testing.T) {
	s := openTestStore(t)

	records, err := s.ReadSession(context.Background(), "missing")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestSessionsDistinct(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ev := event.TriggerEvent{SliceIndex: 0, Velocity: 0.5}
	require.NoError(t, s.WriteTrigger(ctx, "a", 0, 0, ev))
	require.NoError(t, s.WriteTrigger(ctx, "a", 1, 0.5, ev))
	require.NoError(t, s.WriteTrigger(ctx, "b", 0, 0, ev))

	sessions, err := s.Sessions(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, sessions)
}

func TestOpenIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.WriteTrigger(context.Background(), "s", 0, 0, event.TriggerEvent{Velocity: 0.5}))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	records, err := s2.ReadSession(context.Background(), "s")
	require.NoError(t, err)
	assert.Len(t, records, 1, "reopen must preserve rows")
}
