package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "scorer.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
}

func TestSaveAndGetMatch(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	m := &SavedMatch{
		Label:    "Hearthkyn vs Legionaries",
		Turn:     3,
		Document: []byte(`{"turn":3}`),
	}
	if err := db.SaveMatch(ctx, m); err != nil {
		t.Fatalf("SaveMatch failed: %v", err)
	}
	if m.ID == uuid.Nil {
		t.Fatal("expected an id to be assigned")
	}

	got, err := db.GetMatch(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMatch failed: %v", err)
	}
	if got.Label != m.Label || got.Turn != 3 || got.Revealed {
		t.Errorf("unexpected match: %+v", got)
	}
	if string(got.Document) != `{"turn":3}` {
		t.Errorf("expected document round trip, got %s", got.Document)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestUpdateMatch(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	m := &SavedMatch{Label: "game", Turn: 1, Document: []byte(`{}`)}
	if err := db.SaveMatch(ctx, m); err != nil {
		t.Fatalf("SaveMatch failed: %v", err)
	}

	m.Turn = 5
	m.Revealed = true
	m.Document = []byte(`{"turn":5}`)
	if err := db.UpdateMatch(ctx, m); err != nil {
		t.Fatalf("UpdateMatch failed: %v", err)
	}

	got, _ := db.GetMatch(ctx, m.ID)
	if got.Turn != 5 || !got.Revealed || string(got.Document) != `{"turn":5}` {
		t.Errorf("expected updated match, got %+v", got)
	}

	missing := &SavedMatch{ID: uuid.New(), Document: []byte(`{}`)}
	if err := db.UpdateMatch(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListMatchesPagination(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	for i := 0; i < 5; i++ {
		if err := db.SaveMatch(ctx, &SavedMatch{Turn: i + 1, Document: []byte(`{}`)}); err != nil {
			t.Fatalf("SaveMatch failed: %v", err)
		}
	}

	result, err := db.ListMatches(ctx, MatchesQuery{Page: 1, PerPage: 2})
	if err != nil {
		t.Fatalf("ListMatches failed: %v", err)
	}
	if result.TotalCount != 5 {
		t.Errorf("expected 5 total matches, got %d", result.TotalCount)
	}
	if result.TotalPages != 3 {
		t.Errorf("expected 3 pages, got %d", result.TotalPages)
	}
	if len(result.Matches) != 2 {
		t.Errorf("expected 2 matches on page 1, got %d", len(result.Matches))
	}
	for _, m := range result.Matches {
		if m.Document != nil {
			t.Error("expected listing to omit documents")
		}
	}

	last, _ := db.ListMatches(ctx, MatchesQuery{Page: 3, PerPage: 2})
	if len(last.Matches) != 1 {
		t.Errorf("expected 1 match on last page, got %d", len(last.Matches))
	}

	defaults, _ := db.ListMatches(ctx, MatchesQuery{})
	if defaults.Page != 1 || defaults.PerPage != defaultPerPage {
		t.Errorf("expected default paging, got page=%d perPage=%d", defaults.Page, defaults.PerPage)
	}
}

func TestDeleteMatch(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	m := &SavedMatch{Document: []byte(`{}`)}
	db.SaveMatch(ctx, m)

	if err := db.DeleteMatch(ctx, m.ID); err != nil {
		t.Fatalf("DeleteMatch failed: %v", err)
	}
	if _, err := db.GetMatch(ctx, m.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := db.DeleteMatch(ctx, m.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestDeleteMatchDropsJournal(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	journal := uuid.New()
	other := uuid.New()
	for _, id := range []uuid.UUID{journal, journal, other} {
		if err := db.AppendEvent(ctx, &MatchEvent{MatchID: id, Action: "adjust_field"}); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}

	m := &SavedMatch{Document: []byte(`{}`), JournalID: journal}
	if err := db.SaveMatch(ctx, m); err != nil {
		t.Fatalf("SaveMatch failed: %v", err)
	}
	got, err := db.GetMatch(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMatch failed: %v", err)
	}
	if got.JournalID != journal {
		t.Errorf("expected journal id %s, got %s", journal, got.JournalID)
	}

	if err := db.DeleteMatch(ctx, m.ID); err != nil {
		t.Fatalf("DeleteMatch failed: %v", err)
	}
	if events, _ := db.ListEvents(ctx, journal, 0, 0); len(events) != 0 {
		t.Errorf("expected journal removed with the match, got %d events", len(events))
	}
	if events, _ := db.ListEvents(ctx, other, 0, 0); len(events) != 1 {
		t.Errorf("expected unrelated journal kept, got %d events", len(events))
	}
}

func TestDeleteEvents(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	journal := uuid.New()
	db.AppendEvent(ctx, &MatchEvent{MatchID: journal, Action: "create"})
	db.AppendEvent(ctx, &MatchEvent{MatchID: journal, Action: "advance_turn"})

	n, err := db.DeleteEvents(ctx, journal)
	if err != nil {
		t.Fatalf("DeleteEvents failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 events deleted, got %d", n)
	}
	if n, _ := db.DeleteEvents(ctx, journal); n != 0 {
		t.Errorf("expected nothing left to delete, got %d", n)
	}
}

func TestEventsJournal(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	matchID := uuid.New()
	other := uuid.New()
	actions := []string{"initiative", "advance_turn", "finalize"}
	for _, a := range actions {
		if err := db.AppendEvent(ctx, &MatchEvent{MatchID: matchID, Action: a, Side: "A"}); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}
	db.AppendEvent(ctx, &MatchEvent{MatchID: other, Action: "reset"})

	events, err := db.ListEvents(ctx, matchID, 0, 0)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != len(actions) {
		t.Fatalf("expected %d events, got %d", len(actions), len(events))
	}
	for i, ev := range events {
		if ev.Action != actions[i] {
			t.Errorf("event %d: expected %s, got %s", i, actions[i], ev.Action)
		}
		if ev.MatchID != matchID {
			t.Errorf("event %d: expected match id %s, got %s", i, matchID, ev.MatchID)
		}
	}

	page, _ := db.ListEvents(ctx, matchID, 1, 1)
	if len(page) != 1 || page[0].Action != "advance_turn" {
		t.Errorf("expected second event only, got %+v", page)
	}

	none, err := db.ListEvents(ctx, uuid.New(), 10, 0)
	if err != nil || len(none) != 0 {
		t.Errorf("expected empty journal, got %v, %v", none, err)
	}

	tail, err := db.TailEvents(ctx, matchID, events[0].ID, 0)
	if err != nil {
		t.Fatalf("TailEvents failed: %v", err)
	}
	if len(tail) != len(actions)-1 {
		t.Fatalf("expected %d events after the first, got %d", len(actions)-1, len(tail))
	}
	if tail[0].ID != events[1].ID {
		t.Errorf("expected tail to start at id %d, got %d", events[1].ID, tail[0].ID)
	}

	last, _ := db.TailEvents(ctx, matchID, events[len(events)-1].ID, 10)
	if len(last) != 0 {
		t.Errorf("expected nothing after the last event, got %+v", last)
	}
}
