package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

const (
	defaultPerPage = 50
	maxEventPage   = 500
)

// SQLiteDB implements the DB interface using SQLite
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens (or creates) the database at path. Call Migrate before use.
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite is not concurrent for writes

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Migrate creates tables and indexes. It is safe to run repeatedly.
func (s *SQLiteDB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS matches (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL DEFAULT '',
			turn INTEGER NOT NULL,
			revealed INTEGER NOT NULL DEFAULT 0,
			document TEXT NOT NULL,
			journal_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_updated_at ON matches(updated_at DESC)`,

		`CREATE TABLE IF NOT EXISTS match_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			match_id TEXT NOT NULL,
			action TEXT NOT NULL,
			side TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_match_events_match ON match_events(match_id, id)`,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return tx.Commit()
}

// SaveMatch inserts a new saved match, assigning an id when empty.
func (s *SQLiteDB) SaveMatch(ctx context.Context, m *SavedMatch) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `INSERT INTO matches (
		id, label, turn, revealed, document, journal_id, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID.String(), m.Label, m.Turn, boolToInt(m.Revealed), string(m.Document), journalKey(m.JournalID), m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save match: %w", err)
	}
	return nil
}

// UpdateMatch overwrites an existing saved match.
func (s *SQLiteDB) UpdateMatch(ctx context.Context, m *SavedMatch) error {
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `UPDATE matches SET
		label = ?, turn = ?, revealed = ?, document = ?, updated_at = ?
		WHERE id = ?`,
		m.Label, m.Turn, boolToInt(m.Revealed), string(m.Document), m.UpdatedAt, m.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update match: %w", err)
	}
	return requireAffected(res, m.ID)
}

// GetMatch retrieves a saved match including its document.
func (s *SQLiteDB) GetMatch(ctx context.Context, id uuid.UUID) (*SavedMatch, error) {
	var (
		m         SavedMatch
		idStr     string
		revealed  int
		doc       string
		journalID string
	)
	err := s.db.QueryRowContext(ctx, `SELECT
		id, label, turn, revealed, document, journal_id, created_at, updated_at
		FROM matches WHERE id = ?`, id.String(),
	).Scan(&idStr, &m.Label, &m.Turn, &revealed, &doc, &journalID, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	m.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse match id: %w", err)
	}
	if m.JournalID, err = parseJournalKey(journalID); err != nil {
		return nil, err
	}
	m.Revealed = revealed == 1
	m.Document = []byte(doc)
	return &m, nil
}

// ListMatches returns saved matches, most recently updated first. Documents
// are omitted; fetch one with GetMatch.
func (s *SQLiteDB) ListMatches(ctx context.Context, query MatchesQuery) (*MatchesList, error) {
	var totalCount int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches`).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	if query.PerPage <= 0 {
		query.PerPage = defaultPerPage
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	totalPages := (totalCount + query.PerPage - 1) / query.PerPage
	offset := (query.Page - 1) * query.PerPage

	rows, err := s.db.QueryContext(ctx, `SELECT
		id, label, turn, revealed, journal_id, created_at, updated_at
		FROM matches
		ORDER BY updated_at DESC, id
		LIMIT ? OFFSET ?`, query.PerPage, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	matches := []SavedMatch{}
	for rows.Next() {
		var (
			m         SavedMatch
			idStr     string
			revealed  int
			journalID string
		)
		if err := rows.Scan(&idStr, &m.Label, &m.Turn, &revealed, &journalID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		if m.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("failed to parse match id: %w", err)
		}
		if m.JournalID, err = parseJournalKey(journalID); err != nil {
			return nil, err
		}
		m.Revealed = revealed == 1
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}

	return &MatchesList{
		Matches:    matches,
		TotalCount: totalCount,
		Page:       query.Page,
		PerPage:    query.PerPage,
		TotalPages: totalPages,
	}, nil
}

// DeleteMatch removes a saved match together with its journal.
func (s *SQLiteDB) DeleteMatch(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var journalID string
	err = tx.QueryRowContext(ctx, `SELECT journal_id FROM matches WHERE id = ?`, id.String()).Scan(&journalID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to delete match: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM matches WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete match: %w", err)
	}
	if journalID != "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM match_events WHERE match_id = ?`, journalID); err != nil {
			return fmt.Errorf("failed to delete journal: %w", err)
		}
	}
	return tx.Commit()
}

// DeleteEvents drops a journal and reports how many entries it held.
func (s *SQLiteDB) DeleteEvents(ctx context.Context, matchID uuid.UUID) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM match_events WHERE match_id = ?`, matchID.String())
	if err != nil {
		return 0, fmt.Errorf("failed to delete events: %w", err)
	}
	return res.RowsAffected()
}

// AppendEvent adds one entry to a match's action journal.
func (s *SQLiteDB) AppendEvent(ctx context.Context, ev *MatchEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO match_events (
		match_id, action, side, detail, created_at
	) VALUES (?, ?, ?, ?, ?)`,
		ev.MatchID.String(), ev.Action, ev.Side, ev.Detail, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	ev.ID, _ = res.LastInsertId()
	return nil
}

// ListEvents returns a match's journal in the order it was written.
func (s *SQLiteDB) ListEvents(ctx context.Context, matchID uuid.UUID, limit, offset int) ([]MatchEvent, error) {
	if limit <= 0 || limit > maxEventPage {
		limit = maxEventPage
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, match_id, action, side, detail, created_at
		FROM match_events WHERE match_id = ?
		ORDER BY id ASC
		LIMIT ? OFFSET ?`, matchID.String(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return scanEvents(rows)
}

// TailEvents returns journal entries written after sinceID.
func (s *SQLiteDB) TailEvents(ctx context.Context, matchID uuid.UUID, sinceID int64, limit int) ([]MatchEvent, error) {
	if limit <= 0 || limit > maxEventPage {
		limit = maxEventPage
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, match_id, action, side, detail, created_at
		FROM match_events WHERE match_id = ? AND id > ?
		ORDER BY id ASC
		LIMIT ?`, matchID.String(), sinceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to tail events: %w", err)
	}
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]MatchEvent, error) {
	defer rows.Close()

	events := []MatchEvent{}
	for rows.Next() {
		var (
			ev    MatchEvent
			idStr string
			err   error
		)
		if err = rows.Scan(&ev.ID, &idStr, &ev.Action, &ev.Side, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if ev.MatchID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("failed to parse match id: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func requireAffected(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func journalKey(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

func parseJournalKey(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse journal id: %w", err)
	}
	return id, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
