package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a saved match does not exist.
var ErrNotFound = errors.New("saved match not found")

// DB represents the database interface
type DB interface {
	Close() error
	Migrate(ctx context.Context) error
	SaveMatch(ctx context.Context, m *SavedMatch) error
	UpdateMatch(ctx context.Context, m *SavedMatch) error
	GetMatch(ctx context.Context, id uuid.UUID) (*SavedMatch, error)
	ListMatches(ctx context.Context, query MatchesQuery) (*MatchesList, error)
	DeleteMatch(ctx context.Context, id uuid.UUID) error
	AppendEvent(ctx context.Context, ev *MatchEvent) error
	ListEvents(ctx context.Context, matchID uuid.UUID, limit, offset int) ([]MatchEvent, error)
	TailEvents(ctx context.Context, matchID uuid.UUID, sinceID int64, limit int) ([]MatchEvent, error)
	DeleteEvents(ctx context.Context, matchID uuid.UUID) (int64, error)
}

// SavedMatch is a persisted match document with a few columns pulled out
// for listing.
type SavedMatch struct {
	ID        uuid.UUID       `json:"id"`
	Label     string          `json:"label"`
	Turn      int             `json:"turn"`
	Revealed  bool            `json:"revealed"`
	Document  json.RawMessage `json:"document,omitempty"`
	// JournalID keys the action journal the match was recorded under.
	JournalID uuid.UUID `json:"journal_id"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// MatchesQuery represents query parameters for listing saved matches
type MatchesQuery struct {
	Page    int `json:"page"`
	PerPage int `json:"perPage"`
}

// MatchesList represents a paginated saved-matches response
type MatchesList struct {
	Matches    []SavedMatch `json:"matches"`
	TotalCount int          `json:"totalCount"`
	Page       int          `json:"page"`
	PerPage    int          `json:"perPage"`
	TotalPages int          `json:"totalPages"`
}

// MatchEvent is one line of a live match's action journal.
type MatchEvent struct {
	ID        int64     `json:"id"`
	MatchID   uuid.UUID `json:"match_id"`
	Action    string    `json:"action"`
	Side      string    `json:"side,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
