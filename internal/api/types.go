package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/MJE43/killteam-scorer/internal/match"
	"github.com/MJE43/killteam-scorer/internal/store"
)

// EngineError represents a structured error response with context
type EngineError struct {
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e EngineError) Error() string {
	return e.Message
}

// Error types with proper categorization
const (
	// Input validation errors
	ErrTypeValidation = "validation_error"
	ErrTypeImport     = "import_error"
	ErrTypeFormula    = "formula_error"

	// Match state errors
	ErrTypeMatchNotFound = "match_not_found"
	ErrTypeSecretLocked  = "secret_locked"

	// System errors
	ErrTypeTimeout            = "timeout"
	ErrTypeStorage            = "storage_error"
	ErrTypeInternal           = "internal_error"
	ErrTypeServiceUnavailable = "service_unavailable"
)

// ErrorCategory represents error categories for monitoring
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryMatch      ErrorCategory = "match"
	CategorySystem     ErrorCategory = "system"
	CategoryTimeout    ErrorCategory = "timeout"
)

// GetErrorCategory returns the category for an error type
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeValidation, ErrTypeImport, ErrTypeFormula:
		return CategoryValidation
	case ErrTypeMatchNotFound, ErrTypeSecretLocked:
		return CategoryMatch
	case ErrTypeTimeout:
		return CategoryTimeout
	default:
		return CategorySystem
	}
}

// CreateMatchRequest starts a new live match. Omitted rule options fall back
// to the server configuration.
type CreateMatchRequest struct {
	NameA      string `json:"name_a"`
	NameB      string `json:"name_b"`
	StartingCP *int   `json:"starting_cp,omitempty"`
	FirstTurn  *int   `json:"first_turn,omitempty"`
}

// SessionResponse identifies a live match and carries its full view.
type SessionResponse struct {
	ID      uuid.UUID       `json:"id"`
	Options match.Options   `json:"options"`
	View    match.MatchView `json:"view"`
}

// SessionSummary is one row of the live match listing.
type SessionSummary struct {
	ID        uuid.UUID `json:"id"`
	NameA     string    `json:"name_a"`
	NameB     string    `json:"name_b"`
	Turn      int       `json:"turn"`
	Concluded bool      `json:"concluded"`
	CreatedAt time.Time `json:"created_at"`
	TouchedAt time.Time `json:"touched_at"`
}

// SessionsResponse lists live matches.
type SessionsResponse struct {
	Matches []SessionSummary `json:"matches"`
	Limit   int              `json:"limit"`
}

// NameRequest renames a side.
type NameRequest struct {
	Name string `json:"name"`
}

// FieldRequest sets one numeric player field.
type FieldRequest struct {
	Field string `json:"field"`
	Value int    `json:"value"`
}

// CPRequest nudges command points.
type CPRequest struct {
	Delta int `json:"delta"`
}

// AdjustResponse reports the accepted value and the player afterwards.
type AdjustResponse struct {
	Result match.AdjustResult `json:"result"`
	Player match.PlayerView   `json:"player"`
}

// CardRequest marks an initiative card used or unused.
type CardRequest struct {
	Used bool `json:"used"`
}

// InitiativeRequest names the side that won the initiative roll.
type InitiativeRequest struct {
	Winner string `json:"winner"`
}

// InitiativeResponse carries the card issued to the loser.
type InitiativeResponse struct {
	Card match.InitiativeCard `json:"card"`
	View match.MatchView      `json:"view"`
}

// TurnResponse is returned by turn navigation.
type TurnResponse struct {
	Turn      int  `json:"turn"`
	Cap       int  `json:"cap"`
	Concluded bool `json:"concluded"`
}

// SecretRequest commits a secret choice.
type SecretRequest struct {
	Value string `json:"value"`
}

// FinalizeResponse carries the bonus outcome and the concluded view.
type FinalizeResponse struct {
	Result match.FinalizeResult `json:"result"`
	View   match.MatchView      `json:"view"`
}

// KillOpsResponse is the current kill ops table.
type KillOpsResponse struct {
	Sizes []int               `json:"sizes"`
	Rows  map[int]map[int]int `json:"rows"`
}

// KillOpsRowRequest replaces one row.
type KillOpsRowRequest struct {
	Row map[int]int `json:"row"`
}

// KillOpsCellRequest sets one cell.
type KillOpsCellRequest struct {
	Points int `json:"points"`
}

// FormulaRequest generates a row from an expression over size and kills.
type FormulaRequest struct {
	Expr string `json:"expr"`
}

// SaveRequest persists a live match.
type SaveRequest struct {
	Label string `json:"label"`
}

// EventsResponse is a page of the action journal.
type EventsResponse struct {
	Events []store.MatchEvent `json:"events"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// TailResponse carries journal entries after a cursor
type TailResponse struct {
	Events []store.MatchEvent `json:"events"`
	LastID int64              `json:"last_id"`
}

// CatalogResponse lists every closed option set for form widgets.
type CatalogResponse struct {
	Missions          []match.MissionGroup    `json:"missions"`
	PrimaryCategories []match.PrimaryCategory `json:"primary_categories"`
	CardKinds         []match.CardKind        `json:"card_kinds"`
	Fields            []match.Field           `json:"fields"`
	Commitments       []match.Commitment      `json:"commitments"`
	MaxObjective      int                     `json:"max_objective_points"`
	FinalTurn         int                     `json:"final_turn"`
}
