package match

import (
	"fmt"
	"strings"
)

// Field is a numeric player field that can be edited directly.
type Field string

const (
	FieldCP            Field = "cp"
	FieldCrit          Field = "crit"
	FieldTac           Field = "tac"
	FieldKills         Field = "kills"
	FieldEnemyInitial  Field = "enemy_initial"
	FieldKillOpsPoints Field = "kill_ops_points"
)

// EditableFields lists the fields AdjustField accepts.
func EditableFields() []Field {
	return []Field{FieldCP, FieldCrit, FieldTac, FieldKills, FieldEnemyInitial}
}

// ParseField validates a field name. kill_ops_points parses but cannot be
// set.
func ParseField(s string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FieldCP, FieldCrit, FieldTac, FieldKills, FieldEnemyInitial, FieldKillOpsPoints:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// ClampWarning describes an edit that was stored at a bound instead of the
// requested value. It is not an error.
type ClampWarning struct {
	Field  Field  `json:"field"`
	Limit  int    `json:"limit"`
	Reason string `json:"reason"`
}

func (w ClampWarning) String() string {
	return fmt.Sprintf("%s clamped to %d: %s", w.Field, w.Limit, w.Reason)
}

// AdjustResult is the outcome of a field edit.
type AdjustResult struct {
	Side      Side          `json:"side"`
	Field     Field         `json:"field"`
	Requested int           `json:"requested"`
	Value     int           `json:"value"`
	Accepted  bool          `json:"accepted"`
	ClampedTo *int          `json:"clamped_to,omitempty"`
	Warning   *ClampWarning `json:"warning,omitempty"`
}

// AdjustField stores a new value for a player field, clamping it to the
// legal range. Crit and tac are bounded by the current turn's cap. Values
// outside the range are clamped and reported, never rejected.
func (m *Match) AdjustField(side Side, field Field, value int) (AdjustResult, error) {
	p, err := m.player(side)
	if err != nil {
		return AdjustResult{}, err
	}

	var target *int
	lo, hi := 0, -1 // hi < 0: unbounded
	hiReason := ""
	switch field {
	case FieldCP:
		target = &p.cp
	case FieldCrit, FieldTac:
		if field == FieldCrit {
			target = &p.crit
		} else {
			target = &p.tac
		}
		hi = m.Cap()
		hiReason = fmt.Sprintf("turn %d cap is %d", m.turn, hi)
	case FieldKills:
		target = &p.kills
	case FieldEnemyInitial:
		target = &p.enemyInitial
		lo = 1
	case FieldKillOpsPoints:
		return AdjustResult{}, fmt.Errorf("%w: %s", ErrDerivedField, field)
	default:
		return AdjustResult{}, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	res := AdjustResult{Side: side, Field: field, Requested: value, Accepted: true}
	stored := value
	switch {
	case value < lo:
		stored = lo
		res.Warning = &ClampWarning{Field: field, Limit: lo, Reason: fmt.Sprintf("minimum is %d", lo)}
	case hi >= 0 && value > hi:
		stored = hi
		res.Warning = &ClampWarning{Field: field, Limit: hi, Reason: hiReason}
	}
	if res.Warning != nil {
		clamped := stored
		res.ClampedTo = &clamped
	}

	*target = stored
	res.Value = stored
	return res, nil
}

// AdjustCP adds delta to a side's command points, never going below zero.
func (m *Match) AdjustCP(side Side, delta int) (AdjustResult, error) {
	p, err := m.player(side)
	if err != nil {
		return AdjustResult{}, err
	}
	return m.AdjustField(side, FieldCP, p.cp+delta)
}
