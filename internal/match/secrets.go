package match

import (
	"fmt"
	"strings"
)

// Commitment names one of the two secret choices.
type Commitment string

const (
	CommitmentTacOp   Commitment = "tac_op"
	CommitmentPrimary Commitment = "primary"
)

// Commitments lists both commitments.
func Commitments() []Commitment {
	return []Commitment{CommitmentTacOp, CommitmentPrimary}
}

// ParseCommitment validates a commitment name.
func ParseCommitment(s string) (Commitment, error) {
	switch Commitment(strings.ToLower(strings.TrimSpace(s))) {
	case CommitmentTacOp:
		return CommitmentTacOp, nil
	case CommitmentPrimary:
		return CommitmentPrimary, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommitment, s)
}

// SecretState is the lifecycle of a commitment: unset → committed → revealed.
type SecretState string

const (
	SecretUnset     SecretState = "unset"
	SecretCommitted SecretState = "committed"
	SecretRevealed  SecretState = "revealed"
)

// SecretView is the public read path for a commitment. Value stays empty
// until the match is concluded.
type SecretView struct {
	Commitment Commitment  `json:"commitment"`
	State      SecretState `json:"state"`
	Set        bool        `json:"set"`
	Revealed   bool        `json:"revealed"`
	Value      string      `json:"value,omitempty"`
}

// Concluded reports whether the match is over, either through Finalize or
// by advancing past FinalTurn. Every reveal-gated read goes through here.
func (m *Match) Concluded() bool {
	return m.revealed || m.turn > FinalTurn
}

func (m *Match) secretValue(c Commitment) (string, error) {
	switch c {
	case CommitmentTacOp:
		return string(m.tacOp), nil
	case CommitmentPrimary:
		return string(m.primary), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommitment, c)
}

// SecretState returns where a commitment is in its lifecycle.
func (m *Match) SecretState(c Commitment) (SecretState, error) {
	v, err := m.secretValue(c)
	if err != nil {
		return "", err
	}
	switch {
	case m.Concluded():
		return SecretRevealed, nil
	case v != "":
		return SecretCommitted, nil
	default:
		return SecretUnset, nil
	}
}

// Secret returns the view of a commitment without leaking its value before
// the reveal.
func (m *Match) Secret(c Commitment) (SecretView, error) {
	v, err := m.secretValue(c)
	if err != nil {
		return SecretView{}, err
	}
	state, _ := m.SecretState(c)
	view := SecretView{
		Commitment: c,
		State:      state,
		Set:        v != "",
		Revealed:   state == SecretRevealed,
	}
	if view.Revealed {
		view.Value = v
	}
	return view, nil
}

// RevealedValue returns the committed value once the match is concluded.
// An empty string after the reveal means nothing was chosen.
func (m *Match) RevealedValue(c Commitment) (string, error) {
	v, err := m.secretValue(c)
	if err != nil {
		return "", err
	}
	if !m.Concluded() {
		return "", fmt.Errorf("%w: %s", ErrNotRevealed, c)
	}
	return v, nil
}

// SetSecret commits a value. Choosing none leaves an unset commitment unset;
// once a real value is chosen it cannot change, and nothing can be set after
// the reveal. Re-submitting the committed value is a no-op.
func (m *Match) SetSecret(c Commitment, value string) error {
	current, err := m.secretValue(c)
	if err != nil {
		return err
	}
	if m.Concluded() {
		return fmt.Errorf("%w: cannot set %s", ErrSecretsRevealed, c)
	}

	var next string
	switch c {
	case CommitmentTacOp:
		mission, err := ParseMission(value)
		if err != nil {
			return err
		}
		next = string(mission)
	case CommitmentPrimary:
		category, err := ParsePrimaryCategory(value)
		if err != nil {
			return err
		}
		next = string(category)
	}

	if current != "" {
		if next == current {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrSecretCommitted, c)
	}

	switch c {
	case CommitmentTacOp:
		m.tacOp = Mission(next)
	case CommitmentPrimary:
		m.primary = PrimaryCategory(next)
	}
	return nil
}
