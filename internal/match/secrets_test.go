package match

import (
	"errors"
	"testing"
)

func TestSecretLifecycle(t *testing.T) {
	m := NewMatch(DefaultOptions())

	view, _ := m.Secret(CommitmentTacOp)
	if view.State != SecretUnset || view.Set {
		t.Fatalf("expected unset secret, got %+v", view)
	}

	// Choosing none keeps it unset.
	if err := m.SetSecret(CommitmentTacOp, "none"); err != nil {
		t.Fatalf("SetSecret none failed: %v", err)
	}
	if state, _ := m.SecretState(CommitmentTacOp); state != SecretUnset {
		t.Errorf("expected unset after none, got %s", state)
	}

	if err := m.SetSecret(CommitmentTacOp, "wiretap"); err != nil {
		t.Fatalf("SetSecret failed: %v", err)
	}
	view, _ = m.Secret(CommitmentTacOp)
	if view.State != SecretCommitted || !view.Set {
		t.Errorf("expected committed secret, got %+v", view)
	}
	if view.Value != "" {
		t.Errorf("expected hidden value before reveal, got %q", view.Value)
	}
	if _, err := m.RevealedValue(CommitmentTacOp); !errors.Is(err, ErrNotRevealed) {
		t.Errorf("expected ErrNotRevealed, got %v", err)
	}

	if err := m.SetSecret(CommitmentTacOp, "Flank"); !errors.Is(err, ErrSecretCommitted) {
		t.Errorf("expected ErrSecretCommitted, got %v", err)
	}
	if err := m.SetSecret(CommitmentTacOp, ""); !errors.Is(err, ErrSecretCommitted) {
		t.Errorf("expected committed secret not to be erasable, got %v", err)
	}
	if err := m.SetSecret(CommitmentTacOp, "Wiretap"); err != nil {
		t.Errorf("expected re-submitting the same value to succeed, got %v", err)
	}

	m.Finalize()

	view, _ = m.Secret(CommitmentTacOp)
	if view.State != SecretRevealed || view.Value != string(MissionWiretap) {
		t.Errorf("expected revealed Wiretap, got %+v", view)
	}
	value, err := m.RevealedValue(CommitmentTacOp)
	if err != nil || value != string(MissionWiretap) {
		t.Errorf("expected Wiretap, got %q, %v", value, err)
	}

	if err := m.SetSecret(CommitmentPrimary, "Crit Ops"); !errors.Is(err, ErrSecretsRevealed) {
		t.Errorf("expected ErrSecretsRevealed after finalize, got %v", err)
	}
}

func TestSecretHiddenWhileTurnAtMostFour(t *testing.T) {
	m := NewMatch(DefaultOptions())
	if err := m.SetSecret(CommitmentPrimary, "Tac Ops"); err != nil {
		t.Fatalf("SetSecret failed: %v", err)
	}

	for m.Turn() <= FinalTurn {
		view, _ := m.Secret(CommitmentPrimary)
		if view.Revealed || view.Value != "" {
			t.Fatalf("turn %d: expected hidden primary, got %+v", m.Turn(), view)
		}
		mv := m.View()
		if mv.Secrets[CommitmentPrimary].Value != "" {
			t.Fatalf("turn %d: expected match view to hide primary", m.Turn())
		}
		m.AdvanceTurn()
	}

	view, _ := m.Secret(CommitmentPrimary)
	if !view.Revealed || view.Value != string(PrimaryTacOps) {
		t.Errorf("expected primary revealed after turn 4, got %+v", view)
	}
}

func TestSetSecretValidation(t *testing.T) {
	m := NewMatch(DefaultOptions())

	if err := m.SetSecret(CommitmentTacOp, "Dance Party"); !errors.Is(err, ErrUnknownOption) {
		t.Errorf("expected ErrUnknownOption for mission, got %v", err)
	}
	if err := m.SetSecret(CommitmentPrimary, "Vibes"); !errors.Is(err, ErrUnknownOption) {
		t.Errorf("expected ErrUnknownOption for primary, got %v", err)
	}
	if err := m.SetSecret(Commitment("other"), "x"); !errors.Is(err, ErrUnknownCommitment) {
		t.Errorf("expected ErrUnknownCommitment, got %v", err)
	}
	if state, _ := m.SecretState(CommitmentTacOp); state != SecretUnset {
		t.Errorf("expected rejected values to leave the secret unset, got %s", state)
	}
}

func TestRevealWithNothingChosen(t *testing.T) {
	m := NewMatch(DefaultOptions())
	m.Finalize()

	value, err := m.RevealedValue(CommitmentPrimary)
	if err != nil {
		t.Fatalf("RevealedValue failed: %v", err)
	}
	if value != "" {
		t.Errorf("expected empty value, got %q", value)
	}
	view, _ := m.Secret(CommitmentPrimary)
	if view.Set {
		t.Error("expected Set=false when nothing was chosen")
	}
}

func TestParseCommitment(t *testing.T) {
	for in, want := range map[string]Commitment{"tac_op": CommitmentTacOp, " PRIMARY ": CommitmentPrimary} {
		got, err := ParseCommitment(in)
		if err != nil || got != want {
			t.Errorf("ParseCommitment(%q): expected %s, got %s (%v)", in, want, got, err)
		}
	}
	if _, err := ParseCommitment("mission"); !errors.Is(err, ErrUnknownCommitment) {
		t.Errorf("expected ErrUnknownCommitment, got %v", err)
	}
}
