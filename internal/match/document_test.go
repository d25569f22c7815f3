package match

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func playedMatch(t *testing.T) *Match {
	t.Helper()
	m := NewMatch(Options{StartingCP: 3, FirstTurn: 1})
	m.SetName(SideA, "Hearthkyn")
	m.SetName(SideB, "Legionaries")
	m.ApplyInitiative(SideA)
	m.AdvanceTurn()
	m.ApplyInitiative(SideB)
	m.AdvanceTurn()
	m.AdjustField(SideA, FieldCrit, 4)
	m.AdjustField(SideB, FieldTac, 3)
	m.AdjustField(SideA, FieldEnemyInitial, 6)
	m.AdjustField(SideA, FieldKills, 5)
	m.AdjustField(SideB, FieldKills, 2)
	m.SetCardUsed(SideB, 0, true)
	m.SetKillOpsRow(6, map[int]int{0: 0, 1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 6: 4})
	m.SetSecret(CommitmentTacOp, "Implant")
	m.SetSecret(CommitmentPrimary, "Kill Ops")
	return m
}

func TestExportShape(t *testing.T) {
	m := playedMatch(t)
	data, err := m.ExportJSON()
	if err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("exported JSON does not parse: %v", err)
	}
	for _, key := range []string{"turn", "players", "kill_ops_table", "tac_op_choice", "primary_choice"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("expected top-level key %q", key)
		}
	}

	players := raw["players"].(map[string]any)
	a := players["A"].(map[string]any)
	for _, key := range []string{"name", "cp", "crit", "tac", "kills", "enemy_initial", "kill_ops_points", "initiative_cards", "final_bonus"} {
		if _, ok := a[key]; !ok {
			t.Errorf("expected player key %q", key)
		}
	}
	if a["kill_ops_points"].(float64) != 3 {
		t.Errorf("expected exported kill ops 3, got %v", a["kill_ops_points"])
	}

	cards := players["A"].(map[string]any)["initiative_cards"].([]any)
	if len(cards) != 1 || cards[0].(map[string]any)["type"] != "+2" {
		t.Errorf("expected A to hold one +2 card, got %v", cards)
	}

	table := raw["kill_ops_table"].(map[string]any)
	if table["6"].(map[string]any)["5"].(float64) != 3 {
		t.Errorf("expected table 6/5 = 3, got %v", table["6"])
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	m := playedMatch(t)
	m.Finalize()

	data, err := m.ExportJSON()
	if err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}

	restored := NewMatch(Options{StartingCP: 3, FirstTurn: 1})
	if err := restored.ImportJSON(data); err != nil {
		t.Fatalf("ImportJSON failed: %v", err)
	}

	if !reflect.DeepEqual(m.View(), restored.View()) {
		t.Errorf("expected identical views\noriginal: %+v\nrestored: %+v", m.View(), restored.View())
	}
	if !reflect.DeepEqual(m.Export(), restored.Export()) {
		t.Error("expected identical exports after round trip")
	}
}

func TestRoundTripKeepsSecretsHidden(t *testing.T) {
	m := playedMatch(t)

	restored := NewMatch(DefaultOptions())
	if err := restored.Import(m.Export()); err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if restored.Concluded() {
		t.Fatal("expected restored match to still be open")
	}
	view, _ := restored.Secret(CommitmentTacOp)
	if view.State != SecretCommitted || view.Value != "" {
		t.Errorf("expected committed hidden secret, got %+v", view)
	}
	if err := restored.SetSecret(CommitmentTacOp, "Flank"); !errors.Is(err, ErrSecretCommitted) {
		t.Errorf("expected imported secret to be committed, got %v", err)
	}
}

func TestImportPartialDocument(t *testing.T) {
	m := playedMatch(t)
	before := m.Export()

	if err := m.ImportJSON([]byte(`{"turn": 3, "players": {"B": {"name": "Nemesis Claw"}}}`)); err != nil {
		t.Fatalf("ImportJSON failed: %v", err)
	}

	after := m.Export()
	if after.Turn != 3 {
		t.Errorf("expected turn 3, got %d", after.Turn)
	}
	if after.Players[SideB].Name != "Nemesis Claw" {
		t.Errorf("expected renamed B, got %q", after.Players[SideB].Name)
	}
	if after.Players[SideB].Tac != before.Players[SideB].Tac {
		t.Errorf("expected missing player fields to keep their value")
	}
	if !reflect.DeepEqual(after.Players[SideA], before.Players[SideA]) {
		t.Errorf("expected missing player to be untouched")
	}
	if !reflect.DeepEqual(after.KillOpsTable, before.KillOpsTable) {
		t.Errorf("expected missing table to be untouched")
	}
	if *after.TacOpChoice != "Implant" {
		t.Errorf("expected missing tac op choice to be kept")
	}
}

func TestTypedImportKeepsTableWhenNil(t *testing.T) {
	m := NewMatch(DefaultOptions())
	if err := m.SetKillOpsRow(10, map[int]int{0: 0, 5: 3, 10: 4}); err != nil {
		t.Fatalf("SetKillOpsRow failed: %v", err)
	}
	before := m.KillOpsTable().Sizes()

	if err := m.Import(Document{Turn: 2}); err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if m.Turn() != 2 {
		t.Errorf("expected turn 2, got %d", m.Turn())
	}
	after := m.KillOpsTable().Sizes()
	if len(after) != len(before) {
		t.Fatalf("expected %d table sizes kept, got %v", len(before), after)
	}
	if got := m.KillOpsTable().Lookup(10, 5); got != 3 {
		t.Errorf("expected edited cell 10/5 to stay 3, got %d", got)
	}

	// An explicit empty table still replaces it.
	if err := m.Import(Document{Turn: 2, KillOpsTable: map[string]map[string]int{}}); err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if sizes := m.KillOpsTable().Sizes(); len(sizes) != 0 {
		t.Errorf("expected an empty table, got %v", sizes)
	}
}

func TestImportNullClearsSecret(t *testing.T) {
	m := playedMatch(t)
	if err := m.ImportJSON([]byte(`{"primary_choice": null}`)); err != nil {
		t.Fatalf("ImportJSON failed: %v", err)
	}
	if state, _ := m.SecretState(CommitmentPrimary); state != SecretUnset {
		t.Errorf("expected explicit null to clear the choice, got %s", state)
	}
	if state, _ := m.SecretState(CommitmentTacOp); state != SecretCommitted {
		t.Errorf("expected other secret untouched, got %s", state)
	}
}

func TestImportFailureLeavesStateUnchanged(t *testing.T) {
	docs := map[string]string{
		"malformed":        `{"turn": 2,`,
		"wrong type":       `{"turn": "two"}`,
		"bad card":         `{"turn": 4, "players": {"A": {"cp": 9, "initiative_cards": [{"type": "+4"}]}}}`,
		"bad side":         `{"players": {"C": {"name": "x"}}}`,
		"bad table key":    `{"kill_ops_table": {"six": {"0": 0}}}`,
		"bad kills key":    `{"kill_ops_table": {"6": {"-1": 0}}}`,
		"bad mission":      `{"turn": 2, "tac_op_choice": "Nap"}`,
		"bad primary":      `{"turn": 2, "primary_choice": "Luck"}`,
		"zero size":        `{"kill_ops_table": {"0": {"0": 0}}}`,
	}

	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			m := playedMatch(t)
			before := m.Export()

			err := m.ImportJSON([]byte(doc))
			if err == nil {
				t.Fatal("expected import error")
			}
			if !errors.Is(err, ErrImport) {
				t.Errorf("expected ErrImport, got %v", err)
			}
			var ie *ImportError
			if !errors.As(err, &ie) {
				t.Errorf("expected *ImportError, got %T", err)
			}
			if !reflect.DeepEqual(before, m.Export()) {
				t.Error("expected state unchanged after failed import")
			}
		})
	}
}

func TestImportClampsOutOfRangeNumbers(t *testing.T) {
	m := NewMatch(DefaultOptions())
	doc := `{"turn": -2, "players": {"A": {"cp": -4, "crit": 9, "tac": -1, "kills": -3, "enemy_initial": 0, "final_bonus": 5}}, "kill_ops_table": {"4": {"0": 0, "4": -2}}}`
	if err := m.ImportJSON([]byte(doc)); err != nil {
		t.Fatalf("ImportJSON failed: %v", err)
	}

	if m.Turn() != 1 {
		t.Errorf("expected turn clamped to 1, got %d", m.Turn())
	}
	a := m.Export().Players[SideA]
	want := PlayerDocument{Name: "Player A", CP: 0, Crit: 6, Tac: 0, Kills: 0, EnemyInitial: 1, FinalBonus: 1, InitiativeCards: []InitiativeCard{}}
	if !reflect.DeepEqual(a, want) {
		t.Errorf("expected %+v, got %+v", want, a)
	}
	row := m.Export().KillOpsTable["4"]
	if row["4"] != 0 {
		t.Errorf("expected negative table points clamped to 0, got %d", row["4"])
	}
}

func TestReadFromWriteTo(t *testing.T) {
	m := playedMatch(t)
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}

	restored := NewMatch(DefaultOptions())
	if _, err := restored.ReadFrom(&buf); err != nil {
		t.Fatalf("ReadFrom failed: %v", err)
	}
	if !reflect.DeepEqual(m.View(), restored.View()) {
		t.Error("expected identical views after file round trip")
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	m := playedMatch(t)
	m.Finalize()
	m.SetKillOpsCell(4, 1, 4)

	m.Reset()

	if m.Turn() != 1 || m.Concluded() {
		t.Errorf("expected fresh turn 1, got turn %d concluded=%v", m.Turn(), m.Concluded())
	}
	for _, side := range Sides() {
		p, _ := m.Snapshot(side)
		if p.CommandPoints != 3 || p.CritPoints != 0 || p.Kills != 0 || len(p.InitiativeCards) != 0 || p.FinalBonus != 0 {
			t.Errorf("side %s not reset: %+v", side, p)
		}
		if p.Name != "Player "+string(side) {
			t.Errorf("expected default name, got %q", p.Name)
		}
	}
	if got := m.KillOpsTable().Lookup(4, 1); got != 1 {
		t.Errorf("expected freshly seeded table, got %d", got)
	}
	if !reflect.DeepEqual(m.KillOpsTable().Sizes(), DefaultKillOpsTable().Sizes()) {
		t.Error("expected default table sizes after reset")
	}
	for _, c := range Commitments() {
		if state, _ := m.SecretState(c); state != SecretUnset {
			t.Errorf("expected %s unset after reset, got %s", c, state)
		}
	}
}
