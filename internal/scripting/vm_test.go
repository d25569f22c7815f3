package scripting

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestRowProportional(t *testing.T) {
	vm := NewFormulaVM(time.Second)

	row, err := vm.Row("kills / size * 4", 8)
	if err != nil {
		t.Fatalf("Row failed: %v", err)
	}
	// 0.5, 1.5, 2.5 and 3.5 round half to even.
	expected := map[int]int{0: 0, 1: 0, 2: 1, 3: 2, 4: 2, 5: 2, 6: 3, 7: 4, 8: 4}
	if !reflect.DeepEqual(row, expected) {
		t.Errorf("expected %v, got %v", expected, row)
	}
}

func TestRowUsesMath(t *testing.T) {
	vm := NewFormulaVM(time.Second)

	row, err := vm.Row("Math.min(4, Math.floor(kills / 2))", 10)
	if err != nil {
		t.Fatalf("Row failed: %v", err)
	}
	if row[3] != 1 || row[10] != 4 {
		t.Errorf("expected 1 and 4, got %d and %d", row[3], row[10])
	}
	if len(row) != 11 {
		t.Errorf("expected 11 entries, got %d", len(row))
	}
}

func TestRowClampsNegative(t *testing.T) {
	vm := NewFormulaVM(time.Second)

	row, err := vm.Row("kills - 2", 4)
	if err != nil {
		t.Fatalf("Row failed: %v", err)
	}
	if row[0] != 0 || row[1] != 0 || row[4] != 2 {
		t.Errorf("expected negatives clamped to 0, got %v", row)
	}
}

func TestRowErrors(t *testing.T) {
	vm := NewFormulaVM(time.Second)

	tests := []struct {
		name string
		expr string
		size int
		want error
	}{
		{"syntax", "kills *", 4, ErrFormulaSyntax},
		{"string result", "'four'", 4, ErrFormulaResult},
		{"undefined result", "undefined", 4, ErrFormulaResult},
		{"division by zero", "1 / kills", 4, ErrFormulaResult},
		{"nan", "Math.sqrt(-1)", 4, ErrFormulaResult},
		{"size zero", "kills", 0, ErrFormulaSize},
		{"size too big", "kills", MaxSize + 1, ErrFormulaSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := vm.Row(tt.expr, tt.size); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSandboxBlocksGlobals(t *testing.T) {
	vm := NewFormulaVM(time.Second)

	for _, expr := range []string{"require('fs')", "eval('1')", "Function('return 1')()", "fetch('http://x')"} {
		if _, err := vm.Row(expr, 1); err == nil {
			t.Errorf("expected %q to fail in the sandbox", expr)
		}
	}
}

func TestRowTimeout(t *testing.T) {
	vm := NewFormulaVM(50 * time.Millisecond)

	start := time.Now()
	_, err := vm.Row("(function() { while (true) {} })()", 4)
	if !errors.Is(err, ErrFormulaTimeout) {
		t.Fatalf("expected ErrFormulaTimeout, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("expected timeout to interrupt promptly, took %s", time.Since(start))
	}

	// The VM remains usable afterwards.
	if _, err := vm.Row("kills", 2); err != nil {
		t.Errorf("expected VM to recover after timeout, got %v", err)
	}
}

func TestRowTimeoutCoversWholeRow(t *testing.T) {
	vm := NewFormulaVM(200 * time.Millisecond)

	// Each evaluation spins for 50ms: well inside the budget on its own, but
	// 21 of them are not.
	slow := "(function() { var end = Date.now() + 50; while (Date.now() < end) {} return kills })()"
	start := time.Now()
	_, err := vm.Row(slow, 20)
	if !errors.Is(err, ErrFormulaTimeout) {
		t.Fatalf("expected ErrFormulaTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("expected the row to stop near its budget, took %s", elapsed)
	}
}

func TestConcurrentRowsDoNotWait(t *testing.T) {
	vm := NewFormulaVM(time.Second)

	started := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		close(started)
		vm.Row("(function() { while (true) {} })()", 4)
		close(finished)
	}()
	<-started
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	if _, err := vm.Row("kills", 2); err != nil {
		t.Fatalf("Row failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("expected a second row not to wait for a runaway one, took %s", elapsed)
	}
	<-finished
}

func TestValidate(t *testing.T) {
	if err := Validate("kills * 4 / size"); err != nil {
		t.Errorf("expected valid formula, got %v", err)
	}
	if err := Validate("kills +* 2"); !errors.Is(err, ErrFormulaSyntax) {
		t.Errorf("expected ErrFormulaSyntax, got %v", err)
	}
}
