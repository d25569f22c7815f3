// Package scripting evaluates user-supplied kill ops formulas in a sandboxed
// JavaScript runtime.
package scripting

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dop251/goja"
	"github.com/shopspring/decimal"
)

var (
	ErrFormulaSyntax  = errors.New("formula syntax error")
	ErrFormulaResult  = errors.New("formula result is not a finite number")
	ErrFormulaTimeout = errors.New("formula timed out")
	ErrFormulaSize    = errors.New("formula size out of range")
)

const (
	// DefaultTimeout bounds the evaluation of one row.
	DefaultTimeout = 1 * time.Second
	// MaxSize is the largest enemy size a formula row may be generated for.
	MaxSize = 100
)

// FormulaVM turns an expression over size and kills into a kill ops row.
// Each Row call runs in its own runtime, so concurrent calls never wait on
// each other and globals never leak between formulas.
type FormulaVM struct {
	timeout time.Duration
}

// NewFormulaVM creates a VM with the given per-evaluation budget.
func NewFormulaVM(timeout time.Duration) *FormulaVM {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &FormulaVM{timeout: timeout}
}

// newSandbox creates a goja runtime with network, module and dynamic-code
// globals removed. Math is already available in goja by default.
func newSandbox() *goja.Runtime {
	rt := goja.New()
	rt.Set("require", goja.Undefined())
	rt.Set("fetch", goja.Undefined())
	rt.Set("XMLHttpRequest", goja.Undefined())
	rt.Set("eval", goja.Undefined())
	rt.Set("Function", goja.Undefined())
	return rt
}

// Row evaluates expr for kills = 0..size and returns the resulting row.
// Results are rounded half-to-even and negative values become 0. The
// timeout bounds the whole row, not each evaluation.
func (vm *FormulaVM) Row(expr string, size int) (map[int]int, error) {
	if size < 1 || size > MaxSize {
		return nil, fmt.Errorf("%w: %d not in 1..%d", ErrFormulaSize, size, MaxSize)
	}
	prog, err := compile(expr)
	if err != nil {
		return nil, err
	}

	rt := newSandbox()
	rt.Set("size", size)

	row := make(map[int]int, size+1)
	err = vm.runWithTimeout(rt, func() error {
		for kills := 0; kills <= size; kills++ {
			rt.Set("kills", kills)
			out, err := rt.RunProgram(prog)
			if err != nil {
				return fmt.Errorf("kills=%d: %w", kills, err)
			}
			points, err := toPoints(out)
			if err != nil {
				return fmt.Errorf("kills=%d: %w", kills, err)
			}
			row[kills] = points
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Validate compiles expr without running it.
func Validate(expr string) error {
	_, err := compile(expr)
	return err
}

func compile(expr string) (*goja.Program, error) {
	prog, err := goja.Compile("killops", expr, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormulaSyntax, err)
	}
	return prog, nil
}

func toPoints(v goja.Value) (int, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0, fmt.Errorf("%w: got %v", ErrFormulaResult, v)
	}
	var f float64
	switch n := v.Export().(type) {
	case int64:
		f = float64(n)
	case float64:
		f = n
	default:
		return 0, fmt.Errorf("%w: got %T", ErrFormulaResult, n)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: got %v", ErrFormulaResult, f)
	}
	p := decimal.NewFromFloat(f).RoundBank(0).IntPart()
	if p < 0 {
		return 0, nil
	}
	return int(p), nil
}

func (vm *FormulaVM) runWithTimeout(rt *goja.Runtime, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("evaluate: %w", err)
		}
		return nil
	case <-time.After(vm.timeout):
		// Interrupt a runaway evaluation and wait for it to unwind so no
		// goroutine outlives the call.
		rt.Interrupt("formula timeout")
		<-done
		return fmt.Errorf("%w after %s", ErrFormulaTimeout, vm.timeout)
	}
}
