package match

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

const (
	// KillOpsMaxPoints is the top of the proportional ramp.
	KillOpsMaxPoints = 4

	defaultTableMinSize = 4
	defaultTableMaxSize = 12
)

// KillOpsTable maps enemy starting size → kills achieved → points.
// Sizes without a row fall back to the proportional ramp.
type KillOpsTable struct {
	rows map[int]map[int]int
}

// NewKillOpsTable returns an empty table; every lookup uses the fallback.
func NewKillOpsTable() *KillOpsTable {
	return &KillOpsTable{rows: make(map[int]map[int]int)}
}

// DefaultKillOpsTable seeds sizes 4..12 with the proportional ramp. The ramp
// is a placeholder until real values are entered.
func DefaultKillOpsTable() *KillOpsTable {
	t := NewKillOpsTable()
	for size := defaultTableMinSize; size <= defaultTableMaxSize; size++ {
		t.rows[size] = rampRow(size)
	}
	return t
}

func rampRow(size int) map[int]int {
	row := make(map[int]int, size+1)
	for k := 0; k <= size; k++ {
		row[k] = rampPoints(k, size)
	}
	return row
}

// rampPoints computes round(kills/size * 4) with round-half-to-even on the
// exact quotient, so 2.5 → 2 and 1.5 → 2.
func rampPoints(kills, size int) int {
	if size < 1 {
		size = 1
	}
	q := decimal.NewFromInt(int64(kills)).
		Mul(decimal.NewFromInt(KillOpsMaxPoints)).
		Div(decimal.NewFromInt(int64(size)))
	p := int(q.RoundBank(0).IntPart())
	if p < 0 {
		return 0
	}
	return p
}

// Lookup returns the points for the given enemy size and kill count.
func (t *KillOpsTable) Lookup(size, kills int) int {
	row, ok := t.rows[size]
	if !ok || len(row) == 0 {
		return rampPoints(kills, size)
	}

	maxKills := rowMaxKey(row)
	if kills < 0 {
		kills = 0
	}
	if kills > maxKills {
		kills = maxKills
	}
	// Gaps inside a user-supplied row score zero.
	return row[kills]
}

func rowMaxKey(row map[int]int) int {
	maxKey := 0
	for k := range row {
		if k > maxKey {
			maxKey = k
		}
	}
	return maxKey
}

// SetRow replaces the row for size. The row is copied; completeness of the
// 0..size domain is the caller's responsibility.
func (t *KillOpsTable) SetRow(size int, row map[int]int) error {
	if size < 1 {
		return fmt.Errorf("%w: size %d must be at least 1", ErrInvalidRow, size)
	}
	cp := make(map[int]int, len(row))
	for k, p := range row {
		if k < 0 {
			return fmt.Errorf("%w: kills %d is negative", ErrInvalidRow, k)
		}
		if p < 0 {
			return fmt.Errorf("%w: points %d for %d kills is negative", ErrInvalidRow, p, k)
		}
		cp[k] = p
	}
	t.rows[size] = cp
	return nil
}

// SetCell updates a single cell. A size without a row is first seeded with
// the ramp so the row keeps its full 0..size domain.
func (t *KillOpsTable) SetCell(size, kills, points int) error {
	if size < 1 {
		return fmt.Errorf("%w: size %d must be at least 1", ErrInvalidRow, size)
	}
	if kills < 0 || kills > size {
		return fmt.Errorf("%w: kills %d outside 0..%d", ErrInvalidRow, kills, size)
	}
	if points < 0 {
		return fmt.Errorf("%w: points %d is negative", ErrInvalidRow, points)
	}
	row, ok := t.rows[size]
	if !ok {
		row = rampRow(size)
		t.rows[size] = row
	}
	row[kills] = points
	return nil
}

// DeleteRow removes a row; lookups for that size fall back to the ramp.
func (t *KillOpsTable) DeleteRow(size int) bool {
	if _, ok := t.rows[size]; !ok {
		return false
	}
	delete(t.rows, size)
	return true
}

// Row returns a copy of the row for size.
func (t *KillOpsTable) Row(size int) (map[int]int, bool) {
	row, ok := t.rows[size]
	if !ok {
		return nil, false
	}
	cp := make(map[int]int, len(row))
	for k, p := range row {
		cp[k] = p
	}
	return cp, true
}

// Sizes returns the configured enemy sizes in ascending order.
func (t *KillOpsTable) Sizes() []int {
	sizes := make([]int, 0, len(t.rows))
	for s := range t.rows {
		sizes = append(sizes, s)
	}
	sort.Ints(sizes)
	return sizes
}

// Clone returns a deep copy.
func (t *KillOpsTable) Clone() *KillOpsTable {
	c := NewKillOpsTable()
	for size := range t.rows {
		c.rows[size], _ = t.Row(size)
	}
	return c
}
