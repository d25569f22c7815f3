package match

// CapForTurn is the most crit or tac op points a side may hold on a turn:
// 0, 2, 4, then 6 from turn 4 on. Turn 0 of the pre-game variant is 0 too.
func CapForTurn(turn int) int {
	c := (turn - 1) * 2
	if c < 0 {
		return 0
	}
	if c > MaxObjectivePoints {
		return MaxObjectivePoints
	}
	return c
}

// Turn returns the current turn.
func (m *Match) Turn() int { return m.turn }

// Cap returns the objective point cap for the current turn.
func (m *Match) Cap() int { return CapForTurn(m.turn) }

// AdvanceTurn moves to the next turn. There is no upper bound; moving past
// FinalTurn concludes the match and reveals the secrets.
//
// Stored crit/tac values are not touched.
func (m *Match) AdvanceTurn() int {
	m.turn++
	if m.turn > FinalTurn {
		m.revealed = true
	}
	return m.turn
}

// RetreatTurn moves back one turn, stopping at the first turn. A reveal that
// already happened stays in effect.
func (m *Match) RetreatTurn() int {
	if m.turn > m.opts.FirstTurn {
		m.turn--
	}
	return m.turn
}
