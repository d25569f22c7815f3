package match

// ScoreBreakdown is a side's total with its parts.
type ScoreBreakdown struct {
	Crit         int `json:"crit"`
	Tac          int `json:"tac"`
	KillOps      int `json:"kill_ops"`
	FinalBonus   int `json:"final_bonus"`
	PrimaryBonus int `json:"primary_bonus"`
	Total        int `json:"total"`
}

func (m *Match) killOpsFor(p *playerState) int {
	return m.table.Lookup(p.enemyInitial, p.scoringKills())
}

// primaryBonusFor is half the wagered category, rounded up, once the match
// is concluded.
func (m *Match) primaryBonusFor(p *playerState) int {
	if !m.Concluded() {
		return 0
	}
	switch m.primary {
	case PrimaryCritOps:
		return halfRoundedUp(p.crit)
	case PrimaryTacOps:
		return halfRoundedUp(p.tac)
	case PrimaryKillOps:
		return halfRoundedUp(m.killOpsFor(p))
	}
	return 0
}

func halfRoundedUp(v int) int {
	if v <= 0 {
		return 0
	}
	return (v + 1) / 2
}

func (m *Match) scoreFor(p *playerState) ScoreBreakdown {
	s := ScoreBreakdown{
		Crit:         p.crit,
		Tac:          p.tac,
		KillOps:      m.killOpsFor(p),
		FinalBonus:   p.finalBonus,
		PrimaryBonus: m.primaryBonusFor(p),
	}
	s.Total = s.Crit + s.Tac + s.KillOps + s.FinalBonus + s.PrimaryBonus
	return s
}

// KillOpsPoints looks up a side's kill ops points from the current table.
func (m *Match) KillOpsPoints(side Side) (int, error) {
	p, err := m.player(side)
	if err != nil {
		return 0, err
	}
	return m.killOpsFor(p), nil
}

// Score returns a side's score breakdown.
func (m *Match) Score(side Side) (ScoreBreakdown, error) {
	p, err := m.player(side)
	if err != nil {
		return ScoreBreakdown{}, err
	}
	return m.scoreFor(p), nil
}

// TotalScore returns crit + tac + kill ops + final bonus + primary bonus.
func (m *Match) TotalScore(side Side) (int, error) {
	s, err := m.Score(side)
	if err != nil {
		return 0, err
	}
	return s.Total, nil
}

// FinalizeResult reports the kill ops comparison made by Finalize.
type FinalizeResult struct {
	KillOps map[Side]int `json:"kill_ops"`
	Bonus   map[Side]int `json:"final_bonus"`
	// Leader is the side awarded the bonus, empty on a tie.
	Leader Side `json:"leader,omitempty"`
}

// Finalize ends the match: the side with strictly more kill ops points gets
// the final bonus, a tie gives none, and both secrets are revealed. Running
// it again recomputes from current state.
func (m *Match) Finalize() FinalizeResult {
	a, b := m.players[0], m.players[1]
	koA, koB := m.killOpsFor(a), m.killOpsFor(b)

	bonusA, bonusB := 0, 0
	var leader Side
	switch {
	case koA > koB:
		bonusA, leader = 1, SideA
	case koB > koA:
		bonusB, leader = 1, SideB
	}

	a.finalBonus, b.finalBonus = bonusA, bonusB
	m.revealed = true

	return FinalizeResult{
		KillOps: map[Side]int{SideA: koA, SideB: koB},
		Bonus:   map[Side]int{SideA: bonusA, SideB: bonusB},
		Leader:  leader,
	}
}
