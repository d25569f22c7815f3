package match

import (
	"fmt"
	"strings"
)

// Side identifies one of the two players.
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// Sides lists both sides in display order.
func Sides() []Side { return []Side{SideA, SideB} }

// ParseSide accepts "A"/"B" in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideA:
		return SideA, nil
	case SideB:
		return SideB, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSide, s)
}

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

func (s Side) index() (int, bool) {
	switch s {
	case SideA:
		return 0, true
	case SideB:
		return 1, true
	}
	return 0, false
}

type playerState struct {
	name         string
	cp           int
	crit         int
	tac          int
	enemyInitial int
	kills        int
	cards        []InitiativeCard
	finalBonus   int
}

func newPlayerState(side Side, opts Options) *playerState {
	return &playerState{
		name:         "Player " + string(side),
		cp:           opts.StartingCP,
		enemyInitial: opts.EnemyInitialSize,
	}
}

func (p *playerState) clone() *playerState {
	c := *p
	c.cards = append([]InitiativeCard(nil), p.cards...)
	return &c
}

// scoringKills is the kill count used for lookups: clamped to the enemy's
// starting size while the stored value is kept as entered.
func (p *playerState) scoringKills() int {
	k := p.kills
	if k < 0 {
		k = 0
	}
	if k > p.enemyInitial {
		k = p.enemyInitial
	}
	return k
}

// PlayerView is a read-only snapshot of one side for display.
type PlayerView struct {
	Side            Side             `json:"side"`
	Name            string           `json:"name"`
	CommandPoints   int              `json:"cp"`
	CritPoints      int              `json:"crit"`
	TacPoints       int              `json:"tac"`
	Kills           int              `json:"kills"`
	EnemyInitial    int              `json:"enemy_initial"`
	KillOpsPoints   int              `json:"kill_ops_points"`
	InitiativeCards []InitiativeCard `json:"initiative_cards"`
	FinalBonus      int              `json:"final_bonus"`
	Score           ScoreBreakdown   `json:"score"`
}
