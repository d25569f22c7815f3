package match

import "fmt"

// ApplyInitiative records the initiative roll for the current turn: the
// winner gains 1 CP, the loser gains 2 CP and an initiative card whose kind
// depends on the turn. Each call applies again; callers invoke it once per
// turn.
func (m *Match) ApplyInitiative(winner Side) (InitiativeCard, error) {
	w, err := m.player(winner)
	if err != nil {
		return InitiativeCard{}, err
	}
	l, _ := m.player(winner.Opponent())

	card := InitiativeCard{Kind: CardKindForTurn(m.turn)}
	w.cp++
	l.cp += 2
	l.cards = append(l.cards, card)
	return card, nil
}

// SetCardUsed flips the used flag of one card. No numeric effect is applied.
func (m *Match) SetCardUsed(side Side, index int, used bool) error {
	p, err := m.player(side)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(p.cards) {
		return fmt.Errorf("%w: %d (side %s holds %d)", ErrCardIndex, index, side, len(p.cards))
	}
	p.cards[index].Used = used
	return nil
}
