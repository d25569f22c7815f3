package match

import "fmt"

// CardKind is the type of an initiative card.
type CardKind string

const (
	CardRepetition CardKind = "Repetition"
	CardPlusOne    CardKind = "+1"
	CardPlusTwo    CardKind = "+2"
	CardPlusThree  CardKind = "+3"
)

// CardKinds lists every card kind.
func CardKinds() []CardKind {
	return []CardKind{CardRepetition, CardPlusOne, CardPlusTwo, CardPlusThree}
}

// ParseCardKind validates a card type string.
func ParseCardKind(s string) (CardKind, error) {
	for _, k := range CardKinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: card type %q", ErrUnknownOption, s)
}

// CardKindForTurn returns the card issued to the side that lost initiative
// on the given turn.
func CardKindForTurn(turn int) CardKind {
	switch turn {
	case 1:
		return CardPlusOne
	case 2:
		return CardPlusTwo
	case 3:
		return CardPlusThree
	default:
		return CardRepetition
	}
}

// InitiativeCard is a token held by a player. Used is bookkeeping only.
type InitiativeCard struct {
	Kind CardKind `json:"type"`
	Used bool     `json:"used"`
}
