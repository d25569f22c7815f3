// Package match implements the scoring engine for a two-player Kill Team
// match: turn-gated objective caps, initiative cards, the kill ops table,
// secret commitments and final scoring.
//
// A Match is not safe for concurrent use. Callers that share one across
// goroutines must serialise access.
package match

import "fmt"

const (
	// MaxObjectivePoints bounds crit and tac op points.
	MaxObjectivePoints = 6
	// FinalTurn is the last battle round; advancing past it concludes the match.
	FinalTurn = 4
	// DefaultEnemyInitialSize is the enemy model count a new player starts with.
	DefaultEnemyInitialSize = 10
)

// Options selects the rules variant a match is created with.
type Options struct {
	// StartingCP is the command points each side begins with (0 or 3 by variant).
	StartingCP int `json:"starting_cp"`
	// FirstTurn is 1, or 0 for the variant with a pre-game turn.
	FirstTurn int `json:"first_turn"`
	// EnemyInitialSize seeds each player's enemy_initial value.
	EnemyInitialSize int `json:"enemy_initial"`
}

// DefaultOptions returns the canonical variant: turns start at 1, 0 CP.
func DefaultOptions() Options {
	return Options{
		StartingCP:       0,
		FirstTurn:        1,
		EnemyInitialSize: DefaultEnemyInitialSize,
	}
}

func (o Options) normalize() Options {
	if o.StartingCP < 0 {
		o.StartingCP = 0
	}
	if o.FirstTurn != 0 {
		o.FirstTurn = 1
	}
	if o.EnemyInitialSize < 1 {
		o.EnemyInitialSize = DefaultEnemyInitialSize
	}
	return o
}

// Match is the aggregate root holding both players, the kill ops table and
// the secret commitments.
type Match struct {
	opts     Options
	turn     int
	players  [2]*playerState
	table    *KillOpsTable
	tacOp    Mission
	primary  PrimaryCategory
	revealed bool
}

// NewMatch creates a match with every default in place.
func NewMatch(opts Options) *Match {
	m := &Match{opts: opts.normalize()}
	m.Reset()
	return m
}

// Reset restores every default, including a freshly seeded kill ops table.
// The match keeps its Options.
func (m *Match) Reset() {
	m.turn = m.opts.FirstTurn
	m.players = [2]*playerState{
		newPlayerState(SideA, m.opts),
		newPlayerState(SideB, m.opts),
	}
	m.table = DefaultKillOpsTable()
	m.tacOp = MissionNone
	m.primary = PrimaryNone
	m.revealed = false
}

// Options returns the variant the match was created with.
func (m *Match) Options() Options { return m.opts }

func (m *Match) player(side Side) (*playerState, error) {
	i, ok := side.index()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSide, side)
	}
	return m.players[i], nil
}

func (m *Match) clone() *Match {
	c := *m
	c.players = [2]*playerState{m.players[0].clone(), m.players[1].clone()}
	c.table = m.table.Clone()
	return &c
}

// SetName renames a side. Names need not be unique.
func (m *Match) SetName(side Side, name string) error {
	p, err := m.player(side)
	if err != nil {
		return err
	}
	p.name = name
	return nil
}

// Snapshot returns a read-only view of one side, with kill ops points and
// score recomputed from current state.
func (m *Match) Snapshot(side Side) (PlayerView, error) {
	p, err := m.player(side)
	if err != nil {
		return PlayerView{}, err
	}
	return PlayerView{
		Side:            side,
		Name:            p.name,
		CommandPoints:   p.cp,
		CritPoints:      p.crit,
		TacPoints:       p.tac,
		Kills:           p.kills,
		EnemyInitial:    p.enemyInitial,
		KillOpsPoints:   m.killOpsFor(p),
		InitiativeCards: append([]InitiativeCard{}, p.cards...),
		FinalBonus:      p.finalBonus,
		Score:           m.scoreFor(p),
	}, nil
}

// MatchView bundles everything a scoreboard needs in one read.
type MatchView struct {
	Turn      int                       `json:"turn"`
	Cap       int                       `json:"cap"`
	Concluded bool                      `json:"concluded"`
	Players   map[Side]PlayerView       `json:"players"`
	Secrets   map[Commitment]SecretView `json:"secrets"`
}

// View returns the full display state.
func (m *Match) View() MatchView {
	v := MatchView{
		Turn:      m.turn,
		Cap:       m.Cap(),
		Concluded: m.Concluded(),
		Players:   make(map[Side]PlayerView, 2),
		Secrets:   make(map[Commitment]SecretView, 2),
	}
	for _, side := range Sides() {
		v.Players[side], _ = m.Snapshot(side)
	}
	for _, c := range Commitments() {
		v.Secrets[c], _ = m.Secret(c)
	}
	return v
}

// KillOpsTable returns a copy of the current table.
func (m *Match) KillOpsTable() *KillOpsTable { return m.table.Clone() }

// SetKillOpsRow replaces one row of the table.
func (m *Match) SetKillOpsRow(size int, row map[int]int) error {
	return m.table.SetRow(size, row)
}

// SetKillOpsCell updates one cell of the table.
func (m *Match) SetKillOpsCell(size, kills, points int) error {
	return m.table.SetCell(size, kills, points)
}

// DeleteKillOpsRow drops a row so that size uses the proportional fallback.
func (m *Match) DeleteKillOpsRow(size int) bool {
	return m.table.DeleteRow(size)
}
