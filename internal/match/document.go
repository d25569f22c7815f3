package match

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Document is the exported form of a match.
type Document struct {
	Turn          int                       `json:"turn"`
	Players       map[Side]PlayerDocument   `json:"players"`
	KillOpsTable  map[string]map[string]int `json:"kill_ops_table"`
	TacOpChoice   *string                   `json:"tac_op_choice"`
	PrimaryChoice *string                   `json:"primary_choice"`
	Revealed      bool                      `json:"revealed"`
}

// PlayerDocument is one side in a Document.
type PlayerDocument struct {
	Name            string           `json:"name"`
	CP              int              `json:"cp"`
	Crit            int              `json:"crit"`
	Tac             int              `json:"tac"`
	Kills           int              `json:"kills"`
	EnemyInitial    int              `json:"enemy_initial"`
	KillOpsPoints   int              `json:"kill_ops_points"`
	InitiativeCards []InitiativeCard `json:"initiative_cards"`
	FinalBonus      int              `json:"final_bonus"`
}

// Export captures the whole match, secrets included.
func (m *Match) Export() Document {
	doc := Document{
		Turn:         m.turn,
		Players:      make(map[Side]PlayerDocument, 2),
		KillOpsTable: make(map[string]map[string]int, len(m.table.rows)),
		Revealed:     m.revealed,
	}
	for _, side := range Sides() {
		p, _ := m.player(side)
		doc.Players[side] = PlayerDocument{
			Name:            p.name,
			CP:              p.cp,
			Crit:            p.crit,
			Tac:             p.tac,
			Kills:           p.kills,
			EnemyInitial:    p.enemyInitial,
			KillOpsPoints:   m.killOpsFor(p),
			InitiativeCards: append([]InitiativeCard{}, p.cards...),
			FinalBonus:      p.finalBonus,
		}
	}
	for size, row := range m.table.rows {
		r := make(map[string]int, len(row))
		for k, pts := range row {
			r[strconv.Itoa(k)] = pts
		}
		doc.KillOpsTable[strconv.Itoa(size)] = r
	}
	if m.tacOp != MissionNone {
		s := string(m.tacOp)
		doc.TacOpChoice = &s
	}
	if m.primary != PrimaryNone {
		s := string(m.primary)
		doc.PrimaryChoice = &s
	}
	return doc
}

// ExportJSON encodes Export as indented JSON.
func (m *Match) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(m.Export(), "", "  ")
}

// Import applies a typed document. A nil Players or KillOpsTable keeps the
// current value; every other field is taken as given.
func (m *Match) Import(doc Document) error {
	pd := partialDocument{
		Turn:          &doc.Turn,
		KillOpsTable:  doc.KillOpsTable,
		TacOpChoice:   nullableString{Present: true, Value: doc.TacOpChoice},
		PrimaryChoice: nullableString{Present: true, Value: doc.PrimaryChoice},
		Revealed:      &doc.Revealed,
	}
	if doc.Players != nil {
		pd.Players = make(map[string]partialPlayer, len(doc.Players))
		for side, p := range doc.Players {
			pp := partialPlayer{
				Name:         &p.Name,
				CP:           &p.CP,
				Crit:         &p.Crit,
				Tac:          &p.Tac,
				Kills:        &p.Kills,
				EnemyInitial: &p.EnemyInitial,
				FinalBonus:   &p.FinalBonus,
				Cards:        make([]partialCard, 0, len(p.InitiativeCards)),
			}
			for _, c := range p.InitiativeCards {
				pp.Cards = append(pp.Cards, partialCard{Type: string(c.Kind), Used: c.Used})
			}
			pd.Players[string(side)] = pp
		}
	}
	return m.apply(pd)
}

// ImportJSON decodes a possibly partial document and applies it. Keys that
// are absent keep their current value. On any error the match is unchanged.
func (m *Match) ImportJSON(data []byte) error {
	var pd partialDocument
	if err := json.Unmarshal(data, &pd); err != nil {
		return importErr("", fmt.Errorf("decode document: %w", err))
	}
	return m.apply(pd)
}

// ReadFrom imports a JSON document from r.
func (m *Match) ReadFrom(r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return int64(len(data)), importErr("", fmt.Errorf("read document: %w", err))
	}
	return int64(len(data)), m.ImportJSON(data)
}

// WriteTo writes the exported JSON document to w.
func (m *Match) WriteTo(w io.Writer) (int64, error) {
	data, err := m.ExportJSON()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

type nullableString struct {
	Present bool
	Value   *string
}

func (n *nullableString) UnmarshalJSON(b []byte) error {
	n.Present = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

type partialCard struct {
	Type string `json:"type"`
	Used bool   `json:"used"`
}

type partialPlayer struct {
	Name         *string       `json:"name"`
	CP           *int          `json:"cp"`
	Crit         *int          `json:"crit"`
	Tac          *int          `json:"tac"`
	Kills        *int          `json:"kills"`
	EnemyInitial *int          `json:"enemy_initial"`
	Cards        []partialCard `json:"initiative_cards"`
	FinalBonus   *int          `json:"final_bonus"`
}

type partialDocument struct {
	Turn          *int                      `json:"turn"`
	Players       map[string]partialPlayer  `json:"players"`
	KillOpsTable  map[string]map[string]int `json:"kill_ops_table"`
	TacOpChoice   nullableString            `json:"tac_op_choice"`
	PrimaryChoice nullableString            `json:"primary_choice"`
	Revealed      *bool                     `json:"revealed"`
}

// apply builds the imported state on a copy and swaps it in only when every
// part validated.
func (m *Match) apply(pd partialDocument) error {
	next := m.clone()

	if pd.Turn != nil {
		next.turn = max(*pd.Turn, next.opts.FirstTurn)
	}

	for key, pp := range pd.Players {
		side, err := ParseSide(key)
		if err != nil {
			return importErr("players", err)
		}
		p, _ := next.player(side)
		if err := applyPlayer(p, pp, "players."+string(side)); err != nil {
			return err
		}
	}

	if pd.KillOpsTable != nil {
		table, err := tableFromDocument(pd.KillOpsTable)
		if err != nil {
			return err
		}
		next.table = table
	}

	if pd.TacOpChoice.Present {
		mission := MissionNone
		if pd.TacOpChoice.Value != nil {
			var err error
			if mission, err = ParseMission(*pd.TacOpChoice.Value); err != nil {
				return importErr("tac_op_choice", err)
			}
		}
		next.tacOp = mission
	}

	if pd.PrimaryChoice.Present {
		category := PrimaryNone
		if pd.PrimaryChoice.Value != nil {
			var err error
			if category, err = ParsePrimaryCategory(*pd.PrimaryChoice.Value); err != nil {
				return importErr("primary_choice", err)
			}
		}
		next.primary = category
	}

	if pd.Revealed != nil {
		next.revealed = *pd.Revealed
	}

	*m = *next
	return nil
}

func applyPlayer(p *playerState, pp partialPlayer, path string) error {
	if pp.Name != nil {
		p.name = *pp.Name
	}
	if pp.CP != nil {
		p.cp = max(*pp.CP, 0)
	}
	if pp.Crit != nil {
		p.crit = clampInt(*pp.Crit, 0, MaxObjectivePoints)
	}
	if pp.Tac != nil {
		p.tac = clampInt(*pp.Tac, 0, MaxObjectivePoints)
	}
	if pp.Kills != nil {
		p.kills = max(*pp.Kills, 0)
	}
	if pp.EnemyInitial != nil {
		p.enemyInitial = max(*pp.EnemyInitial, 1)
	}
	if pp.FinalBonus != nil {
		p.finalBonus = clampInt(*pp.FinalBonus, 0, 1)
	}
	if pp.Cards != nil {
		cards := make([]InitiativeCard, 0, len(pp.Cards))
		for i, c := range pp.Cards {
			kind, err := ParseCardKind(c.Type)
			if err != nil {
				return importErr(fmt.Sprintf("%s.initiative_cards[%d]", path, i), err)
			}
			cards = append(cards, InitiativeCard{Kind: kind, Used: c.Used})
		}
		p.cards = cards
	}
	return nil
}

var errTableKey = errors.New("invalid table key")

func tableFromDocument(doc map[string]map[string]int) (*KillOpsTable, error) {
	t := NewKillOpsTable()
	for sizeKey, rowDoc := range doc {
		size, err := strconv.Atoi(sizeKey)
		if err != nil || size < 1 {
			return nil, importErr("kill_ops_table", fmt.Errorf("%w: size %q", errTableKey, sizeKey))
		}
		row := make(map[int]int, len(rowDoc))
		for killsKey, pts := range rowDoc {
			kills, err := strconv.Atoi(killsKey)
			if err != nil || kills < 0 {
				return nil, importErr("kill_ops_table."+sizeKey, fmt.Errorf("%w: kills %q", errTableKey, killsKey))
			}
			row[kills] = max(pts, 0)
		}
		t.rows[size] = row
	}
	return t, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
