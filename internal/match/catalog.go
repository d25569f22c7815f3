package match

import (
	"fmt"
	"strings"
)

// Mission is a tac op that can be chosen as the secret mission.
type Mission string

// MissionNone means no mission has been chosen.
const MissionNone Mission = ""

// Tac ops grouped by archetype.
const (
	MissionContain      Mission = "Contain"
	MissionPlantBanner  Mission = "Plant Banner"
	MissionTakeGround   Mission = "Take Ground"
	MissionChampion     Mission = "Champion"
	MissionOverrun      Mission = "Overrun"
	MissionStormObj     Mission = "Storm Objectives"
	MissionFlank        Mission = "Flank"
	MissionRetrieval    Mission = "Retrieval"
	MissionScoutEnemy   Mission = "Scout Enemy Movement"
	MissionImplant      Mission = "Implant"
	MissionRecoverItems Mission = "Recover Items"
	MissionWiretap      Mission = "Wiretap"
)

// MissionGroup is one archetype and its tac ops.
type MissionGroup struct {
	Archetype string    `json:"archetype"`
	Missions  []Mission `json:"missions"`
}

// MissionCatalog lists every selectable mission by archetype.
func MissionCatalog() []MissionGroup {
	return []MissionGroup{
		{Archetype: "Security", Missions: []Mission{MissionContain, MissionPlantBanner, MissionTakeGround}},
		{Archetype: "Seek & Destroy", Missions: []Mission{MissionChampion, MissionOverrun, MissionStormObj}},
		{Archetype: "Recon", Missions: []Mission{MissionFlank, MissionRetrieval, MissionScoutEnemy}},
		{Archetype: "Infiltration", Missions: []Mission{MissionImplant, MissionRecoverItems, MissionWiretap}},
	}
}

// ParseMission matches a mission name case-insensitively. Empty and "none"
// mean MissionNone.
func ParseMission(s string) (Mission, error) {
	s = strings.TrimSpace(s)
	if isNoneOption(s) {
		return MissionNone, nil
	}
	for _, g := range MissionCatalog() {
		for _, m := range g.Missions {
			if strings.EqualFold(string(m), s) {
				return m, nil
			}
		}
	}
	return MissionNone, fmt.Errorf("%w: mission %q", ErrUnknownOption, s)
}

// PrimaryCategory is the scoring category wagered as primary op.
type PrimaryCategory string

const (
	PrimaryNone    PrimaryCategory = ""
	PrimaryCritOps PrimaryCategory = "Crit Ops"
	PrimaryTacOps  PrimaryCategory = "Tac Ops"
	PrimaryKillOps PrimaryCategory = "Kill Ops"
)

// PrimaryCategories lists the selectable categories (none excluded).
func PrimaryCategories() []PrimaryCategory {
	return []PrimaryCategory{PrimaryCritOps, PrimaryTacOps, PrimaryKillOps}
}

// ParsePrimaryCategory matches a category case-insensitively. Empty and
// "none" mean PrimaryNone.
func ParsePrimaryCategory(s string) (PrimaryCategory, error) {
	s = strings.TrimSpace(s)
	if isNoneOption(s) {
		return PrimaryNone, nil
	}
	for _, c := range PrimaryCategories() {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return PrimaryNone, fmt.Errorf("%w: primary category %q", ErrUnknownOption, s)
}

func isNoneOption(s string) bool {
	return s == "" || strings.EqualFold(s, "none") || s == "-"
}
