// Package psgtree joins a parsed passive-skill-graph blob with its
// companion tabular records (passives/stats/remindertext) into the
// RePoE-style combined tree export. This is a feature the distilled spec
// dropped but the original tool implements (tree/passive_info.rs); it is
// supplemented here per SPEC_FULL.md.
package psgtree

import (
	"fmt"

	"github.com/user/poebundle/pkg/archiveerr"
	"github.com/user/poebundle/pkg/dat"
	"github.com/user/poebundle/pkg/psg"
)

// Info is one passive's descriptive record, keyed by its graph passive id
// (the node id referenced from psg.Passive.ID).
type Info struct {
	FlavourText              *string
	GraphPassiveID           uint16
	Icon                     *string
	PassiveID                string
	Name                     *string
	IsAscendancyStartingNode bool
	IsIconOnly               bool
	IsJewelSocket            bool
	IsKeystone               bool
	IsMultipleChoice         bool
	IsMultipleChoiceOption   bool
	IsNotable                bool
	SkillPoints              int32
	ReminderText             []string
	Stats                    map[string]int32
}

// Tree is a passive-skill-graph file enriched with per-node descriptive
// info, matching RePoE's combined export shape.
type Tree struct {
	Version          uint8
	GraphType        uint8
	PassivesPerOrbit []uint8
	RootPassives     []uint64
	Groups           []psg.Group
	PassiveInfo      map[uint16]Info
}

// Build joins a parsed PSG file with its schema-applied passives/stats/
// remindertext tables, following the column layout load_passive_info uses
// against the game's own tabular schema.
func Build(graph *psg.File, passives, stats, reminderText *dat.ApplyResult) (*Tree, error) {
	statIDToName, err := stringColumn(stats, "Id")
	if err != nil {
		return nil, fmt.Errorf("stats table: %w", err)
	}
	reminderTexts, err := stringColumn(reminderText, "Text")
	if err != nil {
		return nil, fmt.Errorf("remindertext table: %w", err)
	}

	info, err := buildPassiveInfo(passives, statIDToName, reminderTexts)
	if err != nil {
		return nil, err
	}

	return &Tree{
		Version:          graph.Version,
		GraphType:        graph.GraphType,
		PassivesPerOrbit: graph.PassivesPerOrbit,
		RootPassives:     graph.RootPassives,
		Groups:           graph.Groups,
		PassiveInfo:      info,
	}, nil
}

func buildPassiveInfo(passives *dat.ApplyResult, statNames, reminderTexts []string) (map[uint16]Info, error) {
	graphID, err := column(passives, "PassiveSkillGraphId")
	if err != nil {
		return nil, err
	}
	n := len(graphID)

	flavourText, err := optionalStringColumn(passives, "FlavourText", n)
	if err != nil {
		return nil, err
	}
	icon, err := optionalStringColumn(passives, "Icon_DDSFile", n)
	if err != nil {
		return nil, err
	}
	ids, err := stringColumn(passives, "Id")
	if err != nil {
		return nil, err
	}
	name, err := optionalStringColumn(passives, "Name", n)
	if err != nil {
		return nil, err
	}
	isAscStart, err := boolColumn(passives, "IsAscendancyStartingNode")
	if err != nil {
		return nil, err
	}
	isIconOnly, err := boolColumn(passives, "IsJustIcon")
	if err != nil {
		return nil, err
	}
	isJewelSocket, err := boolColumn(passives, "IsJewelSocket")
	if err != nil {
		return nil, err
	}
	isKeystone, err := boolColumn(passives, "IsKeystone")
	if err != nil {
		return nil, err
	}
	isMultiChoice, err := boolColumn(passives, "IsMultipleChoice")
	if err != nil {
		return nil, err
	}
	isMultiChoiceOpt, err := boolColumn(passives, "IsMultipleChoiceOption")
	if err != nil {
		return nil, err
	}
	isNotable, err := boolColumn(passives, "IsNotable")
	if err != nil {
		return nil, err
	}
	skillPoints, err := column(passives, "SkillPointsGranted")
	if err != nil {
		return nil, err
	}
	statIDs, err := uint64ArrayColumn(passives, "Stats")
	if err != nil {
		return nil, err
	}
	reminderIdx, err := uint64ArrayColumn(passives, "ReminderStrings")
	if err != nil {
		return nil, err
	}

	statValueCols := make([][]any, 5)
	for i := 0; i < 5; i++ {
		col, err := column(passives, fmt.Sprintf("Stat%dValue", i+1))
		if err != nil {
			return nil, err
		}
		statValueCols[i] = col
	}

	out := make(map[uint16]Info, n)
	for i := 0; i < n; i++ {
		gid, ok := graphID[i].(uint16)
		if !ok {
			return nil, &archiveerr.OutOfBounds{Reason: "PassiveSkillGraphId is not a u16 column"}
		}

		stats := make(map[string]int32, len(statIDs[i]))
		for j, sid := range statIDs[i] {
			if int(sid) >= len(statNames) {
				return nil, &archiveerr.OutOfBounds{Reason: fmt.Sprintf("stat index %d out of bounds", sid)}
			}
			if j >= len(statValueCols) {
				break
			}
			v, _ := statValueCols[j][i].(int32)
			stats[statNames[sid]] = v
		}

		var reminders []string
		for _, ridx := range reminderIdx[i] {
			if int(ridx) >= len(reminderTexts) {
				return nil, &archiveerr.OutOfBounds{Reason: fmt.Sprintf("reminder text index %d out of bounds", ridx)}
			}
			reminders = append(reminders, reminderTexts[ridx])
		}

		skillPointsVal, _ := skillPoints[i].(int32)
		out[gid] = Info{
			FlavourText:              flavourText[i],
			GraphPassiveID:           gid,
			Icon:                     icon[i],
			PassiveID:                ids[i],
			Name:                     name[i],
			IsAscendancyStartingNode: isAscStart[i],
			IsIconOnly:               isIconOnly[i],
			IsJewelSocket:            isJewelSocket[i],
			IsKeystone:               isKeystone[i],
			IsMultipleChoice:         isMultiChoice[i],
			IsMultipleChoiceOption:   isMultiChoiceOpt[i],
			IsNotable:                isNotable[i],
			SkillPoints:              skillPointsVal,
			ReminderText:             reminders,
			Stats:                    stats,
		}
	}
	return out, nil
}

func column(result *dat.ApplyResult, name string) ([]any, error) {
	for _, c := range result.Columns {
		if c.Name == name {
			return c.Values, nil
		}
	}
	return nil, &archiveerr.OutOfBounds{Reason: fmt.Sprintf("column %q not found", name)}
}

func stringColumn(result *dat.ApplyResult, name string) ([]string, error) {
	vals, err := column(result, name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(vals))
	for i, v := range vals {
		if s, ok := v.(*string); ok {
			if s != nil {
				out[i] = *s
			}
			continue
		}
		out[i], _ = v.(string)
	}
	return out, nil
}

func optionalStringColumn(result *dat.ApplyResult, name string, n int) ([]*string, error) {
	vals, err := column(result, name)
	if err != nil {
		return nil, err
	}
	out := make([]*string, n)
	for i, v := range vals {
		out[i], _ = v.(*string)
	}
	return out, nil
}

func boolColumn(result *dat.ApplyResult, name string) ([]bool, error) {
	vals, err := column(result, name)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(vals))
	for i, v := range vals {
		out[i], _ = v.(bool)
	}
	return out, nil
}

func uint64ArrayColumn(result *dat.ApplyResult, name string) ([][]uint64, error) {
	vals, err := column(result, name)
	if err != nil {
		return nil, err
	}
	out := make([][]uint64, len(vals))
	for i, v := range vals {
		arr, _ := v.([]uint64)
		out[i] = arr
	}
	return out, nil
}
