package psgtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/poebundle/pkg/dat"
	"github.com/user/poebundle/pkg/psg"
)

func strPtr(s string) *string { return &s }

func buildPassivesTable() *dat.ApplyResult {
	return &dat.ApplyResult{Columns: []dat.Column{
		{Name: "FlavourText", Values: []any{(*string)(nil)}},
		{Name: "PassiveSkillGraphId", Values: []any{uint16(7)}},
		{Name: "Icon_DDSFile", Values: []any{strPtr("art/icon.dds")}},
		{Name: "Id", Values: []any{"MyNotable"}},
		{Name: "Name", Values: []any{strPtr("My Notable")}},
		{Name: "IsAscendancyStartingNode", Values: []any{false}},
		{Name: "IsJustIcon", Values: []any{false}},
		{Name: "IsJewelSocket", Values: []any{false}},
		{Name: "IsKeystone", Values: []any{false}},
		{Name: "IsMultipleChoice", Values: []any{false}},
		{Name: "IsMultipleChoiceOption", Values: []any{false}},
		{Name: "IsNotable", Values: []any{true}},
		{Name: "SkillPointsGranted", Values: []any{int32(1)}},
		{Name: "Stats", Values: []any{[]uint64{0}}},
		{Name: "Stat1Value", Values: []any{int32(30)}},
		{Name: "Stat2Value", Values: []any{int32(0)}},
		{Name: "Stat3Value", Values: []any{int32(0)}},
		{Name: "Stat4Value", Values: []any{int32(0)}},
		{Name: "Stat5Value", Values: []any{int32(0)}},
		{Name: "ReminderStrings", Values: []any{[]uint64{0}}},
	}}
}

func buildStatsTable() *dat.ApplyResult {
	return &dat.ApplyResult{Columns: []dat.Column{
		{Name: "Id", Values: []any{"life_+%"}},
	}}
}

func buildReminderTable() *dat.ApplyResult {
	return &dat.ApplyResult{Columns: []dat.Column{
		{Name: "Text", Values: []any{"Grants bonus life."}},
	}}
}

func TestBuild_JoinsGraphWithTables(t *testing.T) {
	graph := &psg.File{
		Version:   3,
		GraphType: 1,
		Groups: []psg.Group{{
			Passives: []psg.Passive{{ID: 7}},
		}},
	}

	tree, err := Build(graph, buildPassivesTable(), buildStatsTable(), buildReminderTable())
	require.NoError(t, err)

	info, ok := tree.PassiveInfo[7]
	require.True(t, ok)
	assert.Equal(t, "MyNotable", info.PassiveID)
	assert.True(t, info.IsNotable)
	assert.Equal(t, int32(30), info.Stats["life_+%"])
	assert.Equal(t, []string{"Grants bonus life."}, info.ReminderText)
	require.NotNil(t, info.Icon)
	assert.Equal(t, "art/icon.dds", *info.Icon)
}

func TestBuild_MissingColumnIsFatal(t *testing.T) {
	passives := buildPassivesTable()
	// Drop a required column.
	passives.Columns = passives.Columns[1:]

	_, err := Build(graph(), passives, buildStatsTable(), buildReminderTable())
	assert.Error(t, err)
}

func graph() *psg.File {
	return &psg.File{Groups: []psg.Group{{Passives: []psg.Passive{{ID: 7}}}}}
}
