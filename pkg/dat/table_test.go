package dat

import (
	"bytes"
	"encoding/binary"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u32b(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func u64b(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func utf16z(s string) []byte {
	units := utf16.Encode([]rune(s))
	var buf bytes.Buffer
	for _, u := range units {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, u)
		buf.Write(b)
	}
	buf.Write([]byte{0, 0})
	return buf.Bytes()
}

func TestParseRaw_ZeroRows(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(u32b(0))
	buf.Write(bytes.Repeat([]byte{0xBB}, 8))
	buf.WriteString("leftover variable data")

	table, err := ParseRaw(buf.Bytes())
	require.NoError(t, err)
	assert.Empty(t, table.Rows)
	assert.Equal(t, "leftover variable data", string(table.VariableData))
}

func TestParseRaw_MissingSentinel(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(u32b(1))
	buf.WriteString("no sentinel here")
	_, err := ParseRaw(buf.Bytes())
	assert.Error(t, err)
}

func TestParseRaw_UnevenRowWidth(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(u32b(3))
	buf.Write([]byte{1, 2, 3, 4, 5}) // 5 bytes does not divide by 3
	buf.Write(bytes.Repeat([]byte{0xBB}, 8))
	_, err := ParseRaw(buf.Bytes())
	assert.Error(t, err)
}

func TestTable_ViewCol(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(u32b(2))
	buf.Write(u32b(1)) // row 0 col
	buf.Write(u32b(2)) // row 1 col
	buf.Write(bytes.Repeat([]byte{0xBB}, 8))

	table, err := ParseRaw(buf.Bytes())
	require.NoError(t, err)

	cols, err := table.ViewCol(0, 4)
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(cols[0]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(cols[1]))
}

func TestTable_ViewCol_OutOfBounds(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(u32b(1))
	buf.Write(u32b(1))
	buf.Write(bytes.Repeat([]byte{0xBB}, 8))
	table, err := ParseRaw(buf.Bytes())
	require.NoError(t, err)

	_, err = table.ViewCol(0, 8)
	assert.Error(t, err)
}

// buildStringTable builds a 1-row table whose single 8-byte column points
// into variable_data at a NUL-terminated UTF-16LE string, per spec §3's
// pointer convention (offset 8 is the synthetic base of variable_data).
func buildStringTable(t *testing.T, value string) *Table {
	t.Helper()
	varData := utf16z(value)

	var buf bytes.Buffer
	buf.Write(u32b(1))
	buf.Write(u64b(8)) // pointer = 8 -> variable_data[0:]
	buf.Write(bytes.Repeat([]byte{0xBB}, 8))
	buf.Write(varData)

	table, err := ParseRaw(buf.Bytes())
	require.NoError(t, err)
	return table
}

func TestTable_ViewColAsString(t *testing.T) {
	table := buildStringTable(t, "Metadata/Items/Foo")
	strs, err := table.ViewColAsString(0)
	require.NoError(t, err)
	require.Len(t, strs, 1)
	require.NotNil(t, strs[0])
	assert.Equal(t, "Metadata/Items/Foo", *strs[0])
}

func TestTable_ViewColAsString_EmptyMapsToNil(t *testing.T) {
	table := buildStringTable(t, "")
	strs, err := table.ViewColAsString(0)
	require.NoError(t, err)
	require.Len(t, strs, 1)
	assert.Nil(t, strs[0])
}

func TestTable_ViewColAsArray(t *testing.T) {
	// variable_data holds 3 packed u32 elements.
	var varData bytes.Buffer
	varData.Write(u32b(10))
	varData.Write(u32b(20))
	varData.Write(u32b(30))

	var buf bytes.Buffer
	buf.Write(u32b(1))
	buf.Write(u64b(3))   // length
	buf.Write(u64b(8))   // pointer = 8 -> variable_data[0:]
	buf.Write(bytes.Repeat([]byte{0xBB}, 8))
	buf.Write(varData.Bytes())

	table, err := ParseRaw(buf.Bytes())
	require.NoError(t, err)

	values, err := ViewColAsArrayOf(table, 0, 4, parseU32)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, []uint32{10, 20, 30}, values[0])
}

func TestApplySchema_ScalarColumns(t *testing.T) {
	// row_width=7: u32 id (4) + bool flag (1) + u16 code (2)
	var buf bytes.Buffer
	buf.Write(u32b(2)) // row_count
	// row 0
	buf.Write(u32b(1))
	buf.WriteByte(1)
	buf.Write([]byte{10, 0})
	// row 1
	buf.Write(u32b(2))
	buf.WriteByte(0)
	buf.Write([]byte{20, 0})
	buf.Write(bytes.Repeat([]byte{0xBB}, 8))

	table, err := ParseRaw(buf.Bytes())
	require.NoError(t, err)

	idName, flagName, codeName := "id", "flag", "code"
	schema := []ColumnSchema{
		{Name: &idName, Type: "u32"},
		{Name: &flagName, Type: "bool"},
		{Name: &codeName, Type: "u16"},
	}

	result, err := ApplySchema(table, schema, nil)
	require.NoError(t, err)
	require.Len(t, result.Columns, 3)

	assert.Equal(t, "id", result.Columns[0].Name)
	assert.Equal(t, []any{uint32(1), uint32(2)}, result.Columns[0].Values)
	assert.Equal(t, []any{true, false}, result.Columns[1].Values)
	assert.Equal(t, []any{uint16(10), uint16(20)}, result.Columns[2].Values)
}

func TestApplySchema_UnknownColumnNamedSynthetically(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(u32b(1))
	buf.WriteByte(1)
	buf.Write(bytes.Repeat([]byte{0xBB}, 8))

	table, err := ParseRaw(buf.Bytes())
	require.NoError(t, err)

	schema := []ColumnSchema{{Name: nil, Type: "bool"}}
	result, err := ApplySchema(table, schema, nil)
	require.NoError(t, err)
	require.Len(t, result.Columns, 1)
	assert.Equal(t, "unknown_0", result.Columns[0].Name)
}

func TestApplySchema_UnknownTypeIsFatal(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(u32b(1))
	buf.WriteByte(1)
	buf.Write(bytes.Repeat([]byte{0xBB}, 8))

	table, err := ParseRaw(buf.Bytes())
	require.NoError(t, err)

	name := "mystery"
	schema := []ColumnSchema{{Name: &name, Type: "nonexistent"}}
	_, err = ApplySchema(table, schema, nil)
	assert.Error(t, err)
}

func TestApplySchema_RowWidthOverrunIsFatal(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(u32b(1))
	buf.WriteByte(1) // 1-byte row
	buf.Write(bytes.Repeat([]byte{0xBB}, 8))

	table, err := ParseRaw(buf.Bytes())
	require.NoError(t, err)

	name := "id"
	schema := []ColumnSchema{{Name: &name, Type: "u32"}} // needs 4 bytes, row has 1
	_, err = ApplySchema(table, schema, nil)
	assert.Error(t, err)
}
