package dat

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/user/poebundle/pkg/archiveerr"
)

// ColumnSchema describes one column of a table, as retrieved from the
// external schema JSON (spec §6). Name is nil for synthetic "unknown_k"
// columns. Auxiliary schema fields the reader does not consume are dropped
// silently by encoding/json, matching spec §6's "plus unused auxiliary
// fields" note.
type ColumnSchema struct {
	Name       *string          `json:"name"`
	Type       string           `json:"type"`
	Array      bool             `json:"array"`
	Interval   bool             `json:"interval"`
	References *ColumnReference `json:"references"`
}

// ColumnReference names the table a row/foreignrow column points into.
type ColumnReference struct {
	Table string `json:"table"`
}

// Column is one schema-applied column's decoded values, one entry per row.
// Value holds whatever concrete Go type the column type maps to (string,
// *string, bool, int16, uint16, int32, float32, uint32, *uint64,
// []int32, etc).
type Column struct {
	Name   string
	Values []any
}

// ApplyResult is the schema-applied view of a table: one Column per schema
// entry that parsed successfully. Columns that failed to parse are
// skipped and logged (spec §4.7), not fatal.
type ApplyResult struct {
	Columns []Column
}

// widthFor reports how many row bytes a scalar/array column consumes,
// matching spec §4.7's width table.
func widthFor(column ColumnSchema) (int, error) {
	switch {
	case column.Array:
		return 16, nil
	case column.Interval:
		if column.Type == "i32" {
			return 8, nil
		}
		return 0, &archiveerr.UnknownType{TypeName: column.Type + " (interval)"}
	default:
		switch column.Type {
		case "string":
			return 8, nil
		case "foreignrow", "row":
			return 16, nil
		case "enumrow":
			return 4, nil
		case "f32", "i32", "u32":
			return 4, nil
		case "i16", "u16":
			return 2, nil
		case "bool":
			return 1, nil
		default:
			return 0, &archiveerr.UnknownType{TypeName: column.Type}
		}
	}
}

// ApplySchema walks columns in order, tracking cur_offset and an
// unknown-index counter for unnamed columns, dispatching each to the
// appropriate view per spec §4.7. A single column that fails to decode is
// logged via logger and skipped; the offset still advances by its declared
// width so later columns stay aligned.
func ApplySchema(table *Table, columns []ColumnSchema, logger *logrus.Logger) (*ApplyResult, error) {
	if logger == nil {
		logger = logrus.New()
	}

	result := &ApplyResult{}
	curOffset := 0
	unknownIdx := 0

	for _, col := range columns {
		width, err := widthFor(col)
		if err != nil {
			return nil, err
		}

		name := col.Name
		colName := ""
		if name != nil {
			colName = *name
		} else {
			colName = fmt.Sprintf("unknown_%d", unknownIdx)
			unknownIdx++
		}

		if curOffset+width > table.Width() {
			return nil, &archiveerr.OutOfBounds{
				Reason: fmt.Sprintf("column %q at offset %d width %d exceeds row width %d", colName, curOffset, width, table.Width()),
			}
		}

		values, err := decodeColumn(table, col, curOffset)
		if err != nil {
			logger.WithError(err).WithField("column", colName).Warn("dat: failed to decode column, skipping")
			curOffset += width
			continue
		}

		result.Columns = append(result.Columns, Column{Name: colName, Values: values})
		curOffset += width
	}

	return result, nil
}

func decodeColumn(table *Table, col ColumnSchema, offset int) ([]any, error) {
	switch {
	case col.Array:
		return decodeArrayColumn(table, col, offset)
	case col.Interval:
		return decodeIntervalColumn(table, col, offset)
	default:
		return decodeScalarColumn(table, col, offset)
	}
}

func decodeArrayColumn(table *Table, col ColumnSchema, offset int) ([]any, error) {
	switch col.Type {
	case "string":
		rows, err := table.ViewColAsArrayOfStrings(offset)
		if err != nil {
			return nil, err
		}
		return toAny(rows), nil
	case "foreignrow", "row":
		rows, err := ViewColAsArrayOf(table, offset, 16, parseForeignRow)
		if err != nil {
			return nil, err
		}
		return toAny(rows), nil
	case "enumrow":
		rows, err := ViewColAsArrayOf(table, offset, 4, parseU32)
		if err != nil {
			return nil, err
		}
		return toAny(rows), nil
	case "f32":
		rows, err := ViewColAsArrayOf(table, offset, 4, parseF32)
		if err != nil {
			return nil, err
		}
		return toAny(rows), nil
	case "i32":
		rows, err := ViewColAsArrayOf(table, offset, 4, parseI32)
		if err != nil {
			return nil, err
		}
		return toAny(rows), nil
	case "i16":
		rows, err := ViewColAsArrayOf(table, offset, 2, parseI16)
		if err != nil {
			return nil, err
		}
		return toAny(rows), nil
	case "u16":
		rows, err := ViewColAsArrayOf(table, offset, 2, parseU16)
		if err != nil {
			return nil, err
		}
		return toAny(rows), nil
	default:
		return nil, &archiveerr.UnknownType{TypeName: col.Type}
	}
}

// decodeIntervalColumn handles the only interval variant the format uses:
// i32, stored as two packed i32 values across 8 row bytes.
func decodeIntervalColumn(table *Table, col ColumnSchema, offset int) ([]any, error) {
	if col.Type != "i32" {
		return nil, &archiveerr.UnknownType{TypeName: col.Type + " (interval)"}
	}
	cols, err := table.ViewCol(offset, 8)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(cols))
	for i, bs := range cols {
		out[i] = [2]int32{parseI32(bs[0:4]), parseI32(bs[4:8])}
	}
	return out, nil
}

func decodeScalarColumn(table *Table, col ColumnSchema, offset int) ([]any, error) {
	switch col.Type {
	case "string":
		rows, err := table.ViewColAsString(offset)
		if err != nil {
			return nil, err
		}
		return toAny(rows), nil
	case "foreignrow", "row":
		cols, err := table.ViewCol(offset, 16)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(cols))
		for i, bs := range cols {
			out[i] = parseMaybeForeignRow(bs)
		}
		return out, nil
	case "enumrow":
		cols, err := table.ViewCol(offset, 4)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(cols))
		for i, bs := range cols {
			out[i] = parseU32(bs)
		}
		return out, nil
	case "f32":
		cols, err := table.ViewCol(offset, 4)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(cols))
		for i, bs := range cols {
			out[i] = parseF32(bs)
		}
		return out, nil
	case "i32":
		cols, err := table.ViewCol(offset, 4)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(cols))
		for i, bs := range cols {
			out[i] = parseI32(bs)
		}
		return out, nil
	case "u32":
		cols, err := table.ViewCol(offset, 4)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(cols))
		for i, bs := range cols {
			out[i] = parseU32(bs)
		}
		return out, nil
	case "i16":
		cols, err := table.ViewCol(offset, 2)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(cols))
		for i, bs := range cols {
			out[i] = parseI16(bs)
		}
		return out, nil
	case "u16":
		cols, err := table.ViewCol(offset, 2)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(cols))
		for i, bs := range cols {
			out[i] = parseU16(bs)
		}
		return out, nil
	case "bool":
		cols, err := table.ViewCol(offset, 1)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(cols))
		for i, bs := range cols {
			v, err := parseBool(bs)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	default:
		return nil, &archiveerr.UnknownType{TypeName: col.Type}
	}
}

func toAny[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func parseU32(b []byte) uint32  { return binary.LittleEndian.Uint32(b) }
func parseI32(b []byte) int32   { return int32(binary.LittleEndian.Uint32(b)) }
func parseU16(b []byte) uint16  { return binary.LittleEndian.Uint16(b) }
func parseI16(b []byte) int16   { return int16(binary.LittleEndian.Uint16(b)) }
func parseF32(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) }

// parseForeignRow widens the 16-byte row identifier's low 64 bits; the
// format stores a 128-bit value but every real row index fits in 64 bits
// (the original tool downcasts identically, since its column backend lacks
// a u128 type).
func parseForeignRow(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b[:8])
}

// parseMaybeForeignRow returns nil for the all-0xFE NULL sentinel.
func parseMaybeForeignRow(b []byte) *uint64 {
	allFE := true
	for _, v := range b {
		if v != 0xFE {
			allFE = false
			break
		}
	}
	if allFE {
		return nil
	}
	v := parseForeignRow(b)
	return &v
}

func parseBool(b []byte) (bool, error) {
	if b[0] > 1 {
		return false, &archiveerr.OutOfBounds{Reason: fmt.Sprintf("invalid boolean byte %d", b[0])}
	}
	return b[0] == 1, nil
}
