// Package dat parses the variable-width `.datc64` tabular binary format and
// interprets its columns against an externally supplied schema (spec §3,
// §4.7).
package dat

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/user/poebundle/pkg/archiveerr"
)

var sentinel = bytes.Repeat([]byte{0xBB}, 8)

// Table is a parsed datc64 file: fixed-width rows plus the trailing
// variable-data section rows point into.
type Table struct {
	Rows         [][]byte
	VariableData []byte
}

// ParseRaw decodes the row_count/fixed_data/variable_data layout described
// in spec §3.
func ParseRaw(data []byte) (*Table, error) {
	if len(data) < 4 {
		return nil, &archiveerr.CorruptBundle{Reason: "table truncated before row_count"}
	}
	rowCount := binary.LittleEndian.Uint32(data[:4])
	rest := data[4:]

	idx := bytes.Index(rest, sentinel)
	if idx < 0 {
		return nil, &archiveerr.CorruptBundle{Reason: "table missing 8x0xBB sentinel"}
	}
	fixedData := rest[:idx]
	variableData := rest[idx+len(sentinel):]

	var rows [][]byte
	if rowCount > 0 {
		if len(fixedData)%int(rowCount) != 0 {
			return nil, &archiveerr.CorruptBundle{
				Reason: fmt.Sprintf("fixed_data length %d does not divide evenly by row_count %d", len(fixedData), rowCount),
			}
		}
		rowWidth := len(fixedData) / int(rowCount)
		rows = make([][]byte, rowCount)
		for i := 0; i < int(rowCount); i++ {
			rows[i] = fixedData[i*rowWidth : (i+1)*rowWidth]
		}
	}

	return &Table{Rows: rows, VariableData: variableData}, nil
}

// Width returns the row width in bytes, or 0 for an empty table.
func (t *Table) Width() int {
	if len(t.Rows) == 0 {
		return 0
	}
	return len(t.Rows[0])
}

// ViewCol returns each row's [offset, offset+width) slice.
func (t *Table) ViewCol(offset, width int) ([][]byte, error) {
	if offset+width > t.Width() {
		return nil, &archiveerr.OutOfBounds{Reason: fmt.Sprintf("column [%d,%d) exceeds row width %d", offset, offset+width, t.Width())}
	}
	out := make([][]byte, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[offset : offset+width]
	}
	return out, nil
}

// ViewColAsString dereferences an 8-byte pointer column into a
// NUL-terminated UTF-16LE string per row; an empty decoded string maps to
// nil (spec §3's "empty string maps to absent").
func (t *Table) ViewColAsString(offset int) ([]*string, error) {
	cols, err := t.ViewCol(offset, 8)
	if err != nil {
		return nil, err
	}
	out := make([]*string, len(cols))
	for i, bs := range cols {
		s, err := t.stringAt(bs)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func (t *Table) stringAt(ptrBytes []byte) (*string, error) {
	pointer := binary.LittleEndian.Uint64(ptrBytes)
	if pointer < 8 || pointer >= uint64(len(t.VariableData))+8 {
		return nil, &archiveerr.OutOfBounds{Reason: fmt.Sprintf("string pointer %d out of range", pointer)}
	}
	s := decodeUTF16NulTerminated(t.VariableData[pointer-8:])
	if s == "" {
		return nil, nil
	}
	return &s, nil
}

func decodeUTF16NulTerminated(data []byte) string {
	var units []uint16
	for i := 0; i+1 < len(data); i += 2 {
		u := binary.LittleEndian.Uint16(data[i : i+2])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}

// arrayRef is the {length, pointer} pair addressing a variable-data array.
type arrayRef struct {
	length  uint64
	pointer uint64
}

func (t *Table) arrayRefAt(bs []byte, elemWidth int) (arrayRef, []byte, error) {
	length := binary.LittleEndian.Uint64(bs[:8])
	pointer := binary.LittleEndian.Uint64(bs[8:16])

	if pointer < 8 {
		return arrayRef{}, nil, &archiveerr.OutOfBounds{Reason: "array pointer underflow"}
	}
	start := pointer - 8
	byteLen := length * uint64(elemWidth)
	if start > uint64(len(t.VariableData)) {
		return arrayRef{}, nil, &archiveerr.OutOfBounds{Reason: "array pointer past end of variable data"}
	}
	end := start + byteLen
	if end < start || end > uint64(len(t.VariableData)) {
		return arrayRef{}, nil, &archiveerr.OutOfBounds{Reason: "array slice overflows variable data"}
	}
	return arrayRef{length: length, pointer: pointer}, t.VariableData[start:end], nil
}

// ViewColAsArray dereferences a 16-byte {length, pointer} column into, per
// row, a slice of elemWidth-sized element slices.
func (t *Table) ViewColAsArray(offset, elemWidth int) ([][][]byte, error) {
	cols, err := t.ViewCol(offset, 16)
	if err != nil {
		return nil, err
	}
	out := make([][][]byte, len(cols))
	for i, bs := range cols {
		_, elemBytes, err := t.arrayRefAt(bs, elemWidth)
		if err != nil {
			return nil, err
		}
		var elems [][]byte
		for o := 0; o+elemWidth <= len(elemBytes); o += elemWidth {
			elems = append(elems, elemBytes[o:o+elemWidth])
		}
		out[i] = elems
	}
	return out, nil
}

// ViewColAsArrayOf decodes each element of an array column with decode.
func ViewColAsArrayOf[T any](t *Table, offset, elemWidth int, decode func([]byte) T) ([][]T, error) {
	raw, err := t.ViewColAsArray(offset, elemWidth)
	if err != nil {
		return nil, err
	}
	out := make([][]T, len(raw))
	for i, elems := range raw {
		decoded := make([]T, len(elems))
		for j, e := range elems {
			decoded[j] = decode(e)
		}
		out[i] = decoded
	}
	return out, nil
}

// ViewColAsArrayOfStrings decodes an array-of-string-pointers column.
func (t *Table) ViewColAsArrayOfStrings(offset int) ([][]*string, error) {
	cols, err := t.ViewCol(offset, 16)
	if err != nil {
		return nil, err
	}
	out := make([][]*string, len(cols))
	for i, bs := range cols {
		_, elemBytes, err := t.arrayRefAt(bs, 8)
		if err != nil {
			return nil, err
		}
		var strs []*string
		for o := 0; o+8 <= len(elemBytes); o += 8 {
			s, err := t.stringAt(elemBytes[o : o+8])
			if err != nil {
				return nil, err
			}
			strs = append(strs, s)
		}
		out[i] = strs
	}
	return out, nil
}
