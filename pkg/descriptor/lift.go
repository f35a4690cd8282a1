package descriptor

import "github.com/user/poebundle/pkg/archiveerr"

// LineParser adapts a token-level Cursor parser into a parser over one
// full line, requiring it to fully consume the line (trailing whitespace
// and comments excepted). This is the "lifter" referenced in spec §4.9.
type LineParser[T any] func(line string) (T, error)

// Lift builds a LineParser from a Cursor-level token parser.
func Lift[T any](tok func(*Cursor) (T, error)) LineParser[T] {
	return func(line string) (T, error) {
		var zero T
		c := NewCursor(line)
		v, err := tok(c)
		if err != nil {
			return zero, err
		}
		c.SkipSpacesOrComments()
		if !c.AtEnd() {
			return zero, &archiveerr.ParseError{Offset: c.pos, Expected: "end of line"}
		}
		return v, nil
	}
}

// LineSlice is an input type letting combinators work over arrays of
// lines, needed because many descriptor formats mix line-counted and
// line-structured sections (spec §4.9).
type LineSlice struct {
	lines []string
	pos   int
}

// NewLineSlice wraps lines for sequential consumption.
func NewLineSlice(lines []string) *LineSlice {
	return &LineSlice{lines: lines}
}

// Next returns the next line and advances, or ok=false at end of input.
func (s *LineSlice) Next() (string, bool) {
	if s.pos >= len(s.lines) {
		return "", false
	}
	line := s.lines[s.pos]
	s.pos++
	return line, true
}

// Peek returns the next line without advancing.
func (s *LineSlice) Peek() (string, bool) {
	if s.pos >= len(s.lines) {
		return "", false
	}
	return s.lines[s.pos], true
}

// Remaining reports how many lines are left unconsumed.
func (s *LineSlice) Remaining() int {
	return len(s.lines) - s.pos
}

// TakeLine applies a LineParser to the next line, advancing on success.
func TakeLine[T any](s *LineSlice, p LineParser[T]) (T, error) {
	var zero T
	line, ok := s.Next()
	if !ok {
		return zero, &archiveerr.ParseError{Offset: -1, Expected: "another line"}
	}
	return p(line)
}
