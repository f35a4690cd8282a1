// Package descriptor implements the shared combinator vocabulary for the
// BOM-marked UTF-16 text descriptor file family, plus one concrete grammar
// (ao) as a worked example (spec §4.9). The family is covered at contract
// level; only this one grammar is implemented in full.
package descriptor

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/user/poebundle/pkg/archiveerr"
)

// Cursor is a position within a single line (or a whole-file buffer, for
// grammars like ao's that are not line-structured) that combinators
// advance as they consume tokens.
type Cursor struct {
	s   string
	pos int
}

// NewCursor wraps s for combinator-driven parsing from the start.
func NewCursor(s string) *Cursor { return &Cursor{s: s} }

// Remaining returns the unconsumed suffix of the cursor's input.
func (c *Cursor) Remaining() string { return c.s[c.pos:] }

// AtEnd reports whether the cursor has consumed its entire input.
func (c *Cursor) AtEnd() bool { return c.pos >= len(c.s) }

func (c *Cursor) fail(expected string) error {
	return &archiveerr.ParseError{Offset: c.pos, Expected: expected}
}

// SkipSpacesOrComments consumes whitespace, "//" line comments, and
// "/* ... */" block comments, any number of times (spec §4.9).
func (c *Cursor) SkipSpacesOrComments() {
	for {
		rest := c.Remaining()
		switch {
		case len(rest) > 0 && isSpace(rest[0]):
			i := 0
			for i < len(rest) && isSpace(rest[i]) {
				i++
			}
			c.pos += i
		case strings.HasPrefix(rest, "//"):
			i := strings.IndexAny(rest, "\r\n")
			if i < 0 {
				i = len(rest)
			}
			c.pos += i
		case strings.HasPrefix(rest, "/*"):
			end := strings.Index(rest, "*/")
			if end < 0 {
				c.pos += len(rest)
				return
			}
			c.pos += end + 2
		default:
			return
		}
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

// Literal consumes exactly lit, failing with a ParseError if the cursor
// does not start with it.
func (c *Cursor) Literal(lit string) error {
	if !strings.HasPrefix(c.Remaining(), lit) {
		return c.fail("literal " + strconv.Quote(lit))
	}
	c.pos += len(lit)
	return nil
}

// Quoted consumes delimiter-bounded content, no escaping beyond the
// delimiter itself (spec §4.9's "quoted" recogniser).
func (c *Cursor) Quoted(delim byte) (string, error) {
	rest := c.Remaining()
	if len(rest) == 0 || rest[0] != delim {
		return "", c.fail("opening " + string(delim))
	}
	closeIdx := strings.IndexByte(rest[1:], delim)
	if closeIdx < 0 {
		return "", c.fail("closing " + string(delim))
	}
	value := rest[1 : 1+closeIdx]
	c.pos += 1 + closeIdx + 1
	return value, nil
}

// Unquoted consumes a run of non-whitespace characters.
func (c *Cursor) Unquoted() (string, error) {
	rest := c.Remaining()
	i := 0
	for i < len(rest) && !unicode.IsSpace(rune(rest[i])) {
		i++
	}
	if i == 0 {
		return "", c.fail("unquoted token")
	}
	c.pos += i
	return rest[:i], nil
}

// Bool01 parses a literal "0" or "1" as a bool.
func (c *Cursor) Bool01() (bool, error) {
	rest := c.Remaining()
	if len(rest) == 0 {
		return false, c.fail("0 or 1")
	}
	switch rest[0] {
	case '0':
		c.pos++
		return false, nil
	case '1':
		c.pos++
		return true, nil
	default:
		return false, c.fail("0 or 1")
	}
}

// Uint parses an unsigned decimal integer, tolerating leading zeros.
func (c *Cursor) Uint() (uint32, error) {
	rest := c.Remaining()
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, c.fail("decimal digits")
	}
	v, err := strconv.ParseUint(rest[:i], 10, 32)
	if err != nil {
		return 0, c.fail("uint32")
	}
	c.pos += i
	return uint32(v), nil
}

// NullableUint parses a signed decimal integer where -1 means "absent" and
// any other value must be non-negative.
func (c *Cursor) NullableUint() (*uint32, error) {
	rest := c.Remaining()
	i := 0
	if i < len(rest) && rest[i] == '-' {
		i++
	}
	start := i
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i == start {
		return nil, c.fail("signed integer")
	}
	v, err := strconv.ParseInt(rest[:i], 10, 32)
	if err != nil {
		return nil, c.fail("signed int32")
	}
	c.pos += i
	if v == -1 {
		return nil, nil
	}
	if v < 0 {
		return nil, c.fail("-1 or a non-negative integer")
	}
	u := uint32(v)
	return &u, nil
}

// Filename consumes quoted content whose value ends in "."+ext.
func (c *Cursor) Filename(ext string) (string, error) {
	start := c.pos
	value, err := c.Quoted('"')
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(value, "."+ext) {
		c.pos = start
		return "", c.fail("filename ending in ." + ext)
	}
	return value, nil
}

// VersionLine parses the literal "version " followed by an unsigned
// integer (spec §4.9).
func (c *Cursor) VersionLine() (uint32, error) {
	if err := c.Literal("version "); err != nil {
		return 0, err
	}
	return c.Uint()
}

// SeparatedArray parses exactly n items separated by sep.
func SeparatedArray[T any](c *Cursor, n int, sep string, item func(*Cursor) (T, error)) ([]T, error) {
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := c.Literal(sep); err != nil {
				return nil, err
			}
		}
		v, err := item(c)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// LengthPrefixed parses an unsigned count followed by that many items.
func LengthPrefixed[T any](c *Cursor, item func(*Cursor) (T, error)) ([]T, error) {
	n, err := c.Uint()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, n)
	for i := uint32(0); i < n; i++ {
		c.SkipSpacesOrComments()
		v, err := item(c)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// SentinelTerminated parses items until a standalone sentinel token is
// encountered, used in newer format revisions that terminate a repeated
// section with a literal "-1" line instead of a length prefix.
func SentinelTerminated[T any](c *Cursor, item func(*Cursor) (T, error), sentinel string) ([]T, error) {
	var out []T
	for {
		c.SkipSpacesOrComments()
		if strings.HasPrefix(c.Remaining(), sentinel) {
			c.pos += len(sentinel)
			return out, nil
		}
		v, err := item(c)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

// Conditional parses item only when predicate holds, mirroring the PSG
// reader's edition-conditioned fields but for text grammars.
func Conditional[T any](c *Cursor, predicate bool, item func(*Cursor) (T, error)) (*T, error) {
	if !predicate {
		return nil, nil
	}
	v, err := item(c)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
