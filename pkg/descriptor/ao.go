package descriptor

import "github.com/user/poebundle/pkg/archiveerr"

// AOEntry is one "key = value" line inside an AOStruct body.
type AOEntry struct {
	Key   string
	Value string
}

// AOStruct is a named block of entries: `name { key = value ... }`.
type AOStruct struct {
	Name    string
	Entries []AOEntry
}

// AOFile is the parsed form of a ".ao" animated-object descriptor: a
// version header, an optional "abstract" marker, one or more "extends"
// clauses, and zero or more structs.
type AOFile struct {
	Version  uint32
	Abstract bool
	Extends  []string
	Structs  []AOStruct
}

// ParseAO parses the decoded text body of an .ao file, following the same
// grammar as the reference grammar this format was modeled on.
func ParseAO(text string) (*AOFile, error) {
	c := NewCursor(text)

	version, err := c.VersionLine()
	if err != nil {
		return nil, err
	}

	c.SkipSpacesOrComments()
	isAbstract := false
	if err := c.Literal("abstract"); err == nil {
		isAbstract = true
	}

	var extends []string
	for {
		mark := c.pos
		c.SkipSpacesOrComments()
		if err := c.Literal("extends"); err != nil {
			c.pos = mark
			break
		}
		c.SkipSpacesOrComments()
		value, err := c.Quoted('"')
		if err != nil {
			return nil, err
		}
		if value != "nothing" {
			extends = append(extends, value)
		}
	}
	if len(extends) == 0 && !hadExtendsClause(text) {
		// The grammar requires at least one "extends" clause; a file with
		// none (not even "extends \"nothing\"") is malformed.
		return nil, &archiveerr.ParseError{Offset: c.pos, Expected: "at least one extends clause"}
	}

	var structs []AOStruct
	for {
		mark := c.pos
		c.SkipSpacesOrComments()
		if c.AtEnd() {
			break
		}
		s, err := parseAOStruct(c)
		if err != nil {
			c.pos = mark
			break
		}
		structs = append(structs, s)
	}

	c.SkipSpacesOrComments()
	if !c.AtEnd() {
		return nil, &archiveerr.ParseError{Offset: c.pos, Expected: "struct or end of input"}
	}
	return &AOFile{Version: version, Abstract: isAbstract, Extends: extends, Structs: structs}, nil
}

// hadExtendsClause reports whether the raw text contains at least one
// "extends" keyword, used only to distinguish "no clauses were written"
// from "every clause named the filtered-out 'nothing' target".
func hadExtendsClause(text string) bool {
	c := NewCursor(text)
	for !c.AtEnd() {
		mark := c.pos
		c.SkipSpacesOrComments()
		if err := c.Literal("extends"); err == nil {
			return true
		}
		c.pos = mark + 1
		if c.pos > len(text) {
			break
		}
	}
	return false
}

func parseAOStruct(c *Cursor) (AOStruct, error) {
	name, err := c.Unquoted()
	if err != nil {
		return AOStruct{}, err
	}

	c.SkipSpacesOrComments()
	if err := c.Literal("{"); err != nil {
		return AOStruct{}, err
	}

	var entries []AOEntry
	for {
		c.SkipSpacesOrComments()
		if err := c.Literal("}"); err == nil {
			break
		}
		e, err := parseAOEntry(c)
		if err != nil {
			return AOStruct{}, err
		}
		entries = append(entries, e)
	}

	return AOStruct{Name: name, Entries: entries}, nil
}

func parseAOEntry(c *Cursor) (AOEntry, error) {
	key, err := c.Unquoted()
	if err != nil {
		return AOEntry{}, err
	}
	c.SkipSpacesOrComments()
	if err := c.Literal("="); err != nil {
		return AOEntry{}, err
	}
	c.SkipSpacesOrComments()

	value, err := parseAOValue(c)
	if err != nil {
		return AOEntry{}, err
	}
	return AOEntry{Key: key, Value: value}, nil
}

// parseAOValue accepts a double-quoted, single-quoted, or bare unquoted
// value, in that priority order (spec §4.9's alt-of-recognisers pattern).
func parseAOValue(c *Cursor) (string, error) {
	if v, err := c.Quoted('"'); err == nil {
		return v, nil
	}
	if v, err := c.Quoted('\''); err == nil {
		return v, nil
	}
	return c.Unquoted()
}
