// Package pathtrie reconstructs full file paths from the compressed
// bases/leaves trie representation embedded in each path record's window
// (spec §3, §4.5).
package pathtrie

import (
	"encoding/binary"

	"github.com/user/poebundle/pkg/archiveerr"
)

// segment is one parsed {parent_idx, value} pair. parent is the resolved
// index into the final bases slice, or -1 for "no parent".
type segment struct {
	parent int
	value  string
}

// Enumerate parses window (a path record's [offset, offset+size) slice of
// the decompressed path-trie blob) and returns every leaf's full path,
// root-first.
func Enumerate(window []byte) ([]string, error) {
	if len(window) < 4 {
		return nil, &archiveerr.CorruptIndex{Reason: "path window shorter than its 4-byte preamble"}
	}
	rest := window[4:]

	bases, rest, err := parseBases(rest)
	if err != nil {
		return nil, err
	}
	leaves, err := parseLeaves(rest, len(bases))
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(leaves))
	for _, leaf := range leaves {
		full, err := resolve(bases, leaf)
		if err != nil {
			return nil, err
		}
		paths = append(paths, full)
	}
	return paths, nil
}

// parseBases reads {parent_idx: u32, value: NUL-terminated utf8} pairs until
// a standalone parent_idx==0 sentinel (no trailing string), per spec §3. A
// base's parent_idx is resolved against the bases parsed so far (not the
// final array): it may only refer to an earlier, already-parsed base.
func parseBases(data []byte) ([]segment, []byte, error) {
	var bases []segment
	for {
		if len(data) < 4 {
			return nil, nil, &archiveerr.CorruptIndex{Reason: "bases section truncated before sentinel"}
		}
		rawIdx := binary.LittleEndian.Uint32(data[:4])
		if rawIdx == 0 {
			return bases, data[4:], nil
		}
		data = data[4:]
		value, remainder, err := readNulString(data)
		if err != nil {
			return nil, nil, err
		}
		bases = append(bases, segment{parent: resolveParent(rawIdx, len(bases)), value: value})
		data = remainder
	}
}

// parseLeaves reads the remainder of the window as {parent_idx, value}
// pairs with no sentinel; end-of-window terminates. A leaf's parent_idx is
// resolved against the complete bases array.
func parseLeaves(data []byte, numBases int) ([]segment, error) {
	var leaves []segment
	for len(data) > 0 {
		if len(data) < 4 {
			return nil, &archiveerr.CorruptIndex{Reason: "leaves section has a trailing partial parent_idx"}
		}
		rawIdx := binary.LittleEndian.Uint32(data[:4])
		data = data[4:]
		value, remainder, err := readNulString(data)
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, segment{parent: resolveParent(rawIdx, numBases), value: value})
		data = remainder
	}
	return leaves, nil
}

// resolveParent maps a raw parent_idx to an index into a bases array of the
// given length, per spec §4.5: parent_idx==0 means "no parent", and any
// parent_idx whose (idx-1) falls outside [0, length) is also "no parent"
// (observed in the wild for out-of-range indices).
func resolveParent(rawIdx uint32, length int) int {
	if rawIdx == 0 {
		return -1
	}
	pos := int(rawIdx - 1)
	if pos < 0 || pos >= length {
		return -1
	}
	return pos
}

func readNulString(data []byte) (string, []byte, error) {
	for i, b := range data {
		if b == 0 {
			return string(data[:i]), data[i+1:], nil
		}
	}
	return "", nil, &archiveerr.CorruptIndex{Reason: "unterminated string in path trie segment"}
}

// resolve walks leaf's parent chain into bases, concatenating values
// root-first, then appending the leaf's own value.
func resolve(bases []segment, leaf segment) (string, error) {
	var chain []string
	idx := leaf.parent
	steps := 0
	for idx != -1 {
		if steps > len(bases) {
			return "", &archiveerr.CorruptIndex{Reason: "path trie parent chain cycle detected"}
		}
		base := bases[idx]
		chain = append(chain, base.value)
		idx = base.parent
		steps++
	}

	var full string
	for i := len(chain) - 1; i >= 0; i-- {
		full += chain[i]
	}
	full += leaf.value
	return full, nil
}
