// Package pathhash computes the 64-bit hash used to key bundle index file
// records from a virtual file path.
package pathhash

import (
	"strings"

	murmurhash "github.com/rryqszq4/go-murmurhash"
)

// Seed is the fixed MurmurHash64A seed used for every path in the archive.
const Seed uint64 = 0x1337b33f

// Hash returns the path hash for path: MurmurHash64A of the lowercased UTF-8
// bytes, seeded with Seed. Hashing is defined over the lowercase form, so
// Hash(strings.ToLower(p)) == Hash(p) for every p.
func Hash(path string) uint64 {
	lowered := strings.ToLower(path)
	return murmurhash.MurmurHash64A([]byte(lowered), Seed)
}
