package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchAny_NoPatternsMatchesEverything(t *testing.T) {
	ok, err := matchAny(nil, "Metadata/Items/Foo.txt")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchAny_SingleSegmentGlob(t *testing.T) {
	ok, err := matchAny([]string{"Metadata/Items/*.txt"}, "Metadata/Items/Foo.txt")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchAny_NoMatch(t *testing.T) {
	ok, err := matchAny([]string{"Art/*.dds"}, "Metadata/Items/Foo.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFilterPaths_PreservesOrder(t *testing.T) {
	all := []string{"a.txt", "b.dat", "c.txt"}
	matched, err := filterPaths(all, []string{"*.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "c.txt"}, matched)
}

func TestTableStem_StripsDoubleExtension(t *testing.T) {
	assert.Equal(t, "passiveskills", tableStem("Data/passiveskills.datc64"))
	assert.Equal(t, "stats", tableStem("Data/stats.dat.datc64"))
}
