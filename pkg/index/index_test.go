package index

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putU32(buf *bytes.Buffer, v uint32) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	buf.Write(b)
}

func putU64(buf *bytes.Buffer, v uint64) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	buf.Write(b)
}

// emptyNestedBundle builds a valid bundle header for a zero-block, zero-size
// payload, so Parse's trailing path_rep_bundle section decodes without
// invoking the external codec at all.
func emptyNestedBundle() []byte {
	var buf bytes.Buffer
	buf.Write(make([]byte, 12))
	putU32(&buf, 8) // Kraken6
	buf.Write(make([]byte, 4))
	putU64(&buf, 0) // uncompressed_size
	putU64(&buf, 0) // total_payload_size
	putU32(&buf, 0) // block_count
	putU32(&buf, 262144)
	buf.Write(make([]byte, 16))
	return buf.Bytes()
}

func buildIndexBlob(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer

	// bundles[1]
	putU32(&buf, 1)
	name := "_.index.bin"
	putU32(&buf, uint32(len(name)))
	buf.WriteString(name)
	putU32(&buf, 1024)

	// files[1]
	putU32(&buf, 1)
	putU64(&buf, 0xDEADBEEF)
	putU32(&buf, 0) // bundle_index
	putU32(&buf, 0) // offset
	putU32(&buf, 16) // size

	// paths[1]
	putU32(&buf, 1)
	putU64(&buf, 0xCAFEBABE)
	putU32(&buf, 0)
	putU32(&buf, 4)
	putU32(&buf, 4)

	buf.Write(emptyNestedBundle())
	return buf.Bytes()
}

func TestParse_Sections(t *testing.T) {
	idx, err := Parse(buildIndexBlob(t))
	require.NoError(t, err)

	require.Len(t, idx.Bundles, 1)
	assert.Equal(t, "_.index.bin", idx.Bundles[0].Name)
	assert.Equal(t, uint32(1024), idx.Bundles[0].UncompressedSize)

	require.Len(t, idx.Files, 1)
	assert.Equal(t, uint64(0xDEADBEEF), idx.Files[0].Hash)

	require.Len(t, idx.Paths, 1)
	assert.Equal(t, uint64(0xCAFEBABE), idx.Paths[0].Hash)

	assert.Empty(t, idx.PathRepBlob)
}

func TestParse_RejectsOutOfRangeBundleIndex(t *testing.T) {
	var buf bytes.Buffer
	putU32(&buf, 0) // no bundles

	putU32(&buf, 1) // one file record referencing bundle 0, which doesn't exist
	putU64(&buf, 1)
	putU32(&buf, 0)
	putU32(&buf, 0)
	putU32(&buf, 0)

	_, err := Parse(buf.Bytes())
	assert.Error(t, err)
}

func TestWindow_OutOfBounds(t *testing.T) {
	idx, err := Parse(buildIndexBlob(t))
	require.NoError(t, err)

	_, err = idx.Window(PathRecord{Offset: 0, Size: 100})
	assert.Error(t, err)
}
