package psg

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pu32(buf *bytes.Buffer, v uint32) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	buf.Write(b)
}

func pu64(buf *bytes.Buffer, v uint64) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	buf.Write(b)
}

func pf32(buf *bytes.Buffer, v float32) {
	pu32(buf, math.Float32bits(v))
}

// buildMinimal constructs a PSG blob with one group containing one passive
// with one connection, and one root passive, per the §3 layout.
func buildMinimal(t *testing.T, edition Edition) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteByte(1) // version
	buf.WriteByte(1) // graph_type = passive tree

	buf.WriteByte(1) // passives_per_orbit length
	buf.WriteByte(6) // one orbit value

	pu32(&buf, 1) // root_passives length
	if edition == Edition1 {
		pu32(&buf, 42)
	} else {
		pu64(&buf, 42)
	}

	pu32(&buf, 1) // groups length
	pf32(&buf, 1.5)
	pf32(&buf, -2.5)
	pu32(&buf, 0) // flags
	pu32(&buf, 2) // unk1
	buf.WriteByte(0) // unk2

	pu32(&buf, 1) // passives length
	pu32(&buf, 100) // id
	pu32(&buf, uint32(int32(-1))) // orbit (i32)
	pu32(&buf, 3) // orbit_position

	pu32(&buf, 1) // connections length
	pu32(&buf, 200) // passive_id
	if edition == Edition2 {
		pu32(&buf, uint32(int32(-7))) // curvature
	}

	return buf.Bytes()
}

func TestParse_Edition1(t *testing.T) {
	data := buildMinimal(t, Edition1)
	f, err := Parse(data, Edition1)
	require.NoError(t, err)

	assert.Equal(t, uint8(1), f.Version)
	assert.Equal(t, []uint64{42}, f.RootPassives)
	require.Len(t, f.Groups, 1)
	require.Len(t, f.Groups[0].Passives, 1)
	p := f.Groups[0].Passives[0]
	assert.Equal(t, uint32(100), p.ID)
	assert.Equal(t, int32(-1), p.Orbit)
	require.Len(t, p.Connections, 1)
	assert.Equal(t, uint32(200), p.Connections[0].PassiveID)
	assert.Nil(t, p.Connections[0].Curvature)
}

func TestParse_Edition2_HasCurvature(t *testing.T) {
	data := buildMinimal(t, Edition2)
	f, err := Parse(data, Edition2)
	require.NoError(t, err)

	p := f.Groups[0].Passives[0]
	require.NotNil(t, p.Connections[0].Curvature)
	assert.Equal(t, int32(-7), *p.Connections[0].Curvature)
}

func TestParse_TruncatedInput(t *testing.T) {
	_, err := Parse([]byte{1}, Edition1)
	assert.Error(t, err)
}
