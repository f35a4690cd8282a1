// Package psg parses the binary passive-skill-graph format into a typed
// tree of groups, passives, and connections (spec §3, §4.8).
package psg

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/user/poebundle/pkg/archiveerr"
)

// Edition selects the edition-conditioned fields: root_passives element
// width (u32 widened to u64 for edition 1, native u64 for edition 2) and
// connection curvature (absent for edition 1, present for edition 2).
type Edition int

const (
	Edition1 Edition = 1
	Edition2 Edition = 2
)

// Connection is an edge from one passive to another.
type Connection struct {
	PassiveID uint32
	// Curvature is nil for Edition1 files.
	Curvature *int32
}

// Passive is one node in a group, with its outgoing connections.
type Passive struct {
	ID             uint32
	Orbit          int32
	OrbitPosition  uint32
	Connections    []Connection
}

// Group is a cluster of passives positioned on the tree canvas.
type Group struct {
	X, Y      float32
	Flags     uint32
	Unk1      uint32
	Unk2      uint8
	Passives  []Passive
}

// File is the fully parsed passive-skill-graph blob.
type File struct {
	Version          uint8
	GraphType        uint8
	PassivesPerOrbit []uint8
	RootPassives     []uint64
	Groups           []Group
}

// Parse decodes a PSG blob per spec §3/§4.8, using edition to resolve the
// two edition-conditioned field shapes.
func Parse(data []byte, edition Edition) (*File, error) {
	r := &reader{data: data}

	version, err := r.u8("version")
	if err != nil {
		return nil, err
	}
	graphType, err := r.u8("graph_type")
	if err != nil {
		return nil, err
	}

	orbitCount, err := r.u8("passives_per_orbit length")
	if err != nil {
		return nil, err
	}
	passivesPerOrbit, err := r.bytesN(int(orbitCount), "passives_per_orbit")
	if err != nil {
		return nil, err
	}

	rootCount, err := r.u32("root_passives length")
	if err != nil {
		return nil, err
	}
	rootPassives := make([]uint64, rootCount)
	for i := range rootPassives {
		switch edition {
		case Edition1:
			v, err := r.u32("root_passives element")
			if err != nil {
				return nil, err
			}
			rootPassives[i] = uint64(v)
		case Edition2:
			v, err := r.u64("root_passives element")
			if err != nil {
				return nil, err
			}
			rootPassives[i] = v
		default:
			return nil, &archiveerr.ParseError{Offset: r.offset, Expected: "a known PSG edition"}
		}
	}

	groupCount, err := r.u32("groups length")
	if err != nil {
		return nil, err
	}
	groups := make([]Group, groupCount)
	for i := range groups {
		g, err := r.group(edition)
		if err != nil {
			return nil, err
		}
		groups[i] = g
	}

	return &File{
		Version:          version,
		GraphType:        graphType,
		PassivesPerOrbit: append([]byte(nil), passivesPerOrbit...),
		RootPassives:     rootPassives,
		Groups:           groups,
	}, nil
}

func (r *reader) group(edition Edition) (Group, error) {
	x, err := r.f32("group.x")
	if err != nil {
		return Group{}, err
	}
	y, err := r.f32("group.y")
	if err != nil {
		return Group{}, err
	}
	flags, err := r.u32("group.flags")
	if err != nil {
		return Group{}, err
	}
	unk1, err := r.u32("group.unk1")
	if err != nil {
		return Group{}, err
	}
	unk2, err := r.u8("group.unk2")
	if err != nil {
		return Group{}, err
	}

	passiveCount, err := r.u32("group.passives length")
	if err != nil {
		return Group{}, err
	}
	passives := make([]Passive, passiveCount)
	for i := range passives {
		p, err := r.passive(edition)
		if err != nil {
			return Group{}, err
		}
		passives[i] = p
	}

	return Group{X: x, Y: y, Flags: flags, Unk1: unk1, Unk2: unk2, Passives: passives}, nil
}

func (r *reader) passive(edition Edition) (Passive, error) {
	id, err := r.u32("passive.id")
	if err != nil {
		return Passive{}, err
	}
	orbit, err := r.i32("passive.orbit")
	if err != nil {
		return Passive{}, err
	}
	orbitPosition, err := r.u32("passive.orbit_position")
	if err != nil {
		return Passive{}, err
	}

	connCount, err := r.u32("passive.connections length")
	if err != nil {
		return Passive{}, err
	}
	conns := make([]Connection, connCount)
	for i := range conns {
		c, err := r.connection(edition)
		if err != nil {
			return Passive{}, err
		}
		conns[i] = c
	}

	return Passive{ID: id, Orbit: orbit, OrbitPosition: orbitPosition, Connections: conns}, nil
}

func (r *reader) connection(edition Edition) (Connection, error) {
	passiveID, err := r.u32("connection.passive_id")
	if err != nil {
		return Connection{}, err
	}
	var curvature *int32
	if edition == Edition2 {
		v, err := r.i32("connection.curvature")
		if err != nil {
			return Connection{}, err
		}
		curvature = &v
	}
	return Connection{PassiveID: passiveID, Curvature: curvature}, nil
}

type reader struct {
	data   []byte
	offset int
}

func (r *reader) u8(what string) (uint8, error) {
	if r.offset+1 > len(r.data) {
		return 0, &archiveerr.ParseError{Offset: r.offset, Expected: what}
	}
	v := r.data[r.offset]
	r.offset++
	return v, nil
}

func (r *reader) u32(what string) (uint32, error) {
	if r.offset+4 > len(r.data) {
		return 0, &archiveerr.ParseError{Offset: r.offset, Expected: what}
	}
	v := binary.LittleEndian.Uint32(r.data[r.offset : r.offset+4])
	r.offset += 4
	return v, nil
}

func (r *reader) i32(what string) (int32, error) {
	v, err := r.u32(what)
	return int32(v), err
}

func (r *reader) u64(what string) (uint64, error) {
	if r.offset+8 > len(r.data) {
		return 0, &archiveerr.ParseError{Offset: r.offset, Expected: what}
	}
	v := binary.LittleEndian.Uint64(r.data[r.offset : r.offset+8])
	r.offset += 8
	return v, nil
}

func (r *reader) f32(what string) (float32, error) {
	v, err := r.u32(what)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *reader) bytesN(n int, what string) ([]byte, error) {
	if r.offset+n > len(r.data) {
		return nil, &archiveerr.ParseError{Offset: r.offset, Expected: fmt.Sprintf("%d bytes for %s", n, what)}
	}
	v := r.data[r.offset : r.offset+n]
	r.offset += n
	return v, nil
}
