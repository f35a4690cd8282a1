// Package index parses the bundle index blob: the bundle list, file
// records keyed by path hash, path records, and the nested path-rep bundle
// whose decompressed payload is the path-trie blob (spec §3, §4.4).
package index

import (
	"encoding/binary"
	"fmt"

	"github.com/user/poebundle/pkg/archiveerr"
	"github.com/user/poebundle/pkg/bundle"
)

// BundleRecord names one bundle file and its decompressed size.
type BundleRecord struct {
	Name             string
	UncompressedSize uint32
}

// FileRecord locates one archive file's bytes within a bundle.
type FileRecord struct {
	Hash        uint64
	BundleIndex uint32
	Offset      uint32
	Size        uint32
}

// PathRecord names a window into the path-trie blob.
type PathRecord struct {
	Hash          uint64
	Offset        uint32
	Size          uint32
	RecursiveSize uint32
}

// Index is the fully parsed bundle index.
type Index struct {
	Bundles     []BundleRecord
	Files       []FileRecord
	Paths       []PathRecord
	PathRepBlob []byte
}

// Parse decodes the sequential sections of an index blob (the decompressed
// payload of the index bundle).
func Parse(data []byte) (*Index, error) {
	r := &reader{data: data}

	n1, err := r.u32("bundle count")
	if err != nil {
		return nil, err
	}
	bundles := make([]BundleRecord, n1)
	for i := range bundles {
		nameLen, err := r.u32("bundle name length")
		if err != nil {
			return nil, err
		}
		name, err := r.bytesN(int(nameLen), "bundle name")
		if err != nil {
			return nil, err
		}
		size, err := r.u32("bundle uncompressed size")
		if err != nil {
			return nil, err
		}
		bundles[i] = BundleRecord{Name: string(name), UncompressedSize: size}
	}

	n2, err := r.u32("file record count")
	if err != nil {
		return nil, err
	}
	files := make([]FileRecord, n2)
	for i := range files {
		hash, err := r.u64("file hash")
		if err != nil {
			return nil, err
		}
		bundleIdx, err := r.u32("file bundle_index")
		if err != nil {
			return nil, err
		}
		offset, err := r.u32("file offset")
		if err != nil {
			return nil, err
		}
		size, err := r.u32("file size")
		if err != nil {
			return nil, err
		}
		if int(bundleIdx) >= len(bundles) {
			return nil, &archiveerr.CorruptIndex{Reason: fmt.Sprintf("file record %d: bundle_index %d out of range (have %d bundles)", i, bundleIdx, len(bundles))}
		}
		files[i] = FileRecord{Hash: hash, BundleIndex: bundleIdx, Offset: offset, Size: size}
	}

	n3, err := r.u32("path record count")
	if err != nil {
		return nil, err
	}
	paths := make([]PathRecord, n3)
	for i := range paths {
		hash, err := r.u64("path hash")
		if err != nil {
			return nil, err
		}
		offset, err := r.u32("path offset")
		if err != nil {
			return nil, err
		}
		size, err := r.u32("path size")
		if err != nil {
			return nil, err
		}
		recursiveSize, err := r.u32("path recursive_size")
		if err != nil {
			return nil, err
		}
		paths[i] = PathRecord{Hash: hash, Offset: offset, Size: size, RecursiveSize: recursiveSize}
	}

	remainder := r.data[r.offset:]
	pathRepBundle, err := bundle.Parse(remainder)
	if err != nil {
		return nil, fmt.Errorf("parsing nested path-rep bundle: %w", err)
	}
	pathRepBlob, err := pathRepBundle.Decompress()
	if err != nil {
		return nil, fmt.Errorf("decompressing path-rep bundle: %w", err)
	}

	return &Index{
		Bundles:     bundles,
		Files:       files,
		Paths:       paths,
		PathRepBlob: pathRepBlob,
	}, nil
}

// Window returns the path-trie slice named by p, validated against the blob
// bounds (spec §3's window invariant).
func (idx *Index) Window(p PathRecord) ([]byte, error) {
	end := uint64(p.Offset) + uint64(p.Size)
	if end > uint64(len(idx.PathRepBlob)) {
		return nil, &archiveerr.CorruptIndex{Reason: fmt.Sprintf("path window [%d,%d) exceeds path-trie blob of length %d", p.Offset, end, len(idx.PathRepBlob))}
	}
	return idx.PathRepBlob[p.Offset:end], nil
}

type reader struct {
	data   []byte
	offset int
}

func (r *reader) u32(what string) (uint32, error) {
	if r.offset+4 > len(r.data) {
		return 0, &archiveerr.CorruptIndex{Reason: fmt.Sprintf("truncated reading %s", what)}
	}
	v := binary.LittleEndian.Uint32(r.data[r.offset : r.offset+4])
	r.offset += 4
	return v, nil
}

func (r *reader) u64(what string) (uint64, error) {
	if r.offset+8 > len(r.data) {
		return 0, &archiveerr.CorruptIndex{Reason: fmt.Sprintf("truncated reading %s", what)}
	}
	v := binary.LittleEndian.Uint64(r.data[r.offset : r.offset+8])
	r.offset += 8
	return v, nil
}

func (r *reader) bytesN(n int, what string) ([]byte, error) {
	if r.offset+n > len(r.data) {
		return nil, &archiveerr.CorruptIndex{Reason: fmt.Sprintf("truncated reading %s", what)}
	}
	v := r.data[r.offset : r.offset+n]
	r.offset += n
	return v, nil
}
