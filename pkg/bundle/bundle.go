// Package bundle parses a bundle file's fixed header and decompresses its
// concatenated blocks through an external codec (spec §3, §4.3).
package bundle

import (
	"encoding/binary"
	"fmt"

	"github.com/user/poebundle/pkg/archiveerr"
	"github.com/user/poebundle/pkg/oodlecodec"
)

const headerSize = 12 + 4 + 4 + 8 + 8 + 4 + 4 + 16

// Bundle is a parsed bundle header plus its raw (still-compressed) block
// payloads.
type Bundle struct {
	Encode                  oodlecodec.Algorithm
	UncompressedSize        uint64
	TotalPayloadSize        uint64
	BlockCount              uint32
	UncompressedGranularity uint32
	BlockSizes              []uint32
	blocks                  [][]byte
}

// Parse validates and decodes a bundle header per spec §3, slicing out each
// block's compressed payload.
func Parse(data []byte) (*Bundle, error) {
	if len(data) < headerSize {
		return nil, &archiveerr.CorruptBundle{Reason: fmt.Sprintf("header truncated: got %d bytes, need %d", len(data), headerSize)}
	}

	offset := 12 // reserved
	rawEncode := binary.LittleEndian.Uint32(data[offset : offset+4])
	offset += 4
	algo, err := oodlecodec.ParseAlgorithm(rawEncode)
	if err != nil {
		return nil, &archiveerr.CorruptBundle{Reason: "invalid first_file_encode", Err: err}
	}

	offset += 4 // reserved
	uncompressedSize := binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8
	totalPayloadSize := binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8
	blockCount := binary.LittleEndian.Uint32(data[offset : offset+4])
	offset += 4
	granularity := binary.LittleEndian.Uint32(data[offset : offset+4])
	offset += 4
	offset += 16 // reserved

	blockSizesEnd := offset + int(blockCount)*4
	if blockSizesEnd > len(data) {
		return nil, &archiveerr.CorruptBundle{Reason: "block size table truncated"}
	}
	blockSizes := make([]uint32, blockCount)
	var sumSizes uint64
	for i := range blockSizes {
		blockSizes[i] = binary.LittleEndian.Uint32(data[offset : offset+4])
		sumSizes += uint64(blockSizes[i])
		offset += 4
	}
	if sumSizes != totalPayloadSize {
		return nil, &archiveerr.CorruptBundle{
			Reason: fmt.Sprintf("sum(block_sizes)=%d does not match total_payload_size=%d", sumSizes, totalPayloadSize),
		}
	}

	blocks := make([][]byte, blockCount)
	for i, size := range blockSizes {
		end := offset + int(size)
		if end > len(data) {
			return nil, &archiveerr.CorruptBundle{Reason: fmt.Sprintf("block %d payload truncated", i)}
		}
		blocks[i] = data[offset:end]
		offset = end
	}

	return &Bundle{
		Encode:                  algo,
		UncompressedSize:        uncompressedSize,
		TotalPayloadSize:        totalPayloadSize,
		BlockCount:              blockCount,
		UncompressedGranularity: granularity,
		BlockSizes:              blockSizes,
		blocks:                  blocks,
	}, nil
}

// Decompress concatenates every block's decompressed bytes into a single
// buffer of exactly UncompressedSize, per spec §4.3. Blocks are independent;
// this implementation decompresses them sequentially, which keeps output
// placement trivially deterministic.
func (b *Bundle) Decompress() ([]byte, error) {
	out := make([]byte, b.UncompressedSize)
	var written uint64
	for i, block := range b.blocks {
		want := uint64(b.UncompressedGranularity)
		if i == len(b.blocks)-1 {
			want = b.UncompressedSize - uint64(b.UncompressedGranularity)*uint64(b.BlockCount-1)
		}
		decoded, err := oodlecodec.Decompress(b.Encode, block, int64(want))
		if err != nil {
			return nil, &archiveerr.CodecError{BlockIndex: i, Err: err}
		}
		if uint64(len(decoded)) != want {
			return nil, &archiveerr.CodecError{
				BlockIndex: i,
				Err:        fmt.Errorf("decompressed to %d bytes, expected %d", len(decoded), want),
			}
		}
		copy(out[written:], decoded)
		written += want
	}
	return out, nil
}
