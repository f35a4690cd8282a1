// Package oodlecodec wraps the Oodle block codec used by bundle files.
package oodlecodec

import (
	"fmt"

	"github.com/new-world-tools/go-oodle"
)

// Algorithm identifies the compressor a bundle block was encoded with. Only
// the four variants observed in first_file_encode are valid; any other value
// is a fatal parse error further up the stack.
type Algorithm uint32

const (
	Kraken6    Algorithm = 8
	MermaidA   Algorithm = 9
	Bitknit    Algorithm = 12
	LeviathanC Algorithm = 13
)

func (a Algorithm) String() string {
	switch a {
	case Kraken6:
		return "Kraken6"
	case MermaidA:
		return "MermaidA"
	case Bitknit:
		return "Bitknit"
	case LeviathanC:
		return "LeviathanC"
	default:
		return fmt.Sprintf("Algorithm(%d)", uint32(a))
	}
}

// ParseAlgorithm validates a first_file_encode value against the four known
// compressors. Any other value is rejected per spec.
func ParseAlgorithm(value uint32) (Algorithm, error) {
	switch Algorithm(value) {
	case Kraken6, MermaidA, Bitknit, LeviathanC:
		return Algorithm(value), nil
	default:
		return 0, fmt.Errorf("unknown first_file_encode %d", value)
	}
}

// Decompress expands a single compressed block to exactly uncompressedSize
// bytes. The algorithm value is accepted but not otherwise branched on:
// go-oodle's Decompress auto-detects the Oodle variant from the block header
// itself, same as the teacher's usage in pkg/bundle.
func Decompress(_ Algorithm, compressed []byte, uncompressedSize int64) ([]byte, error) {
	out, err := oodle.Decompress(compressed, uncompressedSize)
	if err != nil {
		return nil, fmt.Errorf("oodle decompress: %w", err)
	}
	if int64(len(out)) != uncompressedSize {
		return nil, fmt.Errorf("oodle decompress produced %d bytes, expected %d", len(out), uncompressedSize)
	}
	return out, nil
}
