package descriptor

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"github.com/user/poebundle/pkg/archiveerr"
)

// DecodeText converts a BOM-marked UTF-16 descriptor file into a UTF-8
// string, normalising CRLF to LF (spec §6: "Line endings may be CRLF or
// LF"). Empty files are invalid.
func DecodeText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", &archiveerr.EncodingError{Reason: "descriptor file is empty"}
	}

	var enc encoding.Encoding
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		enc = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		enc = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)
	default:
		return "", &archiveerr.EncodingError{Reason: "descriptor file missing a UTF-16 BOM"}
	}

	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", &archiveerr.EncodingError{Reason: "invalid UTF-16 content", Err: err}
	}
	if len(decoded) == 0 {
		return "", &archiveerr.EncodingError{Reason: "descriptor file is empty"}
	}

	text := strings.ReplaceAll(string(decoded), "\r\n", "\n")
	return text, nil
}

// Lines splits decoded descriptor text into its content lines, used by
// grammars built on LineSlice.
func Lines(text string) []string {
	return strings.Split(text, "\n")
}
