// Package csvfile reads and writes the pipeline's flat-file inputs and
// outputs. Input files arrive from several publishers in whatever encoding
// their export tooling produced; the reader decodes them tolerantly instead
// of trusting any declared charset. The writer owns the processed-output
// contract and replaces the file atomically.
package csvfile

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/federalrisk/county-risk-etl/internal/domain"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// ReadTable loads one source CSV. Only an unopenable file is an error;
// undecodable bytes degrade to lossy windows-1252 decoding (bad bytes become
// U+FFFD) rather than aborting the run.
func ReadTable(path string) (domain.RawTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("read source file: %w", err)
	}

	text := decode(data)

	r := csv.NewReader(strings.NewReader(text))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("parse %s: %w", path, err)
	}

	table := domain.RawTable{Path: path}
	if len(rows) > 0 {
		table.Header = rows[0]
		table.Rows = rows[1:]
	}
	return table, nil
}

// decode converts raw file bytes to a string, trying encodings in priority
// order: BOM-declared Unicode, valid UTF-8, whatever chardet recognizes,
// and finally lossy windows-1252 which maps every byte to something.
func decode(data []byte) string {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return string(bytes.TrimPrefix(data, bomUTF8))
	case bytes.HasPrefix(data, bomUTF16LE), bytes.HasPrefix(data, bomUTF16BE):
		if s, ok := decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), data); ok {
			return s
		}
	}

	if utf8.Valid(data) {
		return string(data)
	}

	if enc := detectEncoding(data); enc != nil {
		if s, ok := decodeWith(enc, data); ok {
			return s
		}
	}

	// Lossy fallback: windows-1252 decodes every byte, substituting U+FFFD
	// for the few undefined positions.
	s, _ := decodeWith(charmap.Windows1252, data)
	return s
}

func decodeWith(enc encoding.Encoding, data []byte) (string, bool) {
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}

// detectEncoding maps a chardet guess to a decoder for the charsets the
// upstream publishers actually emit.
func detectEncoding(data []byte) encoding.Encoding {
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil {
		return nil
	}
	switch result.Charset {
	case "windows-1252":
		return charmap.Windows1252
	case "ISO-8859-1":
		return charmap.ISO8859_1
	case "ISO-8859-15":
		return charmap.ISO8859_15
	case "UTF-16LE":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case "UTF-16BE":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	default:
		return nil
	}
}
