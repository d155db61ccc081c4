package parser

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/gocarina/gocsv"
	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CandidateDelimiters are tried when sniffing the header line.
var CandidateDelimiters = []rune{',', ';', '\t', '|'}

// CSVReader reads delimited text exports. Files that are not valid UTF-8
// are decoded as Windows-1252, the usual encoding of Latin American
// spreadsheet exports.
type CSVReader struct {
	delimiter rune // 0 = sniff
}

// NewCSVReader creates a reader. A zero delimiter is detected from the
// header line.
func NewCSVReader(delimiter rune) *CSVReader {
	return &CSVReader{delimiter: delimiter}
}

// ReadTable decodes data into a Table. An empty file is unreadable.
func (r *CSVReader) ReadTable(ctx context.Context, data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decode CSV: %v", ErrUnreadableInput, err)
		}
		data = decoded
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty CSV file", ErrUnreadableInput)
	}

	delim := r.delimiter
	if delim == 0 {
		delim = SniffDelimiter(data)
	}

	reader := gocsv.LazyCSVReader(bytes.NewReader(data))
	if cr, ok := reader.(*csv.Reader); ok {
		cr.Comma = delim
		cr.FieldsPerRecord = -1
	}

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %v", ErrUnreadableInput, err)
	}

	table := &Table{Sheet: "csv", Headers: headers}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadableInput, err)
		}
		cells := make([]any, len(record))
		for i, c := range record {
			cells[i] = c
		}
		table.Rows = append(table.Rows, cells)
	}
	return table, nil
}

// SniffDelimiter picks the candidate that occurs most often on the first
// line, ignoring quoted text. Ties keep the earlier candidate; no match
// returns ','.
func SniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}

	counts := make(map[rune]int, len(CandidateDelimiters))
	inQuotes := false
	for _, c := range string(line) {
		if c == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[c]++
		}
	}

	best, bestCount := ',', 0
	for _, d := range CandidateDelimiters {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}
