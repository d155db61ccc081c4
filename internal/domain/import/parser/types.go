// Package parser extracts canonical catalog records from supplier price
// lists. Documents arrive as positioned words (one token per word with its
// bounding box); spreadsheets arrive as headers plus loosely typed rows.
package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/emiliopc17/redmil-crm/internal/domain/catalog"
)

var (
	// ErrUnreadableInput indicates the bytes cannot be opened as the claimed format.
	ErrUnreadableInput = errors.New("unreadable input")

	// ErrUnsupportedFormat indicates no extraction path handles the file.
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported file format", ErrUnreadableInput)
)

// PositionedToken is one word of document text with its bounding box.
type PositionedToken struct {
	Text string  `json:"text"`
	X0   float64 `json:"x0"`
	Y0   float64 `json:"y0"`
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	Page int     `json:"page"`
}

// Row is a run of tokens on one page sharing a vertical cluster, ordered
// left to right.
type Row struct {
	Page   int
	Index  int // position of the row within its page, from 0
	Tokens []PositionedToken
}

// Texts returns the token texts in order.
func (r Row) Texts() []string {
	out := make([]string, len(r.Tokens))
	for i, tok := range r.Tokens {
		out[i] = tok.Text
	}
	return out
}

// Text joins the token texts with single spaces.
func (r Row) Text() string {
	return strings.Join(r.Texts(), " ")
}

// RejectReason explains why a row produced no record.
type RejectReason string

const (
	ReasonTooFewTokens     RejectReason = "too_few_tokens"
	ReasonHeaderFooter     RejectReason = "header_footer"
	ReasonNoPrice          RejectReason = "no_price"
	ReasonNoDescription    RejectReason = "no_description"
	ReasonShortDescription RejectReason = "short_description"
	ReasonMissingCode      RejectReason = "missing_code"
	ReasonBlankRow         RejectReason = "blank_row"
)

// RowRejection records a row that was silently excluded from the output.
type RowRejection struct {
	Page   int          `json:"page,omitempty"`
	Row    int          `json:"row"`
	Reason RejectReason `json:"reason"`
	Text   string       `json:"text,omitempty"`
}

// CountByReason aggregates rejections for logging and metrics.
func CountByReason(rejections []RowRejection) map[RejectReason]int {
	counts := make(map[RejectReason]int, len(rejections))
	for _, r := range rejections {
		counts[r.Reason]++
	}
	return counts
}

// SchemaUnresolvedError is returned when a spreadsheet lacks a column for
// one or more required canonical fields. No records are extracted.
type SchemaUnresolvedError struct {
	Missing []catalog.Field
	Headers []string
}

func (e *SchemaUnresolvedError) Error() string {
	names := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		names[i] = string(f)
	}
	return fmt.Sprintf("missing required columns: %s (found: %s)",
		strings.Join(names, ", "), strings.Join(e.Headers, ", "))
}

// DocumentResult is the output of the document path.
type DocumentResult struct {
	Records    []catalog.Record
	Rejections []RowRejection
	Pages      int
	Rows       int
}

// SpreadsheetResult is the output of the spreadsheet path.
type SpreadsheetResult struct {
	Records    []catalog.Record
	Rejections []RowRejection
	Sheet      string
	Bindings   map[catalog.Field]string // canonical field -> source header
	TotalRows  int
}
