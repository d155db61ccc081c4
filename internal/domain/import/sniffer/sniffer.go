// Package sniffer identifies the format of an uploaded price list so it
// can be routed to the document or spreadsheet extraction path.
package sniffer

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
)

// ErrEmptyFile is returned for zero-length uploads.
var ErrEmptyFile = errors.New("file is empty")

// Format is a supported input format.
type Format string

const (
	FormatUnknown Format = ""
	FormatPDF     Format = "pdf"
	FormatXLSX    Format = "xlsx"
	FormatCSV     Format = "csv"
)

// IsSpreadsheet reports whether the format takes the spreadsheet path.
func (f Format) IsSpreadsheet() bool {
	return f == FormatXLSX || f == FormatCSV
}

// Detection is the result of sniffing a file.
type Detection struct {
	Format   Format
	MIME     string
	ByName   bool // format came from the file extension, not the content
	Filename string
}

var extensionFormats = map[string]Format{
	".pdf":  FormatPDF,
	".xlsx": FormatXLSX,
	".xlsm": FormatXLSX,
	".csv":  FormatCSV,
	".tsv":  FormatCSV,
	".txt":  FormatCSV,
}

// Detect identifies the format by content first. Generic containers
// (zip, plain text, octet-stream) fall back to the file extension.
func Detect(data []byte, filename string) (*Detection, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	mt := mimetype.Detect(data)
	d := &Detection{MIME: mt.String(), Filename: filename}

	switch {
	case mt.Is("application/pdf"):
		d.Format = FormatPDF
	case mt.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"):
		d.Format = FormatXLSX
	case mt.Is("text/csv"), mt.Is("text/tab-separated-values"):
		d.Format = FormatCSV
	}
	if d.Format != FormatUnknown {
		return d, nil
	}

	if isGeneric(mt) {
		if f, ok := extensionFormats[strings.ToLower(filepath.Ext(filename))]; ok {
			d.Format = f
			d.ByName = true
		}
	}
	return d, nil
}

// isGeneric reports whether the detected type is too broad to trust over
// the file extension. Every type descends from octet-stream, so the root
// only counts when nothing more specific was detected.
func isGeneric(mt *mimetype.MIME) bool {
	if mt.Is("application/octet-stream") {
		return true
	}
	for m := mt; m != nil && m.Parent() != nil; m = m.Parent() {
		if m.Is("application/zip") || m.Is("text/plain") {
			return true
		}
	}
	return false
}

// Fingerprint hashes normalized header names so recurring supplier
// layouts can be recognized in logs and metrics.
func Fingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:])
}
