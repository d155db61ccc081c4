package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// ErrPDFToolNotFound indicates the pdftotext binary is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// LayoutExtractor turns document bytes into positioned words.
type LayoutExtractor interface {
	ExtractWords(ctx context.Context, data []byte) ([]PositionedToken, error)
}

// CommandRunner executes an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// DefaultPDFTool is the poppler binary used for word extraction.
const DefaultPDFTool = "pdftotext"

// PDFParser extracts word bounding boxes with "pdftotext -bbox".
type PDFParser struct {
	tool   string
	runner CommandRunner
}

// NewPDFParser creates a PDF layout extractor that shells out to tool.
// An empty tool selects DefaultPDFTool.
func NewPDFParser(tool string) *PDFParser {
	return NewPDFParserWithRunner(tool, execRunner{})
}

// NewPDFParserWithRunner creates a PDF layout extractor with a custom runner.
func NewPDFParserWithRunner(tool string, runner CommandRunner) *PDFParser {
	if tool == "" {
		tool = DefaultPDFTool
	}
	return &PDFParser{tool: tool, runner: runner}
}

// CheckAvailable reports whether the configured tool is on PATH.
func (p *PDFParser) CheckAvailable() error {
	if _, err := exec.LookPath(p.tool); err != nil {
		return fmt.Errorf("%w: %s", ErrPDFToolNotFound, p.tool)
	}
	return nil
}

// InstallInstructions describes how to install the extraction tool.
func InstallInstructions() string {
	return "PDF import requires pdftotext (poppler).\n" +
		"  macOS:  brew install poppler\n" +
		"  Debian: apt install poppler-utils"
}

// ExtractWords writes data to a temporary file, runs the tool on it and
// parses the resulting bounding-box document. Pages are numbered from 1.
func (p *PDFParser) ExtractWords(ctx context.Context, data []byte) ([]PositionedToken, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("%PDF-")) {
		return nil, fmt.Errorf("%w: missing PDF header", ErrUnreadableInput)
	}

	tmp, err := os.CreateTemp("", "pricelist-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	out, err := p.runner.Run(ctx, p.tool, "-bbox", "-enc", "UTF-8", tmp.Name(), "-")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPDFToolNotFound, p.tool)
		}
		return nil, fmt.Errorf("%w: %s failed: %v", ErrUnreadableInput, p.tool, err)
	}

	return ParseBBoxDocument(bytes.NewReader(out))
}

// ParseBBoxDocument reads the XHTML produced by "pdftotext -bbox":
// <page> elements containing <word xMin yMin xMax yMax>text</word>.
func ParseBBoxDocument(r io.Reader) ([]PositionedToken, error) {
	z := html.NewTokenizer(r)

	var (
		tokens  []PositionedToken
		page    int
		current *PositionedToken
		text    strings.Builder
	)

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return tokens, nil
			}
			return nil, fmt.Errorf("%w: %v", ErrUnreadableInput, z.Err())

		case html.StartTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "page":
				page++
			case "word":
				tok := PositionedToken{Page: page}
				for hasAttr {
					var key, val []byte
					key, val, hasAttr = z.TagAttr()
					f, err := strconv.ParseFloat(string(val), 64)
					if err != nil {
						continue
					}
					// the tokenizer lower-cases attribute names
					switch string(key) {
					case "xmin":
						tok.X0 = f
					case "ymin":
						tok.Y0 = f
					case "xmax":
						tok.X1 = f
					case "ymax":
						tok.Y1 = f
					}
				}
				current = &tok
				text.Reset()
			}

		case html.TextToken:
			if current != nil {
				text.Write(z.Text())
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "word" && current != nil {
				current.Text = strings.TrimSpace(text.String())
				if current.Text != "" {
					tokens = append(tokens, *current)
				}
				current = nil
			}
		}
	}
}
