package parser

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultRowTolerance is the vertical distance, in layout units, above
	// which two consecutive words start separate rows.
	DefaultRowTolerance = 5.0

	// MinRowTokens is the smallest row that can carry code, description and price.
	MinRowTokens = 3
)

// RowGrouper clusters positioned tokens into visual rows.
type RowGrouper struct {
	tolerance float64
	parallel  bool
}

// NewRowGrouper creates a grouper. A non-positive tolerance selects
// DefaultRowTolerance. When parallel is set, pages are grouped concurrently
// and merged back in page order.
func NewRowGrouper(tolerance float64, parallel bool) *RowGrouper {
	if tolerance <= 0 {
		tolerance = DefaultRowTolerance
	}
	return &RowGrouper{tolerance: tolerance, parallel: parallel}
}

// Group splits tokens into rows ordered by (page, row). Rows with fewer
// than MinRowTokens tokens are returned as rejections instead.
func (g *RowGrouper) Group(ctx context.Context, tokens []PositionedToken) ([]Row, []RowRejection, error) {
	pages := splitPages(tokens)

	type pageResult struct {
		rows       []Row
		rejections []RowRejection
	}
	results := make([]pageResult, len(pages))

	if g.parallel && len(pages) > 1 {
		eg, egCtx := errgroup.WithContext(ctx)
		for i := range pages {
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return err
				}
				rows, rejections := g.groupPage(pages[i])
				results[i] = pageResult{rows: rows, rejections: rejections}
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, nil, err
		}
	} else {
		for i := range pages {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			rows, rejections := g.groupPage(pages[i])
			results[i] = pageResult{rows: rows, rejections: rejections}
		}
	}

	var rows []Row
	var rejections []RowRejection
	for _, r := range results {
		rows = append(rows, r.rows...)
		rejections = append(rejections, r.rejections...)
	}
	return rows, rejections, nil
}

// splitPages sorts tokens by (page, y0, x0) and returns one slice per page
// in ascending page order.
func splitPages(tokens []PositionedToken) [][]PositionedToken {
	if len(tokens) == 0 {
		return nil
	}
	sorted := make([]PositionedToken, len(tokens))
	copy(sorted, tokens)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		if a.Y0 != b.Y0 {
			return a.Y0 < b.Y0
		}
		return a.X0 < b.X0
	})

	var pages [][]PositionedToken
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i == len(sorted) || sorted[i].Page != sorted[start].Page {
			pages = append(pages, sorted[start:i])
			start = i
		}
	}
	return pages
}

// groupPage expects tokens of a single page sorted by (y0, x0).
func (g *RowGrouper) groupPage(tokens []PositionedToken) ([]Row, []RowRejection) {
	var rows []Row
	var rejections []RowRejection
	var current []PositionedToken
	index := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		rowTokens := make([]PositionedToken, len(current))
		copy(rowTokens, current)
		sort.SliceStable(rowTokens, func(i, j int) bool { return rowTokens[i].X0 < rowTokens[j].X0 })

		row := Row{Page: rowTokens[0].Page, Index: index, Tokens: rowTokens}
		if len(rowTokens) < MinRowTokens {
			rejections = append(rejections, RowRejection{
				Page:   row.Page,
				Row:    row.Index,
				Reason: ReasonTooFewTokens,
				Text:   row.Text(),
			})
		} else {
			rows = append(rows, row)
		}
		index++
		current = current[:0]
	}

	prevY := 0.0
	for _, tok := range tokens {
		if len(current) > 0 && math.Abs(tok.Y0-prevY) > g.tolerance {
			flush()
		}
		current = append(current, tok)
		prevY = tok.Y0
	}
	flush()

	return rows, rejections
}
