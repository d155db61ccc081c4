package parser

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// DefaultNoiseKeywords mark header and footer rows. Matching is done on the
// upper-cased row text, so keywords must be upper case.
var DefaultNoiseKeywords = []string{"CODIGO", "DESCRIPCION", "PRECIO", "PAGE"}

// RowClassifier rejects header/footer rows using a multi-pattern matcher,
// so the whole keyword set is checked in one pass over the row text.
type RowClassifier struct {
	mu       sync.RWMutex
	keywords []string
	matcher  *ahocorasick.Matcher
}

// NewRowClassifier builds a classifier over the given keywords. With no
// keywords it uses DefaultNoiseKeywords.
func NewRowClassifier(keywords ...string) *RowClassifier {
	if len(keywords) == 0 {
		keywords = DefaultNoiseKeywords
	}
	c := &RowClassifier{}
	c.build(keywords)
	return c
}

// AddKeywords appends keywords and rebuilds the matcher.
func (c *RowClassifier) AddKeywords(keywords ...string) {
	c.mu.RLock()
	all := append(append([]string(nil), c.keywords...), keywords...)
	c.mu.RUnlock()
	c.build(all)
}

func (c *RowClassifier) build(keywords []string) {
	seen := make(map[string]struct{}, len(keywords))
	clean := make([]string, 0, len(keywords))
	patterns := make([][]byte, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToUpper(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		clean = append(clean, k)
		patterns = append(patterns, []byte(k))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.keywords = clean
	if len(patterns) == 0 {
		c.matcher = nil
		return
	}
	c.matcher = ahocorasick.NewMatcher(patterns)
}

// IsNoise reports whether the row's joined, upper-cased text contains any
// keyword. Position in the document is irrelevant.
func (c *RowClassifier) IsNoise(row Row) bool {
	return c.Contains(row.Text())
}

// Contains reports whether text contains any keyword, case-insensitively.
func (c *RowClassifier) Contains(text string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.matcher == nil {
		return false
	}
	return len(c.matcher.Match([]byte(strings.ToUpper(text)))) > 0
}

// Keywords returns a copy of the active keyword list.
func (c *RowClassifier) Keywords() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.keywords...)
}
