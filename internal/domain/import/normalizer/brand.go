package normalizer

import (
	"regexp"
	"strings"
)

// BrandPattern maps supplier spellings of a brand to its canonical name.
type BrandPattern struct {
	Pattern *regexp.Regexp
	Name    string
}

// BrandSanitizer canonicalizes brand cells so the registry does not collect
// "HP", "Hewlett Packard" and "HEWLETT-PACKARD" as three brands.
type BrandSanitizer struct {
	patterns []BrandPattern
}

// NewBrandSanitizer creates a sanitizer with common hardware brands.
func NewBrandSanitizer() *BrandSanitizer {
	return &BrandSanitizer{patterns: defaultBrandPatterns()}
}

// Sanitize returns the canonical brand name. Unknown brands are returned
// with whitespace collapsed and otherwise untouched; blank input stays blank.
func (s *BrandSanitizer) Sanitize(raw string) string {
	cleaned := CleanText(raw)
	if cleaned == "" {
		return ""
	}
	for _, p := range s.patterns {
		if p.Pattern.MatchString(cleaned) {
			return p.Name
		}
	}
	return cleaned
}

// AddPattern appends a custom pattern. Patterns are tried in insertion
// order, defaults first.
func (s *BrandSanitizer) AddPattern(pattern, name string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	s.patterns = append(s.patterns, BrandPattern{Pattern: re, Name: name})
	return nil
}

// IsUnknownBrand reports whether a brand value means "no brand".
func IsUnknownBrand(brand string) bool {
	switch strings.ToLower(CleanText(brand)) {
	case "", "unknown", "n/a", "na", "s/m", "sin marca", "generico", "genérico", "-":
		return true
	}
	return false
}

func defaultBrandPatterns() []BrandPattern {
	return []BrandPattern{
		{regexp.MustCompile(`(?i)^(hp|hewlett[\s-]*packard)(\s+inc\.?)?$`), "HP"},
		{regexp.MustCompile(`(?i)^hpe$|^hewlett[\s-]*packard\s+enterprise$`), "HPE"},
		{regexp.MustCompile(`(?i)^dell(\s+technologies)?$`), "Dell"},
		{regexp.MustCompile(`(?i)^lenovo$`), "Lenovo"},
		{regexp.MustCompile(`(?i)^logitech(\s+g)?$`), "Logitech"},
		{regexp.MustCompile(`(?i)^samsung(\s+electronics)?$`), "Samsung"},
		{regexp.MustCompile(`(?i)^lg(\s+electronics)?$`), "LG"},
		{regexp.MustCompile(`(?i)^tp[\s-]*link$`), "TP-Link"},
		{regexp.MustCompile(`(?i)^asus(tek)?$`), "ASUS"},
		{regexp.MustCompile(`(?i)^acer$`), "Acer"},
		{regexp.MustCompile(`(?i)^epson$`), "Epson"},
		{regexp.MustCompile(`(?i)^canon$`), "Canon"},
		{regexp.MustCompile(`(?i)^kingston(\s+technology)?$`), "Kingston"},
		{regexp.MustCompile(`(?i)^western\s+digital$|^wd$`), "Western Digital"},
		{regexp.MustCompile(`(?i)^seagate$`), "Seagate"},
		{regexp.MustCompile(`(?i)^apc(\s+by\s+schneider(\s+electric)?)?$`), "APC"},
		{regexp.MustCompile(`(?i)^cisco(\s+systems)?$`), "Cisco"},
		{regexp.MustCompile(`(?i)^ubiquiti(\s+networks)?$|^ubnt$`), "Ubiquiti"},
		{regexp.MustCompile(`(?i)^microsoft$|^msft$`), "Microsoft"},
		{regexp.MustCompile(`(?i)^(xtech|x-tech)$`), "Xtech"},
	}
}
