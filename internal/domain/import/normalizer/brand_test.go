package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrandSanitizer_Sanitize(t *testing.T) {
	sanitizer := NewBrandSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"hp long form", "HEWLETT-PACKARD", "HP"},
		{"hp short", "hp", "HP"},
		{"enterprise is separate", "Hewlett Packard Enterprise", "HPE"},
		{"logitech gaming", "LOGITECH G", "Logitech"},
		{"tp link spacing", "tp link", "TP-Link"},
		{"extra whitespace", "  Dell   Technologies ", "Dell"},
		{"unknown brand kept", "Redragon", "Redragon"},
		{"unknown brand whitespace collapsed", " Marca   Propia ", "Marca Propia"},
		{"blank", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizer.Sanitize(tt.input))
		})
	}
}

func TestBrandSanitizer_AddPattern(t *testing.T) {
	sanitizer := NewBrandSanitizer()
	require.NoError(t, sanitizer.AddPattern(`(?i)^red\s*dragon$`, "Redragon"))
	assert.Equal(t, "Redragon", sanitizer.Sanitize("RED DRAGON"))

	assert.Error(t, sanitizer.AddPattern(`(`, "broken"))
}

func TestIsUnknownBrand(t *testing.T) {
	for _, v := range []string{"", "Unknown", "N/A", "sin marca", "Genérico", "-"} {
		assert.True(t, IsUnknownBrand(v), v)
	}
	assert.False(t, IsUnknownBrand("Logitech"))
}
