package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFirstName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"honorific with period", "Dr. John Okelo", "Dr. John"},
		{"plain name", "Frank Mushi", "Frank"},
		{"honorific without period", "Prof Jane Doe", "Prof Jane"},
		{"empty", "", "Guest"},
		{"whitespace only", "   ", "Guest"},
		{"swahili honorific", "Mwl. Asha", "Mwl. Asha"},
		{"stacked honorifics", "Rev. Dr. Peter Mwakyusa", "Rev. Dr. Peter"},
		{"single token", "Neema", "Neema"},
		{"lowercase honorific", "mrs. Grace Kimaro", "mrs. Grace"},
		{"honorific-prefixed name is not an honorific", "Drake Smith", "Drake"},
		{"leading and trailing spaces", "  Frank Mushi  ", "Frank"},
		{"military honorific", "Admiral James Haule", "Admiral James"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractFirstName(tt.input))
		})
	}
}

func TestExtractFirstNameIdempotent(t *testing.T) {
	for _, input := range []string{"Dr. John Okelo", "Frank Mushi", "Mwl. Asha"} {
		once := ExtractFirstName(input)
		assert.Equal(t, once, ExtractFirstName(once))
	}
}
