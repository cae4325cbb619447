package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentMatches(t *testing.T) {
	tests := []struct {
		name       string
		languageID string
		path       string
		want       bool
	}{
		{"japanese language id", "japanese", "/notes/essay.txt", true},
		{"prose language id", "markdown", "/notes/readme.md", true},
		{"code language id", "go", "/src/main.go", true},
		{"suffix pattern txt", "", "/notes/essay.ja.txt", true},
		{"suffix pattern md", "", "/notes/essay.ja.md", true},
		{"suffix pattern case insensitive", "", "/notes/ESSAY.JA.TXT", true},
		{"unknown language id", "fortran", "/src/main.f90", false},
		{"plain txt without suffix", "", "/notes/essay.txt", false},
		{"suffix must be terminal", "", "/notes/essay.ja.txt.bak", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DocumentMatches(tt.languageID, tt.path))
		})
	}
}

func TestURIRoundTrip(t *testing.T) {
	path := "/home/u/notes/日記.ja.txt"
	uri := FilePathToURI(path)
	assert.Equal(t, path, URIToFilePath(uri))
}

func TestURIToFilePathNonFile(t *testing.T) {
	assert.Equal(t, "untitled:1", URIToFilePath(DocumentURI("untitled:1")))
}

func TestUTF16Len(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 3},
		{"こんにちは", 5},
		{"𠮷野家", 4}, // first rune is a surrogate pair
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UTF16Len(tt.in), "input %q", tt.in)
	}
}

func TestPositionBefore(t *testing.T) {
	assert.True(t, Position{Line: 1, Character: 5}.Before(Position{Line: 2, Character: 0}))
	assert.True(t, Position{Line: 1, Character: 5}.Before(Position{Line: 1, Character: 6}))
	assert.False(t, Position{Line: 1, Character: 5}.Before(Position{Line: 1, Character: 5}))
	assert.False(t, Position{Line: 2, Character: 0}.Before(Position{Line: 1, Character: 9}))
}

func TestRangeIsEmpty(t *testing.T) {
	p := Position{Line: 3, Character: 4}
	assert.True(t, Range{Start: p, End: p}.IsEmpty())
	assert.False(t, Range{Start: p, End: Position{Line: 3, Character: 5}}.IsEmpty())
}

func TestLegendShape(t *testing.T) {
	assert.Len(t, TokenTypes, 12)
	assert.Equal(t, len(TokenModifiers), 4)
	assert.Equal(t, 1, ModifierProper)
	assert.Equal(t, 8, ModifierKanji)
}
